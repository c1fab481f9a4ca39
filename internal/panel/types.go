package panel

import (
	"context"

	"github.com/nolancacheux/AI-Chess-Assistant/pkg/assistdto"
)

// CommandCallback receives one user command from the panel.
type CommandCallback func(cmd *assistdto.Command)

// StateCallback observes connection state changes.
type StateCallback func(state WebSocketState)

type WebSocketState string

const (
	WSStateDisconnected WebSocketState = "disconnected"
	WSStateConnecting   WebSocketState = "connecting"
	WSStateConnected    WebSocketState = "connected"
	WSStateReconnecting WebSocketState = "reconnecting"
	WSStateFailed       WebSocketState = "failed"
)

// Conn is the panel transport the orchestrator publishes through.
type Conn interface {
	Connect(ctx context.Context) error
	OnCommand(cb CommandCallback) int
	OnStateChange(cb StateCallback) int
	Publish(ctx context.Context, ev *assistdto.Event) error
	Close(ctx context.Context) error
}
