package panel

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/nolancacheux/AI-Chess-Assistant/pkg/assistdto"
)

type panelServer struct {
	url      string
	received chan assistdto.Event

	mu   sync.Mutex
	conn *websocket.Conn
}

func newPanelServer(t *testing.T) *panelServer {
	t.Helper()
	ps := &panelServer{received: make(chan assistdto.Event, 64)}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		ps.mu.Lock()
		ps.conn = c
		ps.mu.Unlock()
		for {
			var ev assistdto.Event
			if err := wsjson.Read(r.Context(), c, &ev); err != nil {
				return
			}
			ps.received <- ev
		}
	}))
	t.Cleanup(srv.Close)

	ps.url = strings.Replace(srv.URL, "http://", "ws://", 1)
	return ps
}

func (ps *panelServer) sendCommand(ctx context.Context, cmd *assistdto.Command) error {
	ps.mu.Lock()
	conn := ps.conn
	ps.mu.Unlock()
	return wsjson.Write(ctx, conn, cmd)
}

func TestConnectAndReceiveCommand(t *testing.T) {
	ps := newPanelServer(t)

	ws := NewWebSocket(ps.url, 0, time.Second)
	commands := make(chan assistdto.Command, 1)
	ws.OnCommand(func(cmd *assistdto.Command) { commands <- *cmd })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, ws.Connect(ctx))
	t.Cleanup(func() { _ = ws.Close(context.Background()) })

	require.NoError(t, ps.sendCommand(ctx, &assistdto.Command{Action: assistdto.ActionStart}))

	select {
	case cmd := <-commands:
		assert.Equal(t, assistdto.ActionStart, cmd.Action)
	case <-time.After(3 * time.Second):
		t.Fatal("command never reached the callback")
	}
}

func TestConcurrentPublish(t *testing.T) {
	ps := newPanelServer(t)

	ws := NewWebSocket(ps.url, 0, time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, ws.Connect(ctx))
	t.Cleanup(func() { _ = ws.Close(context.Background()) })

	const perWriter = 10
	var wg sync.WaitGroup
	for w := 0; w < 2; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				_ = ws.Publish(ctx, &assistdto.Event{Type: assistdto.EventStatus, Status: "ok"})
			}
		}()
	}
	wg.Wait()

	for i := 0; i < 2*perWriter; i++ {
		select {
		case <-ps.received:
		case <-time.After(3 * time.Second):
			t.Fatalf("server saw only %d of %d frames", i, 2*perWriter)
		}
	}
}

func TestPublishWhenDisconnected(t *testing.T) {
	ws := NewWebSocket("ws://127.0.0.1:1/panel", 0, time.Second)

	err := ws.Publish(context.Background(), &assistdto.Event{Type: assistdto.EventStatus})
	assert.Error(t, err, "publish must fail fast without a connection")
}

func TestCloseIsIdempotent(t *testing.T) {
	ps := newPanelServer(t)

	ws := NewWebSocket(ps.url, 0, time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, ws.Connect(ctx))

	require.NoError(t, ws.Close(context.Background()))
	require.NoError(t, ws.Close(context.Background()))

	err := ws.Publish(context.Background(), &assistdto.Event{Type: assistdto.EventStatus})
	assert.Error(t, err)
}
