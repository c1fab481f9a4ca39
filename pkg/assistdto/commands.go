package assistdto

// Command actions accepted from the panel.
const (
	ActionStart    = "start"
	ActionColor    = "color"
	ActionStop     = "stop"
	ActionAutoPlay = "autoplay"
)

// Command is one frame received from the panel websocket.
type Command struct {
	Action  string `json:"action"`
	Color   string `json:"color,omitempty"`   // for ActionColor: "white" | "black"
	Enabled *bool  `json:"enabled,omitempty"` // for ActionAutoPlay
}
