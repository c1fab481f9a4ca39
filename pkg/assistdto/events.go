// Package assistdto defines the wire types shared with the control panel.
package assistdto

import "time"

// Event types pushed to the panel.
const (
	EventStatus    = "status"
	EventHistory   = "history"
	EventAdvantage = "advantage"
)

// Event is one frame pushed over the panel websocket. Exactly one of the
// payload fields is set, selected by Type.
type Event struct {
	Type         string          `json:"type"`
	ActivationID string          `json:"activation_id,omitempty"`
	Status       string          `json:"status,omitempty"`
	History      []AnalysisEntry `json:"history,omitempty"`
	Advantage    *Advantage      `json:"advantage,omitempty"`
}

// AnalysisEntry mirrors one recorded engine report, most-recent-first in the
// history payload.
type AnalysisEntry struct {
	Move    string    `json:"move"`
	ScoreCP *int      `json:"score_cp,omitempty"`
	Depth   int       `json:"depth"`
	Final   bool      `json:"final"`
	At      time.Time `json:"at"`
}

// Advantage is the evaluation display payload: centipawns from White's point
// of view plus the rendered text.
type Advantage struct {
	ScoreCP int    `json:"score_cp"`
	Text    string `json:"text"`
}
