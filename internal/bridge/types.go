package bridge

import "errors"

// ErrNoBoard means the page answered but no chessboard is rendered.
var ErrNoBoard = errors.New("no board on page")

type boardResponse struct {
	Found bool   `json:"found"`
	FEN   string `json:"fen"`
}

type moveRequest struct {
	Move string `json:"move"`
}

type moveResponse struct {
	Accepted bool `json:"accepted"`
}

type highlightRequest struct {
	Move string `json:"move"`
}
