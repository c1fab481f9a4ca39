package domain

import "strings"

// Move is a UCI-encoded ply: origin square, destination square, optional
// promotion piece ("e2e4", "e7e8q"). Compared by value.
type Move string

const promotionPieces = "qrbn"

// IsValid reports whether the move uses the fixed 4-or-5-character scheme.
// It checks shape only; legality is the host board's business.
func (m Move) IsValid() bool {
	s := string(m)
	if len(s) != 4 && len(s) != 5 {
		return false
	}
	if !squareValid(s[0], s[1]) || !squareValid(s[2], s[3]) {
		return false
	}
	if len(s) == 5 && !strings.ContainsRune(promotionPieces, rune(s[4])) {
		return false
	}
	return true
}

func (m Move) String() string { return string(m) }

func squareValid(file, rank byte) bool {
	return file >= 'a' && file <= 'h' && rank >= '1' && rank <= '8'
}

// Color identifies the side the assistant plays.
type Color string

const (
	White Color = "white"
	Black Color = "black"
)

func (c Color) Valid() bool { return c == White || c == Black }

func (c Color) Opponent() Color {
	if c == White {
		return Black
	}
	return White
}

// FENLetter returns the side-to-move letter used in FEN strings.
func (c Color) FENLetter() string {
	if c == Black {
		return "b"
	}
	return "w"
}

// ParseColor accepts the spellings the panel may send.
func ParseColor(s string) (Color, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "white", "w":
		return White, true
	case "black", "b":
		return Black, true
	default:
		return "", false
	}
}
