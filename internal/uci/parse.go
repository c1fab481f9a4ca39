package uci

import (
	"strconv"
	"strings"

	"github.com/nolancacheux/AI-Chess-Assistant/internal/domain"
)

// mateValue stands in for forced-mate scores so they still order above any
// centipawn evaluation.
const mateValue = 30000

// parseInfo extracts (principal move, score, depth) from an info line. A line
// is actionable only when all three are present together; anything else is
// ignored, not an error.
func parseInfo(line string) (domain.Move, *int, int, bool) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return "", nil, 0, false
	}

	var (
		scoreCP  int
		scoreSet bool
		depth    int
		depthSet bool
		pvIdx    = -1
	)

	for i := 0; i < len(parts); i++ {
		switch parts[i] {
		case "depth":
			if i+1 < len(parts) {
				if v, err := strconv.Atoi(parts[i+1]); err == nil {
					depth = v
					depthSet = true
				}
				i++
			}
		case "score":
			if i+2 < len(parts) {
				kind := parts[i+1]
				val := parts[i+2]
				switch kind {
				case "cp":
					if v, err := strconv.Atoi(val); err == nil {
						scoreCP = v
						scoreSet = true
					}
				case "mate":
					if v, err := strconv.Atoi(val); err == nil {
						if v >= 0 {
							scoreCP = mateValue
						} else {
							scoreCP = -mateValue
						}
						scoreSet = true
					}
				}
				i += 2
			}
		case "pv":
			pvIdx = i + 1
			i = len(parts)
		}
	}

	if !scoreSet || !depthSet || pvIdx == -1 || pvIdx >= len(parts) {
		return "", nil, 0, false
	}
	move := domain.Move(parts[pvIdx])
	if !move.IsValid() {
		return "", nil, 0, false
	}
	score := scoreCP
	return move, &score, depth, true
}

// parseBestMove extracts the terminal move. A "(none)" token means the engine
// has no move to offer (mated or stalemated position) and is not actionable.
func parseBestMove(line string) (domain.Move, bool) {
	parts := strings.Fields(line)
	if len(parts) < 2 {
		return "", false
	}
	move := domain.Move(parts[1])
	if parts[1] == "(none)" || !move.IsValid() {
		return "", false
	}
	return move, true
}
