package orchestrator

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/nolancacheux/AI-Chess-Assistant/internal/domain"
	"github.com/nolancacheux/AI-Chess-Assistant/pkg/assistdto"
)

func (l *Loop) publishStatus(ctx context.Context, key string, data map[string]string) {
	text := l.catalog.MustRender(key, data)
	l.publish(ctx, &assistdto.Event{
		Type:         assistdto.EventStatus,
		ActivationID: l.activationID,
		Status:       text,
	})
}

// publishHistory pushes the full history snapshot plus the advantage derived
// from its newest scored entry.
func (l *Loop) publishHistory(ctx context.Context) {
	entries := l.history.Entries()
	dto := make([]assistdto.AnalysisEntry, 0, len(entries))
	for _, e := range entries {
		dto = append(dto, assistdto.AnalysisEntry{
			Move:    e.Move.String(),
			ScoreCP: e.ScoreCP,
			Depth:   e.Depth,
			Final:   e.Final,
			At:      e.At,
		})
	}
	l.publish(ctx, &assistdto.Event{
		Type:         assistdto.EventHistory,
		ActivationID: l.activationID,
		History:      dto,
	})

	if adv, ok := l.advantage(entries); ok {
		l.publish(ctx, &assistdto.Event{
			Type:         assistdto.EventAdvantage,
			ActivationID: l.activationID,
			Advantage:    adv,
		})
	}
}

// advantage converts the newest scored entry to White's point of view. Engine
// scores are reported for the side we analyze, which is the active color.
func (l *Loop) advantage(entries []domain.AnalysisEntry) (*assistdto.Advantage, bool) {
	for _, e := range entries {
		if e.ScoreCP == nil {
			continue
		}
		cp := *e.ScoreCP
		if l.turn.ActiveColor == domain.Black {
			cp = -cp
		}
		key := "advantage.even"
		switch {
		case cp > 0:
			key = "advantage.white"
		case cp < 0:
			key = "advantage.black"
		}
		pawns := fmt.Sprintf("%.1f", float64(abs(cp))/100)
		text := l.catalog.MustRender(key, map[string]string{"Pawns": pawns})
		return &assistdto.Advantage{ScoreCP: cp, Text: text}, true
	}
	return nil, false
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func (l *Loop) publish(ctx context.Context, ev *assistdto.Event) {
	if l.notifier == nil {
		return
	}
	if err := l.notifier.Publish(ctx, ev); err != nil {
		// the panel resyncs on reconnect, so a dropped frame is not fatal
		l.logger.Debug("panel publish failed", zap.Error(err))
	}
}
