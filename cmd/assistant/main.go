package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/nolancacheux/AI-Chess-Assistant/internal/analysis"
	"github.com/nolancacheux/AI-Chess-Assistant/internal/bridge"
	appcfg "github.com/nolancacheux/AI-Chess-Assistant/internal/config"
	"github.com/nolancacheux/AI-Chess-Assistant/internal/domain"
	"github.com/nolancacheux/AI-Chess-Assistant/internal/metrics"
	"github.com/nolancacheux/AI-Chess-Assistant/internal/msgcat"
	"github.com/nolancacheux/AI-Chess-Assistant/internal/obslog"
	"github.com/nolancacheux/AI-Chess-Assistant/internal/orchestrator"
	"github.com/nolancacheux/AI-Chess-Assistant/internal/panel"
	"github.com/nolancacheux/AI-Chess-Assistant/internal/uci"
	"github.com/nolancacheux/AI-Chess-Assistant/pkg/assistdto"
)

func main() {
	cfg, err := appcfg.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	if err := obslog.InitFromEnv(); err != nil {
		log.Fatalf("logger init error: %v", err)
	}
	logger := obslog.L()
	defer func() { _ = logger.Sync() }()

	catalog, err := msgcat.New(cfg.MsgOverrideDir)
	if err != nil {
		logger.Fatal("message catalog error", zap.Error(err))
	}

	rootCtx, stop := context.WithCancel(context.Background())
	defer stop()

	if cfg.MsgOverrideDir != "" {
		if err := catalog.Watch(rootCtx, logger); err != nil {
			logger.Warn("message catalog watch failed", zap.Error(err))
		}
	}

	client := bridge.NewClient(cfg.BridgeBaseURL, bridge.WithLogger(logger))

	ws := panel.NewWebSocket(cfg.PanelWSURL, 5, time.Second)

	engine := uci.NewAdapter(cfg.StockfishPath, uci.Options{
		Threads: cfg.EngineThreads,
		HashMB:  cfg.EngineHashMB,
		MultiPV: cfg.EngineMultiPV,
	}, logger)

	history := analysis.New(analysis.Config{
		Capacity:             cfg.HistoryLimit,
		DepthMin:             cfg.DepthMin,
		DepthMax:             cfg.DepthMax,
		RepetitionThreshold:  cfg.RepetitionThreshold,
		RepetitionDepthFloor: cfg.RepetitionDepthFloor,
	}, logger)

	loop, err := orchestrator.New(orchestrator.Config{
		AnalysisDepth:        cfg.AnalysisDepth,
		AutoPlayDepth:        cfg.AutoPlayDepth,
		PollInterval:         cfg.PollInterval(),
		AutoPlayAnalyzeDelay: cfg.AutoPlayAnalyzeDelay(),
		AutoPlayCommitDelay:  cfg.AutoPlayCommitDelay(),
		MoveSettleDelay:      cfg.MoveSettleDelay(),
	}, engine, client, client, client, ws, history, catalog, logger)
	if err != nil {
		logger.Fatal("orchestrator init error", zap.Error(err))
	}

	ws.OnCommand(func(cmd *assistdto.Command) {
		if cmd == nil {
			return
		}
		// command handlers block until the loop applies them; keep the
		// websocket read loop free
		go dispatch(rootCtx, loop, cmd, logger)
	})
	ws.OnStateChange(func(state panel.WebSocketState) {
		logger.Info("panel state", zap.String("state", string(state)))
		if state == panel.WSStateConnected {
			go loop.Resync(rootCtx)
		}
	})

	go loop.Run(rootCtx)

	if cfg.AutoPlay {
		loop.SetAutoPlay(rootCtx, true)
	}

	metrics.Serve(cfg.MetricsAddr, logger)

	cctx, cancel := context.WithTimeout(rootCtx, 10*time.Second)
	if err := ws.Connect(cctx); err != nil {
		cancel()
		logger.Fatal("panel connect error", zap.Error(err))
	}
	cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	loop.Stop(context.Background())
	stop()
	_ = ws.Close(context.Background())
	engine.Terminate()
}

func dispatch(ctx context.Context, loop *orchestrator.Loop, cmd *assistdto.Command, logger *zap.Logger) {
	switch cmd.Action {
	case assistdto.ActionStart:
		loop.Start(ctx)
	case assistdto.ActionColor:
		color, ok := domain.ParseColor(cmd.Color)
		if !ok {
			logger.Warn("unknown color", zap.String("color", cmd.Color))
			return
		}
		loop.SelectColor(ctx, color)
	case assistdto.ActionStop:
		loop.Stop(ctx)
	case assistdto.ActionAutoPlay:
		if cmd.Enabled == nil {
			return
		}
		loop.SetAutoPlay(ctx, *cmd.Enabled)
	default:
		logger.Warn("unknown panel action", zap.String("action", cmd.Action))
	}
}
