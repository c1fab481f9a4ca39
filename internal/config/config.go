package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

type AppConfig struct {
	BridgeBaseURL string
	PanelWSURL    string

	StockfishPath string
	EngineThreads int
	EngineHashMB  int
	EngineMultiPV int

	PollIntervalMillis int
	AnalysisDepth      int

	AutoPlay                   bool
	AutoPlayDepth              int
	AutoPlayAnalyzeDelayMillis int
	AutoPlayCommitDelayMillis  int
	MoveSettleDelayMillis      int

	HistoryLimit         int
	DepthMin             int
	DepthMax             int
	RepetitionThreshold  int
	RepetitionDepthFloor int

	MetricsAddr    string
	MsgOverrideDir string
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		EngineThreads:              1,
		EngineHashMB:               128,
		EngineMultiPV:              1,
		PollIntervalMillis:         500,
		AnalysisDepth:              15,
		AutoPlay:                   false,
		AutoPlayDepth:              2,
		AutoPlayAnalyzeDelayMillis: 100,
		AutoPlayCommitDelayMillis:  500,
		MoveSettleDelayMillis:      800,
		HistoryLimit:               100,
		DepthMin:                   1,
		DepthMax:                   26,
		RepetitionThreshold:        3,
		RepetitionDepthFloor:       20,
	}

	cfg.BridgeBaseURL = strings.TrimSpace(os.Getenv("BRIDGE_BASE_URL"))
	cfg.PanelWSURL = strings.TrimSpace(os.Getenv("PANEL_WS_URL"))
	cfg.StockfishPath = strings.TrimSpace(os.Getenv("STOCKFISH_PATH"))

	readInt(&cfg.EngineThreads, "ENGINE_THREADS")
	readInt(&cfg.EngineHashMB, "ENGINE_HASH_MB")
	readInt(&cfg.EngineMultiPV, "ENGINE_MULTIPV")

	readInt(&cfg.PollIntervalMillis, "ASSIST_POLL_INTERVAL_MS")
	readInt(&cfg.AnalysisDepth, "ASSIST_ANALYSIS_DEPTH")
	readInt(&cfg.AutoPlayDepth, "ASSIST_AUTOPLAY_DEPTH")
	readInt(&cfg.AutoPlayAnalyzeDelayMillis, "ASSIST_AUTOPLAY_ANALYZE_DELAY_MS")
	readInt(&cfg.AutoPlayCommitDelayMillis, "ASSIST_AUTOPLAY_COMMIT_DELAY_MS")
	readInt(&cfg.MoveSettleDelayMillis, "ASSIST_MOVE_SETTLE_DELAY_MS")

	readInt(&cfg.HistoryLimit, "ASSIST_HISTORY_LIMIT")
	readInt(&cfg.DepthMin, "ASSIST_DEPTH_MIN")
	readInt(&cfg.DepthMax, "ASSIST_DEPTH_MAX")
	readInt(&cfg.RepetitionThreshold, "ASSIST_REPEAT_THRESHOLD")
	readInt(&cfg.RepetitionDepthFloor, "ASSIST_REPEAT_DEPTH_FLOOR")

	if v := strings.TrimSpace(os.Getenv("ASSIST_AUTOPLAY")); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.AutoPlay = b
		}
	}

	cfg.MetricsAddr = strings.TrimSpace(os.Getenv("METRICS_ADDR"))
	cfg.MsgOverrideDir = strings.TrimSpace(os.Getenv("MSG_OVERRIDE_DIR"))

	if cfg.BridgeBaseURL == "" {
		return nil, errors.New("BRIDGE_BASE_URL is required")
	}
	if cfg.PanelWSURL == "" {
		return nil, errors.New("PANEL_WS_URL is required")
	}
	if cfg.StockfishPath == "" {
		return nil, errors.New("STOCKFISH_PATH is required")
	}
	if cfg.DepthMin < 1 || cfg.DepthMax < cfg.DepthMin {
		return nil, errors.New("invalid depth bounds")
	}
	if cfg.AnalysisDepth < cfg.DepthMin || cfg.AnalysisDepth > cfg.DepthMax {
		return nil, errors.New("ASSIST_ANALYSIS_DEPTH outside depth bounds")
	}

	return cfg, nil
}

func readInt(dst *int, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*dst = n
		}
	}
}

func (c *AppConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMillis) * time.Millisecond
}

func (c *AppConfig) AutoPlayAnalyzeDelay() time.Duration {
	return time.Duration(c.AutoPlayAnalyzeDelayMillis) * time.Millisecond
}

func (c *AppConfig) AutoPlayCommitDelay() time.Duration {
	return time.Duration(c.AutoPlayCommitDelayMillis) * time.Millisecond
}

func (c *AppConfig) MoveSettleDelay() time.Duration {
	return time.Duration(c.MoveSettleDelayMillis) * time.Millisecond
}
