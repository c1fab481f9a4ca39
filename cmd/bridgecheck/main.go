// bridgecheck probes the browser bridge and the panel websocket so a broken
// deployment can be diagnosed without starting the assistant.
package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/nolancacheux/AI-Chess-Assistant/internal/bridge"
	"github.com/nolancacheux/AI-Chess-Assistant/internal/panel"
)

func main() {
	baseURL := os.Getenv("BRIDGE_BASE_URL")
	wsURL := os.Getenv("PANEL_WS_URL")

	if baseURL == "" {
		log.Fatal("BRIDGE_BASE_URL is required")
	}

	client := bridge.NewClient(baseURL, bridge.WithTimeout(8*time.Second))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if !client.Locate(ctx) {
		log.Printf("/board: reachable but no board rendered (or bridge down)")
	} else {
		snap, err := client.Sample(ctx)
		if err != nil {
			log.Printf("/board sample error: %v", err)
		} else {
			log.Printf("/board ok: side=%s fen=%s", snap.SideToMove, snap.FEN)
		}
	}

	if wsURL == "" {
		log.Println("PANEL_WS_URL not set; skipping panel check")
		return
	}

	ws := panel.NewWebSocket(wsURL, 1, time.Second)
	ws.OnStateChange(func(state panel.WebSocketState) {
		log.Printf("panel state: %s", state)
	})

	cctx, ccancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer ccancel()
	if err := ws.Connect(cctx); err != nil {
		log.Printf("panel connect error: %v", err)
		return
	}

	// hold the connection briefly so reconnect/ping behavior is visible
	t := time.NewTimer(5 * time.Second)
	<-t.C

	_ = ws.Close(context.Background())
}
