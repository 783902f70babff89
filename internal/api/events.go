package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// DashboardStream pushes dashboard snapshots to connected operator consoles
// over a WebSocket.
type DashboardStream struct {
	handler  *CampaignHandler
	interval time.Duration
}

// NewDashboardStream creates a dashboard stream handler. interval controls
// the push cadence; zero means 2s.
func NewDashboardStream(handler *CampaignHandler, interval time.Duration) *DashboardStream {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &DashboardStream{handler: handler, interval: interval}
}

// ServeHTTP implements http.Handler for the WebSocket upgrade.
func (s *DashboardStream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err, "ip", r.RemoteAddr)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "stream ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr)
		}
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Drain inbound frames so pings and close frames are processed.
	go func() {
		defer cancel()
		for {
			if _, _, err := ws.Read(ctx); err != nil {
				return
			}
		}
	}()

	slog.Info("Dashboard stream connected", "ip", r.RemoteAddr)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := wsjson.Write(ctx, ws, s.handler.dashboardSnapshot()); err != nil {
			slog.Debug("Dashboard stream write failed", "error", err)
			return
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			slog.Info("Dashboard stream disconnected", "ip", r.RemoteAddr)
			return
		}
	}
}
