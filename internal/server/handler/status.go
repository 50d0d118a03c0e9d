package handler

import (
	"net/http"
	"time"
)

// LedgerStats reports ledger sizes for the status endpoint.
type LedgerStats interface {
	Counts() (open, realized int)
}

// StatusHandler serves the desk status (mode, ledger sizes, uptime).
type StatusHandler struct {
	mode    string
	stats   LedgerStats
	started time.Time
}

// NewStatusHandler creates a StatusHandler. Uptime is measured from started.
func NewStatusHandler(mode string, stats LedgerStats, started time.Time) *StatusHandler {
	return &StatusHandler{mode: mode, stats: stats, started: started}
}

// Snapshot returns the status payload. The websocket hub sends the same
// payload to clients on connect.
func (h *StatusHandler) Snapshot() map[string]any {
	open, realized := h.stats.Counts()
	return map[string]any{
		"mode":            h.mode,
		"open_positions":  open,
		"realized_trades": realized,
		"uptime_seconds":  int64(time.Since(h.started).Seconds()),
	}
}

// GetStatus responds with the current desk status.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Snapshot())
}
