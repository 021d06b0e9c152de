package handler

import (
	"net/http"
)

// StrategyLister reports the names of registered strategies.
type StrategyLister interface {
	Names() []string
}

// StatusHandler serves the backend status (mode, active strategies).
type StatusHandler struct {
	Mode       string
	SafeMode   bool
	strategies StrategyLister
}

// NewStatusHandler creates a StatusHandler. strategies may be nil when the
// process runs without a strategy runner (server-only mode).
func NewStatusHandler(mode string, safeMode bool, strategies StrategyLister) *StatusHandler {
	return &StatusHandler{Mode: mode, SafeMode: safeMode, strategies: strategies}
}

// GetStatus responds with the current backend mode and active strategies.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	names := []string{}
	if h.strategies != nil {
		names = h.strategies.Names()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":       h.Mode,
		"safe_mode":  h.SafeMode,
		"strategies": names,
	})
}
