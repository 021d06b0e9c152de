package handler

import (
	"net/http"

	"github.com/NuclearBacon465/kalshi-ai-trading-bot-sub001/internal/domain"
)

// StatsSource provides aggregate execution statistics.
type StatsSource interface {
	Stats() domain.ExecutionStats
}

// SignalSource provides the most recently emitted trade signals.
type SignalSource interface {
	RecentSignals(limit int) []domain.TradeSignal
}

// StatsHandler serves execution statistics and recent signal activity.
type StatsHandler struct {
	stats   StatsSource
	signals SignalSource
}

// NewStatsHandler creates a StatsHandler. Either source may be nil; the
// corresponding endpoint then reports 503.
func NewStatsHandler(stats StatsSource, signals SignalSource) *StatsHandler {
	return &StatsHandler{stats: stats, signals: signals}
}

// GetStats returns the engine's cumulative decision and execution counters.
// GET /api/stats
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	if h.stats == nil {
		writeError(w, http.StatusServiceUnavailable, "execution engine not running")
		return
	}
	writeJSON(w, http.StatusOK, h.stats.Stats())
}

// listSignalsResponse wraps the recent signals response.
type listSignalsResponse struct {
	Signals []domain.TradeSignal `json:"signals"`
}

// ListSignals returns the most recent strategy signals, newest first.
// GET /api/signals?limit=50
func (h *StatsHandler) ListSignals(w http.ResponseWriter, r *http.Request) {
	if h.signals == nil {
		writeError(w, http.StatusServiceUnavailable, "strategy runner not running")
		return
	}
	limit := parseLimit(r, 50, 500)
	sigs := h.signals.RecentSignals(limit)
	if sigs == nil {
		sigs = []domain.TradeSignal{}
	}
	writeJSON(w, http.StatusOK, listSignalsResponse{Signals: sigs})
}
