package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/NuclearBacon465/kalshi-ai-trading-bot-sub001/internal/domain"
)

// ActivitySource defines the trade and decision history methods the handler
// requires.
type ActivitySource interface {
	History(ctx context.Context, ticker string, limit int) ([]domain.Trade, error)
	RecentDecisions(ctx context.Context, limit int) ([]domain.DecisionRecord, error)
}

// ActivityHandler serves executed trades and engine decision records.
type ActivityHandler struct {
	activity ActivitySource
	logger   *slog.Logger
}

// NewActivityHandler creates an ActivityHandler with the given source and logger.
func NewActivityHandler(activity ActivitySource, logger *slog.Logger) *ActivityHandler {
	return &ActivityHandler{
		activity: activity,
		logger:   logger,
	}
}

// listTradesResponse wraps the trades response.
type listTradesResponse struct {
	Trades []domain.Trade `json:"trades"`
}

// ListTrades returns executed trades for a ticker, newest first.
// GET /api/trades?ticker=INXD-26SEP01&limit=50
func (h *ActivityHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	ticker := r.URL.Query().Get("ticker")
	if ticker == "" {
		writeError(w, http.StatusBadRequest, "ticker query parameter required")
		return
	}

	limit := parseLimit(r, 50, 500)
	trades, err := h.activity.History(r.Context(), ticker, limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list trades failed",
			slog.String("ticker", ticker),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list trades")
		return
	}

	if trades == nil {
		trades = []domain.Trade{}
	}

	writeJSON(w, http.StatusOK, listTradesResponse{Trades: trades})
}

// listDecisionsResponse wraps the decision records response.
type listDecisionsResponse struct {
	Decisions []domain.DecisionRecord `json:"decisions"`
}

// ListDecisions returns recent engine decision records, newest first.
// GET /api/decisions?limit=50
func (h *ActivityHandler) ListDecisions(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 50, 500)

	decisions, err := h.activity.RecentDecisions(r.Context(), limit)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list decisions failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list decisions")
		return
	}

	if decisions == nil {
		decisions = []domain.DecisionRecord{}
	}

	writeJSON(w, http.StatusOK, listDecisionsResponse{Decisions: decisions})
}
