package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/NuclearBacon465/kalshi-ai-trading-bot-sub001/internal/domain"
	"github.com/NuclearBacon465/kalshi-ai-trading-bot-sub001/internal/service"
)

// PositionSource defines the methods that the position handler requires.
type PositionSource interface {
	Open(ctx context.Context) ([]service.PositionView, error)
	History(ctx context.Context, opts domain.ListOpts) ([]domain.Position, error)
}

// PositionHandler serves position-related HTTP endpoints.
type PositionHandler struct {
	positions PositionSource
	logger    *slog.Logger
}

// NewPositionHandler creates a PositionHandler with the given source and logger.
func NewPositionHandler(positions PositionSource, logger *slog.Logger) *PositionHandler {
	return &PositionHandler{
		positions: positions,
		logger:    logger,
	}
}

// listPositionsResponse wraps the open positions response.
type listPositionsResponse struct {
	Positions []service.PositionView `json:"positions"`
}

// ListOpen returns all open positions with current prices and unrealized PnL.
// GET /api/positions
func (h *PositionHandler) ListOpen(w http.ResponseWriter, r *http.Request) {
	positions, err := h.positions.Open(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list open positions failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list positions")
		return
	}

	if positions == nil {
		positions = []service.PositionView{}
	}

	writeJSON(w, http.StatusOK, listPositionsResponse{Positions: positions})
}

// positionHistoryResponse wraps the position history response.
type positionHistoryResponse struct {
	Positions []domain.Position `json:"positions"`
}

// History returns closed and open positions ordered by open time, newest first.
// GET /api/positions/history?limit=50&offset=0&since=2026-08-01T00:00:00Z
func (h *PositionHandler) History(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	positions, err := h.positions.History(r.Context(), opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: position history failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list position history")
		return
	}

	if positions == nil {
		positions = []domain.Position{}
	}

	writeJSON(w, http.StatusOK, positionHistoryResponse{Positions: positions})
}
