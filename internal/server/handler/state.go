package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/updownlabs/pairbot/internal/domain"
)

// EngineView is the read-only slice of the market manager the status API
// needs.
type EngineView interface {
	Markets() []string
	State(marketID string) (domain.TickResult, error)
	Trades(marketID string) ([]domain.Trade, error)
}

// StateHandler serves per-market engine state and trade logs.
type StateHandler struct {
	engine EngineView
	logger *slog.Logger
}

// NewStateHandler creates a StateHandler over the given engine view.
func NewStateHandler(engine EngineView, logger *slog.Logger) *StateHandler {
	return &StateHandler{engine: engine, logger: logger}
}

// ListMarkets responds with the managed market IDs.
// GET /api/markets
func (h *StateHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"markets": h.engine.Markets(),
	})
}

// GetState responds with the latest tick result for one market: phase,
// position, and scenario PnL.
// GET /api/state/{market}
func (h *StateHandler) GetState(w http.ResponseWriter, r *http.Request) {
	marketID := r.PathValue("market")
	state, err := h.engine.State(marketID)
	if err != nil {
		if errors.Is(err, domain.ErrMarketUnknown) {
			writeError(w, http.StatusNotFound, "unknown market: "+marketID)
			return
		}
		h.logger.ErrorContext(r.Context(), "state lookup failed",
			slog.String("market", marketID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "state lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// GetTrades responds with the in-memory trade log for one market, newest
// last.
// GET /api/trades/{market}
func (h *StateHandler) GetTrades(w http.ResponseWriter, r *http.Request) {
	marketID := r.PathValue("market")
	trades, err := h.engine.Trades(marketID)
	if err != nil {
		if errors.Is(err, domain.ErrMarketUnknown) {
			writeError(w, http.StatusNotFound, "unknown market: "+marketID)
			return
		}
		h.logger.ErrorContext(r.Context(), "trade lookup failed",
			slog.String("market", marketID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "trade lookup failed")
		return
	}

	limit := parseLimit(r)
	if len(trades) > limit {
		trades = trades[len(trades)-limit:]
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"market": marketID,
		"trades": trades,
	})
}
