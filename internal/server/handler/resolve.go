package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/updownlabs/pairbot/internal/domain"
)

// Resolver finalizes a market with its winning side.
type Resolver interface {
	Resolve(marketID string, winner domain.Side) (domain.Resolution, []domain.Trade, error)
}

// ResolvedCallback runs after a successful resolution, outside the request
// handler's error path. Used for archiving and notifications.
type ResolvedCallback func(r *http.Request, res domain.Resolution, trades []domain.Trade)

// ResolveHandler lets the operator settle a market once the outcome is known.
type ResolveHandler struct {
	resolver   Resolver
	onResolved ResolvedCallback
	logger     *slog.Logger
}

// NewResolveHandler creates a ResolveHandler. onResolved may be nil.
func NewResolveHandler(resolver Resolver, onResolved ResolvedCallback, logger *slog.Logger) *ResolveHandler {
	return &ResolveHandler{resolver: resolver, onResolved: onResolved, logger: logger}
}

type resolveRequest struct {
	Winner string `json:"winner"`
}

// Resolve settles a market with the winning side and responds with the final
// PnL. The market's runner is removed; further ticks for it are rejected.
// POST /api/resolve/{market}
func (h *ResolveHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	marketID := r.PathValue("market")

	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	winner := domain.Side(req.Winner)
	if !winner.Valid() {
		writeError(w, http.StatusBadRequest, "winner must be UP or DOWN")
		return
	}

	res, trades, err := h.resolver.Resolve(marketID, winner)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrMarketUnknown):
			writeError(w, http.StatusNotFound, "unknown market: "+marketID)
		case errors.Is(err, domain.ErrMarketResolved):
			writeError(w, http.StatusConflict, "market already resolved: "+marketID)
		default:
			h.logger.ErrorContext(r.Context(), "resolution failed",
				slog.String("market", marketID),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusInternalServerError, "resolution failed")
		}
		return
	}

	if h.onResolved != nil {
		h.onResolved(r, res, trades)
	}
	writeJSON(w, http.StatusOK, res)
}
