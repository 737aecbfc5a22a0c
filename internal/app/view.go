package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/updownlabs/pairbot/internal/domain"
)

// viewTimeout bounds backend lookups made on behalf of API requests.
const viewTimeout = 5 * time.Second

// cacheView implements handler.EngineView over the tick cache and trade
// journal, for server mode where no manager runs in-process. A market with no
// cached tick yet reports an empty state rather than an error.
type cacheView struct {
	markets []string
	cache   domain.TickCache
	store   domain.TradeStore
}

func (v *cacheView) Markets() []string {
	return v.markets
}

func (v *cacheView) State(marketID string) (domain.TickResult, error) {
	if !v.knows(marketID) {
		return domain.TickResult{}, fmt.Errorf("view: market %q: %w", marketID, domain.ErrMarketUnknown)
	}

	ctx, cancel := context.WithTimeout(context.Background(), viewTimeout)
	defer cancel()

	res, err := v.cache.GetTick(ctx, marketID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.TickResult{MarketID: marketID}, nil
	}
	return res, err
}

func (v *cacheView) Trades(marketID string) ([]domain.Trade, error) {
	if !v.knows(marketID) {
		return nil, fmt.Errorf("view: market %q: %w", marketID, domain.ErrMarketUnknown)
	}
	if v.store == nil {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), viewTimeout)
	defer cancel()

	trades, err := v.store.ListByMarket(ctx, marketID, 0)
	if err != nil {
		return nil, err
	}
	// The journal lists newest first; the API contract is oldest first.
	for i, j := 0, len(trades)-1; i < j; i, j = i+1, j-1 {
		trades[i], trades[j] = trades[j], trades[i]
	}
	return trades, nil
}

func (v *cacheView) knows(marketID string) bool {
	for _, id := range v.markets {
		if id == marketID {
			return true
		}
	}
	return false
}
