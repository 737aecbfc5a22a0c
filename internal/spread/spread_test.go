package spread

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/updownlabs/pairbot/internal/domain"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func snap(up, down string) domain.MarketSnapshot {
	return domain.MarketSnapshot{
		MarketID:  "m",
		PriceUp:   d(up),
		PriceDown: d(down),
		Timestamp: time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC),
	}
}

func TestAnalyzeCategories(t *testing.T) {
	a := NewAnalyzer(DefaultThresholds())

	tests := []struct {
		name      string
		up, down  string
		deviation string
		category  domain.SpreadCategory
		elevated  bool
	}{
		{"perfect sum", "0.50", "0.50", "0", domain.SpreadNormal, false},
		{"small premium", "0.52", "0.51", "0.03", domain.SpreadNormal, false},
		{"at normal threshold", "0.52", "0.53", "0.05", domain.SpreadNormal, true},
		{"below high", "0.43", "0.43", "0.14", domain.SpreadNormal, true},
		{"at high threshold", "0.42", "0.43", "0.15", domain.SpreadHigh, true},
		{"between tiers", "0.40", "0.40", "0.20", domain.SpreadHigh, true},
		{"at extreme threshold", "0.37", "0.38", "0.25", domain.SpreadExtreme, true},
		{"deep discount", "0.30", "0.30", "0.40", domain.SpreadExtreme, true},
		{"overpriced pair", "0.60", "0.60", "0.20", domain.SpreadHigh, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := a.Analyze(snap(tt.up, tt.down))
			assert.True(t, sig.Deviation.Equal(d(tt.deviation)), "deviation %s want %s", sig.Deviation, tt.deviation)
			assert.Equal(t, tt.category, sig.Category)
			assert.Equal(t, tt.elevated, sig.Elevated)
		})
	}
}

func TestAnalyzeCheaperSide(t *testing.T) {
	a := NewAnalyzer(DefaultThresholds())

	assert.Equal(t, domain.SideUp, a.Analyze(snap("0.35", "0.70")).CheaperSide)
	assert.Equal(t, domain.SideDown, a.Analyze(snap("0.70", "0.35")).CheaperSide)
	// Ties break toward UP.
	assert.Equal(t, domain.SideUp, a.Analyze(snap("0.50", "0.50")).CheaperSide)
}
