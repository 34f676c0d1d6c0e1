// Package marketdata supplies daily price history, currency exchange rates
// and external prediction signals to the analytics core.
package marketdata

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"financehub/types"
)

var (
	ErrNoBars = errors.New("no bars returned for ticker")
	ErrNoRate = errors.New("no exchange rate available")
)

// Source supplies ordered daily OHLCV bars and currency conversion rates.
// FetchBars returns an empty slice (never nil error) when a ticker simply has
// no data in the window.
type Source interface {
	FetchBars(ctx context.Context, ticker string, start, end time.Time) ([]types.Candle, error)
	FetchExchangeRate(ctx context.Context, from, to string) (decimal.Decimal, error)
}

// Predictor is the external price-direction predictor consumed by the
// prediction-based strategy. Implementations should return a signal for every
// requested day; callers substitute types.NeutralSignal on error.
type Predictor interface {
	DailySignal(ctx context.Context, ticker string, date time.Time) (types.PredictionSignal, error)
}

// RateCache memoizes exchange rates for the duration of one analysis call so
// every holding in a snapshot is converted at the same rate. It is scoped per
// call and must not be shared across concurrent analyses.
type RateCache struct {
	source Source
	rates  map[string]decimal.Decimal
}

func NewRateCache(source Source) *RateCache {
	return &RateCache{
		source: source,
		rates:  make(map[string]decimal.Decimal),
	}
}

// Rate returns the conversion rate from one currency to another, fetching it
// at most once per pair. Identical currencies convert at 1. When the source
// has no rate, the 2024-average KRW/USD constants keep Korean holdings usable
// rather than silently dropping them; unknown pairs fall back to 1.
func (c *RateCache) Rate(ctx context.Context, from, to string) decimal.Decimal {
	if from == to {
		return decimal.NewFromInt(1)
	}
	key := from + "_" + to
	if rate, ok := c.rates[key]; ok {
		return rate
	}

	rate, err := c.source.FetchExchangeRate(ctx, from, to)
	if err != nil || !rate.IsPositive() {
		rate = fallbackRate(from, to)
	}
	c.rates[key] = rate
	return rate
}

func fallbackRate(from, to string) decimal.Decimal {
	switch {
	case from == "KRW" && to == "USD":
		return decimal.NewFromFloat(0.00075)
	case from == "USD" && to == "KRW":
		return decimal.NewFromFloat(1333.0)
	default:
		return decimal.NewFromInt(1)
	}
}
