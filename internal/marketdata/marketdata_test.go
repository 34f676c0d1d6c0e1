package marketdata

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"financehub/types"
)

type countingSource struct {
	rate  decimal.Decimal
	err   error
	calls int
}

func (c *countingSource) FetchBars(ctx context.Context, ticker string, start, end time.Time) ([]types.Candle, error) {
	return nil, errors.New("not implemented")
}

func (c *countingSource) FetchExchangeRate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	c.calls++
	return c.rate, c.err
}

func TestRateCacheIdenticalCurrencies(t *testing.T) {
	source := &countingSource{}
	cache := NewRateCache(source)

	rate := cache.Rate(context.Background(), "USD", "USD")
	assert.True(t, rate.Equal(decimal.NewFromInt(1)))
	assert.Zero(t, source.calls, "identical currencies must not hit the source")
}

func TestRateCacheMemoizesPerPair(t *testing.T) {
	source := &countingSource{rate: decimal.RequireFromString("0.00072")}
	cache := NewRateCache(source)

	first := cache.Rate(context.Background(), "KRW", "USD")
	second := cache.Rate(context.Background(), "KRW", "USD")
	assert.True(t, first.Equal(second))
	assert.Equal(t, 1, source.calls, "one fetch per pair per cache lifetime")

	cache.Rate(context.Background(), "USD", "KRW")
	assert.Equal(t, 2, source.calls, "reverse direction is a distinct pair")
}

func TestRateCacheFallbackRates(t *testing.T) {
	source := &countingSource{err: errors.New("upstream down")}
	cache := NewRateCache(source)

	krwUsd := cache.Rate(context.Background(), "KRW", "USD")
	assert.True(t, krwUsd.Equal(decimal.NewFromFloat(0.00075)))

	usdKrw := cache.Rate(context.Background(), "USD", "KRW")
	assert.True(t, usdKrw.Equal(decimal.NewFromFloat(1333.0)))

	unknown := cache.Rate(context.Background(), "EUR", "GBP")
	assert.True(t, unknown.Equal(decimal.NewFromInt(1)))
}

func TestRateCacheRejectsNonPositiveRate(t *testing.T) {
	source := &countingSource{rate: decimal.Zero}
	cache := NewRateCache(source)

	rate := cache.Rate(context.Background(), "KRW", "USD")
	require.True(t, rate.Equal(decimal.NewFromFloat(0.00075)),
		"a zero rate from the source must fall back, got %s", rate)
}
