package analyzer

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

type fakeStore struct {
	portfolio *types.Portfolio
	holdings  []types.Holding
	infos     map[string]*types.StockInfo
}

func (f *fakeStore) GetPortfolio(ctx context.Context, id int) (*types.Portfolio, error) {
	if f.portfolio == nil {
		return nil, errors.New("portfolio not found")
	}
	return f.portfolio, nil
}

func (f *fakeStore) GetHoldings(ctx context.Context, portfolioID int) ([]types.Holding, error) {
	return f.holdings, nil
}

func (f *fakeStore) GetStockInfo(ctx context.Context, ticker string) (*types.StockInfo, error) {
	if info, ok := f.infos[ticker]; ok {
		return info, nil
	}
	return nil, errors.New("no stock info")
}

type fakeSource struct {
	candles map[string][]types.Candle
	rates   map[string]decimal.Decimal
}

func (f *fakeSource) FetchBars(ctx context.Context, ticker string, start, end time.Time) ([]types.Candle, error) {
	if candles, ok := f.candles[ticker]; ok {
		return candles, nil
	}
	return []types.Candle{}, nil
}

func (f *fakeSource) FetchExchangeRate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	if rate, ok := f.rates[from+"_"+to]; ok {
		return rate, nil
	}
	return decimal.Zero, errors.New("no rate")
}

type fakeSnapshots struct {
	saved int
}

func (f *fakeSnapshots) SaveAnalyticsSnapshot(ctx context.Context, portfolioID int, analysis *types.PortfolioAnalysis) error {
	f.saved++
	return nil
}

func candleSeries(ticker string, closes ...float64) []types.Candle {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	candles := make([]types.Candle, len(closes))
	for i, c := range closes {
		price := decimal.NewFromFloat(c)
		candles[i] = types.Candle{
			Ticker: ticker,
			Date:   base.AddDate(0, 0, i),
			Open:   price,
			High:   price,
			Low:    price,
			Close:  price,
			Volume: 1000,
		}
	}
	return candles
}

// alternating closes give the return series nonzero variance so the
// regression path is exercised instead of the neutral fallback.
func alternating(n int) []float64 {
	closes := make([]float64, n)
	for i := range closes {
		if i%2 == 0 {
			closes[i] = 100
		} else {
			closes[i] = 101
		}
	}
	return closes
}

func holding(ticker string, shares, purchasePrice string) types.Holding {
	return types.Holding{
		Ticker:        ticker,
		Shares:        decimal.RequireFromString(shares),
		PurchasePrice: decimal.RequireFromString(purchasePrice),
		Currency:      types.CurrencyFromTicker(ticker),
		PurchaseDate:  time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestAnalyzeSingleHolding(t *testing.T) {
	store := &fakeStore{
		portfolio: &types.Portfolio{ID: 1, BaseCurrency: "USD"},
		holdings:  []types.Holding{holding("AAPL", "10", "80")},
		infos: map[string]*types.StockInfo{
			"AAPL": {Ticker: "AAPL", Name: "Apple Inc.", Sector: "Technology", Country: "US"},
		},
	}
	source := &fakeSource{candles: map[string][]types.Candle{
		"AAPL": candleSeries("AAPL", alternating(41)...),
		"SPY":  candleSeries("SPY", alternating(41)...),
	}}

	a := New(store, nil, source, 0.045, "SPY")
	analysis, err := a.Analyze(context.Background(), 1)
	require.NoError(t, err)

	// Last close is 100 (41 points, even index final), 10 shares.
	assert.True(t, analysis.Performance.TotalValue.Equal(decimal.RequireFromString("1000")),
		"total value = %s", analysis.Performance.TotalValue)
	assert.True(t, analysis.Performance.TotalCost.Equal(decimal.RequireFromString("800")))
	assert.InDelta(t, 25.0, analysis.Performance.TotalReturn, 1e-9)

	require.Len(t, analysis.Holdings, 1)
	row := analysis.Holdings[0]
	assert.Equal(t, "Apple Inc.", row.Name)
	assert.Equal(t, "Technology", row.Sector)
	assert.True(t, row.PriceDataOK)
	assert.InDelta(t, 100.0, row.Weight, 1e-9)

	// One holding concentrates everything and diversifies nothing.
	assert.InDelta(t, 100.0, analysis.Diversification.ConcentrationRisk, 1e-9)
	assert.InDelta(t, 0.0, analysis.Diversification.SectorDiversityScore, 1e-9)
	assert.Equal(t, 1, analysis.Diversification.NumHoldings)

	// Portfolio mirrors the benchmark exactly, so the regression is neutral.
	assert.InDelta(t, 1.0, analysis.Risk.Beta, 1e-9)
	assert.InDelta(t, 0.0, analysis.Risk.Alpha, 1e-9)
	assert.GreaterOrEqual(t, analysis.Risk.Volatility, 0.0)
	assert.LessOrEqual(t, analysis.Risk.MaxDrawdown, 0.0)
}

func TestAnalyzeEmptyPortfolio(t *testing.T) {
	store := &fakeStore{portfolio: &types.Portfolio{ID: 1, BaseCurrency: "USD"}}
	a := New(store, nil, &fakeSource{}, 0.045, "SPY")

	analysis, err := a.Analyze(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, analysis.Holdings)
	assert.True(t, analysis.Performance.TotalValue.IsZero())
	assert.False(t, analysis.SnapshotDate.IsZero())
}

func TestAnalyzeNoPriceDataAtAll(t *testing.T) {
	store := &fakeStore{
		portfolio: &types.Portfolio{ID: 1, BaseCurrency: "USD"},
		holdings:  []types.Holding{holding("GHOST", "10", "80")},
	}
	a := New(store, nil, &fakeSource{}, 0.045, "SPY")

	_, err := a.Analyze(context.Background(), 1)
	require.ErrorIs(t, err, ErrNoPriceData)
}

func TestAnalyzePartialPriceData(t *testing.T) {
	store := &fakeStore{
		portfolio: &types.Portfolio{ID: 1, BaseCurrency: "USD"},
		holdings:  []types.Holding{holding("AAPL", "10", "80"), holding("GHOST", "5", "50")},
		infos: map[string]*types.StockInfo{
			"AAPL": {Ticker: "AAPL", Name: "Apple Inc.", Sector: "Technology", Country: "US"},
		},
	}
	source := &fakeSource{candles: map[string][]types.Candle{
		"AAPL": candleSeries("AAPL", alternating(41)...),
	}}

	a := New(store, nil, source, 0.045, "SPY")
	analysis, err := a.Analyze(context.Background(), 1)
	require.NoError(t, err)

	require.Len(t, analysis.Holdings, 2)
	var ghost, aapl types.HoldingAnalysis
	for _, row := range analysis.Holdings {
		switch row.Ticker {
		case "GHOST":
			ghost = row
		case "AAPL":
			aapl = row
		}
	}
	assert.False(t, ghost.PriceDataOK)
	assert.InDelta(t, 0.0, ghost.Weight, 1e-9)
	assert.True(t, aapl.PriceDataOK)
	assert.InDelta(t, 100.0, aapl.Weight, 1e-9)
}

func TestAnalyzeCurrencyConversion(t *testing.T) {
	store := &fakeStore{
		portfolio: &types.Portfolio{ID: 1, BaseCurrency: "USD"},
		holdings: []types.Holding{
			holding("AAPL", "1", "90"),
			holding("005930.KS", "10", "60000"),
		},
	}
	source := &fakeSource{
		candles: map[string][]types.Candle{
			"AAPL":      candleSeries("AAPL", 100),
			"005930.KS": candleSeries("005930.KS", 70000),
		},
		rates: map[string]decimal.Decimal{"KRW_USD": decimal.RequireFromString("0.001")},
	}

	a := New(store, nil, source, 0.045, "SPY")
	analysis, err := a.Analyze(context.Background(), 1)
	require.NoError(t, err)

	// 1 x 100 USD plus 10 x 70000 KRW at 0.001 = 700 USD.
	assert.True(t, analysis.Performance.TotalValue.Equal(decimal.RequireFromString("800")),
		"total value = %s", analysis.Performance.TotalValue)

	krw, ok := analysis.Performance.ByCurrency["KRW"]
	require.True(t, ok)
	assert.True(t, krw.Value.Equal(decimal.RequireFromString("700000")))

	// The Korean listing dominates the breakdown once normalized.
	require.Len(t, analysis.Holdings, 2)
	assert.Equal(t, "005930.KS", analysis.Holdings[0].Ticker)
	assert.InDelta(t, 87.5, analysis.Holdings[0].Weight, 1e-9)
}

func TestSnapshotPersists(t *testing.T) {
	store := &fakeStore{
		portfolio: &types.Portfolio{ID: 1, BaseCurrency: "USD"},
		holdings:  []types.Holding{holding("AAPL", "10", "80")},
	}
	source := &fakeSource{candles: map[string][]types.Candle{
		"AAPL": candleSeries("AAPL", alternating(41)...),
	}}
	snapshots := &fakeSnapshots{}

	a := New(store, snapshots, source, 0.045, "SPY")
	_, err := a.Snapshot(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, snapshots.saved)
}

func TestDiversityScore(t *testing.T) {
	tests := []struct {
		name    string
		weights map[string]float64
		want    float64
	}{
		{"no categories", nil, 0},
		{"single category", map[string]float64{"Technology": 100}, 0},
		{"two equal categories", map[string]float64{"Technology": 50, "Energy": 50}, 50},
		{"five equal categories", map[string]float64{"a": 20, "b": 20, "c": 20, "d": 20, "e": 20}, 80},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, DiversityScore(tt.weights), 1e-9)
		})
	}
}
