// Package analyzer computes performance, risk and diversification metrics
// for a live portfolio, with every holding normalized into the portfolio's
// reporting currency before aggregation.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"financehub/internal/marketdata"
	"financehub/internal/returns"
	"financehub/types"
)

// ErrNoPriceData means not a single holding had a usable price series;
// returning zeroed metrics in that case would be misleading.
var ErrNoPriceData = errors.New("no usable price data for any holding")

type portfolioStore interface {
	GetPortfolio(ctx context.Context, id int) (*types.Portfolio, error)
	GetHoldings(ctx context.Context, portfolioID int) ([]types.Holding, error)
	GetStockInfo(ctx context.Context, ticker string) (*types.StockInfo, error)
}

type snapshotStore interface {
	SaveAnalyticsSnapshot(ctx context.Context, portfolioID int, analysis *types.PortfolioAnalysis) error
}

type Analyzer struct {
	store           portfolioStore
	snapshots       snapshotStore
	source          marketdata.Source
	riskFreeRate    float64
	benchmarkTicker string
}

// New wires an analyzer. snapshots may be nil when analysis results are not
// persisted. riskFreeRate is annual and fractional.
func New(store portfolioStore, snapshots snapshotStore, source marketdata.Source, riskFreeRate float64, benchmarkTicker string) *Analyzer {
	return &Analyzer{
		store:           store,
		snapshots:       snapshots,
		source:          source,
		riskFreeRate:    riskFreeRate,
		benchmarkTicker: benchmarkTicker,
	}
}

// holdingData is one holding joined with its reference data and price
// history, converted to the reporting currency. usable is false when the
// price series could not be fetched; such holdings are excluded from
// aggregation but still listed in the breakdown.
type holdingData struct {
	holding types.Holding
	info    *types.StockInfo
	candles []types.Candle

	currentPrice    decimal.Decimal
	totalValue      decimal.Decimal
	normalizedValue decimal.Decimal
	normalizedCost  decimal.Decimal
	usable          bool
}

// Analyze produces the full metrics snapshot for one portfolio. The exchange
// rate cache lives for exactly this call, so all holdings in the snapshot are
// converted at one consistent rate.
func (a *Analyzer) Analyze(ctx context.Context, portfolioID int) (*types.PortfolioAnalysis, error) {
	portfolio, err := a.store.GetPortfolio(ctx, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("portfolio %d: %w", portfolioID, err)
	}
	reportingCurrency := portfolio.BaseCurrency
	if reportingCurrency == "" {
		reportingCurrency = "USD"
	}

	holdings, err := a.store.GetHoldings(ctx, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("load holdings for portfolio %d: %w", portfolioID, err)
	}

	analysis := &types.PortfolioAnalysis{SnapshotDate: time.Now().UTC()}
	if len(holdings) == 0 {
		return analysis, nil
	}

	rates := marketdata.NewRateCache(a.source)
	data := a.fetchHoldingsData(ctx, holdings, rates, reportingCurrency)

	usable := usableOnly(data)
	if len(usable) == 0 {
		return nil, fmt.Errorf("portfolio %d: %w", portfolioID, ErrNoPriceData)
	}

	analysis.Performance = a.performance(usable)
	analysis.Risk = a.risk(ctx, usable)
	analysis.Diversification = a.diversification(usable)
	analysis.Holdings = a.holdingsBreakdown(data)
	return analysis, nil
}

// Snapshot analyzes a portfolio and persists the result.
func (a *Analyzer) Snapshot(ctx context.Context, portfolioID int) (*types.PortfolioAnalysis, error) {
	analysis, err := a.Analyze(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	if a.snapshots != nil {
		if err := a.snapshots.SaveAnalyticsSnapshot(ctx, portfolioID, analysis); err != nil {
			return nil, fmt.Errorf("save analytics snapshot: %w", err)
		}
	}
	return analysis, nil
}

func (a *Analyzer) fetchHoldingsData(ctx context.Context, holdings []types.Holding, rates *marketdata.RateCache, reportingCurrency string) []holdingData {
	end := time.Now().UTC()
	start := end.AddDate(-1, 0, 0)

	data := make([]holdingData, 0, len(holdings))
	for _, h := range holdings {
		hd := holdingData{holding: h}

		info, err := a.store.GetStockInfo(ctx, h.Ticker)
		if err == nil {
			hd.info = info
		}

		candles, err := a.source.FetchBars(ctx, h.Ticker, start, end)
		if err != nil || len(candles) == 0 {
			log.Warn().Str("ticker", h.Ticker).Err(err).
				Msg("excluding holding from aggregation, no usable price data")
			data = append(data, hd)
			continue
		}

		hd.candles = candles
		hd.currentPrice = candles[len(candles)-1].Close
		hd.totalValue = hd.currentPrice.Mul(h.Shares)

		rate := rates.Rate(ctx, h.Currency, reportingCurrency)
		hd.normalizedValue = hd.totalValue.Mul(rate)
		hd.normalizedCost = h.PurchasePrice.Mul(h.Shares).Mul(rate)
		hd.usable = true

		data = append(data, hd)
	}
	return data
}

func (a *Analyzer) performance(data []holdingData) types.PerformanceMetrics {
	totalValue, totalCost := decimal.Zero, decimal.Zero
	byCurrency := make(map[string]types.CurrencyBreakdown)

	for _, hd := range data {
		totalValue = totalValue.Add(hd.normalizedValue)
		totalCost = totalCost.Add(hd.normalizedCost)

		cb := byCurrency[hd.holding.Currency]
		cb.Value = cb.Value.Add(hd.totalValue)
		cb.Cost = cb.Cost.Add(hd.holding.PurchasePrice.Mul(hd.holding.Shares))
		byCurrency[hd.holding.Currency] = cb
	}
	for currency, cb := range byCurrency {
		cb.Gain = cb.Value.Sub(cb.Cost)
		if cb.Cost.IsPositive() {
			cb.ReturnPct = cb.Gain.Div(cb.Cost).InexactFloat64() * 100
		}
		byCurrency[currency] = cb
	}

	perf := types.PerformanceMetrics{
		TotalValue: totalValue,
		TotalCost:  totalCost,
		TotalGain:  totalValue.Sub(totalCost),
		ByCurrency: byCurrency,
	}
	if totalCost.IsPositive() {
		perf.TotalReturn = totalValue.Sub(totalCost).Div(totalCost).InexactFloat64() * 100
	}

	// Today's portfolio return: each holding's latest daily return weighted
	// by its share of total normalized value.
	var dailyReturn float64
	for _, hd := range data {
		series := returns.FromCandles(hd.candles)
		if len(series) == 0 || !totalValue.IsPositive() {
			continue
		}
		weight := hd.normalizedValue.Div(totalValue).InexactFloat64()
		dailyReturn += series[len(series)-1].Return * weight
	}
	perf.DailyReturn = dailyReturn * 100

	// Naive extrapolation over an assumed one-year holding window; an
	// estimate, not a time-weighted return.
	perf.AnnualizedReturn = returns.AnnualizedFromTotal(perf.TotalReturn, 365)
	return perf
}

func (a *Analyzer) risk(ctx context.Context, data []holdingData) types.RiskMetrics {
	portfolioReturns := a.portfolioReturns(data)

	risk := types.RiskMetrics{
		Volatility:  returns.AnnualizedVolatility(portfolioReturns),
		SharpeRatio: returns.SharpeRatio(portfolioReturns, a.riskFreeRate),
		MaxDrawdown: returns.MaxDrawdown(cumulativeCurve(portfolioReturns)),
		VaR95:       returns.ValueAtRisk95(portfolioReturns),
	}

	risk.Beta, risk.Alpha = 1.0, 0.0
	end := time.Now().UTC()
	benchmark, err := a.source.FetchBars(ctx, a.benchmarkTicker, end.AddDate(-1, 0, 0), end)
	if err != nil || len(benchmark) == 0 {
		log.Warn().Str("ticker", a.benchmarkTicker).Err(err).
			Msg("benchmark data unavailable, using neutral beta/alpha")
		return risk
	}
	risk.Beta, risk.Alpha = returns.BetaAlpha(portfolioReturns, returns.FromCandles(benchmark), a.riskFreeRate)
	return risk
}

// portfolioReturns builds the portfolio's own daily return series: for each
// date, the sum over holdings of that holding's daily return weighted by its
// current share of total normalized value.
func (a *Analyzer) portfolioReturns(data []holdingData) returns.Series {
	totalValue := decimal.Zero
	for _, hd := range data {
		totalValue = totalValue.Add(hd.normalizedValue)
	}
	if !totalValue.IsPositive() {
		return nil
	}

	byDate := make(map[time.Time]float64)
	for _, hd := range data {
		weight := hd.normalizedValue.Div(totalValue).InexactFloat64()
		for _, p := range returns.FromCandles(hd.candles) {
			d := p.Date.Truncate(24 * time.Hour)
			byDate[d] += p.Return * weight
		}
	}

	dates := make([]time.Time, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	series := make(returns.Series, len(dates))
	for i, d := range dates {
		series[i] = returns.Point{Date: d, Return: byDate[d]}
	}
	return series
}

// cumulativeCurve compounds a return series into a value series with base 1,
// which is what the drawdown calculation wants.
func cumulativeCurve(series returns.Series) []types.EquityPoint {
	curve := make([]types.EquityPoint, 0, len(series)+1)
	value := decimal.NewFromInt(1)
	for _, p := range series {
		value = value.Mul(decimal.NewFromFloat(1 + p.Return))
		curve = append(curve, types.EquityPoint{Date: p.Date, Value: value})
	}
	return curve
}

func (a *Analyzer) diversification(data []holdingData) types.DiversificationMetrics {
	totalValue := decimal.Zero
	for _, hd := range data {
		totalValue = totalValue.Add(hd.normalizedValue)
	}

	div := types.DiversificationMetrics{
		SectorDistribution:  make(map[string]float64),
		CountryDistribution: make(map[string]float64),
		NumHoldings:         len(data),
	}
	if !totalValue.IsPositive() {
		return div
	}

	for _, hd := range data {
		if hd.info == nil {
			continue
		}
		weight := hd.normalizedValue.Div(totalValue).InexactFloat64() * 100
		if hd.info.Sector != "" {
			div.SectorDistribution[hd.info.Sector] += weight
		}
		if hd.info.Country != "" {
			div.CountryDistribution[hd.info.Country] += weight
		}
	}
	div.SectorDiversityScore = DiversityScore(div.SectorDistribution)
	div.GeographicDiversityScore = DiversityScore(div.CountryDistribution)

	// Concentration risk: combined weight of the five largest positions.
	sorted := append([]holdingData(nil), data...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].normalizedValue.GreaterThan(sorted[j].normalizedValue)
	})
	top := sorted
	if len(top) > 5 {
		top = top[:5]
	}
	topValue := decimal.Zero
	for _, hd := range top {
		topValue = topValue.Add(hd.normalizedValue)
	}
	div.ConcentrationRisk = topValue.Div(totalValue).InexactFloat64() * 100
	return div
}

// DiversityScore inverts the Herfindahl-Hirschman index of a weight map into
// a 0-100 score: 0 when one category holds everything, approaching 100 as
// weight spreads evenly across many categories.
func DiversityScore(weights map[string]float64) float64 {
	if len(weights) == 0 {
		return 0
	}
	var hhi float64
	for _, w := range weights {
		hhi += (w / 100) * (w / 100)
	}
	return (1 - hhi) * 100
}

func (a *Analyzer) holdingsBreakdown(data []holdingData) []types.HoldingAnalysis {
	totalValue := decimal.Zero
	for _, hd := range data {
		totalValue = totalValue.Add(hd.normalizedValue)
	}

	rows := make([]types.HoldingAnalysis, 0, len(data))
	for _, hd := range data {
		row := types.HoldingAnalysis{
			Ticker:        hd.holding.Ticker,
			Name:          hd.holding.Ticker,
			Sector:        "Unknown",
			Currency:      hd.holding.Currency,
			Shares:        hd.holding.Shares,
			PurchasePrice: hd.holding.PurchasePrice,
			PriceDataOK:   hd.usable,
		}
		if hd.info != nil {
			row.Name = hd.info.Name
			if hd.info.Sector != "" {
				row.Sector = hd.info.Sector
			}
			row.IsETF = hd.info.IsETF
		}
		if hd.usable {
			row.CurrentPrice = hd.currentPrice
			row.TotalValue = hd.totalValue
			row.NormalizedValue = hd.normalizedValue
			row.Gain = hd.currentPrice.Sub(hd.holding.PurchasePrice)
			if hd.holding.PurchasePrice.IsPositive() {
				row.GainPct = row.Gain.Div(hd.holding.PurchasePrice).InexactFloat64() * 100
			}
			if totalValue.IsPositive() {
				row.Weight = hd.normalizedValue.Div(totalValue).InexactFloat64() * 100
			}
		}
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool {
		return rows[i].NormalizedValue.GreaterThan(rows[j].NormalizedValue)
	})
	return rows
}

func usableOnly(data []holdingData) []holdingData {
	out := make([]holdingData, 0, len(data))
	for _, hd := range data {
		if hd.usable {
			out = append(out, hd)
		}
	}
	return out
}
