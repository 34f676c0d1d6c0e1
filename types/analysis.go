package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// CurrencyBreakdown reports value/cost/gain in one holding currency, before
// conversion to the reporting currency.
type CurrencyBreakdown struct {
	Value     decimal.Decimal `json:"value"`
	Cost      decimal.Decimal `json:"cost"`
	Gain      decimal.Decimal `json:"gain"`
	ReturnPct float64         `json:"return"`
}

type PerformanceMetrics struct {
	TotalValue       decimal.Decimal              `json:"total_value"`
	TotalCost        decimal.Decimal              `json:"total_cost"`
	TotalGain        decimal.Decimal              `json:"total_gain"`
	TotalReturn      float64                      `json:"total_return"`
	DailyReturn      float64                      `json:"daily_return"`
	AnnualizedReturn float64                      `json:"annualized_return"`
	ByCurrency       map[string]CurrencyBreakdown `json:"by_currency"`
}

type RiskMetrics struct {
	Volatility  float64 `json:"volatility"`
	SharpeRatio float64 `json:"sharpe_ratio"`
	MaxDrawdown float64 `json:"max_drawdown"`
	Beta        float64 `json:"beta"`
	Alpha       float64 `json:"alpha"`
	VaR95       float64 `json:"var_95"`
}

// DiversificationMetrics is recomputed fresh on every analysis; diversity
// scores are inverted Herfindahl-Hirschman indexes on a 0-100 scale.
type DiversificationMetrics struct {
	SectorDiversityScore     float64            `json:"sector_diversity_score"`
	GeographicDiversityScore float64            `json:"geographic_diversity_score"`
	ConcentrationRisk        float64            `json:"concentration_risk"`
	SectorDistribution       map[string]float64 `json:"sector_distribution"`
	CountryDistribution      map[string]float64 `json:"country_distribution"`
	NumHoldings              int                `json:"num_holdings"`
}

// HoldingAnalysis is the per-holding breakdown row. Normalized fields are in
// the portfolio's reporting currency; the rest stay in the holding currency.
type HoldingAnalysis struct {
	Ticker          string          `json:"ticker"`
	Name            string          `json:"name"`
	Sector          string          `json:"sector"`
	Currency        string          `json:"currency"`
	Shares          decimal.Decimal `json:"shares"`
	PurchasePrice   decimal.Decimal `json:"purchase_price"`
	CurrentPrice    decimal.Decimal `json:"current_price"`
	TotalValue      decimal.Decimal `json:"total_value"`
	NormalizedValue decimal.Decimal `json:"total_value_usd"`
	Gain            decimal.Decimal `json:"gain"`
	GainPct         float64         `json:"gain_percent"`
	Weight          float64         `json:"weight"`
	IsETF           bool            `json:"is_etf"`
	PriceDataOK     bool            `json:"price_data_ok"`
}

// PortfolioAnalysis is the full analyzer output for one portfolio.
type PortfolioAnalysis struct {
	Performance     PerformanceMetrics     `json:"performance"`
	Risk            RiskMetrics            `json:"risk"`
	Diversification DiversificationMetrics `json:"diversification"`
	Holdings        []HoldingAnalysis      `json:"holdings"`
	SnapshotDate    time.Time              `json:"snapshot_date"`
}
