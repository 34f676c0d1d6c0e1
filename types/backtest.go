package types

import (
	"time"

	"github.com/shopspring/decimal"
)

type StrategyType string

const (
	StrategyBuyAndHold      StrategyType = "BUY_AND_HOLD"
	StrategyMovingAverage   StrategyType = "MOVING_AVERAGE"
	StrategyPredictionBased StrategyType = "PREDICTION_BASED"
)

// StrategyParams is the typed parameter payload for a strategy variant.
// Only the fields relevant to the variant's type are consulted.
type StrategyParams struct {
	ShortWindow         int     `json:"short_window" yaml:"short_window"`
	LongWindow          int     `json:"long_window" yaml:"long_window"`
	ConfidenceThreshold float64 `json:"confidence_threshold" yaml:"confidence_threshold"`
}

// Strategy is a named, reusable backtest configuration.
type Strategy struct {
	ID              int             `json:"id"`
	Name            string          `json:"name"`
	Description     string          `json:"description"`
	Type            StrategyType    `json:"strategy_type"`
	Params          StrategyParams  `json:"parameters"`
	InitialCapital  decimal.Decimal `json:"initial_capital"`
	PositionSizePct decimal.Decimal `json:"position_size_pct"`
}

type RunStatus string

const (
	RunStatusRunning   RunStatus = "RUNNING"
	RunStatusCompleted RunStatus = "COMPLETED"
	RunStatusFailed    RunStatus = "FAILED"
)

// EquityPoint is the simulated portfolio value at the close of one day.
type EquityPoint struct {
	Date  time.Time       `json:"date"`
	Value decimal.Decimal `json:"value"`
}

// BacktestRun is the result record of one strategy/ticker simulation. A run
// transitions to COMPLETED or FAILED exactly once and is immutable afterwards;
// failed runs keep their error message so past attempts stay auditable.
type BacktestRun struct {
	ID           string          `json:"id"`
	StrategyID   int             `json:"strategy_id"`
	Ticker       string          `json:"ticker"`
	StartDate    time.Time       `json:"start_date"`
	EndDate      time.Time       `json:"end_date"`
	DurationDays int             `json:"duration_days"`

	InitialCapital decimal.Decimal `json:"initial_capital"`
	FinalCapital   decimal.Decimal `json:"final_capital"`

	TotalReturn      float64 `json:"total_return"`
	AnnualizedReturn float64 `json:"annualized_return"`
	SharpeRatio      float64 `json:"sharpe_ratio"`
	MaxDrawdown      float64 `json:"max_drawdown"`
	WinRate          float64 `json:"win_rate"`
	ProfitFactor     float64 `json:"profit_factor"`

	TotalTrades   int             `json:"total_trades"`
	WinningTrades int             `json:"winning_trades"`
	LosingTrades  int             `json:"losing_trades"`
	AvgWin        decimal.Decimal `json:"avg_win"`
	AvgLoss       decimal.Decimal `json:"avg_loss"`

	BenchmarkReturn float64 `json:"benchmark_return"`
	Alpha           float64 `json:"alpha"`

	Trades      []Trade       `json:"trades"`
	EquityCurve []EquityPoint `json:"equity_curve"`

	Status       RunStatus  `json:"status"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}
