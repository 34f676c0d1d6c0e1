package types

import (
	"time"

	"github.com/shopspring/decimal"
)

type Direction string

type ExitReason string

const (
	DirectionLong Direction = "LONG"

	// ExitSignal marks a close triggered by the strategy itself,
	// ExitEndOfPeriod a synthetic close of whatever was still open when the
	// simulation window ended.
	ExitSignal      ExitReason = "SIGNAL"
	ExitEndOfPeriod ExitReason = "END_OF_PERIOD"
)

// Trade is one round trip produced during a backtest. Exit fields stay nil
// while the position is open; once the run completes the trade is immutable.
type Trade struct {
	Ticker        string           `json:"ticker"`
	EntryDate     time.Time        `json:"entry_date"`
	EntryPrice    decimal.Decimal  `json:"entry_price"`
	ExitDate      *time.Time       `json:"exit_date,omitempty"`
	ExitPrice     *decimal.Decimal `json:"exit_price,omitempty"`
	Shares        decimal.Decimal  `json:"shares"`
	Direction     Direction        `json:"direction"`
	ProfitLoss    decimal.Decimal  `json:"profit_loss"`
	ProfitLossPct float64          `json:"profit_loss_pct"`
	HoldingDays   int              `json:"holding_days"`
	ExitReason    ExitReason       `json:"exit_reason"`
}

// Close fills in the exit leg and derives P&L from the entry leg.
func (t *Trade) Close(date time.Time, price decimal.Decimal, reason ExitReason) {
	t.ExitDate = &date
	t.ExitPrice = &price
	t.ProfitLoss = price.Sub(t.EntryPrice).Mul(t.Shares)
	if !t.EntryPrice.IsZero() {
		t.ProfitLossPct = price.Sub(t.EntryPrice).Div(t.EntryPrice).InexactFloat64() * 100
	}
	t.HoldingDays = int(date.Sub(t.EntryDate).Hours() / 24)
	t.ExitReason = reason
}
