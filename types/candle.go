package types

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candle is one daily OHLCV bar for a ticker. Bars are supplied by the
// market-data source already ordered by date and are never mutated.
type Candle struct {
	Ticker string          `json:"ticker"`
	Date   time.Time       `json:"date"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume int64           `json:"volume"`
}
