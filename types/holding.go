package types

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Holding is one position inside a portfolio. Shares and purchase price are
// denominated in the holding's own currency; Currency is resolved once at
// ingestion from the ticker suffix and never re-derived afterwards.
type Holding struct {
	ID            int             `json:"id"`
	PortfolioID   int             `json:"portfolio_id"`
	Ticker        string          `json:"ticker"`
	Shares        decimal.Decimal `json:"shares"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	Currency      string          `json:"currency"`
	PurchaseDate  time.Time       `json:"purchase_date"`
}

// StockInfo carries the reference data used for diversification grouping.
type StockInfo struct {
	Ticker  string `json:"ticker"`
	Name    string `json:"name"`
	Sector  string `json:"sector"`
	Country string `json:"country"`
	IsETF   bool   `json:"is_etf"`
}

type Portfolio struct {
	ID           int       `json:"id"`
	Name         string    `json:"name"`
	BaseCurrency string    `json:"base_currency"`
	CreatedAt    time.Time `json:"created_at"`
}

// CurrencyFromTicker maps a Yahoo-style ticker suffix to its trading currency.
// Korean exchange listings (.KS KOSPI, .KQ KOSDAQ) trade in KRW, everything
// else is treated as USD.
func CurrencyFromTicker(ticker string) string {
	if strings.HasSuffix(ticker, ".KS") || strings.HasSuffix(ticker, ".KQ") {
		return "KRW"
	}
	return "USD"
}
