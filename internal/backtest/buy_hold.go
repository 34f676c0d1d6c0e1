package backtest

import (
	"github.com/shopspring/decimal"

	"financehub/types"
)

// buyAndHold puts the full capital to work at the first day's close and
// holds until the final day's close. Produces exactly one trade.
type buyAndHold struct {
	ticker  string
	capital decimal.Decimal
	shares  decimal.Decimal
	trade   *types.Trade
}

func newBuyAndHold(ticker string, initialCapital decimal.Decimal) *buyAndHold {
	return &buyAndHold{ticker: ticker, capital: initialCapital}
}

func (b *buyAndHold) OnBar(i int, day marketDay) decimal.Decimal {
	if i == 0 && !day.Close.IsZero() {
		b.shares = b.capital.Div(day.Close)
		b.trade = &types.Trade{
			Ticker:     b.ticker,
			EntryDate:  day.Date,
			EntryPrice: day.Close,
			Shares:     b.shares,
			Direction:  types.DirectionLong,
		}
	}
	return b.shares.Mul(day.Close)
}

func (b *buyAndHold) Finish(last marketDay) []types.Trade {
	if b.trade == nil {
		return nil
	}
	b.trade.Close(last.Date, last.Close, types.ExitEndOfPeriod)
	return []types.Trade{*b.trade}
}
