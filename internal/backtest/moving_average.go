package backtest

import (
	"github.com/shopspring/decimal"

	"financehub/types"
)

const (
	defaultShortWindow = 20
	defaultLongWindow  = 50
)

// movingAverage trades simple moving-average crossovers of the close: enter
// when the short MA crosses above the long MA, exit when it crosses back
// below. The first longWindow days are warm-up and hold cash only.
type movingAverage struct {
	simState
	sizePct     decimal.Decimal
	shortWindow int
	longWindow  int

	closes  []float64
	shortMA []float64
	longMA  []float64
}

func newMovingAverage(ticker string, strat types.Strategy) *movingAverage {
	short, long := strat.Params.ShortWindow, strat.Params.LongWindow
	if short <= 0 {
		short = defaultShortWindow
	}
	if long <= 0 {
		long = defaultLongWindow
	}
	return &movingAverage{
		simState:    simState{ticker: ticker, cash: strat.InitialCapital},
		sizePct:     strat.PositionSizePct,
		shortWindow: short,
		longWindow:  long,
	}
}

func (m *movingAverage) OnBar(i int, day marketDay) decimal.Decimal {
	m.closes = append(m.closes, day.Close.InexactFloat64())
	m.shortMA = append(m.shortMA, simpleMA(m.closes, m.shortWindow))
	m.longMA = append(m.longMA, simpleMA(m.closes, m.longWindow))

	if i < m.longWindow {
		return m.cash
	}

	crossedUp := m.shortMA[i] > m.longMA[i] && m.shortMA[i-1] <= m.longMA[i-1]
	crossedDown := m.shortMA[i] < m.longMA[i] && m.shortMA[i-1] >= m.longMA[i-1]

	switch {
	case crossedUp:
		m.enter(day, m.sizePct)
	case crossedDown:
		m.exit(day, types.ExitSignal)
	}
	return m.equity(day.Close)
}

func (m *movingAverage) Finish(last marketDay) []types.Trade {
	m.exit(last, types.ExitEndOfPeriod)
	return m.trades
}

// simpleMA is the mean of the trailing window ending at the latest value.
// Before the window fills it passes the raw value through, which keeps the
// two series glued together during warm-up and prevents phantom crossovers.
func simpleMA(values []float64, window int) float64 {
	n := len(values)
	if n < window {
		return values[n-1]
	}
	var sum float64
	for _, v := range values[n-window:] {
		sum += v
	}
	return sum / float64(window)
}
