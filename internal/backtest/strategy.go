package backtest

import (
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"financehub/types"
)

// marketDay is one simulated day: a historical bar plus the predictor's
// signal for that date (neutral for strategies that ignore predictions).
type marketDay struct {
	types.Candle
	Signal types.PredictionSignal
}

// strategyExecutor is one simulation step. OnBar consumes the i-th day,
// updates the running cash/position state and returns the portfolio value at
// that day's close. Finish closes whatever is still open at the final bar and
// returns the completed trade list.
type strategyExecutor interface {
	OnBar(i int, day marketDay) decimal.Decimal
	Finish(last marketDay) []types.Trade
}

// newExecutor dispatches on the strategy-type tag. An unknown tag degrades to
// buy-and-hold, mirroring how runs configured by older clients behaved.
func newExecutor(strat types.Strategy, ticker string) strategyExecutor {
	switch strat.Type {
	case types.StrategyBuyAndHold:
		return newBuyAndHold(ticker, strat.InitialCapital)
	case types.StrategyMovingAverage:
		return newMovingAverage(ticker, strat)
	case types.StrategyPredictionBased:
		return newPredictionBased(ticker, strat)
	default:
		log.Warn().Str("strategy_type", string(strat.Type)).
			Msg("unknown strategy type, falling back to buy-and-hold")
		return newBuyAndHold(ticker, strat.InitialCapital)
	}
}

// simState is the cash/position bookkeeping shared by the signal-driven
// variants. At most one position is open at a time, long only.
type simState struct {
	ticker   string
	cash     decimal.Decimal
	position *types.Trade
	trades   []types.Trade
}

// enter opens a long position sized at sizePct percent of current cash.
func (s *simState) enter(day marketDay, sizePct decimal.Decimal) {
	if s.position != nil || !s.cash.IsPositive() || day.Close.IsZero() {
		return
	}
	positionSize := s.cash.Mul(sizePct).Div(decimal.NewFromInt(100))
	s.position = &types.Trade{
		Ticker:     s.ticker,
		EntryDate:  day.Date,
		EntryPrice: day.Close,
		Shares:     positionSize.Div(day.Close),
		Direction:  types.DirectionLong,
	}
	s.cash = s.cash.Sub(positionSize)
}

// exit closes the open position at the day's close, if any.
func (s *simState) exit(day marketDay, reason types.ExitReason) {
	if s.position == nil {
		return
	}
	s.position.Close(day.Date, day.Close, reason)
	s.trades = append(s.trades, *s.position)
	s.cash = s.cash.Add(s.position.Shares.Mul(day.Close))
	s.position = nil
}

// equity is cash plus the mark-to-market value of the open position.
func (s *simState) equity(price decimal.Decimal) decimal.Decimal {
	value := s.cash
	if s.position != nil {
		value = value.Add(s.position.Shares.Mul(price))
	}
	return value
}
