package backtest

import (
	"github.com/shopspring/decimal"

	"financehub/types"
)

const defaultConfidenceThreshold = 0.7

// predictionBased follows the external predictor: enter on a confident UP
// call, exit on a DOWN call or when confidence decays below 80% of the entry
// threshold. Days without predictor data carry the neutral default and leave
// the position untouched.
type predictionBased struct {
	simState
	sizePct   decimal.Decimal
	threshold float64
}

func newPredictionBased(ticker string, strat types.Strategy) *predictionBased {
	threshold := strat.Params.ConfidenceThreshold
	if threshold <= 0 {
		threshold = defaultConfidenceThreshold
	}
	return &predictionBased{
		simState:  simState{ticker: ticker, cash: strat.InitialCapital},
		sizePct:   strat.PositionSizePct,
		threshold: threshold,
	}
}

func (p *predictionBased) OnBar(_ int, day marketDay) decimal.Decimal {
	switch {
	case day.Signal.Direction == types.PredictionUp && day.Signal.Confidence >= p.threshold:
		p.enter(day, p.sizePct)
	case day.Signal.Direction == types.PredictionDown || day.Signal.Confidence < p.threshold*0.8:
		p.exit(day, types.ExitSignal)
	}
	return p.equity(day.Close)
}

func (p *predictionBased) Finish(last marketDay) []types.Trade {
	p.exit(last, types.ExitEndOfPeriod)
	return p.trades
}
