package types

type PredictedDirection string

const (
	PredictionUp      PredictedDirection = "UP"
	PredictionDown    PredictedDirection = "DOWN"
	PredictionNeutral PredictedDirection = "NEUTRAL"
)

// PredictionSignal is the external predictor's daily call for a ticker:
// a direction and a confidence in [0, 1].
type PredictionSignal struct {
	Direction  PredictedDirection `json:"direction"`
	Confidence float64            `json:"confidence"`
}

// NeutralSignal is the documented default when the predictor has no data for
// a day; it must never fail a backtest.
func NeutralSignal() PredictionSignal {
	return PredictionSignal{Direction: PredictionNeutral, Confidence: 0.5}
}
