package backtest

import (
	"github.com/shopspring/decimal"

	"financehub/internal/returns"
	"financehub/types"
)

// computeMetrics fills the run's summary statistics from its trades and
// equity curve. The equity-curve statistics go through the shared returns
// package so the analyzer and the engine report identical semantics.
func computeMetrics(run *types.BacktestRun, candles []types.Candle) {
	curve := run.EquityCurve
	if len(curve) == 0 {
		return
	}

	initial := run.InitialCapital
	final := curve[len(curve)-1].Value
	run.FinalCapital = final

	if initial.IsPositive() {
		run.TotalReturn = final.Sub(initial).Div(initial).InexactFloat64() * 100
	}
	run.AnnualizedReturn = returns.CompoundAnnualized(initial, final, len(curve))

	series := returns.FromValues(curve)
	run.SharpeRatio = returns.SharpeRatio(series, 0)
	run.MaxDrawdown = returns.MaxDrawdown(curve)

	tallyTrades(run)

	// Benchmark is plain buy-and-hold over the same price series; alpha is
	// the strategy's excess over it.
	first, last := candles[0].Close, candles[len(candles)-1].Close
	if first.IsPositive() {
		run.BenchmarkReturn = last.Sub(first).Div(first).InexactFloat64() * 100
	}
	run.Alpha = run.TotalReturn - run.BenchmarkReturn
}

func tallyTrades(run *types.BacktestRun) {
	run.TotalTrades = len(run.Trades)
	if run.TotalTrades == 0 {
		return
	}

	sumWins, sumLosses := decimal.Zero, decimal.Zero
	for _, t := range run.Trades {
		if t.ProfitLoss.IsPositive() {
			run.WinningTrades++
			sumWins = sumWins.Add(t.ProfitLoss)
		} else {
			run.LosingTrades++
			sumLosses = sumLosses.Add(t.ProfitLoss.Abs())
		}
	}

	run.WinRate = float64(run.WinningTrades) / float64(run.TotalTrades) * 100
	if run.WinningTrades > 0 {
		run.AvgWin = sumWins.Div(decimal.NewFromInt(int64(run.WinningTrades)))
	}
	if run.LosingTrades > 0 {
		run.AvgLoss = sumLosses.Div(decimal.NewFromInt(int64(run.LosingTrades)))
	}
	if sumLosses.IsPositive() {
		run.ProfitFactor = sumWins.Div(sumLosses).InexactFloat64()
	}
}
