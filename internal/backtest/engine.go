// Package backtest simulates trading strategies against historical daily
// bars and produces performance statistics for each run.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/schollz/progressbar/v3"

	"financehub/internal/marketdata"
	"financehub/types"
)

var (
	ErrInsufficientData = errors.New("fewer than 2 historical bars for backtest window")
	ErrInvalidDateRange = errors.New("start date must be before end date")
)

// runStore persists completed and failed runs.
type runStore interface {
	SaveRun(ctx context.Context, run *types.BacktestRun) error
}

type Engine struct {
	source       marketdata.Source
	predictor    marketdata.Predictor
	store        runStore
	showProgress bool
}

// NewEngine wires a backtest engine. predictor may be nil when no
// prediction-based strategies will run; store may be nil for throwaway runs.
func NewEngine(source marketdata.Source, predictor marketdata.Predictor, store runStore) *Engine {
	return &Engine{source: source, predictor: predictor, store: store}
}

// ShowProgress enables the terminal progress bar during the run loop.
func (e *Engine) ShowProgress(on bool) { e.showProgress = on }

// Run simulates one strategy over one ticker and date range. Data problems
// and simulation failures are recorded on the returned run as status FAILED
// rather than propagated, so past attempts stay queryable; only caller bugs
// (an inverted date range) and persistence failures come back as errors.
func (e *Engine) Run(ctx context.Context, strat types.Strategy, ticker string, start, end time.Time) (*types.BacktestRun, error) {
	if !start.Before(end) {
		return nil, ErrInvalidDateRange
	}

	run := &types.BacktestRun{
		ID:             uuid.NewString(),
		StrategyID:     strat.ID,
		Ticker:         ticker,
		StartDate:      start,
		EndDate:        end,
		DurationDays:   int(end.Sub(start).Hours() / 24),
		InitialCapital: strat.InitialCapital,
		FinalCapital:   strat.InitialCapital,
		Status:         types.RunStatusRunning,
		CreatedAt:      time.Now().UTC(),
	}

	if err := e.simulate(ctx, run, strat, ticker, start, end); err != nil {
		run.Status = types.RunStatusFailed
		run.ErrorMessage = err.Error()
		log.Error().Err(err).Str("ticker", ticker).Str("run_id", run.ID).
			Msg("backtest failed")
	} else {
		now := time.Now().UTC()
		run.Status = types.RunStatusCompleted
		run.CompletedAt = &now
		log.Info().Str("ticker", ticker).Str("run_id", run.ID).
			Float64("total_return", run.TotalReturn).
			Msg("backtest completed")
	}

	if e.store != nil {
		if err := e.store.SaveRun(ctx, run); err != nil {
			return nil, fmt.Errorf("save run %s: %w", run.ID, err)
		}
	}
	return run, nil
}

// simulate drives the strategy executor across the bar sequence and fills in
// the run's trades, equity curve and metrics. A panic inside the simulation
// (e.g. decimal division on corrupt data) is captured as a run failure so a
// partial run can never surface as COMPLETED.
func (e *Engine) simulate(ctx context.Context, run *types.BacktestRun, strat types.Strategy, ticker string, start, end time.Time) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("simulation panic: %v", r)
		}
	}()

	days, err := e.loadMarketDays(ctx, strat, ticker, start, end)
	if err != nil {
		return err
	}
	if len(days) < 2 {
		return fmt.Errorf("ticker %s: %w", ticker, ErrInsufficientData)
	}

	executor := newExecutor(strat, ticker)

	var bar *progressbar.ProgressBar
	if e.showProgress {
		bar = newProgressBar(len(days))
	}

	curve := make([]types.EquityPoint, 0, len(days))
	for i, day := range days {
		value := executor.OnBar(i, day)
		curve = append(curve, types.EquityPoint{Date: day.Date, Value: value})
		if bar != nil {
			bar.Add(1)
		}
	}
	run.Trades = executor.Finish(days[len(days)-1])
	run.EquityCurve = curve

	candles := make([]types.Candle, len(days))
	for i, d := range days {
		candles[i] = d.Candle
	}
	computeMetrics(run, candles)
	return nil
}

// loadMarketDays fetches the bar sequence and, for prediction-based
// strategies, joins in the predictor's per-day signal. A missing signal
// defaults to neutral rather than failing the run.
func (e *Engine) loadMarketDays(ctx context.Context, strat types.Strategy, ticker string, start, end time.Time) ([]marketDay, error) {
	candles, err := e.source.FetchBars(ctx, ticker, start, end)
	if err != nil {
		return nil, fmt.Errorf("fetch history for %s: %w", ticker, err)
	}

	days := make([]marketDay, len(candles))
	for i, c := range candles {
		days[i] = marketDay{Candle: c, Signal: types.NeutralSignal()}
		if strat.Type == types.StrategyPredictionBased && e.predictor != nil {
			signal, sigErr := e.predictor.DailySignal(ctx, ticker, c.Date)
			if sigErr == nil {
				days[i].Signal = signal
			}
		}
	}
	return days, nil
}

func newProgressBar(maxTicks int) *progressbar.ProgressBar {
	return progressbar.NewOptions(maxTicks,
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetElapsedTime(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetDescription("Backtesting in progress..."),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
}
