package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"financehub/types"
)

// GetStrategy retrieves a saved strategy configuration by id.
func (db *Database) GetStrategy(ctx context.Context, id int) (*types.Strategy, error) {
	row := db.conn.QueryRow(ctx,
		`SELECT id, name, description, strategy_type, parameters, initial_capital, position_size_pct
		   FROM strategies WHERE id = $1`, id)

	var (
		s      types.Strategy
		params []byte
	)
	if err := row.Scan(&s.ID, &s.Name, &s.Description, &s.Type, &params,
		&s.InitialCapital, &s.PositionSizePct); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("strategy %d: %w", id, ErrStrategyNotFound)
		}
		return nil, err
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &s.Params); err != nil {
			return nil, fmt.Errorf("strategy %d parameters: %w", id, err)
		}
	}
	return &s, nil
}

// CreateStrategy inserts a strategy and fills in its generated id.
func (db *Database) CreateStrategy(ctx context.Context, s *types.Strategy) error {
	params, err := json.Marshal(s.Params)
	if err != nil {
		return fmt.Errorf("marshal parameters: %w", err)
	}
	row := db.conn.QueryRow(ctx,
		`INSERT INTO strategies (name, description, strategy_type, parameters, initial_capital, position_size_pct)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		s.Name, s.Description, s.Type, params, s.InitialCapital, s.PositionSizePct)
	return row.Scan(&s.ID)
}

// SaveRun persists a finished run. Trades and the equity curve are stored as
// JSON documents alongside the flat metric columns.
func (db *Database) SaveRun(ctx context.Context, run *types.BacktestRun) error {
	trades, err := json.Marshal(run.Trades)
	if err != nil {
		return fmt.Errorf("marshal trades: %w", err)
	}
	curve, err := json.Marshal(run.EquityCurve)
	if err != nil {
		return fmt.Errorf("marshal equity curve: %w", err)
	}

	_, err = db.conn.Exec(ctx,
		`INSERT INTO backtest_runs
		   (id, strategy_id, ticker, start_date, end_date, duration_days,
		    initial_capital, final_capital, total_return, annualized_return,
		    sharpe_ratio, max_drawdown, win_rate, profit_factor,
		    total_trades, winning_trades, losing_trades, avg_win, avg_loss,
		    benchmark_return, alpha, trades, equity_curve,
		    status, error_message, created_at, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
		         $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27)`,
		run.ID, run.StrategyID, run.Ticker, run.StartDate, run.EndDate, run.DurationDays,
		run.InitialCapital, run.FinalCapital, run.TotalReturn, run.AnnualizedReturn,
		run.SharpeRatio, run.MaxDrawdown, run.WinRate, run.ProfitFactor,
		run.TotalTrades, run.WinningTrades, run.LosingTrades, run.AvgWin, run.AvgLoss,
		run.BenchmarkReturn, run.Alpha, trades, curve,
		run.Status, run.ErrorMessage, run.CreatedAt, run.CompletedAt)
	if err != nil {
		return fmt.Errorf("insert backtest run: %w", err)
	}
	return nil
}

// GetRun retrieves a run with its trades and equity curve rehydrated.
func (db *Database) GetRun(ctx context.Context, id string) (*types.BacktestRun, error) {
	row := db.conn.QueryRow(ctx,
		`SELECT id, strategy_id, ticker, start_date, end_date, duration_days,
		        initial_capital, final_capital, total_return, annualized_return,
		        sharpe_ratio, max_drawdown, win_rate, profit_factor,
		        total_trades, winning_trades, losing_trades, avg_win, avg_loss,
		        benchmark_return, alpha, trades, equity_curve,
		        status, error_message, created_at, completed_at
		   FROM backtest_runs WHERE id = $1`, id)

	var (
		run    types.BacktestRun
		trades []byte
		curve  []byte
	)
	err := row.Scan(&run.ID, &run.StrategyID, &run.Ticker, &run.StartDate, &run.EndDate,
		&run.DurationDays, &run.InitialCapital, &run.FinalCapital, &run.TotalReturn,
		&run.AnnualizedReturn, &run.SharpeRatio, &run.MaxDrawdown, &run.WinRate,
		&run.ProfitFactor, &run.TotalTrades, &run.WinningTrades, &run.LosingTrades,
		&run.AvgWin, &run.AvgLoss, &run.BenchmarkReturn, &run.Alpha, &trades, &curve,
		&run.Status, &run.ErrorMessage, &run.CreatedAt, &run.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("run %s: %w", id, ErrRunNotFound)
		}
		return nil, err
	}
	if len(trades) > 0 {
		if err := json.Unmarshal(trades, &run.Trades); err != nil {
			return nil, fmt.Errorf("run %s trades: %w", id, err)
		}
	}
	if len(curve) > 0 {
		if err := json.Unmarshal(curve, &run.EquityCurve); err != nil {
			return nil, fmt.Errorf("run %s equity curve: %w", id, err)
		}
	}
	return &run, nil
}
