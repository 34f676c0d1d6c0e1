package repository

import (
	"context"
	"errors"
	"fmt"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Global error declarations.
var (
	ErrPortfolioNotFound  = errors.New("portfolio not found in datasource")
	ErrStrategyNotFound   = errors.New("strategy not found in datasource")
	ErrStockInfoNotFound  = errors.New("stock info not found in datasource")
	ErrRunNotFound        = errors.New("backtest run not found in datasource")
	ErrProposalNotFound   = errors.New("rebalance proposal not found in datasource")
	ErrProposalNotPending = errors.New("rebalance proposal is not pending")
)

// Database holds the connection pool shared by all repositories.
type Database struct {
	conn *pgxpool.Pool
}

// NewDatabase creates a new Database instance and verifies connectivity.
func NewDatabase(dbURL string) (*Database, error) {
	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	// Register shopspring decimal
	config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	conn, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, err
	}
	// Ensure the connection is established.
	if err := conn.Ping(context.Background()); err != nil {
		return nil, err
	}

	return &Database{conn: conn}, nil
}

func (db *Database) Close() {
	db.conn.Close()
}
