package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"financehub/types"
)

// GetPortfolio retrieves one portfolio by id.
func (db *Database) GetPortfolio(ctx context.Context, id int) (*types.Portfolio, error) {
	row := db.conn.QueryRow(ctx,
		`SELECT id, name, base_currency, created_at FROM portfolios WHERE id = $1`, id)

	var p types.Portfolio
	if err := row.Scan(&p.ID, &p.Name, &p.BaseCurrency, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("portfolio %d: %w", id, ErrPortfolioNotFound)
		}
		return nil, err
	}
	return &p, nil
}

// GetHoldings lists a portfolio's holdings ordered by ticker.
func (db *Database) GetHoldings(ctx context.Context, portfolioID int) ([]types.Holding, error) {
	rows, err := db.conn.Query(ctx,
		`SELECT id, portfolio_id, ticker, shares, purchase_price, currency, purchase_date
		   FROM holdings WHERE portfolio_id = $1 ORDER BY ticker`, portfolioID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var holdings []types.Holding
	for rows.Next() {
		var h types.Holding
		if err := rows.Scan(&h.ID, &h.PortfolioID, &h.Ticker, &h.Shares,
			&h.PurchasePrice, &h.Currency, &h.PurchaseDate); err != nil {
			return nil, err
		}
		holdings = append(holdings, h)
	}
	return holdings, rows.Err()
}

// CreateHolding inserts a new holding, resolving its currency from the
// ticker suffix once at ingestion.
func (db *Database) CreateHolding(ctx context.Context, h *types.Holding) error {
	if h.Currency == "" {
		h.Currency = types.CurrencyFromTicker(h.Ticker)
	}
	row := db.conn.QueryRow(ctx,
		`INSERT INTO holdings (portfolio_id, ticker, shares, purchase_price, currency, purchase_date)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		h.PortfolioID, h.Ticker, h.Shares, h.PurchasePrice, h.Currency, h.PurchaseDate)
	return row.Scan(&h.ID)
}

// GetStockInfo retrieves the reference data row for a ticker.
func (db *Database) GetStockInfo(ctx context.Context, ticker string) (*types.StockInfo, error) {
	row := db.conn.QueryRow(ctx,
		`SELECT ticker, name, sector, country, is_etf FROM stock_info WHERE ticker = $1`, ticker)

	var info types.StockInfo
	if err := row.Scan(&info.Ticker, &info.Name, &info.Sector, &info.Country, &info.IsETF); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("ticker %s: %w", ticker, ErrStockInfoNotFound)
		}
		return nil, err
	}
	return &info, nil
}

// SaveAnalyticsSnapshot stores the headline numbers of one analysis so the
// portfolio's metric history can be charted later.
func (db *Database) SaveAnalyticsSnapshot(ctx context.Context, portfolioID int, a *types.PortfolioAnalysis) error {
	_, err := db.conn.Exec(ctx,
		`INSERT INTO portfolio_analytics
		   (portfolio_id, total_value, total_return, daily_return, volatility, sharpe_ratio,
		    max_drawdown, beta, alpha, sector_diversity_score, geographic_diversity_score,
		    concentration_risk, snapshot_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		portfolioID, a.Performance.TotalValue, a.Performance.TotalReturn,
		a.Performance.DailyReturn, a.Risk.Volatility, a.Risk.SharpeRatio,
		a.Risk.MaxDrawdown, a.Risk.Beta, a.Risk.Alpha,
		a.Diversification.SectorDiversityScore, a.Diversification.GeographicDiversityScore,
		a.Diversification.ConcentrationRisk, a.SnapshotDate)
	if err != nil {
		return fmt.Errorf("insert analytics snapshot: %w", err)
	}
	return nil
}
