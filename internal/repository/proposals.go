package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"financehub/types"
)

// SaveProposal persists a freshly generated proposal in PENDING state.
func (db *Database) SaveProposal(ctx context.Context, p *types.RebalanceProposal) error {
	actions, err := json.Marshal(p.Actions)
	if err != nil {
		return fmt.Errorf("marshal actions: %w", err)
	}
	triggers, err := json.Marshal(p.TriggerReasons)
	if err != nil {
		return fmt.Errorf("marshal triggers: %w", err)
	}

	_, err = db.conn.Exec(ctx,
		`INSERT INTO rebalance_proposals
		   (id, portfolio_id, proposal_type, trigger_reasons,
		    current_risk_score, target_risk_score,
		    current_diversification, target_diversification,
		    proposed_actions, expected_return_change, expected_risk_change,
		    status, created_at, executed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		p.ID, p.PortfolioID, p.Type, triggers,
		p.CurrentRiskScore, p.TargetRiskScore,
		p.CurrentDiversification, p.TargetDiversification,
		actions, p.ExpectedReturnChange, p.ExpectedRiskChange,
		p.Status, p.CreatedAt, p.ExecutedAt)
	if err != nil {
		return fmt.Errorf("insert rebalance proposal: %w", err)
	}
	return nil
}

// GetProposal retrieves a proposal with its actions rehydrated.
func (db *Database) GetProposal(ctx context.Context, id string) (*types.RebalanceProposal, error) {
	row := db.conn.QueryRow(ctx,
		`SELECT id, portfolio_id, proposal_type, trigger_reasons,
		        current_risk_score, target_risk_score,
		        current_diversification, target_diversification,
		        proposed_actions, expected_return_change, expected_risk_change,
		        status, created_at, executed_at
		   FROM rebalance_proposals WHERE id = $1`, id)

	var (
		p        types.RebalanceProposal
		triggers []byte
		actions  []byte
	)
	err := row.Scan(&p.ID, &p.PortfolioID, &p.Type, &triggers,
		&p.CurrentRiskScore, &p.TargetRiskScore,
		&p.CurrentDiversification, &p.TargetDiversification,
		&actions, &p.ExpectedReturnChange, &p.ExpectedRiskChange,
		&p.Status, &p.CreatedAt, &p.ExecutedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("proposal %s: %w", id, ErrProposalNotFound)
		}
		return nil, err
	}
	if len(triggers) > 0 {
		if err := json.Unmarshal(triggers, &p.TriggerReasons); err != nil {
			return nil, fmt.Errorf("proposal %s triggers: %w", id, err)
		}
	}
	if len(actions) > 0 {
		if err := json.Unmarshal(actions, &p.Actions); err != nil {
			return nil, fmt.Errorf("proposal %s actions: %w", id, err)
		}
	}
	return &p, nil
}

// ExecuteProposal applies a proposal's share adjustments and flips it to
// EXECUTED in one transaction. The UPDATE on the status row doubles as the
// concurrency guard: if another execution already flipped it, zero rows match
// and the whole transaction rolls back with ErrProposalNotPending.
func (db *Database) ExecuteProposal(ctx context.Context, p *types.RebalanceProposal) error {
	tx, err := db.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE rebalance_proposals SET status = $1, executed_at = now()
		  WHERE id = $2 AND status = $3`,
		types.ProposalExecuted, p.ID, types.ProposalPending)
	if err != nil {
		return fmt.Errorf("update proposal status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("proposal %s: %w", p.ID, ErrProposalNotPending)
	}

	for _, action := range p.Actions {
		if action.TargetShares == 0 {
			if _, err := tx.Exec(ctx,
				`DELETE FROM holdings WHERE portfolio_id = $1 AND ticker = $2`,
				p.PortfolioID, action.Ticker); err != nil {
				return fmt.Errorf("delete holding %s: %w", action.Ticker, err)
			}
			continue
		}
		if _, err := tx.Exec(ctx,
			`UPDATE holdings SET shares = $1 WHERE portfolio_id = $2 AND ticker = $3`,
			action.TargetShares, p.PortfolioID, action.Ticker); err != nil {
			return fmt.Errorf("update holding %s: %w", action.Ticker, err)
		}
	}

	return tx.Commit(ctx)
}
