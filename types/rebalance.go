package types

import (
	"time"

	"github.com/shopspring/decimal"
)

type ActionType string

const (
	ActionHold     ActionType = "HOLD"
	ActionIncrease ActionType = "INCREASE"
	ActionReduce   ActionType = "REDUCE"
)

type ProposalStatus string

const (
	ProposalPending  ProposalStatus = "PENDING"
	ProposalExecuted ProposalStatus = "EXECUTED"
)

type ProposalType string

const (
	ProposalAuto            ProposalType = "AUTO"
	ProposalSectorRebalance ProposalType = "SECTOR_REBALANCE"
	ProposalRiskReduction   ProposalType = "RISK_REDUCTION"
	ProposalPeriodic        ProposalType = "PERIODIC"
)

type Severity string

const (
	SeverityNone   Severity = "NONE"
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// RebalanceCheck is the trigger evaluation for one portfolio.
type RebalanceCheck struct {
	NeedsRebalancing bool     `json:"needs_rebalancing"`
	Triggers         []string `json:"triggers"`
	Severity         Severity `json:"severity"`
	SeverityScore    int      `json:"severity_score"`
}

// RebalanceAction is one proposed per-holding adjustment. Share counts are
// whole shares; Amount is the traded value in the holding's own currency.
type RebalanceAction struct {
	Ticker        string          `json:"ticker"`
	Action        ActionType      `json:"action"`
	CurrentWeight float64         `json:"current_weight"`
	TargetWeight  float64         `json:"target_weight"`
	CurrentShares decimal.Decimal `json:"current_shares"`
	TargetShares  int64           `json:"target_shares"`
	SharesDiff    decimal.Decimal `json:"shares_diff"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Reason        string          `json:"reason"`
}

// RebalanceProposal moves PENDING -> EXECUTED exactly once; execution is the
// only operation in the system that mutates holding share counts.
type RebalanceProposal struct {
	ID                     string            `json:"id"`
	PortfolioID            int               `json:"portfolio_id"`
	Type                   ProposalType      `json:"proposal_type"`
	TriggerReasons         []string          `json:"trigger_reasons"`
	CurrentRiskScore       float64           `json:"current_risk_score"`
	TargetRiskScore        float64           `json:"target_risk_score"`
	CurrentDiversification float64           `json:"current_diversification"`
	TargetDiversification  float64           `json:"target_diversification"`
	Actions                []RebalanceAction `json:"proposed_actions"`
	ExpectedReturnChange   float64           `json:"expected_return_change"`
	ExpectedRiskChange     float64           `json:"expected_risk_change"`
	Status                 ProposalStatus    `json:"status"`
	CreatedAt              time.Time         `json:"created_at"`
	ExecutedAt             *time.Time        `json:"executed_at,omitempty"`
}
