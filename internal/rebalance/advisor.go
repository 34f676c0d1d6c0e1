// Package rebalance evaluates rebalancing triggers against a portfolio's
// analytics and turns breaches into executable per-holding share adjustments.
package rebalance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"financehub/types"
)

var (
	// ErrNotNeeded is returned by Generate when no trigger fired and the
	// caller asked for an AUTO proposal.
	ErrNotNeeded = errors.New("rebalancing not needed")
	// ErrInvalidProposalState guards the PENDING -> EXECUTED transition:
	// executing an unknown or already-executed proposal mutates nothing.
	ErrInvalidProposalState = errors.New("proposal missing or not pending")
)

// Thresholds are the trigger levels for the rebalance check.
type Thresholds struct {
	VolatilityMax      float64 `yaml:"volatility_max"`
	ConcentrationMax   float64 `yaml:"concentration_max"`
	SectorDiversityMin float64 `yaml:"sector_diversity_min"`
}

// TargetAllocation bounds the proposed per-holding and per-sector weights.
type TargetAllocation struct {
	SingleHoldingMax float64 `yaml:"single_holding_max"`
	SingleHoldingMin float64 `yaml:"single_holding_min"`
	SectorMax        float64 `yaml:"sector_max"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{VolatilityMax: 25.0, ConcentrationMax: 50.0, SectorDiversityMin: 40.0}
}

func DefaultTargetAllocation() TargetAllocation {
	return TargetAllocation{SingleHoldingMax: 15.0, SingleHoldingMin: 2.0, SectorMax: 40.0}
}

type portfolioAnalyzer interface {
	Analyze(ctx context.Context, portfolioID int) (*types.PortfolioAnalysis, error)
}

type proposalStore interface {
	GetProposal(ctx context.Context, id string) (*types.RebalanceProposal, error)
	SaveProposal(ctx context.Context, proposal *types.RebalanceProposal) error
	// ExecuteProposal applies the share adjustments and flips the proposal
	// to EXECUTED atomically; a failure leaves holdings untouched.
	ExecuteProposal(ctx context.Context, proposal *types.RebalanceProposal) error
}

type Advisor struct {
	analyzer   portfolioAnalyzer
	store      proposalStore
	thresholds Thresholds
	targets    TargetAllocation

	mu    sync.Mutex
	locks map[int]*sync.Mutex
}

func NewAdvisor(analyzer portfolioAnalyzer, store proposalStore, thresholds Thresholds, targets TargetAllocation) *Advisor {
	return &Advisor{
		analyzer:   analyzer,
		store:      store,
		thresholds: thresholds,
		targets:    targets,
		locks:      make(map[int]*sync.Mutex),
	}
}

// Check evaluates every trigger against a fresh analysis. Trigger severity is
// additive: volatility weighs 3, concentration and sector diversity 2 each,
// and every overweight holding 1.
func (a *Advisor) Check(ctx context.Context, portfolioID int) (*types.RebalanceCheck, error) {
	analysis, err := a.analyzer.Analyze(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	return a.evaluate(analysis), nil
}

func (a *Advisor) evaluate(analysis *types.PortfolioAnalysis) *types.RebalanceCheck {
	var triggers []string
	score := 0

	if vol := analysis.Risk.Volatility; vol > a.thresholds.VolatilityMax {
		triggers = append(triggers, fmt.Sprintf("HIGH_VOLATILITY: %.1f%%", vol))
		score += 3
	}
	if conc := analysis.Diversification.ConcentrationRisk; conc > a.thresholds.ConcentrationMax {
		triggers = append(triggers, fmt.Sprintf("HIGH_CONCENTRATION: %.1f%%", conc))
		score += 2
	}
	if div := analysis.Diversification.SectorDiversityScore; div < a.thresholds.SectorDiversityMin {
		triggers = append(triggers, fmt.Sprintf("LOW_SECTOR_DIVERSITY: %.1f", div))
		score += 2
	}
	for _, h := range analysis.Holdings {
		if h.Weight > a.targets.SingleHoldingMax {
			triggers = append(triggers, fmt.Sprintf("OVERWEIGHT_%s: %.1f%%", h.Ticker, h.Weight))
			score++
		}
	}

	severity := types.SeverityNone
	switch {
	case score >= 5:
		severity = types.SeverityHigh
	case score >= 3:
		severity = types.SeverityMedium
	case score >= 1:
		severity = types.SeverityLow
	}

	return &types.RebalanceCheck{
		NeedsRebalancing: len(triggers) > 0,
		Triggers:         triggers,
		Severity:         severity,
		SeverityScore:    score,
	}
}

// Generate builds a PENDING proposal moving the portfolio toward the target
// allocation bounds. AUTO proposals bail out with ErrNotNeeded when no
// trigger fired; explicit proposal types always evaluate actions.
func (a *Advisor) Generate(ctx context.Context, portfolioID int, proposalType types.ProposalType) (*types.RebalanceProposal, error) {
	analysis, err := a.analyzer.Analyze(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	check := a.evaluate(analysis)
	if !check.NeedsRebalancing && proposalType == types.ProposalAuto {
		return nil, ErrNotNeeded
	}

	actions := a.planActions(analysis, proposalType)
	if len(actions) == 0 {
		return nil, ErrNotNeeded
	}

	triggers := check.Triggers
	if len(triggers) == 0 {
		triggers = []string{"PERIODIC"}
	}

	currentRisk := analysis.Risk.Volatility
	currentDiversity := analysis.Diversification.SectorDiversityScore
	// Heuristic projections, not derived from the actions: rebalancing is
	// assumed to shave ~10% off volatility and add ~10% diversity.
	targetRisk := currentRisk * 0.9
	targetDiversity := currentDiversity * 1.1
	if targetDiversity > 100 {
		targetDiversity = 100
	}

	proposal := &types.RebalanceProposal{
		ID:                     uuid.NewString(),
		PortfolioID:            portfolioID,
		Type:                   proposalType,
		TriggerReasons:         triggers,
		CurrentRiskScore:       currentRisk,
		TargetRiskScore:        targetRisk,
		CurrentDiversification: currentDiversity,
		TargetDiversification:  targetDiversity,
		Actions:                actions,
		ExpectedReturnChange:   0,
		ExpectedRiskChange:     targetRisk - currentRisk,
		Status:                 types.ProposalPending,
		CreatedAt:              time.Now().UTC(),
	}

	if err := a.store.SaveProposal(ctx, proposal); err != nil {
		return nil, fmt.Errorf("save proposal: %w", err)
	}
	log.Info().Str("proposal_id", proposal.ID).Int("portfolio_id", portfolioID).
		Int("actions", len(actions)).Str("severity", string(check.Severity)).
		Msg("rebalance proposal generated")
	return proposal, nil
}

// planActions walks the holdings breakdown and emits an adjustment wherever
// a weight drifted more than one percentage point from its target.
func (a *Advisor) planActions(analysis *types.PortfolioAnalysis, proposalType types.ProposalType) []types.RebalanceAction {
	sectorWeights := analysis.Diversification.SectorDistribution
	var actions []types.RebalanceAction

	for _, h := range analysis.Holdings {
		if !h.PriceDataOK {
			continue
		}

		currentWeight := h.Weight
		targetWeight := currentWeight
		actionType := types.ActionHold
		reason := "Optimal allocation"

		switch {
		case currentWeight > a.targets.SingleHoldingMax:
			targetWeight = a.targets.SingleHoldingMax
			actionType = types.ActionReduce
			reason = fmt.Sprintf("Overweight: %.1f%% -> %.1f%%", currentWeight, targetWeight)
		case currentWeight < a.targets.SingleHoldingMin:
			targetWeight = a.targets.SingleHoldingMin
			actionType = types.ActionIncrease
			reason = fmt.Sprintf("Underweight: %.1f%% -> %.1f%%", currentWeight, targetWeight)
		}

		if sectorWeight, ok := sectorWeights[h.Sector]; ok && sectorWeight > a.targets.SectorMax {
			if reduced := currentWeight * 0.8; reduced < targetWeight {
				targetWeight = reduced
			}
			actionType = types.ActionReduce
			reason = fmt.Sprintf("Sector overweight: %s %.1f%%", h.Sector, sectorWeight)
		}

		if proposalType == types.ProposalRiskReduction && h.GainPct < -10 {
			targetWeight = currentWeight * 0.7
			actionType = types.ActionReduce
			reason = "Risk reduction: cutting losing position"
		}

		if diff := targetWeight - currentWeight; diff > -1.0 && diff < 1.0 {
			continue
		}
		if h.CurrentPrice.IsZero() {
			continue
		}

		// Target shares are computed against the holding's native value so
		// the trade amount is in the currency the order would settle in.
		targetValue := h.TotalValue.Mul(decimal.NewFromFloat(targetWeight / 100))
		targetShares := targetValue.Div(h.CurrentPrice).IntPart()
		sharesDiff := decimal.NewFromInt(targetShares).Sub(h.Shares)

		actions = append(actions, types.RebalanceAction{
			Ticker:        h.Ticker,
			Action:        actionType,
			CurrentWeight: currentWeight,
			TargetWeight:  targetWeight,
			CurrentShares: h.Shares,
			TargetShares:  targetShares,
			SharesDiff:    sharesDiff,
			CurrentPrice:  h.CurrentPrice,
			Amount:        sharesDiff.Abs().Mul(h.CurrentPrice),
			Currency:      h.Currency,
			Reason:        reason,
		})
	}
	return actions
}

// Execute applies an approved proposal to the portfolio's holdings, exactly
// once. The per-portfolio lock serializes concurrent executions so two
// proposals can never interleave partial share updates.
func (a *Advisor) Execute(ctx context.Context, proposalID string) (*types.RebalanceProposal, error) {
	proposal, err := a.store.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, fmt.Errorf("proposal %s: %w", proposalID, ErrInvalidProposalState)
	}

	lock := a.portfolioLock(proposal.PortfolioID)
	lock.Lock()
	defer lock.Unlock()

	// Re-read under the lock: a concurrent Execute may have won the race.
	proposal, err = a.store.GetProposal(ctx, proposalID)
	if err != nil || proposal.Status != types.ProposalPending {
		return nil, fmt.Errorf("proposal %s: %w", proposalID, ErrInvalidProposalState)
	}

	if err := a.store.ExecuteProposal(ctx, proposal); err != nil {
		return nil, fmt.Errorf("execute proposal %s: %w", proposalID, err)
	}

	now := time.Now().UTC()
	proposal.Status = types.ProposalExecuted
	proposal.ExecutedAt = &now
	log.Info().Str("proposal_id", proposalID).Int("portfolio_id", proposal.PortfolioID).
		Msg("rebalance proposal executed")
	return proposal, nil
}

func (a *Advisor) portfolioLock(portfolioID int) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()
	lock, ok := a.locks[portfolioID]
	if !ok {
		lock = &sync.Mutex{}
		a.locks[portfolioID] = lock
	}
	return lock
}
