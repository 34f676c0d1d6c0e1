package rebalance

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"financehub/types"
)

type fakeAnalyzer struct {
	analysis *types.PortfolioAnalysis
	err      error
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, portfolioID int) (*types.PortfolioAnalysis, error) {
	return f.analysis, f.err
}

type memoryStore struct {
	proposals map[string]*types.RebalanceProposal
	executed  int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{proposals: make(map[string]*types.RebalanceProposal)}
}

func (m *memoryStore) GetProposal(ctx context.Context, id string) (*types.RebalanceProposal, error) {
	p, ok := m.proposals[id]
	if !ok {
		return nil, errors.New("not found")
	}
	copied := *p
	return &copied, nil
}

func (m *memoryStore) SaveProposal(ctx context.Context, proposal *types.RebalanceProposal) error {
	copied := *proposal
	m.proposals[proposal.ID] = &copied
	return nil
}

func (m *memoryStore) ExecuteProposal(ctx context.Context, proposal *types.RebalanceProposal) error {
	stored, ok := m.proposals[proposal.ID]
	if !ok || stored.Status != types.ProposalPending {
		return errors.New("not pending")
	}
	stored.Status = types.ProposalExecuted
	m.executed++
	return nil
}

func holdingRow(ticker string, weight float64, shares, price string) types.HoldingAnalysis {
	sh := decimal.RequireFromString(shares)
	pr := decimal.RequireFromString(price)
	return types.HoldingAnalysis{
		Ticker:          ticker,
		Sector:          "Technology",
		Currency:        "USD",
		Shares:          sh,
		CurrentPrice:    pr,
		TotalValue:      sh.Mul(pr),
		NormalizedValue: sh.Mul(pr),
		Weight:          weight,
		PriceDataOK:     true,
	}
}

func calmAnalysis() *types.PortfolioAnalysis {
	return &types.PortfolioAnalysis{
		Risk: types.RiskMetrics{Volatility: 15},
		Diversification: types.DiversificationMetrics{
			ConcentrationRisk:    30,
			SectorDiversityScore: 70,
			SectorDistribution:   map[string]float64{"Technology": 30},
		},
		Holdings: []types.HoldingAnalysis{
			holdingRow("AAPL", 10, "10", "100"),
		},
	}
}

func newTestAdvisor(analysis *types.PortfolioAnalysis) (*Advisor, *memoryStore) {
	store := newMemoryStore()
	advisor := NewAdvisor(&fakeAnalyzer{analysis: analysis}, store, DefaultThresholds(), DefaultTargetAllocation())
	return advisor, store
}

func TestCheckCalmPortfolio(t *testing.T) {
	advisor, _ := newTestAdvisor(calmAnalysis())

	check, err := advisor.Check(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, check.NeedsRebalancing)
	assert.Equal(t, types.SeverityNone, check.Severity)
	assert.Zero(t, check.SeverityScore)
	assert.Empty(t, check.Triggers)
}

func TestCheckSeverityScoring(t *testing.T) {
	analysis := &types.PortfolioAnalysis{
		Risk: types.RiskMetrics{Volatility: 30},
		Diversification: types.DiversificationMetrics{
			ConcentrationRisk:    60,
			SectorDiversityScore: 30,
			SectorDistribution:   map[string]float64{"Technology": 90},
		},
		Holdings: []types.HoldingAnalysis{
			holdingRow("AAPL", 50, "50", "100"),
		},
	}
	advisor, _ := newTestAdvisor(analysis)

	check, err := advisor.Check(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, check.NeedsRebalancing)
	// volatility 3 + concentration 2 + diversity 2 + one overweight 1.
	assert.Equal(t, 8, check.SeverityScore)
	assert.Equal(t, types.SeverityHigh, check.Severity)
	assert.Len(t, check.Triggers, 4)
}

func TestCheckSingleHoldingPortfolio(t *testing.T) {
	// Everything in one position: concentration, sector diversity and the
	// overweight rule all fire at once.
	analysis := &types.PortfolioAnalysis{
		Risk: types.RiskMetrics{Volatility: 15},
		Diversification: types.DiversificationMetrics{
			ConcentrationRisk:    100,
			SectorDiversityScore: 0,
			SectorDistribution:   map[string]float64{"Technology": 100},
		},
		Holdings: []types.HoldingAnalysis{
			holdingRow("AAPL", 100, "100", "100"),
		},
	}
	advisor, _ := newTestAdvisor(analysis)

	check, err := advisor.Check(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, check.NeedsRebalancing)
	assert.Equal(t, 5, check.SeverityScore)
	assert.Equal(t, types.SeverityHigh, check.Severity)
}

func TestCheckMediumSeverity(t *testing.T) {
	analysis := calmAnalysis()
	analysis.Risk.Volatility = 30
	advisor, _ := newTestAdvisor(analysis)

	check, err := advisor.Check(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 3, check.SeverityScore)
	assert.Equal(t, types.SeverityMedium, check.Severity)
}

func TestGenerateAutoNotNeeded(t *testing.T) {
	advisor, _ := newTestAdvisor(calmAnalysis())

	_, err := advisor.Generate(context.Background(), 1, types.ProposalAuto)
	require.ErrorIs(t, err, ErrNotNeeded)
}

func TestGenerateOverweightHolding(t *testing.T) {
	analysis := &types.PortfolioAnalysis{
		Risk: types.RiskMetrics{Volatility: 30},
		Diversification: types.DiversificationMetrics{
			SectorDiversityScore: 70,
			SectorDistribution:   map[string]float64{"Technology": 30},
		},
		Holdings: []types.HoldingAnalysis{
			holdingRow("AAPL", 50, "50", "100"),
			holdingRow("MSFT", 10, "10", "100"),
		},
	}
	advisor, store := newTestAdvisor(analysis)

	proposal, err := advisor.Generate(context.Background(), 1, types.ProposalAuto)
	require.NoError(t, err)

	assert.Equal(t, types.ProposalPending, proposal.Status)
	assert.NotEmpty(t, proposal.TriggerReasons)
	require.Len(t, proposal.Actions, 1)

	action := proposal.Actions[0]
	assert.Equal(t, "AAPL", action.Ticker)
	assert.Equal(t, types.ActionReduce, action.Action)
	assert.InDelta(t, 15.0, action.TargetWeight, 1e-9)
	// 15% of the 5000 position at price 100 floors to 7 whole shares.
	assert.Equal(t, int64(7), action.TargetShares)
	assert.True(t, action.SharesDiff.Equal(decimal.RequireFromString("-43")))
	assert.True(t, action.Amount.Equal(decimal.RequireFromString("4300")))

	// Whole-share rounding keeps the applied weight within 1.5 points of the
	// proposed target.
	appliedWeight := float64(action.TargetShares) * 100 / 5000 * 100
	assert.InDelta(t, action.TargetWeight, appliedWeight, 1.5)

	// Projected scores follow the fixed improvement heuristic.
	assert.InDelta(t, 27.0, proposal.TargetRiskScore, 1e-9)
	assert.InDelta(t, 77.0, proposal.TargetDiversification, 1e-9)

	saved, err := store.GetProposal(context.Background(), proposal.ID)
	require.NoError(t, err)
	assert.Equal(t, types.ProposalPending, saved.Status)
}

func TestGenerateSectorOverweight(t *testing.T) {
	analysis := &types.PortfolioAnalysis{
		Diversification: types.DiversificationMetrics{
			SectorDiversityScore: 70,
			SectorDistribution:   map[string]float64{"Technology": 45},
		},
		Holdings: []types.HoldingAnalysis{
			holdingRow("AAPL", 14, "14", "100"),
		},
	}
	advisor, _ := newTestAdvisor(analysis)

	proposal, err := advisor.Generate(context.Background(), 1, types.ProposalSectorRebalance)
	require.NoError(t, err)

	require.Len(t, proposal.Actions, 1)
	action := proposal.Actions[0]
	assert.Equal(t, types.ActionReduce, action.Action)
	assert.InDelta(t, 11.2, action.TargetWeight, 1e-9)
	assert.Contains(t, action.Reason, "Sector overweight")
	// No trigger fired, so the explicit request is recorded as periodic.
	assert.Equal(t, []string{"PERIODIC"}, proposal.TriggerReasons)
}

func TestGenerateRiskReductionCutsLosers(t *testing.T) {
	analysis := calmAnalysis()
	analysis.Holdings = []types.HoldingAnalysis{
		func() types.HoldingAnalysis {
			h := holdingRow("NVDA", 10, "100", "10")
			h.GainPct = -20
			return h
		}(),
	}
	advisor, _ := newTestAdvisor(analysis)

	proposal, err := advisor.Generate(context.Background(), 1, types.ProposalRiskReduction)
	require.NoError(t, err)

	require.Len(t, proposal.Actions, 1)
	action := proposal.Actions[0]
	assert.Equal(t, types.ActionReduce, action.Action)
	assert.InDelta(t, 7.0, action.TargetWeight, 1e-9)
	assert.Equal(t, int64(7), action.TargetShares)
	assert.Contains(t, action.Reason, "Risk reduction")
}

func TestGenerateSkipsHoldingsWithoutPriceData(t *testing.T) {
	analysis := calmAnalysis()
	broken := holdingRow("GHOST", 80, "80", "100")
	broken.PriceDataOK = false
	analysis.Holdings = []types.HoldingAnalysis{broken}
	advisor, _ := newTestAdvisor(analysis)

	_, err := advisor.Generate(context.Background(), 1, types.ProposalPeriodic)
	require.ErrorIs(t, err, ErrNotNeeded)
}

func TestExecuteExactlyOnce(t *testing.T) {
	analysis := &types.PortfolioAnalysis{
		Diversification: types.DiversificationMetrics{
			SectorDiversityScore: 70,
			SectorDistribution:   map[string]float64{"Technology": 30},
		},
		Holdings: []types.HoldingAnalysis{
			holdingRow("AAPL", 50, "50", "100"),
		},
	}
	advisor, store := newTestAdvisor(analysis)

	proposal, err := advisor.Generate(context.Background(), 1, types.ProposalPeriodic)
	require.NoError(t, err)

	executed, err := advisor.Execute(context.Background(), proposal.ID)
	require.NoError(t, err)
	assert.Equal(t, types.ProposalExecuted, executed.Status)
	require.NotNil(t, executed.ExecutedAt)
	assert.Equal(t, 1, store.executed)

	_, err = advisor.Execute(context.Background(), proposal.ID)
	require.ErrorIs(t, err, ErrInvalidProposalState)
	assert.Equal(t, 1, store.executed)
}

func TestExecuteUnknownProposal(t *testing.T) {
	advisor, _ := newTestAdvisor(calmAnalysis())

	_, err := advisor.Execute(context.Background(), "no-such-id")
	require.ErrorIs(t, err, ErrInvalidProposalState)
}
