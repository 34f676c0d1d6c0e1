package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"financehub/internal/analyzer"
	"financehub/internal/backtest"
	"financehub/internal/config"
	"financehub/internal/marketdata"
	"financehub/internal/rebalance"
	"financehub/internal/repository"
	"financehub/types"
)

// app bundles the wired components a command needs. Each command builds one,
// runs, and closes the pool on exit.
type app struct {
	cfg      *config.Config
	db       *repository.Database
	source   marketdata.Source
	analyzer *analyzer.Analyzer
	advisor  *rebalance.Advisor
}

func newApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	db, err := repository.NewDatabase(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	var source marketdata.Source = marketdata.NewYahooClient()
	if cfg.Market.BaseURL != "" {
		source = marketdata.NewYahooClientWithBaseURL(cfg.Market.BaseURL, nil)
	}

	an := analyzer.New(db, db, source, cfg.Analytics.RiskFreeRate, cfg.Analytics.BenchmarkTicker)
	adv := rebalance.NewAdvisor(an, db, cfg.Rebalance.Thresholds, cfg.Rebalance.Targets)

	return &app{cfg: cfg, db: db, source: source, analyzer: an, advisor: adv}, nil
}

func (a *app) close() { a.db.Close() }

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func backtestCmd() *cobra.Command {
	var (
		strategyID int
		stratType  string
		capital    float64
		ticker     string
		startStr   string
		endStr     string
		progress   bool
	)

	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Run a strategy simulation over historical bars",
		RunE: func(cmd *cobra.Command, args []string) error {
			start, err := time.Parse("2006-01-02", startStr)
			if err != nil {
				return fmt.Errorf("parse start date: %w", err)
			}
			end, err := time.Parse("2006-01-02", endStr)
			if err != nil {
				return fmt.Errorf("parse end date: %w", err)
			}

			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.close()

			var strat types.Strategy
			if strategyID > 0 {
				saved, err := app.db.GetStrategy(cmd.Context(), strategyID)
				if err != nil {
					return err
				}
				strat = *saved
			} else {
				strat = types.Strategy{
					Name:            fmt.Sprintf("adhoc-%s", stratType),
					Type:            types.StrategyType(stratType),
					InitialCapital:  decimal.NewFromFloat(capital),
					PositionSizePct: decimal.NewFromInt(100),
				}
			}

			engine := backtest.NewEngine(app.source, nil, app.db)
			engine.ShowProgress(progress)

			run, err := engine.Run(cmd.Context(), strat, ticker, start, end)
			if err != nil {
				return err
			}
			return printJSON(run)
		},
	}

	cmd.Flags().IntVar(&strategyID, "strategy-id", 0, "saved strategy id, overrides --type")
	cmd.Flags().StringVar(&stratType, "type", string(types.StrategyBuyAndHold), "strategy type for ad-hoc runs")
	cmd.Flags().Float64Var(&capital, "capital", 10000, "initial capital for ad-hoc runs")
	cmd.Flags().StringVar(&ticker, "ticker", "", "ticker to simulate")
	cmd.Flags().StringVar(&startStr, "start", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&endStr, "end", "", "end date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&progress, "progress", false, "show a progress bar")
	cmd.MarkFlagRequired("ticker")
	cmd.MarkFlagRequired("start")
	cmd.MarkFlagRequired("end")
	return cmd
}

func analyzeCmd() *cobra.Command {
	var snapshot bool

	cmd := &cobra.Command{
		Use:   "analyze <portfolio-id>",
		Short: "Compute performance, risk and diversification metrics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			portfolioID, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("portfolio id: %w", err)
			}

			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.close()

			var analysis *types.PortfolioAnalysis
			if snapshot {
				analysis, err = app.analyzer.Snapshot(cmd.Context(), portfolioID)
			} else {
				analysis, err = app.analyzer.Analyze(cmd.Context(), portfolioID)
			}
			if err != nil {
				return err
			}
			return printJSON(analysis)
		},
	}
	cmd.Flags().BoolVar(&snapshot, "snapshot", false, "persist the result as an analytics snapshot")
	return cmd
}

func rebalanceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rebalance",
		Short: "Check, propose and execute portfolio rebalancing",
	}

	check := &cobra.Command{
		Use:   "check <portfolio-id>",
		Short: "Evaluate rebalancing triggers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			portfolioID, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("portfolio id: %w", err)
			}

			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.close()

			result, err := app.advisor.Check(cmd.Context(), portfolioID)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}

	var proposalType string
	propose := &cobra.Command{
		Use:   "propose <portfolio-id>",
		Short: "Generate a pending rebalance proposal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			portfolioID, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("portfolio id: %w", err)
			}

			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.close()

			proposal, err := app.advisor.Generate(cmd.Context(), portfolioID, types.ProposalType(proposalType))
			if err != nil {
				return err
			}
			return printJSON(proposal)
		},
	}
	propose.Flags().StringVar(&proposalType, "type", string(types.ProposalAuto), "proposal type")

	execute := &cobra.Command{
		Use:   "execute <proposal-id>",
		Short: "Apply a pending proposal to the portfolio's holdings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp()
			if err != nil {
				return err
			}
			defer app.close()

			proposal, err := app.advisor.Execute(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			log.Info().Str("proposal_id", proposal.ID).Msg("proposal applied")
			return printJSON(proposal)
		},
	}

	cmd.AddCommand(check, propose, execute)
	return cmd
}
