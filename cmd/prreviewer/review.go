package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wesm/prreviewer/internal/config"
	"github.com/wesm/prreviewer/internal/consensus"
	"github.com/wesm/prreviewer/internal/orchestrator"
	"github.com/wesm/prreviewer/internal/provider"
	"github.com/wesm/prreviewer/internal/rategate"
)

// reviewGate is process-lifetime, matching spec.md §5's "process-
// lifetime cooldown": one Rate Gate shared across every review
// invocation this binary makes, not per-command.
var reviewGate = rategate.New()

func reviewCmd() *cobra.Command {
	var (
		store   string
		dsn     string
		org     string
		project string
		repo    string
		prID    int
	)

	cmd := &cobra.Command{
		Use:   "review",
		Short: "Run one review pass over a pull request",
		Long: `Run one review pass over a pull request, driving the full
Action-decision state machine: skip, vote-only, full review, or
re-review, per the configured Provider Port and Review State Store.

Examples:
  prreviewer review --store=github --repo=acme/widgets --pr=42
  prreviewer review --store=sqlite --dsn=./prreviewer.db --project=default --repo=acme/widgets --pr=42`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := config.LoadGlobal()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.Validate(provider.KnownTypes()); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}

			st, closeStore, err := openStore(ctx, store, dsn)
			if err != nil {
				return err
			}
			defer closeStore()

			providers, err := provider.BuildAll(cfg.Providers)
			if err != nil {
				return fmt.Errorf("build providers: %w", err)
			}
			var p provider.Provider
			switch cfg.Mode {
			case "consensus":
				p = consensusFromConfig(providers, cfg.ConsensusThreshold)
			default:
				p, err = activeProvider(providers, cfg.ActiveProvider)
				if err != nil {
					return err
				}
			}

			o := orchestrator.New(org, st, p, reviewGate, config.NewStatic(cfg))
			result := o.Review(ctx, project, repo, prID)

			fmt.Printf("Status: %s\n", result.Status)
			if result.ErrorMessage != "" {
				fmt.Printf("Error: %s\n", result.ErrorMessage)
			}
			if result.Recommendation != "" {
				fmt.Printf("Recommendation: %s\n", result.Recommendation)
			}
			if result.Vote != nil {
				fmt.Printf("Vote: %d\n", *result.Vote)
			}
			if result.IssueCount > 0 {
				fmt.Printf("Issues: %d error, %d warning, %d info\n",
					result.ErrorCount, result.WarningCount, result.InfoCount)
			}
			if result.Summary != "" {
				fmt.Println()
				fmt.Println(result.Summary)
			}

			if result.Status == "Error" {
				return &exitError{code: 1}
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&store, "store", "sqlite", "review state store backend: sqlite, postgres, or github")
	cmd.Flags().StringVar(&dsn, "dsn", "", "store connection string (sqlite path or postgres URL)")
	cmd.Flags().StringVar(&org, "org", "default", "rate gate key organization component")
	cmd.Flags().StringVar(&project, "project", "default", "platform project (ignored by the github backend)")
	cmd.Flags().StringVar(&repo, "repo", "", "repository name (owner/name for the github backend)")
	cmd.Flags().IntVar(&prID, "pr", 0, "pull request ID")
	_ = cmd.MarkFlagRequired("repo")
	_ = cmd.MarkFlagRequired("pr")

	return cmd
}

// consensusFromConfig wraps the enabled providers in a Consensus
// Aggregator, itself satisfying provider.Provider so the orchestrator
// never needs to know it is talking to more than one reviewer.
func consensusFromConfig(providers []provider.Provider, threshold int) provider.Provider {
	return consensus.New(providers, threshold)
}

// activeProvider selects cfg.Mode == "single"'s named provider from
// the built list by matching its registered display name.
func activeProvider(providers []provider.Provider, name string) (provider.Provider, error) {
	for _, p := range providers {
		if p.Name() == name {
			return p, nil
		}
	}
	return nil, fmt.Errorf("active_provider %q is not among the enabled providers", name)
}
