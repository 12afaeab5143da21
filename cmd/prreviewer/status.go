package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/wesm/prreviewer/internal/model"
)

func statusCmd() *cobra.Command {
	var (
		store   string
		dsn     string
		project string
		repo    string
		prID    int
		limit   int
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show a PR's review metadata and history",
		Long:  "Print the last-reviewed state and recent review history the Review State Store holds for one pull request.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			st, closeStore, err := openStore(ctx, store, dsn)
			if err != nil {
				return err
			}
			defer closeStore()

			meta, err := st.GetMetadata(ctx, project, repo, prID)
			if err != nil {
				return fmt.Errorf("get metadata: %w", err)
			}
			history, err := st.GetHistory(ctx, project, repo, prID)
			if err != nil {
				return fmt.Errorf("get history: %w", err)
			}

			printMetadataTable(meta)
			fmt.Println()
			printHistoryTable(history, limit)
			return nil
		},
	}

	cmd.Flags().StringVar(&store, "store", "sqlite", "review state store backend: sqlite, postgres, or github")
	cmd.Flags().StringVar(&dsn, "dsn", "", "store connection string (sqlite path or postgres URL)")
	cmd.Flags().StringVar(&project, "project", "default", "platform project (ignored by the github backend)")
	cmd.Flags().StringVar(&repo, "repo", "", "repository name (owner/name for the github backend)")
	cmd.Flags().IntVar(&prID, "pr", 0, "pull request ID")
	cmd.Flags().IntVar(&limit, "limit", 10, "number of recent history rows to show")
	_ = cmd.MarkFlagRequired("repo")
	_ = cmd.MarkFlagRequired("pr")

	return cmd
}

var (
	statusHeaderStyle = lipgloss.NewStyle().Bold(true)
	statusBorderColor = lipgloss.AdaptiveColor{Light: "248", Dark: "242"}
)

func printMetadataTable(meta model.ReviewMetadata) {
	if !meta.HasPreviousReview() {
		fmt.Println("No previous review recorded.")
		return
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(statusBorderColor)).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return statusHeaderStyle
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Headers("Field", "Value").
		Row("Last reviewed source commit", shortCommit(meta.LastReviewedSourceCommit)).
		Row("Last reviewed target commit", shortCommit(meta.LastReviewedTargetCommit)).
		Row("Last reviewed iteration", strconv.Itoa(meta.LastReviewedIteration)).
		Row("Was draft", strconv.FormatBool(meta.WasDraft)).
		Row("Reviewed at (UTC)", meta.ReviewedAtUtc.Format(time.RFC3339)).
		Row("Vote submitted", strconv.FormatBool(meta.VoteSubmitted)).
		Row("Review count", strconv.Itoa(meta.ReviewCount))

	fmt.Println(t.Render())
}

func printHistoryTable(history []model.ReviewHistoryEntry, limit int) {
	if len(history) == 0 {
		fmt.Println("No review history.")
		return
	}
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(statusBorderColor)).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return statusHeaderStyle
			}
			return lipgloss.NewStyle().Padding(0, 1)
		}).
		Headers("#", "Reviewed At", "Action", "Verdict", "Vote", "Files", "Comments")

	for _, entry := range history {
		vote := "-"
		if entry.Vote != nil {
			vote = strconv.Itoa(*entry.Vote)
		}
		t.Row(
			strconv.Itoa(entry.ReviewNumber),
			entry.ReviewedAtUtc.Format(time.RFC3339),
			string(entry.Action),
			entry.Verdict,
			vote,
			strconv.Itoa(entry.FilesChanged),
			strconv.Itoa(entry.InlineCommentsPosted),
		)
	}

	fmt.Println(t.Render())
}

func shortCommit(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
