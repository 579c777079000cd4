package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/korrio/jobradar/internal/model"
	"github.com/korrio/jobradar/internal/store"
)

var (
	listColumn   string
	listCategory string
	listStatus   string
	listLimit    int
	listStats    bool
)

var listTitleStyle = lipgloss.NewStyle().Bold(true)
var listDimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
var listSyncedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored jobs",
	Long:  "Prints stored jobs, optionally filtered by board column, category or status.",
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().StringVar(&listColumn, "column", "", "filter by board column (inbox, interested, proposed, archived)")
	listCmd.Flags().StringVar(&listCategory, "category", "", "filter by category label")
	listCmd.Flags().StringVar(&listStatus, "status", "", "filter by status (pending, analyzed, notified, error)")
	listCmd.Flags().IntVar(&listLimit, "limit", 50, "max jobs to print")
	listCmd.Flags().BoolVar(&listStats, "stats", false, "print per-column counts instead of jobs")
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	st, err := openStore(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	if listStats {
		return printStats(st)
	}

	filter := store.Filter{
		Category:        listCategory,
		Limit:           listLimit,
		OrderByPriority: true,
	}
	if listColumn != "" {
		col, err := model.ParseColumn(listColumn)
		if err != nil {
			return err
		}
		filter.Column = col
	}
	if listStatus != "" {
		status, err := model.ParseStatus(listStatus)
		if err != nil {
			return err
		}
		filter.Status = status
	}

	jobs, err := st.ListJobs(filter)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		fmt.Println("No jobs found.")
		return nil
	}

	for _, job := range jobs {
		budget := "no budget"
		if job.Budget > 0 {
			budget = fmt.Sprintf("%.0f %s", job.Budget, job.Currency)
		}
		sync := ""
		if job.Synced {
			sync = listSyncedStyle.Render(" ✓ synced")
		}

		fmt.Println(listTitleStyle.Render(job.Title) + sync)
		fmt.Println(listDimStyle.Render(fmt.Sprintf("  %s · %s · %s/%s · %s",
			budget, job.Category, job.Status, job.Column, job.ID)))
		if job.URL != "" {
			fmt.Println(listDimStyle.Render("  " + job.URL))
		}
		fmt.Println()
	}
	fmt.Printf("%d jobs\n", len(jobs))
	return nil
}

func printStats(st *store.Store) error {
	stats, err := st.ColumnStats()
	if err != nil {
		return err
	}

	fmt.Printf("%-12s %s\n", "Column", "Jobs")
	fmt.Println(strings.Repeat("─", 18))
	total := 0
	for _, s := range stats {
		fmt.Printf("%-12s %d\n", s.Column, s.Count)
		total += s.Count
	}
	fmt.Printf("\nTotal: %d jobs\n", total)
	return nil
}
