package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/korrio/jobradar/internal/board"
)

var boardMinBudget float64

var boardCmd = &cobra.Command{
	Use:   "board",
	Short: "Browse jobs on an interactive kanban board (TUI)",
	Long:  "Opens the four-column kanban view over the local store. Moves and priority changes are persisted immediately.",
	RunE:  runBoard,
}

func init() {
	rootCmd.AddCommand(boardCmd)
	boardCmd.Flags().Float64Var(&boardMinBudget, "min-budget", 0, "hide jobs below this budget")
}

func runBoard(cmd *cobra.Command, args []string) error {
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

	return board.Run(st, boardMinBudget)
}
