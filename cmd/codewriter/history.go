package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"codewriter/internal/config"
	"codewriter/internal/store"
)

var (
	histLimit int
	histDB    string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent generation runs",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&histLimit, "limit", 10, "Number of runs to show")
	historyCmd.Flags().StringVar(&histDB, "db", "", "History database path")

	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	dbPath := histDB
	if dbPath == "" {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		dbPath = cfg.HistoryDB
	}

	history, err := store.NewHistoryStore(dbPath, logger.Named("store"))
	if err != nil {
		return err
	}
	defer history.Close()

	runs, err := history.RecentRuns(histLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded.")
		return nil
	}

	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	for _, run := range runs {
		status := red("failed")
		if run.Passed {
			status = green("passed")
		}
		if run.Stub {
			status = yellow("stub")
		}
		task := run.Task
		if len(task) > 60 {
			task = task[:57] + "..."
		}
		fmt.Printf("#%d  %s  %s  %s -> %s  fixes=%d  %s\n",
			run.ID,
			run.StartedAt.Format("2006-01-02 15:04"),
			status,
			run.Provider,
			run.OutPath,
			run.Refinements,
			task)
	}
	return nil
}
