package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the staging backlog, warehouse totals, and recent failures",
	RunE:  runStatusCmd,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatusCmd(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	_, store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	pending, err := store.CountPending(ctx)
	if err != nil {
		return fmt.Errorf("error counting pending rows: %w", err)
	}
	totals, err := store.Totals(ctx)
	if err != nil {
		return fmt.Errorf("error fetching totals: %w", err)
	}

	fmt.Printf("staging pending:    %d\n", pending)
	fmt.Printf("facts loaded:       %d\n", totals.TotalFacts)
	fmt.Printf("master events:      %d\n", totals.MasterEvents)
	fmt.Printf("countries affected: %d\n", totals.CountriesAffected)

	etlErrors, err := store.ListETLErrors(ctx, 5)
	if err != nil {
		return fmt.Errorf("error fetching etl errors: %w", err)
	}
	if len(etlErrors) > 0 {
		fmt.Printf("\nrecent failures:\n")
		for _, e := range etlErrors {
			fmt.Printf("  [%s] staging %d at %s: %s\n", e.RunID, e.StagingID, e.Stage, e.Message)
		}
	}
	return nil
}
