package main

import (
	"context"
	"fmt"
	"time"

	"github.com/mr1hm/go-disaster-warehouse/internal/etl"
	"github.com/mr1hm/go-disaster-warehouse/internal/geocode"
	"github.com/mr1hm/go-disaster-warehouse/internal/transform"
	"github.com/spf13/cobra"
)

var etlBatches int

var etlCmd = &cobra.Command{
	Use:   "etl",
	Short: "Run ETL batches until the staging backlog drains",
	Long: `Claim pending staging rows and move them through transform and load.
Batches run back to back until no pending rows remain, or until the
--batches limit is hit.`,
	RunE: runETLCmd,
}

func init() {
	etlCmd.Flags().IntVar(&etlBatches, "batches", 0, "maximum batches to run (0 = until drained)")
	rootCmd.AddCommand(etlCmd)
}

func runETLCmd(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	transformer := transform.NewTransformer(geocode.NewClient(cfg.Geocode))
	pipeline := etl.NewPipeline(store, store, transformer, nil, cfg.ETL)

	var claimed, succeeded, failed int
	for batch := 1; ; batch++ {
		summary, err := pipeline.Run(ctx)
		if err != nil {
			return fmt.Errorf("etl batch %d: %w", batch, err)
		}
		claimed += summary.Claimed
		succeeded += summary.Succeeded
		failed += summary.Failed

		fmt.Printf("batch %d: claimed=%d succeeded=%d failed=%d (%v)\n",
			batch, summary.Claimed, summary.Succeeded, summary.Failed,
			summary.Duration.Round(time.Millisecond))

		if summary.Claimed == 0 {
			break
		}
		if etlBatches > 0 && batch >= etlBatches {
			break
		}
	}

	fmt.Printf("done: claimed=%d succeeded=%d failed=%d\n", claimed, succeeded, failed)
	return nil
}
