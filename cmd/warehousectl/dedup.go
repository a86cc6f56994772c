package main

import (
	"context"
	"fmt"
	"time"

	"github.com/mr1hm/go-disaster-warehouse/internal/dedup"
	"github.com/spf13/cobra"
)

var dedupCmd = &cobra.Command{
	Use:   "dedup",
	Short: "Run one deduplication pass over the fact table",
	RunE:  runDedupCmd,
}

func init() {
	rootCmd.AddCommand(dedupCmd)
}

func runDedupCmd(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	deduper := dedup.NewDeduper(store, cfg.Dedup)
	summary, err := deduper.Run(ctx)
	if err != nil {
		return fmt.Errorf("dedup pass: %w", err)
	}

	fmt.Printf("scanned=%d clusters=%d demoted=%d promoted=%d (%v)\n",
		summary.Scanned, summary.Clusters, summary.Demoted, summary.Promoted,
		summary.Duration.Round(time.Millisecond))
	return nil
}
