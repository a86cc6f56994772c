package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/mr1hm/go-disaster-warehouse/internal/config"
	"github.com/mr1hm/go-disaster-warehouse/internal/logging"
	"github.com/mr1hm/go-disaster-warehouse/internal/repository"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "warehousectl",
	Short: "Operate the disaster warehouse from the command line",
	Long: `warehousectl drives the warehouse without the long-running service:
run ETL and dedup passes by hand, inspect pipeline state, and backfill
historical data from source archives and exports.`,
}

// openStore loads the environment the same way the service does and opens
// the warehouse database.
func openStore() (*config.Config, *repository.Store, error) {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("error loading config: %w", err)
	}
	logging.Setup(cfg.Logging.Level)

	store, err := repository.NewStore(cfg.DB.Path)
	if err != nil {
		return nil, nil, err
	}
	return cfg, store, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
