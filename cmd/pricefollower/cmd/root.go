// Package cmd implements the CLI commands for pricefollower.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/donaldgifford/pchome-price-follower/internal/config"
	"github.com/donaldgifford/pchome-price-follower/internal/store"
)

var (
	dbPath       string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "pricefollower",
	Short: "Follow PChome tracking-list prices and alert on new lows",
	Long: "A batch job that mirrors your PChome 24h tracking list into a local\n" +
		"SQLite database, records current prices, and sends an alert whenever a\n" +
		"product drops below its recorded historical low.",
	SilenceUsage: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		if outputFormat != "table" && outputFormat != "json" {
			return fmt.Errorf("unknown output format %q (want table or json)", outputFormat)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().
		StringVar(&dbPath, "db", "", "SQLite database path (overrides DB_PATH)")
	rootCmd.PersistentFlags().
		StringVarP(&outputFormat, "output", "o", "table", "output format (table, json)")

	rootCmd.AddCommand(
		runCommand(),
		productsCommand(),
		historyCommand(),
		runsCommand(),
		versionCommand(),
	)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func jsonOutput() bool {
	return outputFormat == "json"
}

func databasePath(cfg *config.Config) string {
	if dbPath != "" {
		return dbPath
	}
	return cfg.Database.Path
}

func openStore(cfg *config.Config) (*store.SQLiteStore, error) {
	return store.NewSQLiteStore(databasePath(cfg))
}

// openExistingStore refuses to create the database file, so read-only
// commands surface a mistyped path instead of reporting an empty database.
func openExistingStore(cfg *config.Config) (*store.SQLiteStore, error) {
	path := databasePath(cfg)
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("database %s not found; run `pricefollower run` first", path)
	}
	return store.NewSQLiteStore(path)
}
