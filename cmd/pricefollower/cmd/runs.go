package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/donaldgifford/pchome-price-follower/internal/config"
)

func runsCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Show recent reconciliation runs",
		Example: `  pricefollower runs
  pricefollower runs --limit 5 --output json`,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.LoadLocal()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			s, err := openExistingStore(cfg)
			if err != nil {
				return fmt.Errorf("opening database: %w", err)
			}
			defer func() { _ = s.Close() }()

			ctx := context.Background()
			if err := s.Migrate(ctx); err != nil {
				return fmt.Errorf("running migrations: %w", err)
			}

			runs, err := s.ListRunRecords(ctx, limit)
			if err != nil {
				return err
			}

			if jsonOutput() {
				return outputJSON(runs)
			}
			if len(runs) == 0 {
				fmt.Println("No runs recorded.")
				return nil
			}
			return printRunsTable(runs)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum runs to show")

	return cmd
}
