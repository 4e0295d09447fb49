package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/donaldgifford/pchome-price-follower/internal/config"
)

func historyCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history <product-id>",
		Short: "Show recorded price history for a product",
		Example: `  pricefollower history DYAJHD-A900FXxGI
  pricefollower history DYAJHD-A900FXxGI --limit 50`,
		Args: cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
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

			records, err := s.PriceHistory(ctx, args[0], limit)
			if err != nil {
				return err
			}

			if jsonOutput() {
				return outputJSON(records)
			}
			if len(records) == 0 {
				fmt.Printf("No price history for %s.\n", args[0])
				return nil
			}
			return printHistoryTable(records)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum observations to show")

	return cmd
}
