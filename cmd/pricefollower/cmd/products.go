package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/donaldgifford/pchome-price-follower/internal/config"
	domain "github.com/donaldgifford/pchome-price-follower/pkg/types"
)

// productView is a product joined with its price aggregates for display.
type productView struct {
	domain.Product
	LatestPrice   *int64 `json:"latest_price,omitempty"`
	HistoricalLow *int64 `json:"historical_low,omitempty"`
}

func productsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "products",
		Short: "List tracked products with latest and lowest prices",
		Example: `  pricefollower products
  pricefollower products --output json`,
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

			products, err := s.ListProducts(ctx)
			if err != nil {
				return err
			}

			views := make([]productView, 0, len(products))
			for i := range products {
				latest, err := s.LatestPrice(ctx, products[i].ID)
				if err != nil {
					return err
				}
				low, err := s.HistoricalLow(ctx, products[i].ID)
				if err != nil {
					return err
				}
				views = append(views, productView{
					Product:       products[i],
					LatestPrice:   latest,
					HistoricalLow: low,
				})
			}

			if jsonOutput() {
				return outputJSON(views)
			}
			if len(views) == 0 {
				fmt.Println("No tracked products. Run `pricefollower run` first.")
				return nil
			}
			return printProductTable(views)
		},
	}
}
