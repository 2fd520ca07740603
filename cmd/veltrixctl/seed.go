package main

import (
	"fmt"

	"github.com/ashureev/veltrix/internal/config"
	"github.com/ashureev/veltrix/internal/store"
	"github.com/spf13/cobra"
)

func newSeedCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load the demo catalog and orders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(root.configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			repo, err := store.NewSQLite(cfg.DBPath)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer repo.Close()

			if err := store.SeedDemoData(cmd.Context(), repo); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Seeded %s (customer %q, vendor %q)\n", cfg.DBPath, store.DemoCustomerID, store.DemoVendorID)
			return nil
		},
	}
}
