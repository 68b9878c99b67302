package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nuttx-binder/binderalloc/cmd/bindersim/internal/config"
)

func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Show or edit bindersim's default region shape",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "page_size = %d\n", cfg.PageSize)
			fmt.Fprintf(cmd.OutOrStdout(), "region_size = %d\n", cfg.RegionSize)
			fmt.Fprintf(cmd.OutOrStdout(), "log_level = %s\n", cfg.LogLevel)
			return nil
		},
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "set-page-size <BYTES>",
		Short: "Set the default simulated page size",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil || n <= 0 {
				return fmt.Errorf("page size must be a positive integer, got %q", args[0])
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			cfg.PageSize = n
			return config.Save(cfg)
		},
	})

	configCmd.AddCommand(&cobra.Command{
		Use:   "set-region-size <BYTES>",
		Short: "Set the default simulated region size",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil || n <= 0 {
				return fmt.Errorf("region size must be a positive integer, got %q", args[0])
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			cfg.RegionSize = n
			return config.Save(cfg)
		},
	})

	return configCmd
}
