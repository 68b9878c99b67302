// Package cmd wires bindersim's cobra command tree: a small CLI harness
// around the binderalloc library for scripted allocator exercises, built
// the way the host CLI this tool is modelled on wires its own root
// command and persistent flags.
package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/nuttx-binder/binderalloc/cmd/bindersim/internal/config"
)

var (
	configDirFlag string
	logLevelFlag  string
	log           = logrus.New()
)

// Execute builds and runs the root command; main.go's sole job is to call
// this and translate a non-nil error into a process exit code.
func Execute() error {
	return NewRootCmd().Execute()
}

func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "bindersim",
		Short:         "Simulate a Binder-style shared-memory buffer allocator",
		Long:          "bindersim drives a binderalloc.Region through scripted mmap/alloc/free/copy operations and can show the live region state.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config.SetHome(configDirFlag)
			levelName := logLevelFlag
			if !cmd.Flags().Changed("log-level") && os.Getenv("BINDERSIM_LOG_LEVEL") == "" {
				if cfg, err := config.Load(); err == nil && cfg.LogLevel != "" {
					levelName = cfg.LogLevel
				}
			}
			level, err := logrus.ParseLevel(levelName)
			if err != nil {
				return fmt.Errorf("invalid --log-level %q: %w", levelName, err)
			}
			log.SetLevel(level)
			return nil
		},
	}

	pflags := root.PersistentFlags()
	pflags.StringVar(&configDirFlag, "config-dir", "", "Override config directory (default: ~/.bindersim)")
	pflags.StringVar(&logLevelFlag, "log-level", "info", "Log level: debug, info, warn, error")

	if v := os.Getenv("BINDERSIM_LOG_LEVEL"); v != "" {
		logLevelFlag = v
	}

	root.AddCommand(newConfigCmd())
	root.AddCommand(newSimulateCmd())
	return root
}
