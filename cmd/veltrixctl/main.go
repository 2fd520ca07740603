// Command veltrixctl is the operator CLI for the Veltrix assistant.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/ashureev/veltrix/internal/app"
	"github.com/ashureev/veltrix/internal/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func main() {
	_ = godotenv.Load()
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "veltrixctl",
		Short:         "Operate the Veltrix shopping assistant",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level := slog.LevelWarn
			if opts.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
		},
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", os.Getenv("VELTRIX_CONFIG"), "config file path")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(
		newChatCmd(opts),
		newTranscriptCmd(opts),
		newSeedCmd(opts),
		newHealthCmd(),
	)
	return cmd
}

// openApp loads configuration and wires the service in-process.
func openApp(ctx context.Context, opts *rootOptions) (*app.App, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return app.New(ctx, cfg)
}
