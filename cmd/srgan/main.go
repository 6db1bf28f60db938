// Package main provides the srgan command: training, inference and checkpoint
// export for SRGAN super-resolution models.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/born-ml/srgan/internal/logging"
)

const version = "v0.1.0-dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// NewRootCommand returns the srgan command with all subcommands attached.
func NewRootCommand() *cobra.Command {
	var logLevel, logFormat string
	root := &cobra.Command{
		Use:           "srgan",
		Short:         "Train and run SRGAN super-resolution models",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return logging.Setup(logLevel, logFormat, cmd.ErrOrStderr())
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text or json")

	root.AddCommand(
		TrainCommand(),
		UpscaleCommand(),
		ExportCommand(),
		InspectCommand(),
		VersionCommand(),
	)
	return root
}

// VersionCommand prints the build version.
func VersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "srgan %s\n", version)
			return nil
		},
	}
}
