package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fgrzl/resourcekit/pkg/config"
	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
)

type rootOptions struct {
	configPath string
	verbose    bool
}

// load reads the configuration file named by --config.
func (o *rootOptions) load() (*config.File, error) {
	return config.LoadFile(o.configPath)
}

func main() {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "resourcekit",
		Short: "Live device traits and collections over WebSocket",
		Long: `resourcekit serves device trait values and keyed collections as
long-lived streams, and follows them from the command line.`,
		Version:       fmt.Sprintf("%s (%s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := slog.LevelInfo
			if opts.verbose {
				level = slog.LevelDebug
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "YAML configuration file")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(
		serveCmd(opts),
		watchCmd(opts),
		setCmd(opts),
		tokenCmd(opts),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		stop()
		os.Exit(1)
	}
}
