package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bamsammich/blit/internal/config"
	"github.com/bamsammich/blit/internal/engine"
	"github.com/bamsammich/blit/internal/progress"
)

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	var (
		showVersion bool
		buffered    bool
	)

	rootCmd := &cobra.Command{
		Use:   "blit [OPERAND]...",
		Short: "Copy a file, converting and formatting according to the operands",
		Long: `blit copies bytes from one source to one destination in caller-controlled
block sizes, applying optional conversions, skip/seek offsets, count
limits, and I/O hints, in the manner of dd(1).`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				fmt.Fprintf(os.Stdout, "blit %s\n", version)
				return nil
			}

			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: slog.LevelWarn,
			}))
			slog.SetDefault(logger)

			p, err := parseOperands(args)
			if err != nil {
				return err
			}
			settings := p.settings
			settings.Buffered = buffered

			// Layer optional config-file defaults under anything given
			// explicitly.
			cfg, err := config.Load()
			if err != nil {
				slog.Warn("failed to load config", "error", err)
			}
			if !p.statusGiven && cfg.Defaults.Status != nil {
				settings.Status, err = progress.ParseLevel(*cfg.Defaults.Status)
				if err != nil {
					slog.Warn("ignoring config status default", "error", err)
					settings.Status = progress.Default
				}
			}
			if !cmd.Flags().Changed("buffered") && cfg.Defaults.Buffered != nil {
				settings.Buffered = *cfg.Defaults.Buffered
			}

			in, err := engine.OpenInput(settings)
			if err != nil {
				return err
			}
			defer in.Close()

			out, err := engine.OpenOutput(settings)
			if err != nil {
				return err
			}
			defer out.Close()

			hooks := engine.Hooks{
				Reporter:       progress.New(os.Stderr, settings.Status),
				InstallTrigger: installProgressSignal,
			}
			result, err := engine.Run(settings, in, out, hooks)
			if err != nil {
				return err
			}
			if result.Degraded {
				return &exitError{code: 1}
			}
			return nil
		},
	}

	rootCmd.Flags().BoolVar(&showVersion, "version", false, "print version and exit")
	rootCmd.Flags().
		BoolVar(&buffered, "buffered", false, "accumulate partial output blocks until complete")

	if err := rootCmd.Execute(); err != nil {
		if exitErr, ok := err.(*exitError); ok {
			return exitErr.code
		}
		fmt.Fprintf(os.Stderr, "blit: %v\n", err)
		return 1
	}

	return 0
}

// installProgressSignal routes SIGUSR1 to the alarm's manual trigger so a
// running transfer can be asked for a report.
func installProgressSignal(trigger func()) error {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGUSR1)
	go func() {
		for range ch {
			trigger()
		}
	}()
	return nil
}

type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}
