// Command duel-bot connects to a duel server and plays matches with a fixed
// strategy. It is meant for smoke tests and for filling a lobby.
package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		opts    Options
		games   int
		verbose bool
	)

	cmd := &cobra.Command{
		Use:           "duel-bot",
		Short:         "Scripted duel client",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if opts.Player == "" {
				return errors.New("--player is required")
			}
			logger, err := newLogger(verbose)
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			for i := range games {
				res, err := Run(ctx, opts, logger)
				if err != nil {
					return fmt.Errorf("game %d: %w", i+1, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\tturn %d\n", res.SessionID, res.Outcome, res.Turns)
				if ctx.Err() != nil {
					return nil
				}
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.URL, "url", "ws://localhost:8080/ws", "server WebSocket endpoint")
	f.StringVar(&opts.Player, "player", "", "player id whose deck is used")
	f.StringVar(&opts.Token, "token", "", "connection token")
	f.StringVar(&opts.SessionID, "join", "", "join this private session id")
	f.BoolVar(&opts.Private, "private", false, "host a private session")
	f.IntVar(&opts.MaxTurns, "max-turns", 0, "leave after this many turns (0 = play to the end)")
	f.IntVar(&games, "games", 1, "matches to play in sequence")
	f.BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	return cmd
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	if !verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return cfg.Build()
}
