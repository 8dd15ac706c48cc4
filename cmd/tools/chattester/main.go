package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/umayarajkumar17/portfolio/backend/internal/analysis/hostility"
	"github.com/umayarajkumar17/portfolio/backend/internal/config"
	"github.com/umayarajkumar17/portfolio/backend/internal/logger"
	"github.com/umayarajkumar17/portfolio/backend/internal/model/profile"
	"github.com/umayarajkumar17/portfolio/backend/internal/richtext"
	"github.com/umayarajkumar17/portfolio/backend/internal/service/ai"
	"github.com/umayarajkumar17/portfolio/backend/internal/service/eventlog"
	"github.com/umayarajkumar17/portfolio/backend/internal/service/fallback"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads .env when present, then the environment.
func loadConfig() (*config.Config, error) {
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger.Setup(cfg.Telemetry)
	return cfg, nil
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "chattester",
		Short:         "Exercise the portfolio chat pipeline from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newReplyCmd(),
		newFallbackCmd(),
		newHostileCmd(),
		newSanitizeCmd(),
		newEventsCmd(),
	)
	return root
}

func newReplyCmd() *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "reply <text>",
		Short: "Ask the configured provider, falling back like the widget does",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			p, err := profile.Load(cfg.Profile.Path)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			svc, err := ai.NewService(ctx, cfg.AI, p, fallback.New(p, nil))
			if err != nil {
				return err
			}
			status := svc.Status()
			fmt.Fprintf(cmd.ErrOrStderr(), "provider=%s model=%s ai=%v\n", status.Provider, status.Model, status.AIEnabled)

			reply := svc.Reply(ctx, strings.Join(args, " "), nil)
			fmt.Fprintln(cmd.OutOrStdout(), richtext.PlainText(richtext.Parse(reply)))
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 45*time.Second, "request timeout")
	return cmd
}

func newFallbackCmd() *cobra.Command {
	var profilePath string
	var seed uint64
	cmd := &cobra.Command{
		Use:   "fallback <text>",
		Short: "Show the offline reply for a message",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := profile.Load(profilePath)
			if err != nil {
				return err
			}
			var src rand.Source
			if seed != 0 {
				src = rand.NewPCG(seed, seed)
			}
			reply := fallback.New(p, src).Respond(strings.Join(args, " "))
			fmt.Fprintln(cmd.OutOrStdout(), reply)
			return nil
		},
	}
	cmd.Flags().StringVar(&profilePath, "profile", "", "profile YAML (default: embedded)")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "random seed for deflections (0: clock)")
	return cmd
}

func newHostileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hostile <text>",
		Short: "Run the negative-content detector",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d := hostility.Analyze(strings.Join(args, " "))
			if !d.Hostile {
				fmt.Fprintln(cmd.OutOrStdout(), "hostile=false")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "hostile=true terms=%s\n", strings.Join(d.Terms, ","))
			return nil
		},
	}
}

func newSanitizeCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "sanitize <markup>",
		Short: "Reduce reply markup to the allowed rich-text subset",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			frags := richtext.Parse(strings.Join(args, " "))
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(frags)
			}
			fmt.Fprintln(cmd.OutOrStdout(), richtext.HTML(frags))
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print fragments instead of HTML")
	return cmd
}

func newEventsCmd() *cobra.Command {
	events := &cobra.Command{
		Use:   "events",
		Short: "Inspect logged visitor events",
	}

	var date string
	summary := &cobra.Command{
		Use:   "summary",
		Short: "Summarize one UTC day of events from the configured store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			day := time.Now().UTC()
			if date != "" {
				parsed, err := time.Parse(time.DateOnly, date)
				if err != nil {
					return fmt.Errorf("invalid --date %q: %w", date, err)
				}
				day = parsed
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := eventlog.OpenStore(cmd.Context(), cfg.Events)
			if err != nil {
				return err
			}
			svc, err := eventlog.NewService(store, cfg.Events.NodeID)
			if err != nil {
				_ = store.Close()
				return err
			}
			defer svc.Close()

			sum, err := svc.DailySummary(cmd.Context(), day)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(sum)
		},
	}
	summary.Flags().StringVar(&date, "date", "", "day as YYYY-MM-DD (default: today, UTC)")
	events.AddCommand(summary)
	return events
}
