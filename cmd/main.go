package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"listing_spider/internal/app"
	"listing_spider/internal/config"
	"listing_spider/internal/logger"
)

var (
	cfgFile string
	debug   bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "listing-spider",
		Short:         "Discovers real-estate listings and stores their details",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "path to the YAML config file")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "log at debug level to the console")

	root.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Run the scheduler and the OAuth endpoints until interrupted",
			Args:  cobra.NoArgs,
			RunE: withApp(func(ctx context.Context, a *app.ListingApp, _ []string) error {
				return a.Run(ctx)
			}),
		},
		&cobra.Command{
			Use:   "crawl [seed...]",
			Short: "Discover listing links from the given or configured search pages",
			RunE: withApp(func(ctx context.Context, a *app.ListingApp, args []string) error {
				return a.Crawl(ctx, args)
			}),
		},
		&cobra.Command{
			Use:   "drain",
			Short: "Process pending search-result links",
			Args:  cobra.NoArgs,
			RunE: withApp(func(ctx context.Context, a *app.ListingApp, _ []string) error {
				return a.Drain(ctx)
			}),
		},
		&cobra.Command{
			Use:   "poll",
			Short: "Poll the mailbox and process pending mail candidates",
			Args:  cobra.NoArgs,
			RunE: withApp(func(ctx context.Context, a *app.ListingApp, _ []string) error {
				return a.Poll(ctx)
			}),
		},
		&cobra.Command{
			Use:   "auth",
			Short: "Serve the mailbox consent flow until interrupted",
			Args:  cobra.NoArgs,
			RunE: withApp(func(ctx context.Context, a *app.ListingApp, _ []string) error {
				if !a.HasMailbox() {
					return app.ErrMailboxDisabled
				}
				fmt.Printf("Open %s/api/gmailAuth in a browser to grant mailbox access.\n", localURL(a.HTTPAddr()))
				return a.Serve(ctx)
			}),
		},
	)
	return root
}

// withApp loads the config, builds the app and closes it after fn returns.
func withApp(fn func(ctx context.Context, a *app.ListingApp, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(cfgFile)
		if err != nil {
			return fmt.Errorf("load config %s: %w", cfgFile, err)
		}
		if debug {
			cfg.Logging.Level = "debug"
			cfg.Logging.Development = true
		}

		log, err := logger.New(cfg.Logging)
		if err != nil {
			return err
		}
		defer func() { _ = log.Sync() }()

		a, err := app.NewListingApp(cfg, log)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := a.Close(); cerr != nil {
				log.Warn("shutdown", logger.Error(cerr))
			}
		}()

		return fn(cmd.Context(), a, args)
	}
}

func localURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "http://localhost" + addr
	}
	return "http://" + addr
}
