// Package main implements ratelctl, a command line client for the Ratel API
// built on the ratelsync cache.
//
// Each invocation builds one query client, so commands that read the same
// resource more than once, or read several resources, share requests and
// cache. Results are printed as JSON; --stats prints cache counters to
// stderr when the command finishes.
//
// Example usage:
//
//	ratelctl --api http://localhost:3000 space get sp_welcome
//	ratelctl space set-title sp_welcome "Hello"
//	ratelctl notification read-all
//	ratelctl --stats user get alice bob
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dreamware/ratelsync/internal/api"
	"github.com/dreamware/ratelsync/internal/config"
	"github.com/dreamware/ratelsync/internal/query"
	"github.com/dreamware/ratelsync/internal/resource"
)

// app is the state shared by every subcommand of one invocation.
type app struct {
	configPath string
	apiURL     string
	verbose    bool
	stats      bool

	cfg       *config.Config
	logger    *zap.Logger
	q         *query.Client
	svc       *resource.Services
	collector *query.Collector
	cancel    context.CancelFunc
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := execute(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}

// execute runs one ratelctl invocation and always releases what setup
// acquired, including when the command fails.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	a := &app{}
	defer a.close(stderr)

	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.ExecuteContext(ctx)
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:          "ratelctl",
		Short:        "Command line client for the Ratel API",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.Context())
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", os.Getenv("RATEL_CONFIG"), "Config file (or set RATEL_CONFIG env)")
	root.PersistentFlags().StringVar(&a.apiURL, "api", "", "Ratel API base URL (overrides config)")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose logging")
	root.PersistentFlags().BoolVar(&a.stats, "stats", false, "Print cache statistics when done")

	root.AddCommand(
		newSpaceCmd(a),
		newFeedCmd(a),
		newPostCmd(a),
		newNotificationCmd(a),
		newTeamCmd(a),
		newUserCmd(a),
		newAttributeCodeCmd(a),
	)
	return root
}

// setup loads the configuration and wires the API client, the query client
// and the resource services.
func (a *app) setup(ctx context.Context) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.apiURL != "" {
		cfg.API.URL = a.apiURL
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	a.cfg = cfg

	logger, err := cfg.NewLogger(a.verbose)
	if err != nil {
		return err
	}
	a.logger = logger

	overrides, err := cfg.CachePolicies()
	if err != nil {
		return err
	}
	reg := query.NewPolicyRegistry(query.DefaultPolicy)
	if err := resource.RegisterPolicies(reg, overrides); err != nil {
		return fmt.Errorf("cache policies: %w", err)
	}

	client := api.NewClient(cfg.API.URL,
		api.WithGraphQLURL(cfg.API.GraphQLURL),
		api.WithTimeout(cfg.GetAPITimeout()),
		api.WithLogger(logger.Named("api")),
	)
	a.q = query.NewClient(
		query.WithPolicies(reg),
		query.WithLogger(logger.Named("query")),
	)
	a.svc = resource.New(client, a.q)

	if ctx == nil {
		ctx = context.Background()
	}
	ctx, a.cancel = context.WithCancel(ctx)
	a.collector = query.NewCollector(a.q, cfg.GetGCInterval())
	go a.collector.Start(ctx)

	logger.Debug("ratelctl ready", zap.String("api", cfg.API.URL))
	return nil
}

func (a *app) close(stderr io.Writer) {
	if a.collector != nil {
		a.cancel()
		a.collector.Stop()
	}
	if a.stats && a.q != nil {
		s := a.q.Stats()
		fmt.Fprintf(stderr, "cache: entries=%d fetches=%d hits=%d misses=%d invalidations=%d rollbacks=%d\n",
			s.Entries, s.Fetches, s.Hits, s.Misses, s.Invalidations, s.Rollbacks)
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

// printJSON writes v to the command's output as indented JSON.
func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// done prints a one-line confirmation for mutations without a result.
func done(cmd *cobra.Command, format string, args ...any) error {
	_, err := fmt.Fprintf(cmd.OutOrStdout(), format+"\n", args...)
	return err
}
