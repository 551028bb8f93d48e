// Package cli implements the scooby command line: the interactive browser
// and one-shot commands for listings, statistics and scrape jobs.
package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"scooby/api"
	"scooby/config"
	"scooby/httputil"
	"scooby/logging"
	"scooby/session"
	"scooby/urlstate"
)

var (
	apiURL  string
	debug   bool
	verbose bool

	rootCmd = &cobra.Command{
		Use:   "scooby [query]",
		Short: "Browse scraped property listings and run scrape jobs",
		Long: `scooby talks to the property catalog API. Without a subcommand it
opens the interactive browser, optionally starting from a query string
such as "city=manizales&min_rooms=3".`,
		Args:               cobra.MaximumNArgs(1),
		SilenceUsage:       true,
		PersistentPreRunE:  setup,
		PersistentPostRunE: teardown,
		RunE:               runTUI,
	}
)

// app holds what every command shares once setup has run.
type app struct {
	cfg     *config.Config
	client  *api.Client
	logFile *logging.RotatingWriter
}

var current app

// Execute runs the root command until it returns or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "catalog API base URL (overrides API_URL)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "copy log output to stdout")

	rootCmd.AddCommand(newTUICommand())
	rootCmd.AddCommand(newSearchCommand())
	rootCmd.AddCommand(newStatsCommand())
	rootCmd.AddCommand(newScrapeCommand())
	rootCmd.AddCommand(newTasksCommand())
	rootCmd.AddCommand(newLogsCommand())
	rootCmd.AddCommand(newWatchCommand())
}

func setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if apiURL != "" {
		cfg.API.BaseURL = apiURL
	}
	if debug || cfg.LogLevel == "debug" {
		logging.SetDebug(true)
	}

	// Log output on stdout would corrupt the interactive screen.
	interactive := !cmd.HasParent() || cmd.Name() == "tui"
	w, err := logging.Setup(cfg.LogPath, verbose && !interactive)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not set up file logging: %v\n", err)
	}
	log.Printf("%s: API %s", cmd.CommandPath(), cfg.API.BaseURL)

	current = app{
		cfg:     cfg,
		client:  api.New(cfg.API.BaseURL, httputil.NewAPIClient(&cfg.API), cfg.API.RateLimit),
		logFile: w,
	}
	return nil
}

func teardown(*cobra.Command, []string) error {
	if current.logFile != nil {
		return current.logFile.Close()
	}
	return nil
}

// newSession opens a session on store, or on an empty URL when store is nil.
func newSession(store *urlstate.Store, opts session.Options) *session.Session {
	if store == nil {
		store, _ = urlstate.New("")
	}
	if opts.Reporter == nil {
		opts.Reporter = logging.LogReporter
	}
	return session.New(current.cfg, current.client, store, opts)
}

func queryArg(args []string) (*urlstate.Store, error) {
	raw := ""
	if len(args) > 0 {
		raw = args[0]
	}
	store, err := urlstate.New(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid query %q: %w", raw, err)
	}
	return store, nil
}

// events returns a Notify func and the channel it feeds. Events are dropped
// while the channel is full.
func events() (func(session.Event), <-chan session.Event) {
	ch := make(chan session.Event, 16)
	return func(e session.Event) {
		select {
		case ch <- e:
		default:
		}
	}, ch
}
