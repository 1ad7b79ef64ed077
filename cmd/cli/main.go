package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/vpnda/akahu-sync/pkg/config"
	"github.com/vpnda/akahu-sync/pkg/server"
	"github.com/vpnda/akahu-sync/pkg/services"
	"github.com/vpnda/akahu-sync/pkg/store"
)

var (
	configPath  string
	mappingPath string
	dbPath      string
	cfg         *config.Config
	logCloser   io.Closer
	rootCmd     *cobra.Command
)

// Execute executes the root command. SIGINT and SIGTERM cancel the command context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd = &cobra.Command{
		Use:   "akahu-sync",
		Short: "Map Akahu accounts onto YNAB and Actual Budget accounts",
		Long: `A CLI tool that keeps a mapping between Akahu bank accounts and the accounts of
one or more budgeting apps, and syncs transactions and balances along it.`,
		SilenceUsage:      true,
		PersistentPreRunE: loadConfig,
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logCloser != nil {
				_ = logCloser.Close()
			}
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "Path to the configuration file")
	rootCmd.PersistentFlags().StringVar(&mappingPath, "mapping", "", "Path to the mapping file (overrides mappingFile)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Path to the SQLite ledger (overrides dbPath)")

	var mapOpts mapOptions
	mapCmd := &cobra.Command{
		Use:   "map",
		Short: "Fetch accounts and update the mapping",
		Long: `Fetch the accounts of every enabled provider, merge them into the mapping file
and prompt for a match for every unmapped Akahu account.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMap(cmd.Context(), mapOpts)
		},
	}
	mapCmd.Flags().BoolVar(&mapOpts.force, "force", false, "Run the matching pass even when nothing changed")
	mapCmd.Flags().BoolVar(&mapOpts.init, "init", false, "Write an empty mapping file and exit")
	mapCmd.Flags().BoolVar(&mapOpts.auto, "auto", false, "Accept suggestions without prompting")
	mapCmd.Flags().BoolVar(&mapOpts.noLLM, "no-llm", false, "Use fuzzy matching only")

	syncCmd := &cobra.Command{
		Use:   "sync",
		Short: "Push transactions and balances into every mapped account",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd.Context())
		},
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve status, on-demand sync and metrics over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	var statusJSON bool
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Summarize the mapping file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.OutOrStdout(), statusJSON)
		},
	}
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Print the summary as JSON")

	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Show the current configuration",
		Long:  `Show the configuration loaded from config.yaml, with secrets masked.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showConfig(cmd.OutOrStdout())
		},
	}

	replCmd := &cobra.Command{
		Use:   "repl",
		Short: "Start an interactive REPL",
		Long:  `Start an interactive REPL for mapping, syncing and inspecting the ledger.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runREPL(cmd.Context(), os.Stdin, os.Stdout)
		},
	}

	rootCmd.AddCommand(mapCmd, syncCmd, serveCmd, statusCmd, configCmd, replCmd, newLedgerCmd())
}

func loadConfig(cmd *cobra.Command, args []string) error {
	c, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if mappingPath != "" {
		c.MappingFile = mappingPath
	}
	if dbPath != "" {
		c.DBPath = dbPath
	}
	closer, err := config.SetupLogger(c.Logging)
	if err != nil {
		log.Warn().Err(err).Msg("Logging to console only")
	}
	cfg, logCloser = c, closer
	return nil
}

type mapOptions struct {
	force bool
	init  bool
	auto  bool
	noLLM bool
}

// decider answers both matching prompts and deletion confirmations.
type decider interface {
	services.DecisionProvider
	services.Confirmer
}

func newDecider(auto bool, in io.Reader, out io.Writer) decider {
	if auto {
		return services.AutoDecider{}
	}
	return services.NewConsoleDecider(in, out)
}

func runMap(ctx context.Context, opts mapOptions) error {
	return runMapWith(ctx, opts, newDecider(opts.auto, os.Stdin, os.Stdout), os.Stdout)
}

func runMapWith(ctx context.Context, opts mapOptions, d decider, out io.Writer) error {
	st := store.New(cfg.MappingFile)
	rec := &services.Reconciliation{Store: st}
	if opts.init {
		if err := rec.Init(); err != nil {
			return err
		}
		fmt.Fprintf(out, "Created %s\n", st.Path())
		return nil
	}

	c := newClients(cfg)
	rec.Source = c.source
	rec.Targets = c.targets
	rec.Reconciler = services.NewReconciler(d)
	rec.Matcher = services.NewMatcher(newStrategy(cfg, opts.noLLM), d)
	rec.MetricsTextfile = cfg.Metrics.Textfile

	report, err := rec.Run(ctx, services.RunOptions{Force: opts.force})
	if err != nil {
		return err
	}
	printRunReport(out, report)
	if !report.Saved {
		return fmt.Errorf("failed to save %s", st.Path())
	}
	return nil
}

func runSync(ctx context.Context) error {
	database, err := openLedger(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	syncer, err := newSyncer(cfg, database)
	if err != nil {
		return err
	}
	report, err := syncer.Sync(ctx)
	writeMetrics(cfg)
	if err != nil {
		return err
	}
	printSyncReport(os.Stdout, report)
	return nil
}

func runServe(ctx context.Context) error {
	database, err := openLedger(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	syncer, err := newSyncer(cfg, database)
	if err != nil {
		return err
	}
	return server.New(store.New(cfg.MappingFile), syncer).Run(ctx, cfg.Server.Addr)
}

func runStatus(out io.Writer, asJSON bool) error {
	state, err := store.New(cfg.MappingFile).Load()
	if err != nil {
		return err
	}
	report := services.Summarize(state)
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	printStatus(out, report)
	return nil
}

// showConfig displays the current configuration
func showConfig(out io.Writer) error {
	masked, err := cfg.Masked()
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "Current Configuration:")
	fmt.Fprintln(out, "----------------------")
	fmt.Fprint(out, masked)
	return nil
}
