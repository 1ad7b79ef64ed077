package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/vpnda/akahu-sync/db"
	"github.com/vpnda/akahu-sync/pkg/models"
)

type replState struct {
	ctx context.Context
	in  *bufio.Reader
	out io.Writer
	db  db.DBInterface
}

func runREPL(ctx context.Context, in io.Reader, out io.Writer) error {
	database, err := openLedger(cfg)
	if err != nil {
		return err
	}
	// Close the database once you are done
	defer database.Close()

	// the console decider reads from the same buffer, so prompts and commands never race
	r := &replState{ctx: ctx, in: bufio.NewReader(in), out: out, db: database}

	fmt.Fprintln(out, "Welcome to the akahu-sync REPL!")
	fmt.Fprintln(out, "Type 'help' for commands, 'exit' or 'quit' to exit.")
	fmt.Fprintln(out)

	for {
		if ctx.Err() != nil {
			return nil
		}
		fmt.Fprint(out, "> ")

		line, err := r.in.ReadString('\n')
		trimmedLine := strings.TrimSpace(line)
		if trimmedLine != "" {
			if r.handle(trimmedLine) {
				return nil
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("error reading input: %w", err)
		}
	}
}

// handle runs one command and reports whether the REPL should exit.
func (r *replState) handle(line string) bool {
	parts := strings.Fields(line)
	switch parts[0] {
	case "exit", "quit":
		return true
	case "help":
		r.printHelp()
	case "config":
		if err := showConfig(r.out); err != nil {
			log.Error().Err(err).Msg("Error loading configuration")
		}
	case "status":
		if err := runStatus(r.out, false); err != nil {
			log.Error().Err(err).Msg("Error reading mapping")
		}
	case "map":
		r.mapAccounts(parts[1:])
	case "sync":
		r.sync()
	case "ledger", "list":
		r.listLedger(parts[1:])
	case "adjustments":
		r.listAdjustments(parts[1:])
	case "forget", "remove":
		r.forget(parts[1:])
	default:
		fmt.Fprintf(r.out, "Unknown command %q. Type 'help' for a list of commands.\n", parts[0])
	}
	return false
}

func (r *replState) mapAccounts(args []string) {
	var opts mapOptions
	for _, a := range args {
		switch a {
		case "force", "--force":
			opts.force = true
		case "auto", "--auto":
			opts.auto = true
		case "no-llm", "--no-llm":
			opts.noLLM = true
		default:
			fmt.Fprintln(r.out, "Usage: map [force] [auto] [no-llm]")
			return
		}
	}
	if err := runMapWith(r.ctx, opts, newDecider(opts.auto, r.in, r.out), r.out); err != nil {
		log.Error().Err(err).Msg("Error mapping accounts")
	}
}

func (r *replState) sync() {
	syncer, err := newSyncer(cfg, r.db)
	if err != nil {
		log.Error().Err(err).Msg("Error creating syncer")
		return
	}
	report, err := syncer.Sync(r.ctx)
	writeMetrics(cfg)
	if err != nil {
		log.Error().Err(err).Msg("Error syncing transactions")
		return
	}
	printSyncReport(r.out, report)
}

func (r *replState) providerArg(args []string, usage string) (models.Provider, bool) {
	if len(args) < 1 {
		fmt.Fprintln(r.out, usage)
		return "", false
	}
	p, err := parseProvider(args[0])
	if err != nil {
		fmt.Fprintln(r.out, err)
		return "", false
	}
	return p, true
}

func (r *replState) listLedger(args []string) {
	p, ok := r.providerArg(args, "Usage: ledger <provider> [target_account_id]")
	if !ok {
		return
	}
	account := ""
	if len(args) > 1 {
		account = args[1]
	}
	records, err := r.db.ListSynced(p, account)
	if err != nil {
		log.Error().Err(err).Msg("Error fetching synced transactions")
		return
	}
	printLedger(r.out, records)
}

func (r *replState) listAdjustments(args []string) {
	p, ok := r.providerArg(args, "Usage: adjustments <provider>")
	if !ok {
		return
	}
	adjustments, err := r.db.GetAdjustments(p)
	if err != nil {
		log.Error().Err(err).Msg("Error fetching balance adjustments")
		return
	}
	printAdjustments(r.out, adjustments)
}

func (r *replState) forget(args []string) {
	if len(args) != 2 {
		fmt.Fprintln(r.out, "Usage: forget <provider> <akahu_id>")
		return
	}
	p, ok := r.providerArg(args, "")
	if !ok {
		return
	}
	if err := r.db.RemoveSynced(args[1], p); err != nil {
		log.Error().Err(err).Msg("Error removing transaction")
		return
	}
	log.Info().Str("akahu_id", args[1]).Str("provider", p.String()).Msg("Transaction removed from ledger")
}

func (r *replState) printHelp() {
	fmt.Fprintln(r.out, "Available commands:")
	fmt.Fprintln(r.out, "  help                         - Show this help message")
	fmt.Fprintln(r.out, "  config                       - Show the current configuration")
	fmt.Fprintln(r.out, "  status                       - Summarize the mapping file")
	fmt.Fprintln(r.out, "  map [force] [auto] [no-llm]  - Fetch accounts and match unmapped ones")
	fmt.Fprintln(r.out, "  sync                         - Push transactions and balances to every target")
	fmt.Fprintln(r.out, "  ledger <provider> [account]  - List transactions already pushed")
	fmt.Fprintln(r.out, "  adjustments <provider>       - List balance adjustments")
	fmt.Fprintln(r.out, "  forget <provider> <akahu_id> - Forget a pushed transaction")
	fmt.Fprintln(r.out, "  exit, quit                   - Exit the REPL")
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, "Providers: ynab, actual")
}

