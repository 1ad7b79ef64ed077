package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/samber/lo"

	"github.com/vpnda/akahu-sync/pkg/models"
	"github.com/vpnda/akahu-sync/pkg/services"
	"github.com/vpnda/akahu-sync/pkg/utils"
)

func parseProvider(s string) (models.Provider, error) {
	p := models.Provider(strings.ToLower(strings.TrimSpace(s)))
	if !lo.Contains(models.TargetProviders, p) {
		names := lo.Map(models.TargetProviders, func(p models.Provider, _ int) string { return p.String() })
		return "", fmt.Errorf("unknown provider %q, expected one of: %s", s, strings.Join(names, ", "))
	}
	return p, nil
}

func printRunReport(out io.Writer, report *services.RunReport) {
	changed := lo.Map(models.AllProviders, func(p models.Provider, _ int) string {
		return fmt.Sprintf("%s=%t", p, report.Changes[p])
	})
	fmt.Fprintf(out, "Changes: %s\n", strings.Join(changed, " "))

	if res := report.Reconcile; res != nil && res.PendingDeletions() > 0 {
		state := "kept"
		if res.Confirmed {
			state = "removed"
		}
		fmt.Fprintf(out, "Deletions %s: %d\n", state, res.PendingDeletions())
	}

	for _, m := range report.Matches {
		fmt.Fprintf(out, "%s: %d confirmed, %d do not map, %d skipped, %d already settled\n",
			utils.Capitalize(m.Provider.String()), m.Confirmed, m.DoNotMap, m.Skipped, m.Settled)
		if m.Interrupted {
			fmt.Fprintln(out, "Matching stopped early, remaining accounts were left unmapped")
		}
	}
	if !report.Saved {
		fmt.Fprintln(out, "Mapping was NOT saved")
	}
}

func printSyncReport(out io.Writer, report *services.SyncReport) {
	fmt.Fprintf(out, "Synced %d entries (%d skipped, %d failed)\n", report.Entries, report.Skipped, report.Failed)
	for _, p := range models.TargetProviders {
		if report.Pushed[p] == 0 && report.Adjusted[p] == 0 {
			continue
		}
		fmt.Fprintf(out, "  %-8s %d transactions, %d balance adjustments\n", p, report.Pushed[p], report.Adjusted[p])
	}
	if !report.Saved {
		fmt.Fprintln(out, "Mapping was NOT saved")
	}
}

func printStatus(out io.Writer, report services.StatusReport) {
	fmt.Fprintf(out, "Akahu accounts: %d (%d entries, %d tracking)\n\n", report.SourceAccounts, report.Entries, report.Tracking)
	fmt.Fprintf(out, "%-10s %10s %10s %12s %10s\n", "Provider", "Accounts", "Mapped", "Do Not Map", "Unmapped")
	fmt.Fprintln(out, strings.Repeat("-", 56))
	for _, t := range report.Targets {
		fmt.Fprintf(out, "%-10s %10d %10d %12d %10d\n", t.Provider, t.Accounts, t.Mapped, t.DoNotMap, t.Unmapped)
	}
}

func printLedger(out io.Writer, records []*models.SyncRecord) {
	if len(records) == 0 {
		fmt.Fprintln(out, "No synced transactions found")
		return
	}
	fmt.Fprintf(out, "Found %d synced transactions:\n\n", len(records))
	fmt.Fprintf(out, "%-30s %-8s %-38s %15s %-12s\n", "Akahu ID", "Provider", "Target Account", "Amount", "Date")
	fmt.Fprintln(out, strings.Repeat("-", 107))
	for _, r := range records {
		fmt.Fprintf(out, "%-30s %-8s %-38s %15s %-12s\n",
			utils.Truncate(r.AkahuID, 30),
			r.Provider,
			utils.Truncate(r.TargetAccountID, 38),
			r.Amount.Display(),
			r.Date.Format("2006-01-02"))
	}
}

func printAdjustments(out io.Writer, adjustments []models.BalanceAdjustment) {
	if len(adjustments) == 0 {
		fmt.Fprintln(out, "No balance adjustments found")
		return
	}
	fmt.Fprintf(out, "%-30s %-38s %15s %15s %-20s\n", "Akahu ID", "Target Account", "From", "To", "Created")
	fmt.Fprintln(out, strings.Repeat("-", 122))
	for _, a := range adjustments {
		fmt.Fprintf(out, "%-30s %-38s %15s %15s %-20s\n",
			utils.Truncate(a.AkahuID, 30),
			utils.Truncate(a.TargetAccountID, 38),
			a.From.Display(),
			a.To.Display(),
			a.CreatedAt.Format("2006-01-02 15:04:05"))
	}
}
