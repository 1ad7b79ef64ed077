package services

import (
	"github.com/vpnda/akahu-sync/pkg/models"
)

// TargetStatus counts how the source accounts stand against one target.
type TargetStatus struct {
	Provider models.Provider `json:"provider"`
	Accounts int             `json:"accounts"`
	Mapped   int             `json:"mapped"`
	DoNotMap int             `json:"do_not_map"`
	Unmapped int             `json:"unmapped"`
}

// StatusReport summarizes a stored state.
type StatusReport struct {
	SourceAccounts int            `json:"source_accounts"`
	Entries        int            `json:"entries"`
	Tracking       int            `json:"tracking"`
	Targets        []TargetStatus `json:"targets"`
}

func Summarize(state *models.State) StatusReport {
	sources := state.For(models.SourceProvider)
	report := StatusReport{
		SourceAccounts: len(sources),
		Entries:        len(state.Mapping),
	}
	for _, e := range state.Mapping {
		if e.Type() == models.AccountTypeTracking {
			report.Tracking++
		}
	}

	for _, p := range models.TargetProviders {
		ts := TargetStatus{Provider: p, Accounts: len(state.For(p))}
		for id := range sources {
			entry := state.Mapping[id]
			switch {
			case entry.IsMapped(p):
				ts.Mapped++
			case entry.IsDoNotMap(p):
				ts.DoNotMap++
			default:
				ts.Unmapped++
			}
		}
		report.Targets = append(report.Targets, ts)
	}
	return report
}
