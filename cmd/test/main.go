package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/samber/lo"

	"github.com/vpnda/akahu-sync/pkg/config"
	"github.com/vpnda/akahu-sync/pkg/http"
	"github.com/vpnda/akahu-sync/pkg/http/actual"
	"github.com/vpnda/akahu-sync/pkg/http/akahu"
	"github.com/vpnda/akahu-sync/pkg/http/ynab"
	"github.com/vpnda/akahu-sync/pkg/utils"
)

// Lists every provider's accounts to check the credentials in config.yaml.
func main() {
	path := config.DefaultPath
	if len(os.Args) > 1 {
		path = os.Args[1]
	}
	cfg := lo.Must(config.LoadConfig(path))
	lo.Must(config.SetupLogger(cfg.Logging))

	hc := utils.NewHTTPClient(cfg.DebugHTTP, cfg.HTTPTimeout)
	loc := cfg.Sync.Location()
	fetchers := []http.AccountFetcher{akahu.NewClient(cfg.Akahu, hc)}
	if cfg.YNAB.IsEnabled() {
		fetchers = append(fetchers, ynab.NewClient(cfg.YNAB, loc, hc))
	}
	if cfg.Actual.IsEnabled() {
		fetchers = append(fetchers, actual.NewClient(cfg.Actual, loc, hc))
	}

	for _, f := range fetchers {
		accounts := lo.Must(f.FetchAccounts(context.Background()))
		fmt.Printf("%s (%d accounts)\n", utils.Capitalize(f.Provider().String()), len(accounts))
		fmt.Printf("%-40s %-40s %-20s\n", "ID", "Name", "Connection")
		fmt.Println(strings.Repeat("-", 100))
		for _, acc := range accounts.SortedByName() {
			fmt.Printf("%-40s %-40s %-20s\n",
				utils.Truncate(acc.ID, 40),
				utils.Truncate(acc.Name, 40),
				utils.Truncate(acc.Connection, 20))
		}
		fmt.Println()
	}
}
