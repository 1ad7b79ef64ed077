package cli

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/vpnda/akahu-sync/db"
	"github.com/vpnda/akahu-sync/pkg/config"
	"github.com/vpnda/akahu-sync/pkg/http"
	"github.com/vpnda/akahu-sync/pkg/http/actual"
	"github.com/vpnda/akahu-sync/pkg/http/akahu"
	"github.com/vpnda/akahu-sync/pkg/http/llm"
	"github.com/vpnda/akahu-sync/pkg/http/ynab"
	"github.com/vpnda/akahu-sync/pkg/metrics"
	"github.com/vpnda/akahu-sync/pkg/services"
	"github.com/vpnda/akahu-sync/pkg/store"
	"github.com/vpnda/akahu-sync/pkg/utils"
)

type clients struct {
	source  *akahu.Client
	targets []http.TargetClient
}

// newClients builds the source client and one client per enabled target, in
// matching order.
func newClients(cfg *config.Config) clients {
	hc := utils.NewHTTPClient(cfg.DebugHTTP, cfg.HTTPTimeout)
	loc := cfg.Sync.Location()

	c := clients{source: akahu.NewClient(cfg.Akahu, hc)}
	if cfg.YNAB.IsEnabled() {
		c.targets = append(c.targets, ynab.NewClient(cfg.YNAB, loc, hc))
	} else {
		log.Info().Msg("YNAB disabled, keeping stored accounts")
	}
	if cfg.Actual.IsEnabled() {
		c.targets = append(c.targets, actual.NewClient(cfg.Actual, loc, hc))
	} else {
		log.Info().Msg("Actual disabled, keeping stored accounts")
	}
	return c
}

// newStrategy puts the LLM in front of fuzzy matching when it is enabled.
func newStrategy(cfg *config.Config, noLLM bool) services.Strategy {
	var primary services.Strategy
	if cfg.LLM.Enabled && !noLLM {
		primary = services.NewLLMStrategy(llm.NewClient(cfg.LLM, utils.NewHTTPClient(cfg.DebugHTTP, cfg.LLM.Timeout)))
	}
	return services.NewFallbackStrategy(primary, services.NewFuzzyStrategy())
}

func openLedger(cfg *config.Config) (*db.DB, error) {
	database, err := db.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("error connecting to database: %w", err)
	}
	if err := database.Initialize(); err != nil {
		database.Close()
		return nil, fmt.Errorf("error initializing database: %w", err)
	}
	return database, nil
}

func newSyncer(cfg *config.Config, database db.DBInterface) (*services.Syncer, error) {
	start, err := time.Parse(time.RFC3339, cfg.Sync.StartDate)
	if err != nil {
		return nil, fmt.Errorf("invalid sync start date: %w", err)
	}
	c := newClients(cfg)
	return services.NewSyncer(store.New(cfg.MappingFile), c.source, c.targets, database, start), nil
}

func writeMetrics(cfg *config.Config) {
	if err := metrics.WriteTextfile(cfg.Metrics.Textfile); err != nil {
		log.Warn().Err(err).Str("path", cfg.Metrics.Textfile).Msg("Failed to write metrics textfile")
	}
}
