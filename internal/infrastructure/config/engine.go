package config

import (
	"github.com/erp/ordersync/internal/application/ordersync"
	"github.com/erp/ordersync/internal/infrastructure/marketplace"
)

// EngineConfig maps the sync.* keys onto the orchestrator configuration.
// Settings without a key keep the engine defaults.
func (s SyncConfig) EngineConfig() ordersync.Config {
	c := ordersync.DefaultConfig()
	c.HistoryStart = s.HistoryStart
	c.InitialLookbackDays = s.InitialLookbackDays
	c.HistoricalChunkDays = s.HistoricalChunkDays
	c.RecentHours = s.RecentHours
	c.PageSize = s.PageSize
	c.MaxResultsPerRange = s.MaxResultsPerRange
	c.MaxSplitDepth = s.MaxSplitDepth
	c.MinRangeDuration = s.MinRangeDuration
	c.MaxPageOffset = s.MaxPageOffset
	c.PersistConcurrency = s.PersistConcurrency
	c.DetailRatePerSecond = s.DetailRatePerSecond
	c.DetailBurst = s.DetailBurst
	c.LeaseTTL = s.LeaseTTL
	c.TokenRefreshSkew = s.TokenRefreshSkew
	c.ArchiveRawPayloads = s.ArchiveRawPayloads
	return c
}

// ClientConfig maps the marketplace.* keys onto the API client configuration
func (m MarketplaceConfig) ClientConfig() marketplace.Config {
	c := marketplace.DefaultConfig()
	if m.BaseURL != "" {
		c.BaseURL = m.BaseURL
	}
	if m.Timeout > 0 {
		c.Timeout = m.Timeout
	}
	if m.MaxAttempts > 0 {
		c.MaxAttempts = m.MaxAttempts
	}
	if m.RetryBase > 0 {
		c.RetryBase = m.RetryBase
	}
	c.ClientID = m.ClientID
	c.ClientSecret = m.ClientSecret
	return c
}
