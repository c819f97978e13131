package main

import (
	"context"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/cadms/dashcache/client"
	"github.com/cadms/dashcache/config"
	"github.com/cadms/dashcache/coordinator"
	"github.com/cadms/dashcache/gateway"
	"github.com/cadms/dashcache/persist"
	"github.com/cadms/dashcache/querycache"
	"github.com/cadms/dashcache/server"
)

func main() {
	configPath := pflag.StringP("config", "f", "", "daemon config file path")
	listAddr := pflag.StringP("listenaddr", "l", ":8080", "http listen address")
	tlsListAddr := pflag.StringP("tlsaddr", "t", ":8443", "https listen address")
	tlsKey := pflag.StringP("tlskey", "k", "", "TLS private key file path")
	tlsCert := pflag.StringP("tlscert", "c", "", "TLS certificate file path")
	tlsOnly := pflag.BoolP("tlsonly", "s", false, "Only serve TLS")
	verbose := pflag.BoolP("verbose", "v", false, "Verbose output")
	pflag.Parse()

	if *verbose {
		log.SetLevel(log.DebugLevel)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	cache := querycache.New(querycache.Options{
		DefaultStaleTime: cfg.Cache.DefaultStaleTime.Std(),
		RetentionTime:    cfg.Cache.RetentionTime.Std(),
		SweepInterval:    cfg.Cache.SweepInterval.Std(),
	})
	cache.StartSweep()
	defer cache.StopSweep()

	gw, err := gateway.New(gateway.Config{
		BaseURL:   cfg.Backend.URL,
		TokenFile: cfg.Backend.TokenFile,
		DevMode:   cfg.Backend.DevMode,
	})
	if err != nil {
		log.Fatal(err)
	}

	coord := coordinator.New(cache, gw)
	defer coord.Close()

	if cfg.Cache.MemoryLimitBytes > 0 {
		coord.ScheduleOptimize(coordinator.OptimizeConfig{
			MemoryLimit:              cfg.Cache.MemoryLimitBytes,
			EnableMemoryOptimization: true,
		}, cfg.Cache.SweepInterval.Std())
	}

	var bridge *persist.Bridge
	if cfg.Persistence.Dir != "" {
		store, err := persist.NewFileStore(cfg.Persistence.Dir)
		if err != nil {
			log.Fatal(err)
		}
		bridge = persist.NewBridge(cache, store)
		if cfg.Persistence.Enabled {
			bridge.Enable(persist.Config{
				Slices:   cfg.Persistence.Slices,
				MaxAge:   cfg.Persistence.MaxAge.Std(),
				Compress: cfg.Persistence.Compress,
			})
		}
		if bridge.Enabled() {
			restored := bridge.Load()
			log.Infof("restored %d persisted cache entries", restored)
		}
	}

	cl := client.New(cache, gw)
	coord.SetupWarming(warmingEntries(cfg.Warming, gw))

	s, err := server.New(&server.Config{
		ListenAddr:    *listAddr,
		TLSListenAddr: *tlsListAddr,
		TLSOnly:       *tlsOnly,
		TLS: &server.TLSConfig{
			KeyFile:  *tlsKey,
			CertFile: *tlsCert,
		},
		Verbose: *verbose,
	}, cl, coord, bridge)
	if err != nil {
		log.Fatal(err)
	}

	s.ListenAndServe()
}

// warmingEntries maps configured warming queries onto coordinator
// entries with their slice's fetcher.
func warmingEntries(warming []config.Warming, gw *gateway.Client) []coordinator.WarmingEntry {
	entries := make([]coordinator.WarmingEntry, 0, len(warming))
	for _, w := range warming {
		var (
			key   = querycache.Key{}
			fetch querycache.Fetcher
		)
		userID := w.UserID

		switch w.Slice {
		case client.SliceDashboard:
			key = client.DashboardKey(userID)
			fetch = func(ctx context.Context) (any, error) { return gw.Dashboard(ctx, userID) }
		case client.SliceSystemOverview:
			key = client.SystemOverviewKey()
			fetch = func(ctx context.Context) (any, error) { return gw.SystemOverview(ctx) }
		case client.SliceUserStats:
			key = client.UserStatsKey(userID)
			fetch = func(ctx context.Context) (any, error) { return gw.UserStatistics(ctx, userID) }
		case client.SliceActionableItems:
			key = client.ActionableItemsKey(userID)
			fetch = func(ctx context.Context) (any, error) { return gw.ActionableItems(ctx, userID) }
		case client.SliceActivityFeed:
			key = client.ActivityFeedKey(userID)
			fetch = func(ctx context.Context) (any, error) { return gw.ActivityFeed(ctx, userID) }
		default:
			log.Errorf("unknown warming slice %q, skipping", w.Slice)
			continue
		}

		entries = append(entries, coordinator.WarmingEntry{
			Key:      key,
			Priority: w.Priority,
			Interval: w.Interval.Std(),
			Fetch:    fetch,
		})
	}
	return entries
}
