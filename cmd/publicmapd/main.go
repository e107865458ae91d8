package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/haven-hearth/publicmap/internal/catalog"
	"github.com/haven-hearth/publicmap/internal/compose"
	"github.com/haven-hearth/publicmap/internal/generate"
	"github.com/haven-hearth/publicmap/internal/orchestrator"
	"github.com/haven-hearth/publicmap/internal/tenantcache"
	"github.com/haven-hearth/publicmap/internal/texture"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	var (
		gridStorage   string
		dbPath        string
		assetStoreURL string
		viewerBaseURL string
		tickInterval  time.Duration
		envFile       string
		verbose       bool
		showVersion   bool
	)

	flag.StringVar(&gridStorage, "grid-storage", "map", "Absolute path to the tile/grid/texture storage root")
	flag.StringVar(&dbPath, "db", "publicmap.db", "Path to the SQLite catalog database")
	flag.StringVar(&assetStoreURL, "asset-store-url", "", "Base URL of the tenant texture asset store")
	flag.StringVar(&viewerBaseURL, "viewer-base-url", "", "Base URL of the viewer front-end (for cache invalidation POSTs)")
	flag.DurationVar(&tickInterval, "tick-interval", 30*time.Second, "Orchestrator queue-drain and auto-regen scan interval")
	flag.StringVar(&envFile, "env-file", ".env", "Optional .env file loaded into the process environment after flags are parsed")
	flag.BoolVar(&verbose, "verbose", false, "Enable debug-level logging")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("publicmapd %s (commit %s)\n", version, commit)
		os.Exit(0)
	}

	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		slog.Warn("publicmapd: loading env file", "path", envFile, "error", err)
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	store, err := catalog.Open(dbPath)
	if err != nil {
		slog.Error("publicmapd: opening catalog", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	textures, err := texture.New(gridStorage+"/hmap-tile-cache", texture.NewHTTPFetcher(assetStoreURL))
	if err != nil {
		slog.Error("publicmapd: creating texture cache", "error", err)
		os.Exit(1)
	}

	gen := &generate.Generator{
		Store:       store,
		GridStorage: gridStorage,
		Textures:    textures,
		Invalidate:  orchestrator.NewInvalidator(viewerBaseURL),
	}

	orch := orchestrator.New(gen.Run, listForAutoRegen(store), tickInterval)

	cache, err := tenantcache.New(gridStorage, func(ctx context.Context, tenantID, mapID string, tx, ty int) (map[compose.Cell]compose.Entry, error) {
		return generate.TenantZoomZeroEntries(store, gridStorage, tenantID, mapID, tx, ty)
	})
	if err != nil {
		slog.Error("publicmapd: creating tenant cache", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go orch.RunLoop(ctx)
	go cache.RunPreGenerator(ctx, tenantListerFor(store), func(ctx context.Context, tenantID, mapID string) (map[compose.Cell]compose.Entry, error) {
		return generate.TenantBulkZoomZeroEntries(store, gridStorage, tenantID, mapID)
	})

	slog.Info("publicmapd: started", "gridStorage", gridStorage, "db", dbPath, "tickInterval", tickInterval)
	<-ctx.Done()

	slog.Info("publicmapd: shutting down")
	orch.Stop()
	orch.Wait()
}

// listForAutoRegen adapts the catalog's public-map listing to the
// orchestrator's Lister shape.
func listForAutoRegen(store *catalog.Store) orchestrator.Lister {
	return func(ctx context.Context) ([]orchestrator.MapInfo, error) {
		maps, err := store.ListPublicMaps()
		if err != nil {
			return nil, err
		}
		out := make([]orchestrator.MapInfo, len(maps))
		for i, m := range maps {
			out[i] = orchestrator.MapInfo{
				ID:                        m.ID,
				IsActive:                  m.IsActive,
				AutoRegenerate:            m.AutoRegenerate,
				RegenerateIntervalMinutes: m.RegenerateIntervalMinutes,
				LastGeneratedAt:           m.LastGeneratedAt,
				GenerationStatus:          m.GenerationStatus,
			}
		}
		return out, nil
	}
}

// tenantListerFor adapts the catalog's tenant/map index to the tenant
// cache's background pre-generator daemon.
func tenantListerFor(store *catalog.Store) tenantcache.TenantLister {
	return func(ctx context.Context) (map[string][]string, error) {
		return store.ListTenantMapIDs()
	}
}
