package tenantcache

import (
	"context"
	"log/slog"
	"math/rand"
	"time"
)

const (
	daemonCycle         = 30 * time.Second
	statsSummaryCycles  = 10
	daemonStartupJitter = 60 * time.Second // startup delay spans 30..90s
	daemonStartupFloor  = 30 * time.Second
)

// TenantLister enumerates active tenants and their map ids for the
// pre-generator's daemon cycle.
type TenantLister func(ctx context.Context) (map[string][]string, error)

// RunPreGenerator runs the single background pre-generation daemon:
// randomised 30..90s startup delay, then a 30s cycle invoking
// GenerateMissingTiles for every active tenant's maps, emitting a
// stats summary every 10 cycles. Blocks until ctx is cancelled.
func (c *Cache) RunPreGenerator(ctx context.Context, listTenants TenantLister, bulkLoad BulkZoomZeroLoader) {
	startupDelay := daemonStartupFloor + time.Duration(rand.Int63n(int64(daemonStartupJitter)))
	timer := time.NewTimer(startupDelay)
	defer timer.Stop()

	cycle := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			c.preGenerateCycle(ctx, listTenants, bulkLoad)
			cycle++
			if cycle%statsSummaryCycles == 0 {
				c.logStatsSummary()
			}
			timer.Reset(daemonCycle)
		}
	}
}

func (c *Cache) preGenerateCycle(ctx context.Context, listTenants TenantLister, bulkLoad BulkZoomZeroLoader) {
	tenants, err := listTenants(ctx)
	if err != nil {
		slog.Warn("tenantcache: pre-generator failed to list tenants", "error", err)
		return
	}
	for tenantID, mapIDs := range tenants {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if _, err := c.GenerateMissingTiles(ctx, tenantID, mapIDs, bulkLoad); err != nil {
			slog.Warn("tenantcache: pre-generation failed", "tenant", tenantID, "error", err)
		}
	}
}

func (c *Cache) logStatsSummary() {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	for tenantID, s := range c.stats {
		slog.Info("tenantcache: stats summary",
			"tenant", tenantID,
			"memoryHit", s.MemoryHit, "diskHit", s.DiskHit, "negativeHit", s.NegativeHit,
			"coalesced", s.Coalesced, "generated", s.Generated, "failed", s.Failed,
			"dirtyInvalidated", s.DirtyInvalidated, "generationTime", s.GenerationTime)
	}
}
