package noql

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"insight/internal/schema"
	"insight/internal/types"
)

const (
	countsCacheKey  = "table_counts"
	samplesCacheKey = "table_samples"

	maxHintTables   = 10
	sampleRows      = 3
	hintConcurrency = 4
)

// Hints fetches table row counts and small row samples for prompt
// grounding, cached behind a TTL.
type Hints struct {
	exec    types.QueryExecutor
	catalog schema.Catalog
	cache   *TTLCache
	logger  *zap.Logger
}

// NewHints creates a hint provider over the given executor and catalog.
func NewHints(exec types.QueryExecutor, catalog schema.Catalog, cache *TTLCache, logger *zap.Logger) *Hints {
	return &Hints{exec: exec, catalog: catalog, cache: cache, logger: logger}
}

// TableCounts returns row counts per collection. Collections whose
// COUNT(*) fails are skipped. Results are cached.
func (h *Hints) TableCounts(ctx context.Context) map[string]int {
	if cached, ok := h.cache.Get(countsCacheKey); ok {
		if counts, ok := cached.(map[string]int); ok {
			return counts
		}
	}

	counts := make(map[string]int)
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(hintConcurrency)
	for _, name := range h.hintTables() {
		g.Go(func() error {
			result, err := h.exec.Execute(gctx, fmt.Sprintf("SELECT COUNT(*) AS count FROM %s", name))
			if err != nil {
				h.logger.Debug("count hint failed", zap.String("table", name), zap.Error(err))
				return nil
			}
			if n, ok := firstCellInt(result); ok {
				mu.Lock()
				counts[name] = n
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	h.cache.Set(countsCacheKey, counts)
	return counts
}

// Samples returns up to sampleRows rows per collection. Collections
// whose preview fails are skipped. Results are cached.
func (h *Hints) Samples(ctx context.Context) map[string]types.QueryResult {
	if cached, ok := h.cache.Get(samplesCacheKey); ok {
		if samples, ok := cached.(map[string]types.QueryResult); ok {
			return samples
		}
	}

	samples := make(map[string]types.QueryResult)
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(hintConcurrency)
	for _, name := range h.hintTables() {
		g.Go(func() error {
			result, err := h.exec.Execute(gctx, fmt.Sprintf("SELECT * FROM %s LIMIT %d", name, sampleRows))
			if err != nil {
				h.logger.Debug("sample hint failed", zap.String("table", name), zap.Error(err))
				return nil
			}
			mu.Lock()
			samples[name] = result
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	h.cache.Set(samplesCacheKey, samples)
	return samples
}

func (h *Hints) hintTables() []string {
	names := h.catalog.Names()
	if len(names) > maxHintTables {
		names = names[:maxHintTables]
	}
	return names
}

// Invalidate drops both hint entries, forcing a refetch.
func (h *Hints) Invalidate() {
	h.cache.Invalidate(countsCacheKey)
	h.cache.Invalidate(samplesCacheKey)
}

func firstCellInt(result types.QueryResult) (int, bool) {
	if len(result.Rows) == 0 || len(result.Rows[0]) == 0 {
		return 0, false
	}
	switch v := result.Rows[0][0].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}
