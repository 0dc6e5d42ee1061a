package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricFilesScannedTotal = "probe.search.files_scanned.total"
	metricBlocksTotal       = "probe.search.blocks.total"
	metricBlockDuration     = "probe.search.stage.duration.seconds"
	metricQueryCacheHits    = "probe.search.query_cache.hits.total"
	metricQueryCacheMisses  = "probe.search.query_cache.misses.total"

	attrStage = "stage"
)

// SearchMetrics holds OTel instruments for search-pipeline-specific metrics,
// recorded per invocation of the orchestrator (spec §4.I).
type SearchMetrics struct {
	filesScannedTotal metric.Int64Counter
	blocksTotal       metric.Int64Counter
	stageDuration     metric.Float64Histogram
	queryCacheHits    metric.Int64Counter
	queryCacheMisses  metric.Int64Counter
}

// SearchRunStats holds the statistics for a single Search invocation,
// decoupled from the pkg/search types so observability never imports the
// search package.
type SearchRunStats struct {
	FilesScanned    int64
	BlocksExtracted int
	BlocksReturned  int
	StageDurations  map[string]time.Duration
}

// NewSearchMetrics creates search metric instruments from the given meter.
func NewSearchMetrics(mt metric.Meter) (*SearchMetrics, error) {
	filesScanned, err := mt.Int64Counter(metricFilesScannedTotal,
		metric.WithDescription("Total files scanned for query matches"),
		metric.WithUnit("{file}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricFilesScannedTotal, err)
	}

	blocks, err := mt.Int64Counter(metricBlocksTotal,
		metric.WithDescription("Total blocks extracted and returned, by stage"),
		metric.WithUnit("{block}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricBlocksTotal, err)
	}

	stageDur, err := mt.Float64Histogram(metricBlockDuration,
		metric.WithDescription("Per-stage search pipeline duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricBlockDuration, err)
	}

	hits, err := mt.Int64Counter(metricQueryCacheHits,
		metric.WithDescription("Query cache hits"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricQueryCacheHits, err)
	}

	misses, err := mt.Int64Counter(metricQueryCacheMisses,
		metric.WithDescription("Query cache misses"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricQueryCacheMisses, err)
	}

	return &SearchMetrics{
		filesScannedTotal: filesScanned,
		blocksTotal:       blocks,
		stageDuration:     stageDur,
		queryCacheHits:    hits,
		queryCacheMisses:  misses,
	}, nil
}

// RecordRun records pipeline statistics for a completed Search call. Safe to
// call on a nil receiver (no-op), so callers can skip wiring metrics in CLI
// mode without guarding every call site.
func (sm *SearchMetrics) RecordRun(ctx context.Context, stats SearchRunStats) {
	if sm == nil {
		return
	}

	sm.filesScannedTotal.Add(ctx, stats.FilesScanned)

	extractedAttrs := metric.WithAttributes(attribute.String(attrStage, "extracted"))
	sm.blocksTotal.Add(ctx, int64(stats.BlocksExtracted), extractedAttrs)

	returnedAttrs := metric.WithAttributes(attribute.String(attrStage, "returned"))
	sm.blocksTotal.Add(ctx, int64(stats.BlocksReturned), returnedAttrs)

	for stage, d := range stats.StageDurations {
		sm.stageDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String(attrStage, stage)))
	}
}

// RecordQueryCacheHit records a query cache lookup outcome. Safe to call on
// a nil receiver.
func (sm *SearchMetrics) RecordQueryCacheHit(ctx context.Context, hit bool) {
	if sm == nil {
		return
	}

	if hit {
		sm.queryCacheHits.Add(ctx, 1)

		return
	}

	sm.queryCacheMisses.Add(ctx, 1)
}
