package observability_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/probe-search/probe/pkg/observability"
)

// acceptanceSpanCount is the expected number of spans in the acceptance test
// (root + scan + rank).
const acceptanceSpanCount = 3

// acceptanceFilesScanned is the simulated files-scanned count used in log
// assertions.
const acceptanceFilesScanned = 42

// TestAcceptance_EndToEnd verifies all three observability signals (traces,
// metrics, structured logs with trace context) work together across a
// simulated search pipeline run.
func TestAcceptance_EndToEnd(t *testing.T) {
	t.Parallel()

	// Setup: in-memory trace exporter.
	spanExporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(spanExporter))

	t.Cleanup(func() { require.NoError(t, tp.Shutdown(context.Background())) })

	tracer := tp.Tracer("probe")

	// Setup: in-memory metric reader.
	metricReader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(metricReader))
	meter := mp.Meter("probe")

	red, err := observability.NewREDMetrics(meter)
	require.NoError(t, err)

	search, err := observability.NewSearchMetrics(meter)
	require.NoError(t, err)

	// Setup: structured logger with trace context.
	var logBuf bytes.Buffer

	innerHandler := slog.NewJSONHandler(&logBuf, &slog.HandlerOptions{Level: slog.LevelDebug})
	tracingHandler := observability.NewTracingHandler(innerHandler, "probe", "test", observability.ModeCLI)
	logger := slog.New(tracingHandler)

	// Simulate a search: root span, scan span, rank span, metrics, logs.
	ctx, rootSpan := tracer.Start(context.Background(), "mcp.search_code")

	_, scanSpan := tracer.Start(ctx, "probe.scan")
	scanSpan.End()

	_, rankSpan := tracer.Start(ctx, "probe.rank")
	rankSpan.End()

	// Record metrics within the trace context.
	red.RecordRequest(ctx, "mcp.search_code", "ok", time.Second)

	search.RecordRun(ctx, observability.SearchRunStats{
		FilesScanned:    acceptanceFilesScanned,
		BlocksExtracted: 12,
		BlocksReturned:  5,
		StageDurations:  map[string]time.Duration{"scan": 100 * time.Millisecond, "rank": 10 * time.Millisecond},
	})
	search.RecordQueryCacheHit(ctx, true)

	// Emit a log line within the trace context.
	logger.InfoContext(ctx, "search.complete", "files_scanned", acceptanceFilesScanned)

	rootSpan.End()

	// Assert: Traces.
	spans := spanExporter.GetSpans()
	require.Len(t, spans, acceptanceSpanCount, "expected root + 2 child spans")

	spanNames := make(map[string]bool, len(spans))
	for _, s := range spans {
		spanNames[s.Name] = true
	}

	assert.True(t, spanNames["mcp.search_code"], "root span should exist")
	assert.True(t, spanNames["probe.scan"], "scan span should exist")
	assert.True(t, spanNames["probe.rank"], "rank span should exist")

	// All spans share the same trace ID.
	traceID := spans[0].SpanContext.TraceID()
	for _, s := range spans[1:] {
		assert.Equal(t, traceID, s.SpanContext.TraceID(),
			"span %q should share trace ID", s.Name)
	}

	// Assert: Metrics.
	var rm metricdata.ResourceMetrics

	err = metricReader.Collect(ctx, &rm)
	require.NoError(t, err)

	reqTotal := findMetric(rm, "probe.requests.total")
	require.NotNil(t, reqTotal, "request counter should be recorded")

	reqDuration := findMetric(rm, "probe.request.duration.seconds")
	require.NotNil(t, reqDuration, "duration histogram should be recorded")

	// Assert: Search metrics.
	filesScanned := findMetric(rm, "probe.search.files_scanned.total")
	require.NotNil(t, filesScanned, "files scanned counter should be recorded")

	blocksTotal := findMetric(rm, "probe.search.blocks.total")
	require.NotNil(t, blocksTotal, "blocks counter should be recorded")

	stageDuration := findMetric(rm, "probe.search.stage.duration.seconds")
	require.NotNil(t, stageDuration, "stage duration histogram should be recorded")

	cacheHits := findMetric(rm, "probe.search.query_cache.hits.total")
	require.NotNil(t, cacheHits, "query cache hits counter should be recorded")

	cacheMisses := findMetric(rm, "probe.search.query_cache.misses.total")
	require.NotNil(t, cacheMisses, "query cache misses counter should be recorded")

	// Assert: Logs contain trace_id.
	var logRecord map[string]any

	err = json.Unmarshal(logBuf.Bytes(), &logRecord)
	require.NoError(t, err)

	assert.Equal(t, traceID.String(), logRecord["trace_id"],
		"log line should contain the active trace_id")
	assert.Contains(t, logRecord, "span_id",
		"log line should contain span_id")
	assert.Equal(t, "probe", logRecord["service"],
		"log line should contain service name")

	filesScannedLogged, ok := logRecord["files_scanned"].(float64)
	require.True(t, ok, "files_scanned should be a number")
	assert.InDelta(t, acceptanceFilesScanned, filesScannedLogged, 0,
		"log line should contain custom attributes")
}
