package observer

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// RecordIngest counts one processed document and its chunks and records the
// pipeline duration. Safe on a nil receiver so callers can record
// unconditionally.
func (i *Instruments) RecordIngest(ctx context.Context, strategy string, chunks int, elapsed time.Duration) {
	if i == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("ingest.strategy", strategy))
	i.Documents.Add(ctx, 1, attrs)
	i.Chunks.Add(ctx, int64(chunks), attrs)
	i.IngestDuration.Record(ctx, float64(elapsed.Milliseconds()), attrs)
}

// RecordSearch counts one hybrid search and records its duration. Safe on a
// nil receiver.
func (i *Instruments) RecordSearch(ctx context.Context, results int, elapsed time.Duration) {
	if i == nil {
		return
	}
	i.Searches.Add(ctx, 1)
	i.SearchDuration.Record(ctx, float64(elapsed.Milliseconds()),
		metric.WithAttributes(attribute.Int("search.results", results)))
}
