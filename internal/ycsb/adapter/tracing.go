package adapter

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"cbycsb/internal/ycsb"
	"cbycsb/internal/ycsb/tracing"
)

var errStatus = errors.New("operation returned error status")

// TracedDB wraps a ycsb.DB with distributed tracing
// Layer order: TracedDB -> MetricsDB -> Adapter (real thing)
type TracedDB struct {
	db     ycsb.DB
	tracer *tracing.Tracer
}

// NewTracedDB creates a new traced DB that wraps a metrics DB
func NewTracedDB(db ycsb.DB, tracer *tracing.Tracer) ycsb.DB {
	return &TracedDB{
		db:     db,
		tracer: tracer,
	}
}

func (t *TracedDB) start(ctx context.Context, operation, table, key string) (context.Context, trace.Span) {
	ctx, span := t.tracer.StartSpan(ctx, "db."+operation, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(t.tracer.DatabaseAttributes(operation, table, key)...)
	return ctx, span
}

func (t *TracedDB) finish(ctx context.Context, span trace.Span, status ycsb.Status, err error) {
	if err == nil && !status.OK() {
		err = errStatus
	}

	if err != nil {
		t.tracer.RecordError(ctx, err)
	} else {
		span.SetStatus(codes.Ok, "")
	}

	span.SetAttributes(attribute.Int("ycsb.status", int(status)))
	span.SetAttributes(t.tracer.ErrorAttributes(err)...)
}

// Read implements ycsb.DB.Read with distributed tracing
func (t *TracedDB) Read(ctx context.Context, table, key string, fields []string, result ycsb.Fields) ycsb.Status {
	ctx, span := t.start(ctx, "read", table, key)
	defer span.End()

	status := t.db.Read(ctx, table, key, fields, result)
	t.finish(ctx, span, status, nil)

	return status
}

// Scan implements ycsb.DB.Scan with distributed tracing
func (t *TracedDB) Scan(ctx context.Context, table, startKey string, count int, fields []string) ([]ycsb.Fields, ycsb.Status) {
	ctx, span := t.start(ctx, "scan", table, startKey)
	defer span.End()

	span.SetAttributes(attribute.Int("ycsb.scan_count", count))

	records, status := t.db.Scan(ctx, table, startKey, count, fields)
	span.SetAttributes(attribute.Int("ycsb.records_returned", len(records)))
	t.finish(ctx, span, status, nil)

	return records, status
}

// Update implements ycsb.DB.Update with distributed tracing
func (t *TracedDB) Update(ctx context.Context, table, key string, values ycsb.Fields) (ycsb.Status, error) {
	ctx, span := t.start(ctx, "update", table, key)
	defer span.End()

	span.SetAttributes(attribute.Int("ycsb.field_count", len(values)))

	status, err := t.db.Update(ctx, table, key, values)
	t.finish(ctx, span, status, err)

	return status, err
}

// Insert implements ycsb.DB.Insert with distributed tracing
func (t *TracedDB) Insert(ctx context.Context, table, key string, values ycsb.Fields) ycsb.Status {
	ctx, span := t.start(ctx, "insert", table, key)
	defer span.End()

	span.SetAttributes(attribute.Int("ycsb.field_count", len(values)))

	status := t.db.Insert(ctx, table, key, values)
	t.finish(ctx, span, status, nil)

	return status
}

// Delete implements ycsb.DB.Delete with distributed tracing
func (t *TracedDB) Delete(ctx context.Context, table, key string) ycsb.Status {
	ctx, span := t.start(ctx, "delete", table, key)
	defer span.End()

	status := t.db.Delete(ctx, table, key)
	t.finish(ctx, span, status, nil)

	return status
}

// Cleanup implements ycsb.DB.Cleanup
func (t *TracedDB) Cleanup() error {
	return t.db.Cleanup()
}
