package adapter

import (
	"context"
	"time"

	"cbycsb/internal/ycsb"
	"cbycsb/internal/ycsb/metrics"
)

// MetricsDB wraps a ycsb.DB with metrics collection
type MetricsDB struct {
	db       ycsb.DB
	registry *metrics.Registry
}

// NewMetricsDB creates a new instrumented DB. The wrapped DB counts as an
// open connection until Cleanup.
func NewMetricsDB(db ycsb.DB, registry *metrics.Registry) ycsb.DB {
	registry.ConnectionOpened()

	return &MetricsDB{
		db:       db,
		registry: registry,
	}
}

// Read implements ycsb.DB.Read with metrics collection
func (m *MetricsDB) Read(ctx context.Context, table, key string, fields []string, result ycsb.Fields) ycsb.Status {
	start := time.Now()

	status := m.db.Read(ctx, table, key, fields, result)
	m.registry.RecordOperation("read", time.Since(start), status, nil)

	return status
}

// Scan implements ycsb.DB.Scan with metrics collection
func (m *MetricsDB) Scan(ctx context.Context, table, startKey string, count int, fields []string) ([]ycsb.Fields, ycsb.Status) {
	start := time.Now()

	records, status := m.db.Scan(ctx, table, startKey, count, fields)
	m.registry.RecordOperation("scan", time.Since(start), status, nil)

	return records, status
}

// Update implements ycsb.DB.Update with metrics collection
func (m *MetricsDB) Update(ctx context.Context, table, key string, values ycsb.Fields) (ycsb.Status, error) {
	start := time.Now()

	status, err := m.db.Update(ctx, table, key, values)
	m.registry.RecordOperation("update", time.Since(start), status, err)

	return status, err
}

// Insert implements ycsb.DB.Insert with metrics collection
func (m *MetricsDB) Insert(ctx context.Context, table, key string, values ycsb.Fields) ycsb.Status {
	start := time.Now()

	status := m.db.Insert(ctx, table, key, values)
	m.registry.RecordOperation("insert", time.Since(start), status, nil)

	return status
}

// Delete implements ycsb.DB.Delete with metrics collection
func (m *MetricsDB) Delete(ctx context.Context, table, key string) ycsb.Status {
	start := time.Now()

	status := m.db.Delete(ctx, table, key)
	m.registry.RecordOperation("delete", time.Since(start), status, nil)

	return status
}

// Cleanup implements ycsb.DB.Cleanup and releases the open connection gauge
func (m *MetricsDB) Cleanup() error {
	err := m.db.Cleanup()
	m.registry.ConnectionClosed()

	return err
}
