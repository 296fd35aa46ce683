package workload

import (
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"cbycsb/internal/ycsb"
)

// Operation is one kind of DB call issued by the workload.
type Operation string

const (
	OpRead   Operation = "read"
	OpUpdate Operation = "update"
	OpInsert Operation = "insert"
	OpScan   Operation = "scan"
	OpDelete Operation = "delete"
)

// Counts tallies results of one operation kind.
type Counts struct {
	OK    int64
	Error int64
}

// Summary is the outcome of a phase.
type Summary struct {
	Phase      Phase
	Elapsed    time.Duration
	Operations map[Operation]Counts

	mu sync.Mutex
}

func newSummary(phase Phase) *Summary {
	return &Summary{Phase: phase, Operations: map[Operation]Counts{}}
}

// merge folds a worker's local tallies into the summary.
func (s *Summary) merge(local map[Operation]Counts) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for op, c := range local {
		total := s.Operations[op]
		total.OK += c.OK
		total.Error += c.Error
		s.Operations[op] = total
	}
}

// Total is the number of operations performed.
func (s *Summary) Total() int64 {
	var n int64
	for _, c := range s.Operations {
		n += c.OK + c.Error
	}
	return n
}

// Throughput is operations per second over the phase.
func (s *Summary) Throughput() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Total()) / s.Elapsed.Seconds()
}

// MarshalLogObject lets a summary be logged with zap.Object.
func (s *Summary) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("phase", string(s.Phase))
	enc.AddDuration("elapsed", s.Elapsed)
	enc.AddInt64("operations", s.Total())
	enc.AddFloat64("throughput_ops", s.Throughput())
	for op, c := range s.Operations {
		_ = enc.AddObject(string(op), zapcore.ObjectMarshalerFunc(func(enc zapcore.ObjectEncoder) error {
			enc.AddInt64(ycsb.StatusOK.String(), c.OK)
			enc.AddInt64(ycsb.StatusError.String(), c.Error)
			return nil
		}))
	}
	return nil
}

var _ zapcore.ObjectMarshaler = (*Summary)(nil)

func record(local map[Operation]Counts, op Operation, status ycsb.Status) {
	c := local[op]
	if status.OK() {
		c.OK++
	} else {
		c.Error++
	}
	local[op] = c
}

func summaryField(s *Summary) zap.Field {
	return zap.Object("summary", s)
}
