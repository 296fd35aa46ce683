// Package workload drives a ycsb.DB with a YCSB-style core workload: a load
// phase that inserts the initial records and a run phase that issues a mix
// of reads, updates, inserts, scans and deletes.
package workload

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strconv"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"cbycsb/internal/validator"
	"cbycsb/internal/ycsb"
)

// Factory opens a DB for one worker. Each worker owns its DB and calls
// Cleanup on it when done.
type Factory func() (ycsb.DB, error)

// PhaseRecorder receives the outcome of every completed phase.
type PhaseRecorder interface {
	RecordPhase(phase string, operations int64, duration time.Duration)
}

// Runner executes the phases of a workload.
type Runner struct {
	cfg      Config
	open     Factory
	logger   *zap.Logger
	recorder PhaseRecorder
	limiter  *rate.Limiter

	// keys is the size of the key space; run-phase inserts extend it.
	keys atomic.Int64
}

// NewRunner validates cfg and returns a Runner. recorder may be nil.
func NewRunner(cfg Config, open Factory, logger *zap.Logger, recorder PhaseRecorder) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid workload: %w", err)
	}

	r := Runner{
		cfg:      cfg,
		open:     open,
		logger:   logger,
		recorder: recorder,
	}
	if err := validator.Validate("workload runner", r.open, r.logger); err != nil {
		return nil, fmt.Errorf("failed to validate runner deps: %w", err)
	}

	if cfg.Target > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(cfg.Target), 1)
	}
	r.keys.Store(cfg.RecordCount)
	r.logger = logger.Named("workload")

	return &r, nil
}

// Execute runs every configured phase in order and returns their summaries.
func (r *Runner) Execute(ctx context.Context) ([]*Summary, error) {
	phases, err := r.cfg.Phases()
	if err != nil {
		return nil, err
	}

	summaries := make([]*Summary, 0, len(phases))
	for _, phase := range phases {
		var s *Summary
		switch phase {
		case PhaseLoad:
			s, err = r.Load(ctx)
		case PhaseRun:
			s, err = r.Run(ctx)
		}
		if err != nil {
			return summaries, err
		}
		summaries = append(summaries, s)
	}

	return summaries, nil
}

// Load inserts RecordCount records, spread over the workers.
func (r *Runner) Load(ctx context.Context) (*Summary, error) {
	threads := int64(r.cfg.Threads)

	return r.phase(ctx, PhaseLoad, func(ctx context.Context, worker int, db ycsb.DB, rnd *rand.Rand, local map[Operation]Counts) error {
		for i := int64(worker); i < r.cfg.RecordCount; i += threads {
			if err := r.wait(ctx); err != nil {
				return err
			}
			status := db.Insert(ctx, r.cfg.Table, r.key(i), r.values(rnd, true))
			record(local, OpInsert, status)
		}
		return nil
	})
}

// Run issues OperationCount operations chosen by the configured proportions.
// An update error aborts the whole phase.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	threads := int64(r.cfg.Threads)
	chooser := newOperationChooser(r.cfg.proportions())

	return r.phase(ctx, PhaseRun, func(ctx context.Context, worker int, db ycsb.DB, rnd *rand.Rand, local map[Operation]Counts) error {
		ops := r.cfg.OperationCount / threads
		if int64(worker) < r.cfg.OperationCount%threads {
			ops++
		}

		for range ops {
			if err := r.wait(ctx); err != nil {
				return err
			}
			if err := r.do(ctx, db, rnd, chooser.next(rnd), local); err != nil {
				return err
			}
		}
		return nil
	})
}

type workFunc func(ctx context.Context, worker int, db ycsb.DB, rnd *rand.Rand, local map[Operation]Counts) error

func (r *Runner) phase(ctx context.Context, phase Phase, work workFunc) (*Summary, error) {
	logger := r.logger.With(zap.String("phase", string(phase)))
	logger.Info("starting phase", zap.Int("threads", r.cfg.Threads))

	summary := newSummary(phase)
	start := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	for worker := range r.cfg.Threads {
		g.Go(func() error {
			db, err := r.open()
			if err != nil {
				return fmt.Errorf("worker %d failed to open db: %w", worker, err)
			}
			defer func() {
				if err := db.Cleanup(); err != nil {
					logger.Warn("failed to clean up db", zap.Int("worker", worker), zap.Error(err))
				}
			}()

			rnd := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), uint64(worker)))
			local := map[Operation]Counts{}
			err = work(gctx, worker, db, rnd, local)
			summary.merge(local)
			return err
		})
	}

	err := g.Wait()
	summary.Elapsed = time.Since(start)

	if err != nil {
		logger.Error("phase aborted", summaryField(summary), zap.Error(err))
		return summary, fmt.Errorf("%s phase failed: %w", phase, err)
	}

	if r.recorder != nil {
		r.recorder.RecordPhase(string(phase), summary.Total(), summary.Elapsed)
	}
	logger.Info("phase complete", summaryField(summary))

	return summary, nil
}

func (r *Runner) do(ctx context.Context, db ycsb.DB, rnd *rand.Rand, op Operation, local map[Operation]Counts) error {
	switch op {
	case OpRead:
		record(local, op, db.Read(ctx, r.cfg.Table, r.existingKey(rnd), nil, ycsb.Fields{}))
	case OpUpdate:
		key := r.existingKey(rnd)
		status, err := db.Update(ctx, r.cfg.Table, key, r.values(rnd, r.cfg.WriteAllFields))
		record(local, op, status)
		if err != nil {
			return fmt.Errorf("update of %s failed: %w", key, err)
		}
	case OpInsert:
		next := r.keys.Add(1) - 1
		record(local, op, db.Insert(ctx, r.cfg.Table, r.key(next), r.values(rnd, true)))
	case OpScan:
		length := 1 + rnd.IntN(r.cfg.MaxScanLength)
		_, status := db.Scan(ctx, r.cfg.Table, r.existingKey(rnd), length, nil)
		record(local, op, status)
	case OpDelete:
		record(local, op, db.Delete(ctx, r.cfg.Table, r.existingKey(rnd)))
	}

	return nil
}

func (r *Runner) wait(ctx context.Context) error {
	if r.limiter == nil {
		return ctx.Err()
	}
	return r.limiter.Wait(ctx)
}

func (r *Runner) key(i int64) string {
	return r.cfg.KeyPrefix + strconv.FormatInt(i, 10)
}

// existingKey picks a key uniformly from the keys inserted so far.
func (r *Runner) existingKey(rnd *rand.Rand) string {
	n := r.keys.Load()
	if n <= 0 {
		return r.key(0)
	}
	return r.key(rnd.Int64N(n))
}

const valueAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// values builds a record value: every field, or one random field.
func (r *Runner) values(rnd *rand.Rand, all bool) ycsb.Fields {
	if !all {
		name := "field" + strconv.Itoa(rnd.IntN(r.cfg.FieldCount))
		return ycsb.Fields{name: randomString(rnd, r.cfg.FieldLength)}
	}

	values := make(ycsb.Fields, r.cfg.FieldCount)
	for i := range r.cfg.FieldCount {
		values["field"+strconv.Itoa(i)] = randomString(rnd, r.cfg.FieldLength)
	}
	return values
}

func randomString(rnd *rand.Rand, n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = valueAlphabet[rnd.IntN(len(valueAlphabet))]
	}
	return string(b)
}

// operationChooser picks operations with probability proportional to
// their configured weight.
type operationChooser struct {
	ops        []Operation
	cumulative []float64
}

func newOperationChooser(proportions []proportion) *operationChooser {
	c := &operationChooser{}
	total := 0.0
	for _, p := range proportions {
		if p.weight <= 0 {
			continue
		}
		total += p.weight
		c.ops = append(c.ops, p.op)
		c.cumulative = append(c.cumulative, total)
	}
	return c
}

func (c *operationChooser) next(rnd *rand.Rand) Operation {
	x := rnd.Float64() * c.cumulative[len(c.cumulative)-1]
	for i, bound := range c.cumulative {
		if x < bound {
			return c.ops[i]
		}
	}
	return c.ops[len(c.ops)-1]
}
