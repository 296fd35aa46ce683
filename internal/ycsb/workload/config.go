package workload

import (
	"errors"
	"fmt"
	"strings"
)

// Phase names a workload phase.
type Phase string

const (
	PhaseLoad Phase = "load"
	PhaseRun  Phase = "run"
	PhaseBoth Phase = "both"
)

// Config describes a core workload. Field names follow the usual YCSB
// workload properties.
type Config struct {
	Phase            string  `env:"WORKLOAD_PHASE" envDefault:"both"`
	Table            string  `env:"WORKLOAD_TABLE" envDefault:"usertable"`
	KeyPrefix        string  `env:"WORKLOAD_KEY_PREFIX" envDefault:"user"`
	RecordCount      int64   `env:"WORKLOAD_RECORD_COUNT" envDefault:"1000"`
	OperationCount   int64   `env:"WORKLOAD_OPERATION_COUNT" envDefault:"1000"`
	Threads          int     `env:"WORKLOAD_THREADS" envDefault:"1"`
	FieldCount       int     `env:"WORKLOAD_FIELD_COUNT" envDefault:"10"`
	FieldLength      int     `env:"WORKLOAD_FIELD_LENGTH" envDefault:"100"`
	WriteAllFields   bool    `env:"WORKLOAD_WRITE_ALL_FIELDS" envDefault:"true"`
	ReadProportion   float64 `env:"WORKLOAD_READ_PROPORTION" envDefault:"0.95"`
	UpdateProportion float64 `env:"WORKLOAD_UPDATE_PROPORTION" envDefault:"0.05"`
	InsertProportion float64 `env:"WORKLOAD_INSERT_PROPORTION" envDefault:"0"`
	ScanProportion   float64 `env:"WORKLOAD_SCAN_PROPORTION" envDefault:"0"`
	DeleteProportion float64 `env:"WORKLOAD_DELETE_PROPORTION" envDefault:"0"`
	MaxScanLength    int     `env:"WORKLOAD_MAX_SCAN_LENGTH" envDefault:"100"`
	// Target caps throughput in operations per second; 0 means unlimited.
	Target float64 `env:"WORKLOAD_TARGET" envDefault:"0"`
}

// Phases returns the phases to execute, in order.
func (c Config) Phases() ([]Phase, error) {
	switch Phase(strings.ToLower(c.Phase)) {
	case PhaseLoad:
		return []Phase{PhaseLoad}, nil
	case PhaseRun:
		return []Phase{PhaseRun}, nil
	case PhaseBoth, "":
		return []Phase{PhaseLoad, PhaseRun}, nil
	default:
		return nil, fmt.Errorf("unknown workload phase %q", c.Phase)
	}
}

// Validate checks the workload is runnable.
func (c Config) Validate() error {
	var errs []error

	if _, err := c.Phases(); err != nil {
		errs = append(errs, err)
	}
	if c.Threads <= 0 {
		errs = append(errs, fmt.Errorf("threads must be positive, got %d", c.Threads))
	}
	if c.RecordCount < 0 || c.OperationCount < 0 {
		errs = append(errs, errors.New("record and operation counts must not be negative"))
	}
	if c.FieldCount <= 0 || c.FieldLength <= 0 {
		errs = append(errs, errors.New("field count and length must be positive"))
	}
	if c.MaxScanLength <= 0 {
		errs = append(errs, fmt.Errorf("max scan length must be positive, got %d", c.MaxScanLength))
	}
	if c.Target < 0 {
		errs = append(errs, fmt.Errorf("target must not be negative, got %v", c.Target))
	}

	total := 0.0
	for _, p := range c.proportions() {
		if p.weight < 0 {
			errs = append(errs, fmt.Errorf("%s proportion must not be negative", p.op))
		}
		total += p.weight
	}
	if total <= 0 {
		errs = append(errs, errors.New("at least one operation proportion must be positive"))
	}

	return errors.Join(errs...)
}

type proportion struct {
	op     Operation
	weight float64
}

func (c Config) proportions() []proportion {
	return []proportion{
		{OpRead, c.ReadProportion},
		{OpUpdate, c.UpdateProportion},
		{OpInsert, c.InsertProportion},
		{OpScan, c.ScanProportion},
		{OpDelete, c.DeleteProportion},
	}
}
