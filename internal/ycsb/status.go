package ycsb

// Status is the integer result code returned to the harness.
type Status int

const (
	// StatusOK reports a successful operation.
	StatusOK Status = 0
	// StatusError reports a failed operation or a missing record.
	StatusError Status = 1
)

// String returns the lower-case name used in logs and metric labels.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// OK reports whether s is StatusOK.
func (s Status) OK() bool {
	return s == StatusOK
}
