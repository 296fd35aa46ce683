package couchbase

// CasManager combines CAS getting and setting capabilities.
type CasManager interface {
	CasGetter
	CasSetter
}

// CasSetter is implemented by documents that record the CAS they were read
// or written with.
type CasSetter interface {
	SetCas(cas uint64)
}

// CasGetter is implemented by documents that carry a CAS to compare against
// on the next write.
type CasGetter interface {
	GetCas() uint64
}

// Cas provides a simple implementation of CAS value management.
// It can be embedded in structs that need CAS functionality.
type Cas struct {
	c uint64
}

// GetCas returns the current CAS value.
func (c *Cas) GetCas() uint64 {
	return c.c
}

// SetCas updates the CAS value.
func (c *Cas) SetCas(cas uint64) {
	c.c = cas
}
