package ycsb

import (
	"encoding/json"
	"maps"

	"cbycsb/internal/couchbase"
)

// Fields is a record's value: field name to field value.
type Fields map[string]string

// Clone returns a copy of f. A nil map clones to an empty one.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	maps.Copy(out, f)
	return out
}

// Document is the stored form of a record. Its JSON encoding is exactly the
// field map; the CAS is carried alongside and never serialized.
type Document struct {
	Fields Fields

	couchbase.Cas
}

// NewDocument builds a document holding a copy of values.
func NewDocument(values Fields) Document {
	return Document{Fields: values.Clone()}
}

func (d Document) MarshalJSON() ([]byte, error) {
	if d.Fields == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]string(d.Fields))
}

func (d *Document) UnmarshalJSON(data []byte) error {
	var f Fields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	if f == nil {
		f = Fields{}
	}
	d.Fields = f
	return nil
}
