package adapter

import (
	"fmt"
	"strings"
	"time"

	"cbycsb/internal/ycsb"
)

// Bucket is the bucket every adapter connects to.
const Bucket = "default"

// UpdateMode selects how Update writes a record.
type UpdateMode string

const (
	// UpdateModeCAS fetches the current CAS and swaps against it.
	UpdateModeCAS UpdateMode = "cas"
	// UpdateModeUpsert overwrites the record without conflict detection.
	UpdateModeUpsert UpdateMode = "upsert"
	// UpdateModeTransaction replaces the record inside a distributed transaction.
	UpdateModeTransaction UpdateMode = "transaction"
)

// ParseUpdateMode maps a configuration value to an UpdateMode. An empty
// value selects UpdateModeCAS.
func ParseUpdateMode(s string) (UpdateMode, error) {
	switch m := UpdateMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return UpdateModeCAS, nil
	case UpdateModeCAS, UpdateModeUpsert, UpdateModeTransaction:
		return m, nil
	default:
		return "", fmt.Errorf("%w: unknown update mode %q", ycsb.ErrConfiguration, s)
	}
}

// Config holds the adapter settings, read once at init.
type Config struct {
	URIs               string        `env:"COUCHBASE_URIS" envDefault:"http://127.0.0.1:8091/pools"`
	Username           string        `env:"COUCHBASE_USERNAME"`
	Password           string        `env:"COUCHBASE_PASSWORD"`
	UpdateMode         string        `env:"COUCHBASE_UPDATE_MODE" envDefault:"cas"`
	UpdateRetries      int           `env:"COUCHBASE_UPDATE_RETRIES" envDefault:"0"`
	ConnectTimeout     time.Duration `env:"COUCHBASE_CONNECT_TIMEOUT" envDefault:"10s"`
	KVTimeout          time.Duration `env:"COUCHBASE_KV_TIMEOUT" envDefault:"2500ms"`
	TransactionTimeout time.Duration `env:"COUCHBASE_TRANSACTION_TIMEOUT" envDefault:"10s"`
}

// username falls back to the bucket name, which is how bucket-password
// authentication is expressed to the SDK.
func (c Config) username() string {
	if c.Username == "" {
		return Bucket
	}
	return c.Username
}
