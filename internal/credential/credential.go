// Package credential manages a pool of YouTube Data API keys with quota
// bookkeeping and round-robin failover.
package credential

import (
	"errors"
	"time"
)

// Status is the per-credential state machine: active → exhausted|error.
// Both failure states are terminal until an external reset.
type Status string

const (
	StatusActive    Status = "active"
	StatusExhausted Status = "exhausted"
	StatusError     Status = "error"
)

// exhaustThreshold marks a credential exhausted once usage reaches this
// fraction of its quota limit, leaving headroom for in-flight calls.
const exhaustThreshold = 0.95

// ErrNoActiveCredential is returned when every credential in the pool is
// exhausted or erroring.
var ErrNoActiveCredential = errors.New("credential: no active credential in pool")

// Credential is one API key plus its quota bookkeeping. The settings layer
// owns creation and removal; the pool only mutates status and usage.
type Credential struct {
	ID         string    `json:"id" yaml:"id"`
	Label      string    `json:"label" yaml:"label"`
	Key        string    `json:"-" yaml:"key"`
	Status     Status    `json:"status" yaml:"-"`
	QuotaUsed  int64     `json:"quotaUsed" yaml:"-"`
	QuotaLimit int64     `json:"quotaLimit" yaml:"quota_limit"`
	LastError  string    `json:"lastError,omitempty" yaml:"-"`
	LastUsedAt time.Time `json:"lastUsedAt,omitzero" yaml:"-"`
}

// Active reports whether the credential can still serve calls.
func (c *Credential) Active() bool {
	return c.Status == StatusActive
}
