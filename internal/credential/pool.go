package credential

import (
	"log/slog"
	"sync"
	"time"

	"github.com/KevinWangQQ/youtube-influencer-finder/internal/platform"
)

// Pool owns the credential set and the round-robin cursor. All methods are
// safe for concurrent use within one process; cross-process sharing is not
// supported.
type Pool struct {
	mu         sync.Mutex
	creds      []*Credential
	cursor     int
	generation uint64

	// onChange is invoked (outside the lock) after any credential
	// mutation, letting the caller persist state. Optional.
	onChange func(Credential)
}

// NewPool builds a pool from the given credentials. Credentials without a
// status default to active; usage already at the limit marks them
// exhausted up front.
func NewPool(creds []Credential) *Pool {
	p := &Pool{}
	for _, c := range creds {
		cc := c
		if cc.Status == "" {
			cc.Status = StatusActive
		}
		if cc.QuotaLimit > 0 && float64(cc.QuotaUsed) >= exhaustThreshold*float64(cc.QuotaLimit) {
			cc.Status = StatusExhausted
		}
		p.creds = append(p.creds, &cc)
	}
	return p
}

// OnChange registers a persistence hook called with a copy of each mutated
// credential.
func (p *Pool) OnChange(fn func(Credential)) {
	p.mu.Lock()
	p.onChange = fn
	p.mu.Unlock()
}

// Current returns the credential under the cursor, advancing past inactive
// entries. Fails with ErrNoActiveCredential when the whole pool is down.
func (p *Pool) Current() (Credential, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.creds) == 0 {
		return Credential{}, ErrNoActiveCredential
	}
	for i := 0; i < len(p.creds); i++ {
		idx := (p.cursor + i) % len(p.creds)
		if p.creds[idx].Active() {
			p.cursor = idx
			return *p.creds[idx], nil
		}
	}
	return Credential{}, ErrNoActiveCredential
}

// Rotate advances the cursor to the next active credential, wrapping the
// set once. Returns false when no alternative exists.
func (p *Pool) Rotate() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.creds)
	if n == 0 {
		return false
	}
	for i := 1; i <= n; i++ {
		idx := (p.cursor + i) % n
		if idx == p.cursor {
			break
		}
		if p.creds[idx].Active() {
			slog.Info("credential rotated",
				slog.String("from", p.creds[p.cursor].ID),
				slog.String("to", p.creds[idx].ID))
			p.cursor = idx
			return true
		}
	}
	return false
}

// RecordUsage adds consumed quota units and transitions the credential to
// exhausted once it crosses 95% of its limit.
func (p *Pool) RecordUsage(id string, units int64) {
	p.mutate(id, func(c *Credential) {
		c.QuotaUsed += units
		c.LastUsedAt = time.Now().UTC()
		if c.QuotaLimit > 0 && float64(c.QuotaUsed) >= exhaustThreshold*float64(c.QuotaLimit) {
			if c.Status == StatusActive {
				slog.Warn("credential exhausted by usage",
					slog.String("id", c.ID),
					slog.Int64("used", c.QuotaUsed),
					slog.Int64("limit", c.QuotaLimit))
			}
			c.Status = StatusExhausted
		}
	})
}

// RecordFailure applies a classified upstream failure: quota errors mark
// the credential exhausted, invalid-key errors mark it erroring. Other
// kinds only record the message.
func (p *Pool) RecordFailure(id string, perr *platform.Error) {
	if perr == nil {
		return
	}
	p.mutate(id, func(c *Credential) {
		c.LastError = perr.Error()
		switch perr.Kind {
		case platform.KindQuotaExceeded:
			c.Status = StatusExhausted
		case platform.KindInvalidCredential:
			c.Status = StatusError
		}
	})
}

// ResetAll returns every credential to active with zeroed usage. Called by
// the settings layer after quota reset or key replacement; bumps the
// generation so cached results keyed on the old set go stale.
func (p *Pool) ResetAll() {
	p.mu.Lock()
	var changed []Credential
	for _, c := range p.creds {
		c.Status = StatusActive
		c.QuotaUsed = 0
		c.LastError = ""
		changed = append(changed, *c)
	}
	p.cursor = 0
	p.generation++
	fn := p.onChange
	p.mu.Unlock()

	if fn != nil {
		for _, c := range changed {
			fn(c)
		}
	}
}

// Generation counts credential-set changes. It is baked into cache keys so
// a reset or replaced key is observable without waiting for TTL expiry.
func (p *Pool) Generation() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.generation
}

// Snapshot returns copies of all credentials for status display.
func (p *Pool) Snapshot() []Credential {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Credential, len(p.creds))
	for i, c := range p.creds {
		out[i] = *c
	}
	return out
}

func (p *Pool) mutate(id string, fn func(*Credential)) {
	p.mu.Lock()
	var changed *Credential
	for _, c := range p.creds {
		if c.ID == id {
			fn(c)
			cc := *c
			changed = &cc
			break
		}
	}
	hook := p.onChange
	p.mu.Unlock()

	if changed != nil && hook != nil {
		hook(*changed)
	}
}
