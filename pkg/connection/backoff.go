package connection

import (
	"math/rand/v2"
	"sync"
	"time"
)

// Default reconnect timing.
const (
	InitialBackoff    = 1 * time.Second
	MaxBackoff        = 60 * time.Second
	BackoffMultiplier = 2.0

	// JitterFactor is the largest fraction of the delay added at random.
	JitterFactor = 0.25
)

// BackoffConfig tunes the wait between attempts to reach a core. Zero
// values select the defaults; a zero Jitter disables jitter.
type BackoffConfig struct {
	Initial    time.Duration `yaml:"initial"`
	Max        time.Duration `yaml:"max"`
	Multiplier float64       `yaml:"multiplier"`
	Jitter     float64       `yaml:"jitter"`
}

func (c BackoffConfig) withDefaults() BackoffConfig {
	if c.Initial <= 0 {
		c.Initial = InitialBackoff
	}
	if c.Max <= 0 {
		c.Max = MaxBackoff
	}
	if c.Multiplier <= 1 {
		c.Multiplier = BackoffMultiplier
	}
	if c.Jitter < 0 {
		c.Jitter = 0
	}
	return c
}

// Base returns the delay before retry n (counting from zero) without jitter.
func (c BackoffConfig) Base(n int) time.Duration {
	c = c.withDefaults()
	d := c.Initial
	for range n {
		d = time.Duration(float64(d) * c.Multiplier)
		if d >= c.Max {
			return c.Max
		}
	}
	return min(d, c.Max)
}

// Backoff counts the retries since the core session was last established.
type Backoff struct {
	mu       sync.Mutex
	cfg      BackoffConfig
	attempts int
}

// NewBackoff returns a backoff using cfg.
func NewBackoff(cfg BackoffConfig) *Backoff {
	return &Backoff{cfg: cfg.withDefaults()}
}

// Next returns the jittered delay before the next retry and counts it.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	d := b.cfg.Base(b.attempts)
	b.attempts++
	if spread := int64(float64(d) * b.cfg.Jitter); spread > 0 {
		d += time.Duration(rand.Int64N(spread + 1))
	}
	return d
}

// Reset starts over from the initial delay.
func (b *Backoff) Reset() {
	b.mu.Lock()
	b.attempts = 0
	b.mu.Unlock()
}

// Attempts returns the retries since the last Reset.
func (b *Backoff) Attempts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.attempts
}
