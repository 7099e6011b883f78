package queue

import "time"

const (
	// MaxRetries is the number of retry transitions after which a row becomes
	// failed_permanent. With the 120 minute cap this keeps a message retrying
	// for roughly ten days.
	MaxRetries = 120
	// BaseBackoff is the delay before the first retry.
	BaseBackoff = time.Second
	// MaxBackoff caps the delay between retries.
	MaxBackoff = 120 * time.Minute
	// DedupWindow bounds how far back outbound enqueue looks for duplicates.
	DedupWindow = 10 * time.Minute
	// MessageTTL is how long completed rows and sent records are kept.
	MessageTTL = 30 * 24 * time.Hour
	// StuckThreshold is how long a row may sit in processing before the
	// sweeper hands it back to pending.
	StuckThreshold = 5 * time.Minute

	// maxBackoffExponent keeps the shift from overflowing once the delay is
	// already past any sensible ceiling.
	maxBackoffExponent = 17
)

// Policy holds the retry and retention knobs applied by a Store.
type Policy struct {
	MaxRetries  int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	DedupWindow time.Duration
	MessageTTL  time.Duration
}

// DefaultPolicy returns the built-in retry and retention settings.
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries:  MaxRetries,
		BaseBackoff: BaseBackoff,
		MaxBackoff:  MaxBackoff,
		DedupWindow: DedupWindow,
		MessageTTL:  MessageTTL,
	}
}

func (p Policy) withDefaults() Policy {
	def := DefaultPolicy()
	if p.MaxRetries <= 0 {
		p.MaxRetries = def.MaxRetries
	}
	if p.BaseBackoff <= 0 {
		p.BaseBackoff = def.BaseBackoff
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = def.MaxBackoff
	}
	if p.DedupWindow <= 0 {
		p.DedupWindow = def.DedupWindow
	}
	if p.MessageTTL <= 0 {
		p.MessageTTL = def.MessageTTL
	}
	return p
}

// Backoff returns the delay before retry attempt n using the policy's base
// and cap.
func (p Policy) Backoff(n int) time.Duration {
	return ComputeBackoff(n, p.BaseBackoff, p.MaxBackoff)
}

// Exhausted reports whether retries has used up the policy's retry budget.
func (p Policy) Exhausted(retries int) bool {
	return retries >= p.MaxRetries
}

// Backoff returns min(BaseBackoff * 2^min(n-1, 17), MaxBackoff). Values of n
// below 1 are treated as 1.
func Backoff(n int) time.Duration {
	return ComputeBackoff(n, BaseBackoff, MaxBackoff)
}

// ComputeBackoff applies the exponential backoff formula with explicit bounds.
func ComputeBackoff(n int, base, ceiling time.Duration) time.Duration {
	if n < 1 {
		n = 1
	}
	exp := n - 1
	if exp > maxBackoffExponent {
		exp = maxBackoffExponent
	}
	delay := base * time.Duration(int64(1)<<exp)
	if delay > ceiling || delay <= 0 {
		return ceiling
	}
	return delay
}
