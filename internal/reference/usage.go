package reference

import (
	"sync"
	"time"
)

// QuotaLimits holds per-window call limits for one reference service.
type QuotaLimits struct {
	PerDay    int
	PerHour   int
	PerMinute int
}

// StandardLimits is the anonymous-access quota tier.
func StandardLimits() QuotaLimits {
	return QuotaLimits{PerDay: 1000, PerHour: 240, PerMinute: 240}
}

// EnhancedLimits is the quota tier unlocked by a configured API key.
func EnhancedLimits() QuotaLimits {
	return QuotaLimits{PerDay: 120000, PerHour: 5000, PerMinute: 240}
}

// LimitsForTier selects quota limits based on whether an API key is configured.
// Read once at startup.
func LimitsForTier(apiKey string) QuotaLimits {
	if apiKey != "" {
		return EnhancedLimits()
	}
	return StandardLimits()
}

// callRecord is one entry in the bounded usage-history log.
type callRecord struct {
	at      time.Time
	success bool
}

// UsageWindow is a snapshot of per-window counters.
type UsageWindow struct {
	DailyCount  int
	HourlyCount int
	MinuteCount int
}

// maxHistory caps the usage log; oldest entries are pruned first.
const maxHistory = 4096

// UsageTracker accounts for quota consumption against a bounded call-history
// log. Counters are derived by filtering the log by timestamp.
type UsageTracker struct {
	mu      sync.Mutex
	service string
	limits  QuotaLimits
	history []callRecord
	observe func(service string, success bool)

	now func() time.Time
}

// NewUsageTracker creates a tracker for the named service.
func NewUsageTracker(service string, limits QuotaLimits) *UsageTracker {
	return &UsageTracker{
		service: service,
		limits:  limits,
		now:     time.Now,
	}
}

// SetObserver registers a callback invoked on every recorded call, used to
// export per-service call counters.
func (u *UsageTracker) SetObserver(fn func(service string, success bool)) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.observe = fn
}

// Record appends one call record, success or failure, pruning the oldest
// entry when the log is full.
func (u *UsageTracker) Record(success bool) {
	u.mu.Lock()
	if len(u.history) >= maxHistory {
		u.history = u.history[1:]
	}
	u.history = append(u.history, callRecord{at: u.now(), success: success})
	observe := u.observe
	u.mu.Unlock()

	if observe != nil {
		observe(u.service, success)
	}
}

// Window returns current counters for the rolling day, hour, and minute.
func (u *UsageTracker) Window() UsageWindow {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.windowLocked()
}

func (u *UsageTracker) windowLocked() UsageWindow {
	now := u.now()
	var w UsageWindow
	for _, r := range u.history {
		age := now.Sub(r.at)
		if age <= 24*time.Hour {
			w.DailyCount++
		}
		if age <= time.Hour {
			w.HourlyCount++
		}
		if age <= time.Minute {
			w.MinuteCount++
		}
	}
	return w
}

// CanMakeCall reports whether a call is permitted under all three windows.
func (u *UsageTracker) CanMakeCall() bool {
	_, ok := u.Check()
	return ok
}

// Check returns nil when a call is permitted, otherwise a RateLimitError
// with a retry-after estimate for the tightest exhausted window.
func (u *UsageTracker) Check() (*RateLimitError, bool) {
	u.mu.Lock()
	defer u.mu.Unlock()

	w := u.windowLocked()
	switch {
	case w.MinuteCount >= u.limits.PerMinute:
		return &RateLimitError{Service: u.service, Window: "minute", RetryAfter: u.retryAfterLocked(time.Minute)}, false
	case w.HourlyCount >= u.limits.PerHour:
		return &RateLimitError{Service: u.service, Window: "hour", RetryAfter: u.retryAfterLocked(time.Hour)}, false
	case w.DailyCount >= u.limits.PerDay:
		return &RateLimitError{Service: u.service, Window: "day", RetryAfter: u.retryAfterLocked(24 * time.Hour)}, false
	}
	return nil, true
}

// retryAfterLocked estimates how long until the oldest in-window call ages out.
func (u *UsageTracker) retryAfterLocked(window time.Duration) time.Duration {
	now := u.now()
	for _, r := range u.history {
		if now.Sub(r.at) <= window {
			remaining := window - now.Sub(r.at)
			if remaining < time.Second {
				return time.Second
			}
			return remaining
		}
	}
	return window
}
