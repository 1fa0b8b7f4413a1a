package backlog

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	headerRateLimitRemaining = "X-RateLimit-Remaining"
	headerRateLimitReset     = "X-RateLimit-Reset"

	throttleThreshold = 5
	unlimited         = math.MaxInt

	minRetryWait     = time.Second
	defaultRetryWait = 60 * time.Second

	// maxResetSeconds keeps reset epochs within what time.Unix represents.
	maxResetSeconds = 1 << 40
)

// RateCategory partitions rate-limit accounting between retrieval and mutation.
type RateCategory int

const (
	CategoryRead RateCategory = iota
	CategoryUpdate
)

func (c RateCategory) String() string {
	switch c {
	case CategoryRead:
		return "read"
	case CategoryUpdate:
		return "update"
	default:
		return "unknown"
	}
}

type quotaState struct {
	remaining int
	reset     int64
}

// rateLimiter tracks the last observed quota per category and delays calls
// when a category is nearly exhausted.
type rateLimiter struct {
	mu      sync.Mutex
	states  map[RateCategory]*quotaState
	clock   func() time.Time
	sleeper func(ctx context.Context, d time.Duration) error
	logger  Logger
}

func newRateLimiter(clock func() time.Time, sleep func(context.Context, time.Duration) error, logger Logger) *rateLimiter {
	if sleep == nil {
		sleep = sleepContext
	}
	return &rateLimiter{
		states: map[RateCategory]*quotaState{
			CategoryRead:   {remaining: unlimited},
			CategoryUpdate: {remaining: unlimited},
		},
		clock:   clock,
		sleeper: sleep,
		logger:  logger,
	}
}

func (r *rateLimiter) now() time.Time {
	if r.clock != nil {
		return r.clock()
	}
	return time.Now()
}

func (r *rateLimiter) sleep(ctx context.Context, d time.Duration) error {
	return r.sleeper(ctx, d)
}

func (r *rateLimiter) state(cat RateCategory) *quotaState {
	st, ok := r.states[cat]
	if !ok {
		st = &quotaState{remaining: unlimited}
		r.states[cat] = st
	}
	return st
}

// wait blocks until cat's reset time when its remaining quota is at or
// below the threshold, then marks the quota unbounded.
func (r *rateLimiter) wait(ctx context.Context, cat RateCategory) error {
	r.mu.Lock()
	st := r.state(cat)
	var delay time.Duration
	if st.remaining <= throttleThreshold && st.reset > 0 {
		delay = time.Unix(st.reset, 0).Sub(r.now())
	}
	remaining := st.remaining
	r.mu.Unlock()

	if delay <= 0 {
		return nil
	}

	r.logger.Warn("Rate limit nearly exhausted, waiting for reset",
		zap.String("category", cat.String()),
		zap.Int("remaining", remaining),
		zap.Duration("wait", delay),
	)
	if err := r.sleep(ctx, delay); err != nil {
		return err
	}

	r.mu.Lock()
	r.state(cat).remaining = unlimited
	r.mu.Unlock()
	return nil
}

// observe records quota headers from a response. Missing or malformed
// headers leave the tracked value unchanged.
func (r *rateLimiter) observe(cat RateCategory, header http.Header) {
	if header == nil {
		return
	}
	remaining, remainingOK := parseNumberHeader(header.Get(headerRateLimitRemaining))
	reset, resetOK := parseNumberHeader(header.Get(headerRateLimitReset))
	if !remainingOK && !resetOK {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	st := r.state(cat)
	if remainingOK {
		st.remaining = int(clamp(math.Floor(remaining), math.MinInt32, math.MaxInt32))
	}
	if resetOK {
		st.reset = int64(clamp(math.Floor(reset), 0, maxResetSeconds))
	}
}

func (r *rateLimiter) snapshot(cat RateCategory) quotaState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.state(cat)
}

// parseNumberHeader reads a decimal header value such as "5", "5.0" or
// "1700000000.5". Blank, non-numeric and non-finite values are rejected.
func parseNumberHeader(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, false
	}
	return value, true
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// retryWait computes the pause after a 429: until the reset header with a
// floor of one second, or a fixed minute when the header is unusable.
func retryWait(resetHeader string, now time.Time) time.Duration {
	raw := strings.TrimSpace(resetHeader)
	if raw == "" {
		return defaultRetryWait
	}
	reset, ok := parseNumberHeader(raw)
	if !ok {
		return defaultRetryWait
	}
	nowSeconds := float64(now.UnixNano()) / float64(time.Second)
	wait := (reset - nowSeconds) * float64(time.Second)
	switch {
	case wait < float64(minRetryWait):
		return minRetryWait
	case wait >= float64(math.MaxInt64):
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(wait)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
