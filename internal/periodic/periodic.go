// Package periodic runs fixed-rate tasks.
package periodic

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"simlink/internal/metrics"
)

// Run calls fn every interval until ctx is done. Ticks that arrive while fn
// is still running are dropped rather than queued; each dropped tick is
// counted as an overrun for task in m (which may be nil).
func Run(ctx context.Context, task string, interval time.Duration, m *metrics.Metrics, fn func()) {
	if interval <= 0 || fn == nil {
		log.Printf("periodic %s not started: interval=%s", task, interval)
		return
	}

	t := time.NewTicker(interval)
	defer t.Stop()

	warn := NewLimiter(10 * time.Second)
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}

		start := time.Now()
		fn()
		elapsed := time.Since(start)

		if missed := int(elapsed / interval); missed > 0 {
			m.TickOverruns(task, missed)
			if suppressed, ok := warn.Allow(missed); ok {
				log.Printf("periodic %s overrun: took %s (interval %s, %d ticks skipped)", task, elapsed, interval, suppressed)
			}
		}
	}
}

// Limiter admits at most one event per Every and accumulates a count of
// the events in between. Useful for warnings that can fire every packet.
type Limiter struct {
	Every time.Duration

	mu      sync.Mutex
	lim     *rate.Limiter
	pending int
	now     func() time.Time
}

func NewLimiter(every time.Duration) *Limiter {
	return &Limiter{Every: every, now: time.Now}
}

// Allow records n events. When ok is true the caller should log; count is
// the number of events since the previous admitted one, including these.
func (l *Limiter) Allow(n int) (count int, ok bool) {
	if l == nil {
		return n, true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.lim == nil {
		l.lim = rate.NewLimiter(rate.Every(l.Every), 1)
	}
	now := time.Now
	if l.now != nil {
		now = l.now
	}
	l.pending += n
	if !l.lim.AllowN(now(), 1) {
		return 0, false
	}
	count = l.pending
	l.pending = 0
	return count, true
}
