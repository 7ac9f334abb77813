package engine

import (
	log "log/slog"
	"sync"
	"time"

	"github.com/sharedcode/strata"
)

// breaker gates local (hot/warm) writes after a tier reports capacity
// exhaustion. While tripped, writes silently no-op for the cooldown window so
// a full disk doesn't turn every save into a slow failing syscall. Skipped
// writes are counted and summarized at most once per logEvery.
type breaker struct {
	mux          sync.Mutex
	trippedUntil time.Time
	skipped      int64
	lastLog      time.Time
	cooldown     time.Duration
	logEvery     time.Duration
}

func newBreaker(cooldown, logEvery time.Duration) *breaker {
	return &breaker{cooldown: cooldown, logEvery: logEvery}
}

// allow reports whether local writes may proceed. When tripped it counts the
// skip and emits the rate-limited summary.
func (b *breaker) allow() bool {
	b.mux.Lock()
	defer b.mux.Unlock()
	now := strata.Now()
	if now.After(b.trippedUntil) {
		return true
	}
	b.skipped++
	if now.Sub(b.lastLog) >= b.logEvery {
		log.Warn("local writes skipped, storage capacity exhausted",
			"skipped", b.skipped, "tripped_until", b.trippedUntil)
		b.lastLog = now
	}
	return false
}

// observe classifies err and trips the breaker on capacity exhaustion.
// Returns true when it tripped.
func (b *breaker) observe(err error) bool {
	if !strata.IsCapacityExhausted(err) {
		return false
	}
	b.mux.Lock()
	defer b.mux.Unlock()
	b.trippedUntil = strata.Now().Add(b.cooldown)
	log.Warn("storage capacity exhausted, pausing local writes",
		"cooldown", b.cooldown, "details", err)
	return true
}

// reset re-enables local writes early, e.g. after cleanup freed space.
func (b *breaker) reset() {
	b.mux.Lock()
	defer b.mux.Unlock()
	if b.skipped > 0 && !strata.Now().After(b.trippedUntil) {
		log.Info("re-enabling local writes", "skipped_while_tripped", b.skipped)
	}
	b.trippedUntil = time.Time{}
	b.skipped = 0
}

func (b *breaker) tripped() bool {
	b.mux.Lock()
	defer b.mux.Unlock()
	return !strata.Now().After(b.trippedUntil)
}
