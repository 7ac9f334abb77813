package engine

import (
	log "log/slog"
	"sync"

	"github.com/sharedcode/strata"
)

// PhaseError records one failure inside a migration or cleanup phase. Err is
// stringified so metric copies stay comparable and serializable.
type PhaseError struct {
	Phase       string `json:"phase"`
	IdentityKey string `json:"identity_key,omitempty"`
	Err         string `json:"err"`
	At          int64  `json:"at"`
}

// MigrationMetrics counts promotion and sync work.
type MigrationMetrics struct {
	HotToWarmCount    int64        `json:"hot_to_warm_count"`
	WarmToColdCount   int64        `json:"warm_to_cold_count"`
	QueueDrainedCount int64        `json:"queue_drained_count"`
	Errors            []PhaseError `json:"errors,omitempty"`
}

// CleanupMetrics counts retention evictions.
type CleanupMetrics struct {
	CleanedHotCount  int64        `json:"cleaned_hot_count"`
	CleanedWarmCount int64        `json:"cleaned_warm_count"`
	Errors           []PhaseError `json:"errors,omitempty"`
}

// Snapshot is what sinks receive after each timer cycle. Counts are that
// cycle's deltas, not running totals; the facade getters return the totals.
type Snapshot struct {
	Migration MigrationMetrics `json:"migration"`
	Cleanup   CleanupMetrics   `json:"cleanup"`
	Timestamp int64            `json:"timestamp"`
}

// TelemetrySink receives per-cycle snapshots. Sinks run on the cycle
// goroutine; a slow sink delays the next cycle but a panicking one is
// contained.
type TelemetrySink func(Snapshot)

// Cumulative error lists are capped so a flapping backend can't grow metrics
// without bound.
const maxKeptErrors = 100

type telemetry struct {
	mux       sync.Mutex
	sinks     []TelemetrySink
	migration MigrationMetrics
	cleanup   CleanupMetrics
}

func (t *telemetry) register(sink TelemetrySink) {
	if sink == nil {
		return
	}
	t.mux.Lock()
	t.sinks = append(t.sinks, sink)
	t.mux.Unlock()
}

// accumulate folds one cycle's deltas into the running totals.
func (t *telemetry) accumulate(m MigrationMetrics, c CleanupMetrics) {
	t.mux.Lock()
	defer t.mux.Unlock()
	t.migration.HotToWarmCount += m.HotToWarmCount
	t.migration.WarmToColdCount += m.WarmToColdCount
	t.migration.QueueDrainedCount += m.QueueDrainedCount
	t.migration.Errors = appendCapped(t.migration.Errors, m.Errors)
	t.cleanup.CleanedHotCount += c.CleanedHotCount
	t.cleanup.CleanedWarmCount += c.CleanedWarmCount
	t.cleanup.Errors = appendCapped(t.cleanup.Errors, c.Errors)
}

// publish delivers the cycle snapshot to every sink. Each call is
// recover-isolated so one bad sink can't take down the cycle goroutine or
// starve the remaining sinks.
func (t *telemetry) publish(s Snapshot) {
	t.mux.Lock()
	sinks := make([]TelemetrySink, len(t.sinks))
	copy(sinks, t.sinks)
	t.mux.Unlock()

	for _, sink := range sinks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Warn("telemetry sink panicked", "recovered", r)
				}
			}()
			sink(s)
		}()
	}
}

func (t *telemetry) migrationCopy() MigrationMetrics {
	t.mux.Lock()
	defer t.mux.Unlock()
	m := t.migration
	m.Errors = append([]PhaseError(nil), t.migration.Errors...)
	return m
}

func (t *telemetry) cleanupCopy() CleanupMetrics {
	t.mux.Lock()
	defer t.mux.Unlock()
	c := t.cleanup
	c.Errors = append([]PhaseError(nil), t.cleanup.Errors...)
	return c
}

func appendCapped(dst, src []PhaseError) []PhaseError {
	dst = append(dst, src...)
	if len(dst) > maxKeptErrors {
		dst = dst[len(dst)-maxKeptErrors:]
	}
	return dst
}

func phaseError(phase, identityKey string, err error) PhaseError {
	return PhaseError{
		Phase:       phase,
		IdentityKey: identityKey,
		Err:         err.Error(),
		At:          strata.NowMilli(),
	}
}
