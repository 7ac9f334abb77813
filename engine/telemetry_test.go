package engine

import (
	"testing"
)

func TestTelemetryPublishesToEverySink(t *testing.T) {
	tel := &telemetry{}
	var got []Snapshot
	tel.register(func(s Snapshot) { got = append(got, s) })

	tel.publish(Snapshot{Timestamp: 42})
	if len(got) != 1 || got[0].Timestamp != 42 {
		t.Errorf("got %+v, want one snapshot with timestamp 42", got)
	}
}

func TestTelemetryIsolatesPanickingSink(t *testing.T) {
	tel := &telemetry{}
	tel.register(func(Snapshot) { panic("bad sink") })
	var delivered bool
	tel.register(func(Snapshot) { delivered = true })

	tel.publish(Snapshot{})
	if !delivered {
		t.Error("a panicking sink must not block the others")
	}
}

func TestTelemetryAccumulatesAcrossCycles(t *testing.T) {
	tel := &telemetry{}
	tel.accumulate(MigrationMetrics{HotToWarmCount: 2}, CleanupMetrics{CleanedHotCount: 1})
	tel.accumulate(MigrationMetrics{HotToWarmCount: 3, Errors: []PhaseError{{Phase: "hot_to_warm", Err: "x"}}}, CleanupMetrics{})

	m := tel.migrationCopy()
	if m.HotToWarmCount != 5 {
		t.Errorf("got %d, want 5 accumulated", m.HotToWarmCount)
	}
	if len(m.Errors) != 1 {
		t.Errorf("got %d errors, want 1", len(m.Errors))
	}
	c := tel.cleanupCopy()
	if c.CleanedHotCount != 1 {
		t.Errorf("got %d, want 1", c.CleanedHotCount)
	}

	// Copies are detached from the internals.
	m.Errors[0].Phase = "mutated"
	if tel.migrationCopy().Errors[0].Phase != "hot_to_warm" {
		t.Error("metric copies must not share backing arrays")
	}
}

func TestTelemetryCapsKeptErrors(t *testing.T) {
	tel := &telemetry{}
	var errs []PhaseError
	for i := 0; i < maxKeptErrors+50; i++ {
		errs = append(errs, PhaseError{Phase: "hot_to_warm", Err: "x"})
	}
	tel.accumulate(MigrationMetrics{Errors: errs}, CleanupMetrics{})

	if got := len(tel.migrationCopy().Errors); got != maxKeptErrors {
		t.Errorf("got %d kept errors, want %d", got, maxKeptErrors)
	}
}
