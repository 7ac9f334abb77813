package strata

import (
	"errors"
	"fmt"
	"syscall"
	"testing"
)

func TestIsCapacityExhaustedClassifiesByCodeNotText(t *testing.T) {
	typed := Error{Code: CapacityExhausted, Err: errors.New("anything at all")}
	if !IsCapacityExhausted(typed) {
		t.Error("typed capacity error should classify")
	}
	if !IsCapacityExhausted(fmt.Errorf("wrapped: %w", typed)) {
		t.Error("wrapping must not hide the code")
	}
	// Message text alone never classifies.
	if IsCapacityExhausted(errors.New("OOM command not allowed")) {
		t.Error("classification must key off the code, not the message")
	}
	if IsCapacityExhausted(nil) {
		t.Error("nil is not an error")
	}
}

func TestIsCapacityExhaustedCoversOSErrnos(t *testing.T) {
	if !IsCapacityExhausted(fmt.Errorf("write failed: %w", syscall.ENOSPC)) {
		t.Error("ENOSPC should classify as capacity exhaustion")
	}
	if !IsCapacityExhausted(fmt.Errorf("write failed: %w", syscall.EDQUOT)) {
		t.Error("EDQUOT should classify as capacity exhaustion")
	}
}

func TestShouldRetrySkipsPermanentFailures(t *testing.T) {
	if ShouldRetry(nil) {
		t.Error("nil error is not retryable")
	}
	if ShouldRetry(Error{Code: CapacityExhausted, Err: errors.New("full")}) {
		t.Error("capacity exhaustion belongs to the breaker, not the retrier")
	}
	if ShouldRetry(Error{Code: InvalidRecord, Err: errors.New("bad")}) {
		t.Error("malformed records are never retried")
	}
	if !ShouldRetry(errors.New("connection refused")) {
		t.Error("transient failures should retry")
	}
}
