package strata

import (
	"errors"
	"testing"
)

func TestValidateRejectsBadRecords(t *testing.T) {
	tests := []struct {
		name string
		r    Record
		ok   bool
	}{
		{"valid", Record{IdentityKey: "k", Version: 1, Payload: []byte(`{"a":1}`)}, true},
		{"valid tombstone without payload", Record{IdentityKey: "k", Version: 1, Deleted: true}, true},
		{"empty identity key", Record{Version: 1}, false},
		{"negative version", Record{IdentityKey: "k", Version: -1}, false},
		{"malformed payload", Record{IdentityKey: "k", Version: 1, Payload: []byte(`{oops`)}, false},
	}
	for _, tt := range tests {
		err := tt.r.Validate()
		if tt.ok && err != nil {
			t.Errorf("%s: got %v, want valid", tt.name, err)
		}
		if !tt.ok {
			var e Error
			if !errors.As(err, &e) || e.Code != InvalidRecord {
				t.Errorf("%s: got %v, want an InvalidRecord error", tt.name, err)
			}
		}
	}
}

func TestSplitKeyDefaultsToKVNamespace(t *testing.T) {
	if ns, id := SplitKey("snapshot/abc"); ns != NamespaceSnapshot || id != "abc" {
		t.Errorf("got %s %s", ns, id)
	}
	if ns, id := SplitKey("plain"); ns != NamespaceKV || id != "plain" {
		t.Errorf("got %s %s, want kv fallback", ns, id)
	}
	// Only the first separator splits; the rest belongs to the identity key.
	if _, id := SplitKey("snapshot/a/b"); id != "a/b" {
		t.Errorf("got %s, want a/b", id)
	}
}

func TestTimeRangeContains(t *testing.T) {
	rng := TimeRange{FromMillis: 100, ToMillis: 200}
	for ts, want := range map[int64]bool{99: false, 100: true, 150: true, 200: true, 201: false} {
		if got := rng.Contains(ts); got != want {
			t.Errorf("Contains(%d) = %v, want %v", ts, got, want)
		}
	}
	open := TimeRange{}
	if !open.Contains(1) || !open.Contains(1<<60) {
		t.Error("zero range should contain everything")
	}
}
