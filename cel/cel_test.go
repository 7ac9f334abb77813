package cel

import "testing"

func TestEvaluateAgainstRecordFields(t *testing.T) {
	ev, err := NewEvaluator(`rec.owner_id == "u1" && rec.version > 3`)
	if err != nil {
		t.Fatal(err)
	}

	match, err := ev.Evaluate(map[string]any{"owner_id": "u1", "version": int64(5)})
	if err != nil {
		t.Fatal(err)
	}
	if !match {
		t.Error("expression should match")
	}

	match, err = ev.Evaluate(map[string]any{"owner_id": "u2", "version": int64(5)})
	if err != nil {
		t.Fatal(err)
	}
	if match {
		t.Error("expression should not match a different owner")
	}
}

func TestNewEvaluatorRejectsBadInput(t *testing.T) {
	if _, err := NewEvaluator(""); err == nil {
		t.Error("empty expression should be rejected")
	}
	if _, err := NewEvaluator("rec.owner_id =="); err == nil {
		t.Error("malformed expression should fail to compile")
	}
}

func TestEvaluateRequiresBooleanResult(t *testing.T) {
	ev, err := NewEvaluator(`rec.version + 1`)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ev.Evaluate(map[string]any{"version": int64(1)}); err == nil {
		t.Error("non-boolean result should be an error")
	}
}
