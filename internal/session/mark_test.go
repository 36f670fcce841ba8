package session

import (
	"encoding/json"
	"testing"
	"time"
)

func TestMarkDecodesBothShapes(t *testing.T) {
	var marks map[string]Mark
	raw := `{
		"s1": "present",
		"s2": {"status": "late", "timestamp": "2024-03-04T09:06:00Z", "markedBy": "KS", "isDefault": false},
		"s3": {"status": "present", "isDefault": true}
	}`
	if err := json.Unmarshal([]byte(raw), &marks); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if !marks["s1"].IsLegacy() || marks["s1"].Status != StatusPresent {
		t.Errorf("legacy mark = %+v, want legacy present", marks["s1"])
	}
	if marks["s2"].IsLegacy() || marks["s2"].Status != StatusLate || marks["s2"].MarkedBy != "KS" {
		t.Errorf("record mark = %+v", marks["s2"])
	}
	want := time.Date(2024, 3, 4, 9, 6, 0, 0, time.UTC)
	if !marks["s2"].Timestamp.Equal(want) {
		t.Errorf("timestamp = %v, want %v", marks["s2"].Timestamp, want)
	}
	if !marks["s3"].IsDefault {
		t.Error("isDefault lost in decoding")
	}
}

func TestMarkRoundTripPreservesLegacyShape(t *testing.T) {
	raw := `{"s1":"present"}`
	var marks map[string]Mark
	if err := json.Unmarshal([]byte(raw), &marks); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	out, err := json.Marshal(marks)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(out) != raw {
		t.Errorf("round trip = %s, want %s", out, raw)
	}
}

func TestStatusCycle(t *testing.T) {
	if StatusPresent.NextInCycle() != StatusAbsent ||
		StatusAbsent.NextInCycle() != StatusLate ||
		StatusLate.NextInCycle() != StatusPresent {
		t.Error("cycle must run present -> absent -> late -> present")
	}
	if Status("bogus").Valid() {
		t.Error("unknown status must not validate")
	}
}

func TestCountMarks(t *testing.T) {
	sess := &ClassSession{}
	now := time.Now()
	sess.RecordMark("a", StatusPresent, "KS", now, false)
	sess.RecordMark("b", StatusPresent, "KS", now, false)
	sess.RecordMark("c", StatusLate, "KS", now, false)
	sess.RecordMark("d", StatusAbsent, "KS", now, false)

	c := sess.CountMarks(6)
	if c.Present != 2 || c.Late != 1 || c.Absent != 1 || c.Unmarked != 2 || c.Total != 6 {
		t.Errorf("counts = %+v", c)
	}
}
