package session

import (
	"encoding/json"
	"fmt"
	"time"
)

// Status is an attendance status. Unmarked students carry no status at all;
// they are simply absent from the attendance map.
type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
	StatusLate    Status = "late"
)

// Valid reports whether s is one of the three known statuses.
func (s Status) Valid() bool {
	return s == StatusPresent || s == StatusAbsent || s == StatusLate
}

// NextInCycle returns the quick-toggle successor: present -> absent -> late
// -> present.
func (s Status) NextInCycle() Status {
	switch s {
	case StatusPresent:
		return StatusAbsent
	case StatusAbsent:
		return StatusLate
	default:
		return StatusPresent
	}
}

// Mark is one student's attendance record within a session. Older data stores
// marks as bare status strings; the JSON codec accepts both shapes and
// re-emits legacy marks as strings so rewriting the log array never mutates
// records this process did not touch.
type Mark struct {
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	MarkedBy  string    `json:"markedBy"`
	IsDefault bool      `json:"isDefault"`

	legacy bool
}

// LegacyMark builds a bare-string mark, used by tests and migrations.
func LegacyMark(status Status) Mark {
	return Mark{Status: status, legacy: true}
}

// IsLegacy reports whether the mark was stored as a bare status string.
func (m Mark) IsLegacy() bool { return m.legacy }

type markRecord struct {
	Status    Status     `json:"status"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
	MarkedBy  string     `json:"markedBy,omitempty"`
	IsDefault bool       `json:"isDefault,omitempty"`
}

// UnmarshalJSON accepts both the object shape and the legacy bare string.
func (m *Mark) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s Status
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*m = Mark{Status: s, legacy: true}
		return nil
	}
	var rec markRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return fmt.Errorf("attendance mark: %w", err)
	}
	m.Status = rec.Status
	m.MarkedBy = rec.MarkedBy
	m.IsDefault = rec.IsDefault
	m.legacy = false
	if rec.Timestamp != nil {
		m.Timestamp = *rec.Timestamp
	} else {
		m.Timestamp = time.Time{}
	}
	return nil
}

// MarshalJSON re-emits legacy marks as bare strings and everything else as
// the full record.
func (m Mark) MarshalJSON() ([]byte, error) {
	if m.legacy {
		return json.Marshal(m.Status)
	}
	rec := markRecord{Status: m.Status, MarkedBy: m.MarkedBy, IsDefault: m.IsDefault}
	if !m.Timestamp.IsZero() {
		ts := m.Timestamp
		rec.Timestamp = &ts
	}
	return json.Marshal(rec)
}
