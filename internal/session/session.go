package session

import (
	"time"
)

// ClassSession is the working state of one teacher taking attendance for one
// subject on one date. The end-of-session fields stay nil until End runs.
// The attendance map lives only in memory; it is persisted as part of the
// attendance log at save time, never with the session itself.
type ClassSession struct {
	SubjectID         string     `json:"subjectId"`
	SubjectName       string     `json:"subjectName"`
	Faculty           string     `json:"faculty"`
	Date              string     `json:"date"`
	StartTime         time.Time  `json:"startTime"`
	IsLateStart       bool       `json:"isLateStart"`
	DelayMinutes      int        `json:"delayMinutes"`
	ScheduledDuration int        `json:"scheduledDuration"`
	EndTime           *time.Time `json:"endTime,omitempty"`
	ActualDuration    *int       `json:"actualDuration,omitempty"`
	Shortfall         *int       `json:"shortfall,omitempty"`
	IsShortClass      bool       `json:"isShortClass,omitempty"`
	Efficiency        *int       `json:"efficiency,omitempty"`

	Attendance map[string]Mark `json:"-"`
}

// Started reports whether the session has a start instant.
func (s *ClassSession) Started() bool {
	return s != nil && !s.StartTime.IsZero()
}

// Ended reports whether End has run at least once.
func (s *ClassSession) Ended() bool {
	return s != nil && s.EndTime != nil
}

// RecordMark sets or replaces one student's mark. No history of prior marks
// is kept. Not safe for concurrent use; the engine serializes callers.
func (s *ClassSession) RecordMark(studentID string, status Status, markedBy string, now time.Time, isDefault bool) Mark {
	if s.Attendance == nil {
		s.Attendance = make(map[string]Mark)
	}
	mark := Mark{
		Status:    status,
		Timestamp: now,
		MarkedBy:  markedBy,
		IsDefault: isDefault,
	}
	s.Attendance[studentID] = mark
	return mark
}

// ApplyDefaultPresent bulk-marks students present. With onlyUnmarked it fills
// gaps and leaves existing marks untouched, so repeated application is a
// no-op for already-marked students; without it every student is overwritten.
func (s *ClassSession) ApplyDefaultPresent(studentIDs []string, now time.Time, markedBy string, onlyUnmarked bool) {
	if s.Attendance == nil {
		s.Attendance = make(map[string]Mark)
	}
	for _, id := range studentIDs {
		if onlyUnmarked {
			if _, marked := s.Attendance[id]; marked {
				continue
			}
		}
		s.Attendance[id] = Mark{
			Status:    StatusPresent,
			Timestamp: now,
			MarkedBy:  markedBy,
			IsDefault: true,
		}
	}
}

// Counts summarizes the attendance map against a roster of total students.
type Counts struct {
	Present  int `json:"present"`
	Absent   int `json:"absent"`
	Late     int `json:"late"`
	Total    int `json:"total"`
	Unmarked int `json:"unmarked"`
}

// CountMarks tallies the session's marks; unmarked is relative to total.
func (s *ClassSession) CountMarks(total int) Counts {
	c := Counts{Total: total}
	for _, mark := range s.Attendance {
		switch mark.Status {
		case StatusPresent:
			c.Present++
		case StatusAbsent:
			c.Absent++
		case StatusLate:
			c.Late++
		}
	}
	c.Unmarked = total - (c.Present + c.Absent + c.Late)
	return c
}
