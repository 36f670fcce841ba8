// Package logbook persists completed sessions as attendance log entries.
// The attendanceLogs array is the source of truth, with at most one entry per
// (subject, date) pair; each save also refreshes a denormalized per-pair key
// so a single session can be reloaded without scanning the array.
package logbook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"classtrack/internal/metrics"
	"classtrack/internal/session"
	"classtrack/internal/store"
)

// Entry is the durable record of one saved session. ClassSession is nil for
// legacy entries that recorded only a bare startTime; consumers treat those
// sessions as on time with unknown duration.
type Entry struct {
	Date            string                  `json:"date"`
	SubjectID       string                  `json:"subjectId"`
	SubjectName     string                  `json:"subjectName"`
	Faculty         string                  `json:"faculty"`
	ScheduledTime   string                  `json:"scheduledTime"`
	Attendance      map[string]session.Mark `json:"attendance"`
	ClassSession    *session.ClassSession   `json:"classSession,omitempty"`
	StartTime       *time.Time              `json:"startTime,omitempty"`
	TotalStudents   int                     `json:"totalStudents"`
	SavedAt         time.Time               `json:"savedAt"`
	ActualDuration  *int                    `json:"actualDuration,omitempty"`
	Efficiency      *int                    `json:"efficiency,omitempty"`
	DefaultsApplied bool                    `json:"defaultsApplied,omitempty"`
}

// IsLateStart reports whether the entry's session started late.
func (e Entry) IsLateStart() bool {
	return e.ClassSession != nil && e.ClassSession.IsLateStart
}

// IsShortClass reports whether the entry's session ran short.
func (e Entry) IsShortClass() bool {
	return e.ClassSession != nil && e.ClassSession.IsShortClass
}

// ScheduledDuration returns the session's scheduled minutes, 0 when unknown.
func (e Entry) ScheduledDuration() int {
	if e.ClassSession == nil {
		return 0
	}
	return e.ClassSession.ScheduledDuration
}

// BuildEntry assembles a log entry from a session and a snapshot of its
// marks. Pure; persistence happens in Upsert.
func BuildEntry(sess *session.ClassSession, marks map[string]session.Mark, scheduledTime string, totalStudents int, now time.Time) Entry {
	snapshot := *sess
	snapshot.Attendance = nil
	entry := Entry{
		Date:          sess.Date,
		SubjectID:     sess.SubjectID,
		SubjectName:   sess.SubjectName,
		Faculty:       sess.Faculty,
		ScheduledTime: scheduledTime,
		Attendance:    marks,
		ClassSession:  &snapshot,
		TotalStudents: totalStudents,
		SavedAt:       now,
	}
	if sess.ActualDuration != nil {
		d := *sess.ActualDuration
		entry.ActualDuration = &d
	}
	if sess.Efficiency != nil {
		p := *sess.Efficiency
		entry.Efficiency = &p
	}
	for _, mark := range marks {
		if mark.IsDefault {
			entry.DefaultsApplied = true
			break
		}
	}
	return entry
}

// Repo reads and writes the log collection.
type Repo struct {
	kv  store.KV
	log zerolog.Logger
}

// NewRepo creates a repo over the given store.
func NewRepo(kv store.KV, log zerolog.Logger) *Repo {
	return &Repo{kv: kv, log: log.With().Str("component", "logbook").Logger()}
}

// All returns every log entry in insertion order; a missing collection reads
// as empty.
func (r *Repo) All(ctx context.Context) ([]Entry, error) {
	raw, err := r.kv.Get(ctx, store.KeyAttendanceLogs)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", store.KeyAttendanceLogs, err)
	}
	var entries []Entry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, fmt.Errorf("decode %s: %w", store.KeyAttendanceLogs, err)
	}
	return entries, nil
}

// Upsert saves an entry under both the per-pair key and the attendanceLogs
// array, replacing any prior entry for the same (subject, date). The two
// writes are not atomic; a failure between them is retryable because both
// are replace-by-key, and the worker rebuilds the pair key from the array.
func (r *Repo) Upsert(ctx context.Context, entry Entry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode log entry: %w", err)
	}
	if err := r.kv.Set(ctx, store.AttendanceKey(entry.SubjectID, entry.Date), string(raw)); err != nil {
		return fmt.Errorf("write attendance snapshot: %w", err)
	}

	entries, err := r.All(ctx)
	if err != nil {
		return err
	}
	kept := entries[:0]
	for _, e := range entries {
		if !(e.SubjectID == entry.SubjectID && e.Date == entry.Date) {
			kept = append(kept, e)
		}
	}
	kept = append(kept, entry)
	if err := r.writeAll(ctx, kept); err != nil {
		return err
	}

	metrics.LogsSaved.Inc()
	r.log.Info().Str("subject", entry.SubjectID).Str("date", entry.Date).
		Int("marked", len(entry.Attendance)).Int("total", entry.TotalStudents).
		Msg("attendance saved")
	return nil
}

// RebuildPairCache rewrites the denormalized per-pair key from the array, or
// removes it when the array no longer holds the pair. Used by the worker to
// close the gap the non-atomic double write leaves open.
func (r *Repo) RebuildPairCache(ctx context.Context, subjectID, date string) error {
	entries, err := r.All(ctx)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.SubjectID == subjectID && e.Date == date {
			raw, err := json.Marshal(e)
			if err != nil {
				return fmt.Errorf("encode log entry: %w", err)
			}
			if err := r.kv.Set(ctx, store.AttendanceKey(subjectID, date), string(raw)); err != nil {
				return fmt.Errorf("write attendance snapshot: %w", err)
			}
			metrics.CacheRebuilds.Inc()
			return nil
		}
	}
	return r.kv.Remove(ctx, store.AttendanceKey(subjectID, date))
}

// PurgeSubject removes every log entry and every per-pair attendance and
// session key belonging to the subject. The subject row itself is the
// roster's to delete; handlers run both halves of the cascade.
func (r *Repo) PurgeSubject(ctx context.Context, subjectID string) error {
	entries, err := r.All(ctx)
	if err != nil {
		return err
	}
	kept := entries[:0]
	for _, e := range entries {
		if e.SubjectID != subjectID {
			kept = append(kept, e)
		}
	}
	if err := r.writeAll(ctx, kept); err != nil {
		return err
	}

	keys, err := r.kv.ListKeys(ctx)
	if err != nil {
		return fmt.Errorf("list keys: %w", err)
	}
	var scoped []string
	attendancePrefix := "attendance_" + subjectID + "_"
	sessionPrefix := "session_" + subjectID + "_"
	for _, k := range keys {
		if strings.HasPrefix(k, attendancePrefix) || strings.HasPrefix(k, sessionPrefix) {
			scoped = append(scoped, k)
		}
	}
	if err := r.kv.RemoveMany(ctx, scoped); err != nil {
		return fmt.Errorf("remove subject keys: %w", err)
	}

	metrics.SubjectsPurged.Inc()
	r.log.Info().Str("subject", subjectID).Int("keys_removed", len(scoped)).
		Msg("subject attendance data purged")
	return nil
}

func (r *Repo) writeAll(ctx context.Context, entries []Entry) error {
	if entries == nil {
		entries = []Entry{}
	}
	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode %s: %w", store.KeyAttendanceLogs, err)
	}
	if err := r.kv.Set(ctx, store.KeyAttendanceLogs, string(raw)); err != nil {
		return fmt.Errorf("write %s: %w", store.KeyAttendanceLogs, err)
	}
	return nil
}
