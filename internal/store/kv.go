package store

import (
	"context"
	"errors"
)

// Well-known collection keys. Per-pair keys are built with SessionKey and
// AttendanceKey; everything the application persists lives under one of
// these shapes.
const (
	KeySubjects       = "subjects"
	KeyStudents       = "students"
	KeyAttendanceLogs = "attendanceLogs"
)

// ErrNotFound is returned by Get when the key has never been set.
var ErrNotFound = errors.New("store: key not found")

// KV is the durable string-keyed, string-valued store the application runs
// on. Single-key operations are atomic; nothing is transactional across keys.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	RemoveMany(ctx context.Context, keys []string) error
	ListKeys(ctx context.Context) ([]string, error)
}

// SessionKey returns the working-state key for one (subject, date) session.
func SessionKey(subjectID, date string) string {
	return "session_" + subjectID + "_" + date
}

// AttendanceKey returns the denormalized per-pair log key.
func AttendanceKey(subjectID, date string) string {
	return "attendance_" + subjectID + "_" + date
}
