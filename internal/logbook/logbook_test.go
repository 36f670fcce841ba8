package logbook

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"classtrack/internal/roster"
	"classtrack/internal/session"
	"classtrack/internal/store"
)

func at(h, m int) time.Time {
	return time.Date(2024, 1, 1, h, m, 0, 0, time.UTC)
}

func startedSession(e *session.Engine, subjectID string, marks int) (*session.ClassSession, error) {
	subject := roster.Subject{ID: subjectID, Name: subjectID, Faculty: "KS", Time: "09:00-09:40"}
	sess, err := e.Start(context.Background(), subject, "KS", at(9, 5))
	if err != nil {
		return nil, err
	}
	ids := []string{"s1", "s2", "s3"}
	for i := 0; i < marks && i < len(ids); i++ {
		sess.RecordMark(ids[i], session.StatusPresent, "KS", at(9, 6), false)
	}
	return sess, nil
}

func TestSaveNormalFlow(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	engine := session.NewEngine(kv, zerolog.Nop())
	repo := NewRepo(kv, zerolog.Nop())

	sess, err := startedSession(engine, "PHYS", 2)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	sess.RecordMark("s3", session.StatusAbsent, "KS", at(9, 7), false)
	delete(sess.Attendance, "s3") // unmarked student: absent from the map, not a fourth status

	if err := engine.End(ctx, sess, at(9, 50)); err != nil {
		t.Fatalf("end: %v", err)
	}

	entry := BuildEntry(sess, engine.Snapshot(sess), "09:00-09:40", 3, at(9, 51))
	if err := repo.Upsert(ctx, entry); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	logs, err := repo.All(ctx)
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("log count = %d, want 1", len(logs))
	}
	got := logs[0]
	if got.TotalStudents != 3 || len(got.Attendance) != 2 {
		t.Errorf("totalStudents=%d marked=%d, want 3 and 2", got.TotalStudents, len(got.Attendance))
	}
	if got.ClassSession == nil || *got.ClassSession.Efficiency != 113 {
		t.Error("entry lost its session snapshot")
	}
	if got.ActualDuration == nil || *got.ActualDuration != 45 {
		t.Error("entry lost its top-level actualDuration")
	}

	// The per-pair snapshot is written alongside the array.
	if _, err := kv.Get(ctx, store.AttendanceKey("PHYS", "2024-01-01")); err != nil {
		t.Errorf("per-pair key missing: %v", err)
	}
}

func TestUpsertReplacesSamePair(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	engine := session.NewEngine(kv, zerolog.Nop())
	repo := NewRepo(kv, zerolog.Nop())

	sess, err := startedSession(engine, "PHYS", 2)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	first := BuildEntry(sess, engine.Snapshot(sess), "09:00-09:40", 3, at(9, 30))
	if err := repo.Upsert(ctx, first); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	sess.RecordMark("s3", session.StatusPresent, "KS", at(9, 31), false)
	second := BuildEntry(sess, engine.Snapshot(sess), "09:00-09:40", 3, at(9, 32))
	if err := repo.Upsert(ctx, second); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}

	logs, err := repo.All(ctx)
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("log count after re-save = %d, want 1", len(logs))
	}
	present := 0
	for _, mark := range logs[0].Attendance {
		if mark.Status == session.StatusPresent {
			present++
		}
	}
	if present != 3 {
		t.Errorf("retained entry present count = %d, want 3", present)
	}
}

func TestUpsertKeepsOtherPairs(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	engine := session.NewEngine(kv, zerolog.Nop())
	repo := NewRepo(kv, zerolog.Nop())

	for _, id := range []string{"PHYS", "CHEM"} {
		sess, err := startedSession(engine, id, 1)
		if err != nil {
			t.Fatalf("start %s: %v", id, err)
		}
		if err := repo.Upsert(ctx, BuildEntry(sess, engine.Snapshot(sess), "09:00-09:40", 3, at(10, 0))); err != nil {
			t.Fatalf("upsert %s: %v", id, err)
		}
	}

	logs, _ := repo.All(ctx)
	if len(logs) != 2 {
		t.Fatalf("log count = %d, want 2", len(logs))
	}
	// Insertion order is preserved.
	if logs[0].SubjectID != "PHYS" || logs[1].SubjectID != "CHEM" {
		t.Errorf("order = %s, %s", logs[0].SubjectID, logs[1].SubjectID)
	}
}

func TestPurgeSubjectCascades(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	engine := session.NewEngine(kv, zerolog.Nop())
	repo := NewRepo(kv, zerolog.Nop())

	for _, id := range []string{"PHYS", "CHEM"} {
		sess, err := startedSession(engine, id, 2)
		if err != nil {
			t.Fatalf("start %s: %v", id, err)
		}
		if err := repo.Upsert(ctx, BuildEntry(sess, engine.Snapshot(sess), "09:00-09:40", 3, at(10, 0))); err != nil {
			t.Fatalf("upsert %s: %v", id, err)
		}
	}

	if err := repo.PurgeSubject(ctx, "PHYS"); err != nil {
		t.Fatalf("purge: %v", err)
	}

	logs, _ := repo.All(ctx)
	if len(logs) != 1 || logs[0].SubjectID != "CHEM" {
		t.Fatalf("logs after purge = %+v", logs)
	}
	if _, err := kv.Get(ctx, store.AttendanceKey("PHYS", "2024-01-01")); !errors.Is(err, store.ErrNotFound) {
		t.Error("purged attendance key still present")
	}
	if _, err := kv.Get(ctx, store.SessionKey("PHYS", "2024-01-01")); !errors.Is(err, store.ErrNotFound) {
		t.Error("purged session key still present")
	}
	if _, err := kv.Get(ctx, store.AttendanceKey("CHEM", "2024-01-01")); err != nil {
		t.Error("unrelated subject's keys must survive a purge")
	}
}

func TestRebuildPairCache(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	engine := session.NewEngine(kv, zerolog.Nop())
	repo := NewRepo(kv, zerolog.Nop())

	sess, err := startedSession(engine, "PHYS", 2)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := repo.Upsert(ctx, BuildEntry(sess, engine.Snapshot(sess), "09:00-09:40", 3, at(10, 0))); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	// Simulate the pair key being lost between the two writes.
	if err := kv.Remove(ctx, store.AttendanceKey("PHYS", "2024-01-01")); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := repo.RebuildPairCache(ctx, "PHYS", "2024-01-01"); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if _, err := kv.Get(ctx, store.AttendanceKey("PHYS", "2024-01-01")); err != nil {
		t.Errorf("pair key not rebuilt: %v", err)
	}

	// A pair absent from the array clears any stale cache copy.
	if err := repo.RebuildPairCache(ctx, "PHYS", "2030-01-01"); err != nil {
		t.Fatalf("rebuild missing pair: %v", err)
	}
}

func TestAllMissingKeyReadsEmpty(t *testing.T) {
	repo := NewRepo(store.NewMemory(), zerolog.Nop())
	logs, err := repo.All(context.Background())
	if err != nil {
		t.Fatalf("all: %v", err)
	}
	if len(logs) != 0 {
		t.Errorf("log count = %d, want 0", len(logs))
	}
}

func TestBuildEntryFlagsDefaults(t *testing.T) {
	sess := &session.ClassSession{SubjectID: "PHYS", Date: "2024-01-01", StartTime: at(9, 0)}
	sess.ApplyDefaultPresent([]string{"s1", "s2"}, at(9, 1), "KS", false)
	entry := BuildEntry(sess, sess.Attendance, "09:00-09:40", 2, at(9, 40))
	if !entry.DefaultsApplied {
		t.Error("defaultsApplied not set when bulk marks present")
	}
}
