// Package session owns the class-session state machine: a session is opened
// for one (subject, date) pair, collects attendance marks in memory, and is
// closed with derived timing fields. Saving the marks as a durable log entry
// is the logbook's job.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"classtrack/internal/metrics"
	"classtrack/internal/roster"
	"classtrack/internal/store"
	"classtrack/internal/timemath"
)

// ErrSessionNotStarted is returned when an operation needs a started session
// and none exists for the (subject, date) pair.
var ErrSessionNotStarted = errors.New("class session not started")

// Engine drives session lifecycles and keeps the live sessions of this
// process in memory. Starting a pair that already has a session silently
// resets it, matching the overwrite-under-the-same-key behavior the rest of
// the system depends on.
type Engine struct {
	kv  store.KV
	log zerolog.Logger

	mu   sync.Mutex
	live map[string]*ClassSession
}

// NewEngine creates an engine over the given store.
func NewEngine(kv store.KV, log zerolog.Logger) *Engine {
	return &Engine{
		kv:   kv,
		log:  log.With().Str("component", "session").Logger(),
		live: make(map[string]*ClassSession),
	}
}

// Start opens (or silently resets) the session for subject on now's date and
// persists the working state. Lateness is judged against the subject's
// scheduled start interpreted as occurring today; schedule strings that do
// not parse leave the session on time with the default duration.
func (e *Engine) Start(ctx context.Context, subject roster.Subject, faculty string, now time.Time) (*ClassSession, error) {
	date := now.Format("2006-01-02")

	delay := 0
	isLate := false
	if window, err := timemath.ParseScheduleWindow(subject.Time); err == nil {
		d := timemath.Lateness(now, window.StartMinute)
		if d > 0 {
			delay = d
		}
		isLate = timemath.IsLate(d)
	}

	sess := &ClassSession{
		SubjectID:         subject.ID,
		SubjectName:       subject.Name,
		Faculty:           faculty,
		Date:              date,
		StartTime:         now,
		IsLateStart:       isLate,
		DelayMinutes:      delay,
		ScheduledDuration: timemath.ScheduledDurationMinutes(subject.Time),
		Attendance:        make(map[string]Mark),
	}

	if err := e.persist(ctx, sess); err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.live[pairKey(subject.ID, date)] = sess
	e.mu.Unlock()

	metrics.SessionsStarted.Inc()
	if isLate {
		metrics.LateStarts.Inc()
		e.log.Warn().Str("subject", subject.ID).Str("date", date).
			Str("delay", timemath.FormatDelay(delay)).Msg("class started late")
	} else {
		e.log.Info().Str("subject", subject.ID).Str("date", date).Msg("class started")
	}
	return sess, nil
}

// Get returns the live session for the pair, falling back to the persisted
// working state (and any previously saved marks) when this process has not
// seen it yet. Returns ErrSessionNotStarted when no session exists.
func (e *Engine) Get(ctx context.Context, subjectID, date string) (*ClassSession, error) {
	e.mu.Lock()
	if sess, ok := e.live[pairKey(subjectID, date)]; ok {
		e.mu.Unlock()
		return sess, nil
	}
	e.mu.Unlock()

	raw, err := e.kv.Get(ctx, store.SessionKey(subjectID, date))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrSessionNotStarted
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	var sess ClassSession
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	sess.Attendance = make(map[string]Mark)

	// Marks saved by an earlier process live inside the per-pair log copy.
	if saved, err := e.kv.Get(ctx, store.AttendanceKey(subjectID, date)); err == nil {
		var snapshot struct {
			Attendance map[string]Mark `json:"attendance"`
		}
		if err := json.Unmarshal([]byte(saved), &snapshot); err == nil && snapshot.Attendance != nil {
			sess.Attendance = snapshot.Attendance
		}
	}

	e.mu.Lock()
	e.live[pairKey(subjectID, date)] = &sess
	e.mu.Unlock()
	return &sess, nil
}

// RecordMark sets one student's mark on the pair's session. Purely in-memory;
// nothing touches the store until the attendance is saved.
func (e *Engine) RecordMark(ctx context.Context, subjectID, date, studentID string, status Status, markedBy string, now time.Time) (Mark, error) {
	sess, err := e.Get(ctx, subjectID, date)
	if err != nil {
		return Mark{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return sess.RecordMark(studentID, status, markedBy, now, false), nil
}

// QuickToggle cycles a student's mark present -> absent -> late -> present.
// An unmarked student is treated as present, so the first tap yields absent.
func (e *Engine) QuickToggle(ctx context.Context, subjectID, date, studentID, markedBy string, now time.Time) (Mark, error) {
	sess, err := e.Get(ctx, subjectID, date)
	if err != nil {
		return Mark{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	current := StatusPresent
	if mark, ok := sess.Attendance[studentID]; ok {
		current = mark.Status
	}
	return sess.RecordMark(studentID, current.NextInCycle(), markedBy, now, false), nil
}

// ApplyDefaultPresent bulk-marks the roster present on the pair's session.
func (e *Engine) ApplyDefaultPresent(ctx context.Context, subjectID, date string, students []roster.Student, markedBy string, now time.Time, onlyUnmarked bool) (*ClassSession, error) {
	sess, err := e.Get(ctx, subjectID, date)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(students))
	for i, st := range students {
		ids[i] = st.ID
	}
	e.mu.Lock()
	sess.ApplyDefaultPresent(ids, now, markedBy, onlyUnmarked)
	e.mu.Unlock()
	return sess, nil
}

// End closes the session, derives duration, shortfall and efficiency, and
// persists the updated working state. Ending an already-ended session
// recomputes everything from the later instant; the original system allows
// this and downstream consumers rely on the overwrite.
func (e *Engine) End(ctx context.Context, sess *ClassSession, now time.Time) error {
	if !sess.Started() {
		return ErrSessionNotStarted
	}

	actual := timemath.ElapsedMinutes(sess.StartTime, now)
	shortfall := sess.ScheduledDuration - actual
	if shortfall < 0 {
		shortfall = 0
	}
	efficiency := timemath.Efficiency(actual, sess.ScheduledDuration)

	e.mu.Lock()
	end := now
	sess.EndTime = &end
	sess.ActualDuration = &actual
	sess.Shortfall = &shortfall
	sess.IsShortClass = shortfall > timemath.LateThresholdMinutes
	sess.Efficiency = &efficiency
	e.mu.Unlock()

	if err := e.persist(ctx, sess); err != nil {
		return err
	}

	metrics.SessionsEnded.Inc()
	if sess.IsShortClass {
		metrics.ShortClasses.Inc()
	}
	e.log.Info().Str("subject", sess.SubjectID).Str("date", sess.Date).
		Int("actual_minutes", actual).Int("efficiency_pct", efficiency).
		Bool("short", sess.IsShortClass).Msg("class ended")
	return nil
}

// Snapshot returns a copy of the session's attendance map, for building a
// log entry without racing concurrent marks.
func (e *Engine) Snapshot(sess *ClassSession) map[string]Mark {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]Mark, len(sess.Attendance))
	for id, mark := range sess.Attendance {
		out[id] = mark
	}
	return out
}

func (e *Engine) persist(ctx context.Context, sess *ClassSession) error {
	e.mu.Lock()
	raw, err := json.Marshal(sess)
	e.mu.Unlock()
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	if err := e.kv.Set(ctx, store.SessionKey(sess.SubjectID, sess.Date), string(raw)); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func pairKey(subjectID, date string) string {
	return subjectID + "_" + date
}
