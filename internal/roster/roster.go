// Package roster manages the subject and student reference collections.
package roster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"classtrack/internal/store"
)

// Subject is one timetabled class. Time is the "HH:MM-HH:MM" schedule string
// the session engine parses.
type Subject struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Faculty   string    `json:"faculty"`
	Day       string    `json:"day"`
	Time      string    `json:"time"`
	CreatedAt time.Time `json:"createdAt"`
}

// Student is one enrolled student. Roll numbers are intended unique but the
// core does not enforce it.
type Student struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	RollNumber string    `json:"rollNumber"`
	ClassName  string    `json:"className"`
	Email      string    `json:"email,omitempty"`
	CreatedAt  time.Time `json:"createdAt,omitempty"`
}

// ErrSubjectNotFound is returned when a subject id has no entry.
var ErrSubjectNotFound = errors.New("subject not found")

// Repo reads and writes the reference collections. Missing collection keys
// read as empty, except students, which are seeded on first read.
type Repo struct {
	kv   store.KV
	seed []Student
}

// NewRepo creates a repo; seed (may be nil) is written once when the
// students key has never been set.
func NewRepo(kv store.KV, seed []Student) *Repo {
	return &Repo{kv: kv, seed: seed}
}

// Subjects returns all subjects in insertion order.
func (r *Repo) Subjects(ctx context.Context) ([]Subject, error) {
	var subjects []Subject
	if err := r.readCollection(ctx, store.KeySubjects, &subjects); err != nil {
		return nil, err
	}
	return subjects, nil
}

// Subject returns one subject by id.
func (r *Repo) Subject(ctx context.Context, id string) (Subject, error) {
	subjects, err := r.Subjects(ctx)
	if err != nil {
		return Subject{}, err
	}
	for _, s := range subjects {
		if s.ID == id {
			return s, nil
		}
	}
	return Subject{}, ErrSubjectNotFound
}

// AddSubject appends a subject, assigning an id when absent.
func (r *Repo) AddSubject(ctx context.Context, s Subject) (Subject, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	subjects, err := r.Subjects(ctx)
	if err != nil {
		return Subject{}, err
	}
	subjects = append(subjects, s)
	return s, r.writeCollection(ctx, store.KeySubjects, subjects)
}

// UpdateSubject replaces the subject with the same id.
func (r *Repo) UpdateSubject(ctx context.Context, s Subject) error {
	subjects, err := r.Subjects(ctx)
	if err != nil {
		return err
	}
	for i := range subjects {
		if subjects[i].ID == s.ID {
			s.CreatedAt = subjects[i].CreatedAt
			subjects[i] = s
			return r.writeCollection(ctx, store.KeySubjects, subjects)
		}
	}
	return ErrSubjectNotFound
}

// RemoveSubject drops the subject row. Cascading removal of its attendance
// data is the logbook's purge; callers run both.
func (r *Repo) RemoveSubject(ctx context.Context, id string) error {
	subjects, err := r.Subjects(ctx)
	if err != nil {
		return err
	}
	kept := subjects[:0]
	for _, s := range subjects {
		if s.ID != id {
			kept = append(kept, s)
		}
	}
	return r.writeCollection(ctx, store.KeySubjects, kept)
}

// Students returns all students, seeding the collection on first read when a
// seed was configured.
func (r *Repo) Students(ctx context.Context) ([]Student, error) {
	raw, err := r.kv.Get(ctx, store.KeyStudents)
	if errors.Is(err, store.ErrNotFound) {
		if len(r.seed) == 0 {
			return nil, nil
		}
		if err := r.writeCollection(ctx, store.KeyStudents, r.seed); err != nil {
			return nil, err
		}
		return r.seed, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", store.KeyStudents, err)
	}
	var students []Student
	if err := json.Unmarshal([]byte(raw), &students); err != nil {
		return nil, fmt.Errorf("decode %s: %w", store.KeyStudents, err)
	}
	return students, nil
}

// AddStudent appends a student, assigning an id when absent.
func (r *Repo) AddStudent(ctx context.Context, s Student) (Student, error) {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	students, err := r.Students(ctx)
	if err != nil {
		return Student{}, err
	}
	students = append(students, s)
	return s, r.writeCollection(ctx, store.KeyStudents, students)
}

func (r *Repo) readCollection(ctx context.Context, key string, out any) error {
	raw, err := r.kv.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return fmt.Errorf("decode %s: %w", key, err)
	}
	return nil
}

func (r *Repo) writeCollection(ctx context.Context, key string, val any) error {
	raw, err := json.Marshal(val)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := r.kv.Set(ctx, key, string(raw)); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}
