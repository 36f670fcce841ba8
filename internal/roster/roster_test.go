package roster

import (
	"context"
	"testing"

	"classtrack/internal/store"
)

func TestStudentsSeedOnFirstRead(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemory()
	repo := NewRepo(kv, SeedStudents())

	students, err := repo.Students(ctx)
	if err != nil {
		t.Fatalf("students: %v", err)
	}
	if len(students) != 8 {
		t.Fatalf("seeded %d students, want 8", len(students))
	}

	// The seed is written through, so later reads come from the store.
	if _, err := kv.Get(ctx, store.KeyStudents); err != nil {
		t.Errorf("seed not persisted: %v", err)
	}
	again, err := repo.Students(ctx)
	if err != nil {
		t.Fatalf("second read: %v", err)
	}
	if len(again) != 8 {
		t.Errorf("second read = %d students, want 8", len(again))
	}
}

func TestStudentsNoSeedReadsEmpty(t *testing.T) {
	repo := NewRepo(store.NewMemory(), nil)
	students, err := repo.Students(context.Background())
	if err != nil {
		t.Fatalf("students: %v", err)
	}
	if len(students) != 0 {
		t.Errorf("unseeded read = %d students, want 0", len(students))
	}
}

func TestSubjectLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewRepo(store.NewMemory(), nil)

	subjects, err := repo.Subjects(ctx)
	if err != nil {
		t.Fatalf("subjects: %v", err)
	}
	if len(subjects) != 0 {
		t.Fatal("missing key must read as empty")
	}

	added, err := repo.AddSubject(ctx, Subject{Name: "Physics", Faculty: "KS", Day: "Monday", Time: "09:00-09:40"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if added.ID == "" || added.CreatedAt.IsZero() {
		t.Errorf("added subject missing id or createdAt: %+v", added)
	}

	got, err := repo.Subject(ctx, added.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Physics" {
		t.Errorf("got %+v", got)
	}

	added.Time = "10:00-10:40"
	if err := repo.UpdateSubject(ctx, added); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ = repo.Subject(ctx, added.ID)
	if got.Time != "10:00-10:40" {
		t.Errorf("update lost: %+v", got)
	}
	if got.CreatedAt.IsZero() {
		t.Error("update must preserve createdAt")
	}

	if err := repo.RemoveSubject(ctx, added.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := repo.Subject(ctx, added.ID); err != ErrSubjectNotFound {
		t.Errorf("lookup after remove: err = %v, want ErrSubjectNotFound", err)
	}
}

func TestUpdateUnknownSubject(t *testing.T) {
	repo := NewRepo(store.NewMemory(), nil)
	err := repo.UpdateSubject(context.Background(), Subject{ID: "nope", Name: "X", Faculty: "Y"})
	if err != ErrSubjectNotFound {
		t.Errorf("err = %v, want ErrSubjectNotFound", err)
	}
}

func TestAddStudent(t *testing.T) {
	ctx := context.Background()
	repo := NewRepo(store.NewMemory(), nil)
	added, err := repo.AddStudent(ctx, Student{Name: "Omar Abdullah", RollNumber: "ST005", ClassName: "Class A"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if added.ID == "" {
		t.Error("student id not assigned")
	}
	students, _ := repo.Students(ctx)
	if len(students) != 1 || students[0].RollNumber != "ST005" {
		t.Errorf("students = %+v", students)
	}
}
