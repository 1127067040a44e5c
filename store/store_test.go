package store

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"

	"todokeep/kv"
	"todokeep/kv/memory"
)

// mustNewStore creates a store over fresh in-memory storage
func mustNewStore(t *testing.T) (*Store, *memory.Store, context.Context) {
	t.Helper()
	storage := memory.New()
	return New(storage), storage, context.Background()
}

// mustAdd adds a task and fails the test on error
func mustAdd(t *testing.T, s *Store, ctx context.Context, title string) *Task {
	t.Helper()
	task, err := s.Add(ctx, title)
	if err != nil {
		t.Fatalf("Add(%q) error: %v", title, err)
	}
	if task == nil {
		t.Fatalf("Add(%q) returned nil task", title)
	}
	return task
}

// TestListEmpty verifies that an uninitialized store lists an empty collection.
func TestListEmpty(t *testing.T) {
	s, _, ctx := mustNewStore(t)

	tasks, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(tasks) != 0 {
		t.Errorf("expected empty collection, got %d tasks", len(tasks))
	}
}

// TestAddThenList verifies that add followed by list contains exactly one
// more task with the given title, not completed, with a fresh unique id.
func TestAddThenList(t *testing.T) {
	s, _, ctx := mustNewStore(t)

	before, _ := s.List(ctx)
	task := mustAdd(t, s, ctx, "Buy milk")

	after, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(after) != len(before)+1 {
		t.Fatalf("expected %d tasks, got %d", len(before)+1, len(after))
	}

	got := after[len(after)-1]
	if got.Title != "Buy milk" {
		t.Errorf("expected title %q, got %q", "Buy milk", got.Title)
	}
	if got.Completed {
		t.Error("new task should not be completed")
	}
	if got.ID != task.ID {
		t.Errorf("listed id %q does not match returned id %q", got.ID, task.ID)
	}
	if got.ID == "" || got.CreatedAt == 0 {
		t.Errorf("task missing id or createdAt: %+v", got)
	}
}

// TestAddTrimsTitle verifies surrounding whitespace is removed.
func TestAddTrimsTitle(t *testing.T) {
	s, _, ctx := mustNewStore(t)

	task := mustAdd(t, s, ctx, "  Walk dog  ")
	if task.Title != "Walk dog" {
		t.Errorf("expected trimmed title, got %q", task.Title)
	}
}

// TestAddEmptyTitle verifies titles that trim to empty are rejected.
func TestAddEmptyTitle(t *testing.T) {
	s, _, ctx := mustNewStore(t)

	for _, title := range []string{"", "   ", "\t\n"} {
		_, err := s.Add(ctx, title)
		var validationErr *ValidationError
		if !errors.As(err, &validationErr) {
			t.Errorf("Add(%q): expected ValidationError, got %v", title, err)
		}
	}

	tasks, _ := s.List(ctx)
	if len(tasks) != 0 {
		t.Errorf("rejected adds must not persist, found %d tasks", len(tasks))
	}
}

// TestIDsUniqueAndIncreasing verifies the process-wide id source never
// repeats even for adds within the same millisecond.
func TestIDsUniqueAndIncreasing(t *testing.T) {
	s, _, ctx := mustNewStore(t)

	seen := make(map[string]bool)
	var prev int64
	for i := 0; i < 100; i++ {
		task := mustAdd(t, s, ctx, "task "+strconv.Itoa(i))
		if seen[task.ID] {
			t.Fatalf("duplicate id %s", task.ID)
		}
		seen[task.ID] = true

		n, err := strconv.ParseInt(task.ID, 10, 64)
		if err != nil {
			t.Fatalf("id %q is not numeric: %v", task.ID, err)
		}
		if n <= prev {
			t.Fatalf("id %d not greater than previous %d", n, prev)
		}
		prev = n
	}
}

// TestDelete verifies delete removes by id and reports missing ids without error.
func TestDelete(t *testing.T) {
	s, _, ctx := mustNewStore(t)

	task := mustAdd(t, s, ctx, "Buy milk")

	removed, err := s.Delete(ctx, task.ID)
	if err != nil {
		t.Fatalf("Delete error: %v", err)
	}
	if !removed {
		t.Error("expected removed=true for existing task")
	}

	removed, err = s.Delete(ctx, task.ID)
	if err != nil {
		t.Fatalf("Delete of missing id error: %v", err)
	}
	if removed {
		t.Error("expected removed=false for missing task")
	}
}

// TestToggleComplete verifies the flag flips and persists, and that other
// tasks are untouched.
func TestToggleComplete(t *testing.T) {
	s, _, ctx := mustNewStore(t)

	milk := mustAdd(t, s, ctx, "Buy milk")
	dog := mustAdd(t, s, ctx, "Walk dog")

	updated, err := s.ToggleComplete(ctx, milk.ID)
	if err != nil {
		t.Fatalf("ToggleComplete error: %v", err)
	}
	if !updated.Completed {
		t.Error("expected completed=true after toggle")
	}

	tasks, _ := s.List(ctx)
	for _, task := range tasks {
		switch task.ID {
		case milk.ID:
			if !task.Completed {
				t.Error("toggled task not persisted as completed")
			}
		case dog.ID:
			if task.Completed {
				t.Error("untouched task must stay incomplete")
			}
		}
	}

	back, err := s.ToggleComplete(ctx, milk.ID)
	if err != nil {
		t.Fatalf("second toggle error: %v", err)
	}
	if back.Completed {
		t.Error("expected completed=false after second toggle")
	}
}

// TestToggleMissing verifies toggling an unknown id yields NotFoundError.
func TestToggleMissing(t *testing.T) {
	s, _, ctx := mustNewStore(t)

	_, err := s.ToggleComplete(ctx, "12345")
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if notFound.ID != "12345" {
		t.Errorf("expected id in error, got %q", notFound.ID)
	}
}

// TestReplaceAll verifies wholesale overwrite.
func TestReplaceAll(t *testing.T) {
	s, _, ctx := mustNewStore(t)

	mustAdd(t, s, ctx, "old task")

	replacement := []Task{
		{ID: "1", Title: "restored one", CreatedAt: 100},
		{ID: "2", Title: "restored two", Completed: true, CreatedAt: 200},
	}
	if err := s.ReplaceAll(ctx, replacement); err != nil {
		t.Fatalf("ReplaceAll error: %v", err)
	}

	tasks, _ := s.List(ctx)
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks after ReplaceAll, got %d", len(tasks))
	}
	if tasks[0].ID != "1" || tasks[1].ID != "2" {
		t.Errorf("unexpected collection after ReplaceAll: %+v", tasks)
	}
	if !tasks[1].Completed {
		t.Error("completed flag lost in ReplaceAll")
	}
}

// TestPersistFailureLeavesStateUnchanged verifies that a failed write keeps
// the persisted collection and the next List in agreement.
func TestPersistFailureLeavesStateUnchanged(t *testing.T) {
	s, storage, ctx := mustNewStore(t)

	mustAdd(t, s, ctx, "Buy milk")

	storage.FailSets("disk full")
	_, err := s.Add(ctx, "Walk dog")
	var storageErr *kv.StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("expected StorageError, got %v", err)
	}
	storage.FailSets("")

	tasks, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Title != "Buy milk" {
		t.Errorf("collection changed despite failed persist: %+v", tasks)
	}
}

// TestListSurfacesReadFailure verifies storage read failures are reported
// as StorageError rather than swallowed.
func TestListSurfacesReadFailure(t *testing.T) {
	s, storage, ctx := mustNewStore(t)

	storage.FailGets("io error")
	_, err := s.List(ctx)
	var storageErr *kv.StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("expected StorageError, got %v", err)
	}
}

// TestConcurrentAdds verifies racing mutations never lose updates.
func TestConcurrentAdds(t *testing.T) {
	s, _, ctx := mustNewStore(t)

	const workers = 8
	const perWorker = 10

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				if _, err := s.Add(ctx, "task"); err != nil {
					t.Errorf("concurrent Add error: %v", err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	tasks, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(tasks) != workers*perWorker {
		t.Errorf("lost updates: expected %d tasks, got %d", workers*perWorker, len(tasks))
	}
}
