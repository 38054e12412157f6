package updates

import (
	"testing"

	"pgregory.net/rapid"
)

func TestQueuePriorityOrdering(t *testing.T) {
	q := NewQueue()
	q.Add(Task{Project: "a"})
	q.Add(Task{Project: "b", Priority: true})
	q.Add(Task{Project: "c"})

	want := []string{"b", "a", "c"}
	for _, name := range want {
		task, ok := q.Next()
		if !ok {
			t.Fatalf("expected task %q, queue returned none", name)
		}
		if task.Project != name {
			t.Fatalf("got task %q, want %q", task.Project, name)
		}
		q.Done()
	}
	if _, ok := q.Next(); ok {
		t.Fatal("queue should be empty")
	}
}

func TestQueueFIFOWithinClass(t *testing.T) {
	q := NewQueue()
	q.Add(Task{Project: "p1", Priority: true})
	q.Add(Task{Project: "b1"})
	q.Add(Task{Project: "p2", Priority: true})
	q.Add(Task{Project: "b2"})

	want := []string{"p1", "p2", "b1", "b2"}
	for _, name := range want {
		task, _ := q.Next()
		if task.Project != name {
			t.Fatalf("got %q, want %q", task.Project, name)
		}
		q.Done()
	}
}

func TestQueueSingleFlight(t *testing.T) {
	q := NewQueue()
	q.Add(Task{Project: "a"})
	q.Add(Task{Project: "b"})

	if _, ok := q.Next(); !ok {
		t.Fatal("first Next should return a task")
	}
	if !q.Processing() {
		t.Fatal("queue should be processing after Next")
	}
	if _, ok := q.Next(); ok {
		t.Fatal("second Next must return nothing while processing")
	}

	q.Done()
	task, ok := q.Next()
	if !ok || task.Project != "b" {
		t.Fatalf("after Done, expected task b, got %v %v", task, ok)
	}
}

func TestQueueDedupSupersedes(t *testing.T) {
	q := NewQueue()
	q.Add(Task{Project: "a"})
	q.Add(Task{Project: "b"})
	// Re-adding "a" as priority moves it ahead instead of duplicating.
	q.Add(Task{Project: "a", Priority: true})

	if q.Len() != 2 {
		t.Fatalf("queue len = %d, want 2", q.Len())
	}
	task, _ := q.Next()
	if task.Project != "a" || !task.Priority {
		t.Fatalf("head = %+v, want priority a", task)
	}
	q.Done()
	task, _ = q.Next()
	if task.Project != "b" {
		t.Fatalf("second = %+v, want b", task)
	}
}

func TestQueueClearKeepsProcessingFlag(t *testing.T) {
	q := NewQueue()
	q.Add(Task{Project: "a"})
	q.Add(Task{Project: "b"})

	if _, ok := q.Next(); !ok {
		t.Fatal("Next failed")
	}
	q.Clear()
	if q.Len() != 0 {
		t.Fatalf("len after Clear = %d", q.Len())
	}
	// The in-flight task still owes Done; until then nothing is pulled.
	q.Add(Task{Project: "c"})
	if _, ok := q.Next(); ok {
		t.Fatal("Next must not return while in flight")
	}
	q.Done()
	if task, ok := q.Next(); !ok || task.Project != "c" {
		t.Fatalf("expected c after Done, got %v %v", task, ok)
	}
}

// Property: priority tasks always drain before non-priority ones, each class
// in FIFO order, and no project appears twice.
func TestQueueOrderingProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		q := NewQueue()
		names := rapid.SliceOfNDistinct(
			rapid.StringMatching(`[a-z]{1,6}`), 1, 10, func(s string) string { return s },
		).Draw(t, "names")

		priority := map[string]bool{}
		for _, name := range names {
			p := rapid.Bool().Draw(t, "priority")
			priority[name] = p
			q.Add(Task{Project: name, Priority: p})
		}

		var drained []Task
		for {
			task, ok := q.Next()
			if !ok {
				break
			}
			drained = append(drained, task)
			q.Done()
		}

		if len(drained) != len(names) {
			t.Fatalf("drained %d tasks, added %d", len(drained), len(names))
		}
		seen := map[string]bool{}
		sawNonPriority := false
		for _, task := range drained {
			if seen[task.Project] {
				t.Fatalf("project %q drained twice", task.Project)
			}
			seen[task.Project] = true
			if task.Priority && sawNonPriority {
				t.Fatalf("priority task %q drained after a non-priority task", task.Project)
			}
			if !task.Priority {
				sawNonPriority = true
			}
		}
	})
}
