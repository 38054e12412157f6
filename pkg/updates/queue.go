// Package updates implements the asynchronous dependency-check pipeline: a
// priority work queue that serializes background checks, and a checker that
// fans out registry lookups for one project at a time.
package updates

import "sync"

// Task is one "check this project" unit of work. Created when a project
// needs checking, consumed exactly once, never mutated in place.
type Task struct {
	Project  string
	Priority bool
}

// Queue is an ordered worklist with two priority classes and a single
// "currently processing" flag. At most one task is in flight at a time; the
// driver must call Done after every completion path (including
// project-not-found) or the queue stalls permanently.
type Queue struct {
	mu         sync.Mutex
	tasks      []Task
	processing bool
}

// NewQueue returns an empty queue.
func NewQueue() *Queue {
	return &Queue{}
}

// Add appends a task. Priority tasks go ahead of all non-priority tasks,
// FIFO within each class. A pending task for the same project is superseded
// rather than duplicated, so a project can never be queued twice.
func (q *Queue) Add(t Task) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, existing := range q.tasks {
		if existing.Project == t.Project {
			q.tasks = append(q.tasks[:i], q.tasks[i+1:]...)
			break
		}
	}

	if !t.Priority {
		q.tasks = append(q.tasks, t)
		return
	}

	// Insert after the last pending priority task.
	insert := 0
	for insert < len(q.tasks) && q.tasks[insert].Priority {
		insert++
	}
	q.tasks = append(q.tasks, Task{})
	copy(q.tasks[insert+1:], q.tasks[insert:])
	q.tasks[insert] = t
}

// Next returns the head task and marks the queue as processing. Returns
// false while a task is already in flight or when the queue is empty.
func (q *Queue) Next() (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.processing || len(q.tasks) == 0 {
		return Task{}, false
	}
	t := q.tasks[0]
	q.tasks = q.tasks[1:]
	q.processing = true
	return t, true
}

// Done clears the processing flag so the next task can be pulled.
func (q *Queue) Done() {
	q.mu.Lock()
	q.processing = false
	q.mu.Unlock()
}

// Clear drops all pending tasks. The processing flag is untouched: an
// in-flight check still owes its Done call.
func (q *Queue) Clear() {
	q.mu.Lock()
	q.tasks = nil
	q.mu.Unlock()
}

// Len reports the number of pending tasks.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Processing reports whether a task is currently in flight.
func (q *Queue) Processing() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.processing
}

// Pending reports whether the named project has a queued task.
func (q *Queue) Pending(projectName string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, t := range q.tasks {
		if t.Project == projectName {
			return true
		}
	}
	return false
}
