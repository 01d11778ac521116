package imposter

import (
	"context"
	"sync"
)

type task struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// TaskManager supervises a keyed set of long-running tasks. Starting a key
// that is already running cancels the previous task first. Cancellation is
// cooperative through the task's context; the done channel closes only after
// the task function and its exit hook have returned, so resources scoped to
// the task are released before Stop returns.
type TaskManager struct {
	tasks map[string]*task
	mu    sync.Mutex
}

// NewTaskManager creates an empty task manager.
func NewTaskManager() *TaskManager {
	return &TaskManager{tasks: make(map[string]*task)}
}

// Start launches run under the given id on its own goroutine. onExit is
// invoked with run's return value after the task leaves the set, on every
// exit path (cancel, crash, normal return).
func (m *TaskManager) Start(id string, run func(ctx context.Context) error, onExit func(error)) {
	m.mu.Lock()
	if existing, ok := m.tasks[id]; ok {
		existing.cancel()
		m.mu.Unlock()
		<-existing.done
		m.mu.Lock()
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &task{cancel: cancel, done: make(chan struct{})}
	m.tasks[id] = t
	m.mu.Unlock()

	go func() {
		err := run(ctx)
		m.mu.Lock()
		if m.tasks[id] == t {
			delete(m.tasks, id)
		}
		m.mu.Unlock()
		if onExit != nil {
			onExit(err)
		}
		close(t.done)
	}()
}

// Stop cancels the task under id and waits for it to finish. No-op when the
// id is not running.
func (m *TaskManager) Stop(id string) {
	m.mu.Lock()
	t, ok := m.tasks[id]
	m.mu.Unlock()
	if !ok {
		return
	}
	t.cancel()
	<-t.done
}

// IsRunning reports whether a task is present under id.
func (m *TaskManager) IsRunning(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.tasks[id]
	return ok
}

// IDs returns the ids of all running tasks.
func (m *TaskManager) IDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.tasks))
	for id := range m.tasks {
		out = append(out, id)
	}
	return out
}

// StopAll cancels every running task and waits for each.
func (m *TaskManager) StopAll() {
	for _, id := range m.IDs() {
		m.Stop(id)
	}
}
