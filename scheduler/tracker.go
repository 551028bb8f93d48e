package scheduler

import (
	"log"
	"sync"

	"scooby/models"
	"scooby/poller"
)

// Transition is a task whose status differs from the previous snapshot.
// From is empty the first time a task is seen.
type Transition struct {
	Task models.ScrapeTask
	From models.TaskStatus
}

// Tracker follows task statuses across poll snapshots so the daemon can log
// when scheduled jobs start, finish or fail.
type Tracker struct {
	mu   sync.Mutex
	seen map[string]models.TaskStatus
}

func NewTracker() *Tracker {
	return &Tracker{seen: make(map[string]models.TaskStatus)}
}

// Observe records snap and returns the transitions it contains.
func (t *Tracker) Observe(snap poller.Snapshot) []Transition {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []Transition
	for _, task := range snap.Tasks {
		prev, ok := t.seen[task.ID]
		if !ok || prev != task.Status {
			out = append(out, Transition{Task: task, From: prev})
		}
		t.seen[task.ID] = task.Status
	}
	return out
}

// LogSnapshot is an OnSnapshot callback that logs every transition.
func (t *Tracker) LogSnapshot(snap poller.Snapshot) {
	for _, tr := range t.Observe(snap) {
		task := tr.Task
		switch {
		case tr.From == "":
			log.Printf("Task %s (%s/%s): %s", task.ID, task.City, task.Region, task.Status)
		case task.Status == models.TaskStatusCompleted:
			log.Printf("Task %s completed: %d properties", task.ID, derefInt(task.PropertiesFound))
		case task.Status == models.TaskStatusFailed:
			log.Printf("Task %s failed: %s", task.ID, models.Str(task.Error))
		default:
			log.Printf("Task %s: %s -> %s", task.ID, tr.From, task.Status)
		}
	}
}

func derefInt(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
