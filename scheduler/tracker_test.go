package scheduler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scooby/models"
	"scooby/poller"
)

func snapshot(tasks ...models.ScrapeTask) poller.Snapshot {
	return poller.Snapshot{View: poller.ViewTasks, Tasks: tasks, Total: len(tasks)}
}

func TestTrackerReportsTransitions(t *testing.T) {
	tr := NewTracker()

	got := tr.Observe(snapshot(models.ScrapeTask{ID: "a", Status: models.TaskStatusPending}))
	require.Len(t, got, 1)
	assert.Equal(t, models.TaskStatus(""), got[0].From)

	assert.Empty(t, tr.Observe(snapshot(models.ScrapeTask{ID: "a", Status: models.TaskStatusPending})))

	got = tr.Observe(snapshot(
		models.ScrapeTask{ID: "a", Status: models.TaskStatusCompleted},
		models.ScrapeTask{ID: "b", Status: models.TaskStatusRunning},
	))
	require.Len(t, got, 2)
	assert.Equal(t, models.TaskStatusPending, got[0].From)
	assert.Equal(t, models.TaskStatusCompleted, got[0].Task.Status)
	assert.Equal(t, "b", got[1].Task.ID)
}

func TestTrackerLogSnapshotHandlesMissingFields(t *testing.T) {
	tr := NewTracker()
	tr.LogSnapshot(snapshot(models.ScrapeTask{ID: "a", Status: models.TaskStatusRunning}))
	tr.LogSnapshot(snapshot(models.ScrapeTask{ID: "a", Status: models.TaskStatusFailed}))
	assert.Len(t, tr.seen, 1)
}
