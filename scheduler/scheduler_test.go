package scheduler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scooby/api"
	"scooby/apitest"
	"scooby/config"
	"scooby/models"
	"scooby/scrape"
)

func newTestScheduler(t *testing.T, schedules []config.Schedule) (*Scheduler, *apitest.Server) {
	t.Helper()
	srv := apitest.NewServer()
	t.Cleanup(srv.Close)
	sub := scrape.NewSubmitter(api.New(srv.URL, srv.Client(), 0), nil)
	return New(sub, schedules), srv
}

func TestStartRegistersSchedules(t *testing.T) {
	s, _ := newTestScheduler(t, []config.Schedule{
		{Name: "nightly", Cron: "0 3 * * *", City: "Manizales", Region: "Caldas", PropertyTypes: []string{"casas"}},
		{Name: "weekly", Cron: "@weekly", City: "Pereira", Region: "Risaralda", PropertyTypes: []string{"fincas"}},
	})
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()
	assert.Equal(t, 2, s.Entries())
}

func TestStartRejectsBadCron(t *testing.T) {
	s, _ := newTestScheduler(t, []config.Schedule{{Name: "broken", Cron: "every night"}})
	err := s.Start(context.Background())
	assert.ErrorContains(t, err, "broken")
}

func TestTriggerNowSubmitsNormalizedRequest(t *testing.T) {
	s, srv := newTestScheduler(t, []config.Schedule{
		{Name: "nightly", Cron: "0 3 * * *", City: "Manizales", Region: "Caldas", PropertyTypes: []string{"casas", "apartamentos"}},
	})

	ack, err := s.TriggerNow(context.Background(), "nightly")
	require.NoError(t, err)
	assert.Equal(t, "task-1", ack.TaskID)

	require.Len(t, srv.Submitted(), 1)
	assert.Equal(t, models.ScrapeRequest{
		City:          "manizales",
		Region:        "caldas",
		PropertyTypes: []string{"casas", "apartamentos"},
		MaxPages:      scrape.DefaultMaxPages,
	}, srv.Submitted()[0])

	_, err = s.TriggerNow(context.Background(), "missing")
	assert.Error(t, err)
}
