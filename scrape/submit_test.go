package scrape

import (
	"context"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scooby/api"
	"scooby/apitest"
	"scooby/metrics"
	"scooby/models"
)

func newTestSubmitter(t *testing.T) (*Submitter, *apitest.Server, *metrics.Metrics) {
	t.Helper()
	srv := apitest.NewServer()
	t.Cleanup(srv.Close)
	m := metrics.New(nil)
	client := api.New(srv.URL, srv.Client(), 0)
	return NewSubmitter(client, m), srv, m
}

func TestSubmitNormalizesLocation(t *testing.T) {
	s, srv, m := newTestSubmitter(t)

	var accepted *models.ScrapeAck
	s.OnAccepted = func(ack *models.ScrapeAck) { accepted = ack }

	ack, err := s.Submit(context.Background(), models.ScrapeRequest{
		City:          "Manizales",
		Region:        "Caldas",
		PropertyTypes: []string{"casas"},
		MaxPages:      5,
	})
	require.NoError(t, err)
	assert.Equal(t, "Scraping job started", ack.Message)
	assert.Equal(t, "task-1", ack.TaskID)
	assert.Same(t, ack, accepted)

	require.Len(t, srv.Submitted(), 1)
	assert.Equal(t, models.ScrapeRequest{
		City:          "manizales",
		Region:        "caldas",
		PropertyTypes: []string{"casas"},
		MaxPages:      5,
	}, srv.Submitted()[0])
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Submissions.WithLabelValues("accepted")))
}

func TestSubmitRejectsBeforeAnyRequest(t *testing.T) {
	tests := []struct {
		name string
		req  models.ScrapeRequest
		want error
	}{
		{"no property types", models.ScrapeRequest{City: "Cali", Region: "Valle", MaxPages: 5}, ErrNoPropertyTypes},
		{"blank property types", models.ScrapeRequest{City: "Cali", Region: "Valle", PropertyTypes: []string{" "}, MaxPages: 5}, ErrNoPropertyTypes},
		{"zero pages", models.ScrapeRequest{City: "Cali", Region: "Valle", PropertyTypes: []string{"casas"}}, ErrMaxPagesOutOfRange},
		{"too many pages", models.ScrapeRequest{City: "Cali", Region: "Valle", PropertyTypes: []string{"casas"}, MaxPages: 51}, ErrMaxPagesOutOfRange},
		{"missing region", models.ScrapeRequest{City: "Cali", PropertyTypes: []string{"casas"}, MaxPages: 5}, ErrMissingLocation},
		{"empty types wins over other errors", models.ScrapeRequest{MaxPages: 99}, ErrNoPropertyTypes},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, srv, _ := newTestSubmitter(t)
			called := false
			s.OnAccepted = func(*models.ScrapeAck) { called = true }

			ack, err := s.Submit(context.Background(), tt.req)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, ack)
			assert.False(t, called)
			assert.Zero(t, srv.Calls(apitest.RouteScrape))
		})
	}
}

func TestSubmitFailureIsSubmissionError(t *testing.T) {
	s, srv, m := newTestSubmitter(t)
	srv.FailNext(apitest.RouteScrape, 1)
	s.OnAccepted = func(*models.ScrapeAck) { t.Fatal("OnAccepted called for a failed submission") }

	req := models.ScrapeRequest{City: "Cali", Region: "Valle", PropertyTypes: []string{"fincas"}, MaxPages: 3}
	ack, err := s.Submit(context.Background(), req)
	assert.Nil(t, ack)

	var subErr *SubmissionError
	require.ErrorAs(t, err, &subErr)
	var status *api.StatusError
	require.ErrorAs(t, err, &status)
	assert.Equal(t, http.StatusInternalServerError, status.StatusCode)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Submissions.WithLabelValues("failed")))

	assert.Equal(t, "Cali", req.City)
}

func TestNormalizeDeduplicatesTypes(t *testing.T) {
	body, err := Normalize(models.ScrapeRequest{
		City:          " Pereira ",
		Region:        "RISARALDA",
		PropertyTypes: []string{"fincas", "casas", "fincas"},
		MaxPages:      50,
	})
	require.NoError(t, err)
	assert.Equal(t, "pereira", body.City)
	assert.Equal(t, "risaralda", body.Region)
	assert.Equal(t, []string{"fincas", "casas"}, body.PropertyTypes)
}
