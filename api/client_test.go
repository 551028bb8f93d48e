package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scooby/apitest"
	"scooby/models"
)

func loadFixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("failed to read fixture %s: %v", name, err)
	}
	return data
}

func TestListProperties_DecodesNullableFields(t *testing.T) {
	body := loadFixture(t, "properties.json")
	var gotQuery url.Values
	var gotRequestID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		gotRequestID = r.Header.Get("X-Request-ID")
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	}))
	defer srv.Close()

	c := New(srv.URL+"/", srv.Client(), 0)
	props, err := c.ListProperties(context.Background(), url.Values{"city": {"manizales"}, "min_rooms": {"3"}})
	require.NoError(t, err)
	require.Len(t, props, 2)

	assert.Equal(t, "manizales", gotQuery.Get("city"))
	assert.Equal(t, "3", gotQuery.Get("min_rooms"))
	assert.NotEmpty(t, gotRequestID)

	first := props[0]
	assert.Equal(t, int64(101), first.ID)
	require.NotNil(t, first.Price)
	assert.Equal(t, 480000000.0, *first.Price)
	assert.Equal(t, 4, *first.Rooms)
	assert.Equal(t, []string{"https://cdn.fincaraiz.test/101_1.jpg", "https://cdn.fincaraiz.test/101_2.jpg"}, first.ImageURLs)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 123456000, time.UTC), first.CreatedAt.Time)
	assert.Nil(t, first.UpdatedAt)

	second := props[1]
	assert.Nil(t, second.Title)
	assert.Nil(t, second.Price)
	assert.Empty(t, second.ImageURLs)
	require.NotNil(t, second.UpdatedAt)
	assert.Equal(t, 2024, second.UpdatedAt.Year())
}

func TestStartScrape_SendsBodyVerbatim(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()

	c := New(srv.URL, srv.Client(), 0)
	ack, err := c.StartScrape(context.Background(), models.ScrapeRequest{
		City: "manizales", Region: "caldas", PropertyTypes: []string{"casas", "fincas"}, MaxPages: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, "task-1", ack.TaskID)

	submitted := srv.Submitted()
	require.Len(t, submitted, 1)
	assert.Equal(t, []string{"casas", "fincas"}, submitted[0].PropertyTypes)
	assert.Equal(t, 3, submitted[0].MaxPages)
}

func TestStartScrape_StatusErrorCarriesDetail(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()

	c := New(srv.URL, srv.Client(), 0)
	_, err := c.StartScrape(context.Background(), models.ScrapeRequest{PropertyTypes: []string{"casas"}, MaxPages: 1})

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadRequest, se.StatusCode)
	assert.Equal(t, "City and region are required", se.Detail)
	assert.False(t, IsNetworkError(err))
}

func TestScrapeStatusAndLogs(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()
	srv.SetTasks(models.ScrapeTask{ID: "a", City: "cali", Status: models.TaskStatusRunning})
	srv.SetLogs("[2024-05-01 10:00:00] INFO: started")

	c := New(srv.URL, srv.Client(), 0)
	tasks, err := c.ScrapeStatus(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 1, tasks.Total)
	assert.Equal(t, models.TaskStatusRunning, tasks.Tasks[0].Status)

	logs, err := c.ScrapeLogs(context.Background(), "a", 20)
	require.NoError(t, err)
	assert.Equal(t, []string{"[2024-05-01 10:00:00] INFO: started"}, logs.Logs)
}

func TestTransportFailureIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c := New(base, &http.Client{Timeout: time.Second}, 0)
	_, err := c.CityStats(context.Background())
	require.Error(t, err)
	assert.True(t, IsNetworkError(err))
}

func TestRateLimiterHonoursContext(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()

	c := New(srv.URL, srv.Client(), 0.001)
	_, err := c.PriceStats(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.PriceStats(ctx)
	assert.True(t, IsNetworkError(err))
	assert.Equal(t, 1, srv.Calls(apitest.RouteStatsPrice))
}
