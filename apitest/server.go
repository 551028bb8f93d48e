// Package apitest runs an in-process fake of the listing and scrape API.
package apitest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"

	"github.com/gorilla/mux"

	"scooby/models"
)

// Route names used for call counting.
const (
	RouteProperties = "properties"
	RouteStatsCity  = "stats_city"
	RouteStatsPrice = "stats_price"
	RouteScrape     = "scrape"
	RouteStatus     = "status"
	RouteLogs       = "logs"
)

type Server struct {
	*httptest.Server

	mu         sync.Mutex
	calls      map[string]int
	queries    []url.Values
	submitted  []models.ScrapeRequest
	properties func(url.Values) ([]models.PropertyRecord, int)
	cityStats  []models.CityCount
	priceStats []models.CityAvgPrice
	tasks      models.TaskList
	logs       models.LogList
	failures   map[string]int
	gate       chan struct{}
	ack        models.ScrapeAck
}

func NewServer() *Server {
	s := &Server{
		calls:    make(map[string]int),
		failures: make(map[string]int),
		ack:      models.ScrapeAck{Message: "Scraping job started", TaskID: "task-1", Status: "pending"},
		properties: func(url.Values) ([]models.PropertyRecord, int) {
			return []models.PropertyRecord{}, http.StatusOK
		},
	}

	r := mux.NewRouter()
	r.HandleFunc("/api/v1/properties", s.handleProperties).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/properties/stats/city", s.handleJSON(RouteStatsCity, func() any { return s.cityStats })).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/properties/stats/price", s.handleJSON(RouteStatsPrice, func() any { return s.priceStats })).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/scrape", s.handleScrape).Methods(http.MethodPost)
	r.HandleFunc("/api/v1/scrape/status", s.handleJSON(RouteStatus, func() any { return s.tasks })).Methods(http.MethodGet)
	r.HandleFunc("/api/v1/scrape/logs", s.handleJSON(RouteLogs, func() any { return s.logs })).Methods(http.MethodGet)

	s.Server = httptest.NewServer(r)
	return s
}

// Calls returns how many requests reached route.
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// Queries returns the query of every listing request, in arrival order.
func (s *Server) Queries() []url.Values {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]url.Values(nil), s.queries...)
}

// Submitted returns every decoded scrape request body.
func (s *Server) Submitted() []models.ScrapeRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ScrapeRequest(nil), s.submitted...)
}

// SetProperties installs the listing handler.
func (s *Server) SetProperties(fn func(url.Values) ([]models.PropertyRecord, int)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.properties = fn
}

func (s *Server) SetStats(cities []models.CityCount, prices []models.CityAvgPrice) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cityStats = cities
	s.priceStats = prices
}

func (s *Server) SetTasks(tasks ...models.ScrapeTask) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = models.TaskList{Tasks: tasks, Total: len(tasks)}
}

func (s *Server) SetLogs(lines ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = models.LogList{Logs: lines}
}

func (s *Server) SetAck(ack models.ScrapeAck) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ack = ack
}

// FailNext makes the next n requests to route answer 500.
func (s *Server) FailNext(route string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = n
}

// Hold blocks listing requests until the returned release func is called.
func (s *Server) Hold() (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.gate = gate
	s.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			if s.gate == gate {
				s.gate = nil
			}
			s.mu.Unlock()
			close(gate)
		})
	}
}

// record counts the call and reports whether it should fail.
func (s *Server) record(route string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[route]++
	if s.failures[route] > 0 {
		s.failures[route]--
		return true
	}
	return false
}

func (s *Server) handleProperties(w http.ResponseWriter, r *http.Request) {
	fail := s.record(RouteProperties)

	s.mu.Lock()
	s.queries = append(s.queries, r.URL.Query())
	gate := s.gate
	fn := s.properties
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}
	if fail {
		writeError(w, http.StatusInternalServerError, "listing backend unavailable")
		return
	}

	props, status := fn(r.URL.Query())
	if status != http.StatusOK {
		writeError(w, status, http.StatusText(status))
		return
	}
	writeJSON(w, http.StatusOK, props)
}

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	fail := s.record(RouteScrape)

	var req models.ScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.mu.Lock()
	s.submitted = append(s.submitted, req)
	ack := s.ack
	s.mu.Unlock()

	if fail {
		writeError(w, http.StatusInternalServerError, "scraper unavailable")
		return
	}
	if req.City == "" || req.Region == "" {
		writeError(w, http.StatusBadRequest, "City and region are required")
		return
	}
	writeJSON(w, http.StatusAccepted, ack)
}

func (s *Server) handleJSON(route string, payload func() any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.record(route) {
			writeError(w, http.StatusInternalServerError, "unavailable")
			return
		}
		s.mu.Lock()
		body := payload()
		s.mu.Unlock()
		writeJSON(w, http.StatusOK, body)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}
