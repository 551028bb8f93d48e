// Package scrape validates and submits scrape jobs.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"log"
	"slices"
	"strings"

	"scooby/metrics"
	"scooby/models"
)

const (
	MinPages        = 1
	MaxPages        = 50
	DefaultMaxPages = 5
)

var (
	ErrNoPropertyTypes    = errors.New("select at least one property type")
	ErrMaxPagesOutOfRange = fmt.Errorf("max pages must be between %d and %d", MinPages, MaxPages)
	ErrMissingLocation    = errors.New("city and region are required")
)

// SubmissionError is returned when the API rejects or fails a job creation.
type SubmissionError struct {
	Err error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("failed to start scraper: %v", e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// Starter creates scrape jobs.
type Starter interface {
	StartScrape(ctx context.Context, req models.ScrapeRequest) (*models.ScrapeAck, error)
}

// Normalize validates req and returns the body to send: lowercase city and
// region, property types trimmed and de-duplicated in their original order.
func Normalize(req models.ScrapeRequest) (models.ScrapeRequest, error) {
	var types []string
	for _, t := range req.PropertyTypes {
		t = strings.TrimSpace(t)
		if t != "" && !slices.Contains(types, t) {
			types = append(types, t)
		}
	}
	if len(types) == 0 {
		return req, ErrNoPropertyTypes
	}
	if req.MaxPages < MinPages || req.MaxPages > MaxPages {
		return req, ErrMaxPagesOutOfRange
	}
	city := strings.ToLower(strings.TrimSpace(req.City))
	region := strings.ToLower(strings.TrimSpace(req.Region))
	if city == "" || region == "" {
		return req, ErrMissingLocation
	}
	return models.ScrapeRequest{
		City:          city,
		Region:        region,
		PropertyTypes: types,
		MaxPages:      req.MaxPages,
	}, nil
}

type Submitter struct {
	api     Starter
	metrics *metrics.Metrics
	// OnAccepted runs after every accepted submission.
	OnAccepted func(ack *models.ScrapeAck)
}

func NewSubmitter(api Starter, m *metrics.Metrics) *Submitter {
	if m == nil {
		m = metrics.New(nil)
	}
	return &Submitter{api: api, metrics: m}
}

// Submit validates req and creates the job. Invalid requests never reach
// the API. A failed creation returns a *SubmissionError and leaves no trace.
func (s *Submitter) Submit(ctx context.Context, req models.ScrapeRequest) (*models.ScrapeAck, error) {
	body, err := Normalize(req)
	if err != nil {
		s.metrics.Submissions.WithLabelValues("rejected").Inc()
		return nil, err
	}

	ack, err := s.api.StartScrape(ctx, body)
	if err != nil {
		s.metrics.Submissions.WithLabelValues("failed").Inc()
		log.Printf("[scrape] %s/%s: %v", body.City, body.Region, err)
		return nil, &SubmissionError{Err: err}
	}

	s.metrics.Submissions.WithLabelValues("accepted").Inc()
	log.Printf("[scrape] %s/%s %v x%d pages: %s (task %s)", body.City, body.Region, body.PropertyTypes, body.MaxPages, ack.Message, ack.TaskID)
	if s.OnAccepted != nil {
		s.OnAccepted(ack)
	}
	return ack, nil
}
