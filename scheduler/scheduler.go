// Package scheduler submits scrape jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"log"

	"github.com/robfig/cron/v3"

	"scooby/config"
	"scooby/models"
	"scooby/scrape"
)

// Submitter creates scrape jobs.
type Submitter interface {
	Submit(ctx context.Context, req models.ScrapeRequest) (*models.ScrapeAck, error)
}

type Scheduler struct {
	submitter Submitter
	schedules []config.Schedule
	cron      *cron.Cron
}

func New(submitter Submitter, schedules []config.Schedule) *Scheduler {
	return &Scheduler{
		submitter: submitter,
		schedules: schedules,
		cron:      cron.New(),
	}
}

// Start registers every schedule and starts the cron runner. A bad cron
// expression fails the whole start.
func (s *Scheduler) Start(ctx context.Context) error {
	if len(s.schedules) == 0 {
		log.Println("No schedules configured, nothing to run")
		return nil
	}

	for _, sched := range s.schedules {
		log.Printf("Scheduling %s (%s/%s) with cron: %s", sched.Name, sched.City, sched.Region, sched.Cron)
		_, err := s.cron.AddFunc(sched.Cron, func() {
			if _, err := s.run(ctx, sched); err != nil {
				log.Printf("Scheduled run %s error: %v", sched.Name, err)
			}
		})
		if err != nil {
			return fmt.Errorf("schedule %s: invalid cron expression: %w", sched.Name, err)
		}
	}
	s.cron.Start()
	return nil
}

// Stop halts the cron runner and waits for running submissions.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Entries returns how many schedules are registered.
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

// TriggerNow submits the named schedule immediately.
func (s *Scheduler) TriggerNow(ctx context.Context, name string) (*models.ScrapeAck, error) {
	for _, sched := range s.schedules {
		if sched.Name == name {
			return s.run(ctx, sched)
		}
	}
	return nil, fmt.Errorf("schedule %q not found", name)
}

func (s *Scheduler) run(ctx context.Context, sched config.Schedule) (*models.ScrapeAck, error) {
	maxPages := sched.MaxPages
	if maxPages == 0 {
		maxPages = scrape.DefaultMaxPages
	}
	ack, err := s.submitter.Submit(ctx, models.ScrapeRequest{
		City:          sched.City,
		Region:        sched.Region,
		PropertyTypes: sched.PropertyTypes,
		MaxPages:      maxPages,
	})
	if err != nil {
		return nil, err
	}
	log.Printf("Scheduled run %s started task %s", sched.Name, ack.TaskID)
	return ack, nil
}
