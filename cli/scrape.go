package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"scooby/models"
	"scooby/poller"
	"scooby/scrape"
	"scooby/session"
)

func newScrapeCommand() *cobra.Command {
	var (
		req    models.ScrapeRequest
		follow bool
	)

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Start a scrape job",
		Long: fmt.Sprintf(`Start a scrape job for a city and region. City and region are sent in
lowercase. Property types: %s.

Examples:
  scooby scrape --city Manizales --region Caldas
  scooby scrape --city Pereira --region Risaralda --type fincas --type casas --max-pages 10 --follow`,
			strings.Join(models.PropertyTypeOptions, ", ")),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			notify, ch := events()
			s := newSession(nil, session.Options{Notify: notify})
			defer s.Close()

			ack, err := s.Submit(ctx, req)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, ack.Message)
			if ack.TaskID != "" {
				fmt.Fprintf(out, "task %s (%s)\n", ack.TaskID, ack.Status)
			}
			if snap, ok := s.Tasks.Snapshot(); ok {
				renderTasks(out, snap.Tasks, snap.Total)
			}
			if !follow || ack.TaskID == "" {
				return nil
			}

			for {
				select {
				case <-ctx.Done():
					return nil
				case e := <-ch:
					if e != session.EventTasks {
						continue
					}
					snap, _ := s.Tasks.Snapshot()
					task, ok := findTask(snap, ack.TaskID)
					if !ok {
						continue
					}
					fmt.Fprintf(out, "%s  %s  found=%s\n", snap.FetchedAt.Format("15:04:05"), task.Status, formatInt(task.PropertiesFound))
					if task.Status.Terminal() {
						if task.Status == models.TaskStatusFailed {
							return fmt.Errorf("task %s failed: %s", task.ID, models.Str(task.Error))
						}
						return nil
					}
				}
			}
		},
	}

	f := cmd.Flags()
	f.StringVar(&req.City, "city", "", "city to scrape (required)")
	f.StringVar(&req.Region, "region", "", "region of the city (required)")
	f.StringSliceVarP(&req.PropertyTypes, "type", "t", []string{"casas"}, "property type, repeatable")
	f.IntVar(&req.MaxPages, "max-pages", scrape.DefaultMaxPages, fmt.Sprintf("pages to scrape (%d-%d)", scrape.MinPages, scrape.MaxPages))
	f.BoolVarP(&follow, "follow", "f", false, "poll the task until it finishes")
	return cmd
}

func findTask(snap poller.Snapshot, id string) (models.ScrapeTask, bool) {
	for _, t := range snap.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return models.ScrapeTask{}, false
}
