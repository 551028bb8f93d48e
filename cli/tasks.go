package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"scooby/export"
	"scooby/poller"
	"scooby/session"
)

func newTasksCommand() *cobra.Command {
	var (
		taskID string
		watch  bool
		asCSV  bool
	)
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Show scrape tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			render := func(snap poller.Snapshot) error {
				if asCSV {
					return export.WriteTasks(out, snap.Tasks)
				}
				renderTasks(out, snap.Tasks, snap.Total)
				return nil
			}
			return runPollView(cmd, session.ViewTasks, session.Options{TaskID: taskID}, watch, render)
		},
	}
	cmd.Flags().StringVar(&taskID, "task-id", "", "only this task")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "refresh on the poll interval until interrupted")
	cmd.Flags().BoolVar(&asCSV, "csv", false, "write CSV instead of a table")
	return cmd
}

func newLogsCommand() *cobra.Command {
	var (
		taskID string
		limit  int
		watch  bool
	)
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show scraper log lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			render := func(snap poller.Snapshot) error {
				renderLogs(out, snap.Logs)
				return nil
			}
			return runPollView(cmd, session.ViewLogs, session.Options{TaskID: taskID, LogLimit: limit}, watch, render)
		},
	}
	cmd.Flags().StringVar(&taskID, "task-id", "", "only lines of this task")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "number of lines (default LOG_LIMIT)")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "refresh on the poll interval until interrupted")
	return cmd
}

// runPollView prints one snapshot of view, then keeps printing every new
// snapshot while watch is set.
func runPollView(cmd *cobra.Command, view session.View, opts session.Options, watch bool, render func(poller.Snapshot) error) error {
	ctx := cmd.Context()
	notify, ch := events()
	opts.Notify = notify
	s := newSession(nil, opts)
	defer s.Close()

	p := s.Tasks
	want := session.EventTasks
	if view == session.ViewLogs {
		p = s.Logs
		want = session.EventLogs
	}

	snap, err := p.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", view, err)
	}
	if err := render(snap); err != nil {
		return err
	}
	if !watch {
		return nil
	}

	s.SetView(view)
	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-ch:
			if e != want {
				continue
			}
			snap, _ := p.Snapshot()
			clearScreen(cmd.OutOrStdout())
			if err := render(snap); err != nil {
				return err
			}
		}
	}
}

func clearScreen(w io.Writer) {
	fmt.Fprint(w, "\033[H\033[2J")
}
