package cli

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/existflow/irontrack/internal/categorize"
	"github.com/existflow/irontrack/internal/logger"
	"github.com/existflow/irontrack/internal/timer"
	"github.com/spf13/cobra"
)

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the timer and book it to a task",
	Long: `Stop the running timer. A project and a task are required; without
flags you are asked for them interactively.

Examples:
  track stop
  track stop --project 3 --task 9
  track stop -p 3 -t 9 --note "landing page copy"
  track stop --discard`,
	Args: cobra.NoArgs,
	RunE: runStop,
}

var (
	stopProject int64
	stopTask    int64
	stopNote    string
	stopDiscard bool
)

func init() {
	stopCmd.Flags().Int64VarP(&stopProject, "project", "p", 0, "Project ID")
	stopCmd.Flags().Int64VarP(&stopTask, "task", "t", 0, "Task ID")
	stopCmd.Flags().StringVarP(&stopNote, "note", "n", "", "Optional description")
	stopCmd.Flags().BoolVar(&stopDiscard, "discard", false, "Drop the local timer without booking it")
}

func runStop(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.close()

	if stopDiscard {
		id, err := a.ctrl.Discard(ctx)
		if errors.Is(err, timer.ErrNotRunning) {
			fmt.Println("No timer running.")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Printf("✓ Discarded local timer (log %d left on the server)\n", id)
		return nil
	}

	openCtx, cancel := a.requestContext(ctx)
	err = a.dialog.Open(openCtx)
	cancel()
	if errors.Is(err, timer.ErrNotRunning) {
		fmt.Println("No timer running.")
		return nil
	}
	if err != nil {
		return err
	}

	if stopProject == 0 || stopTask == 0 {
		if !isInteractive() {
			a.dialog.Cancel()
			return errors.New("--project and --task are required when not running in a terminal")
		}
		if err := promptCategory(a.dialog, a.ctrl.Display().Formatted); err != nil {
			a.dialog.Cancel()
			if errors.Is(err, huh.ErrUserAborted) {
				fmt.Println("Stop cancelled, timer still running.")
				return nil
			}
			return err
		}
	} else {
		if err := a.dialog.SelectProject(stopProject); err != nil {
			a.dialog.Cancel()
			return err
		}
		if err := a.dialog.SelectTask(stopTask); err != nil {
			a.dialog.Cancel()
			return err
		}
		a.dialog.SetNote(stopNote)
	}

	reqCtx, cancel := a.requestContext(ctx)
	defer cancel()
	log, err := a.dialog.Confirm(reqCtx)
	if err != nil {
		a.dialog.Cancel()
		logger.Warn("Stop failed, timer still running", logger.Err(err))
		return fmt.Errorf("%w (timer still running, retry with track stop)", err)
	}

	fmt.Printf("✓ Logged %s (log %d)\n", formatDuration(log.DurationSeconds), log.ID)
	return nil
}

// promptCategory asks for project, task and note with huh forms. The task
// form is built after the project is known so it only lists its open tasks.
func promptCategory(d *categorize.Dialog, elapsed string) error {
	projects := d.Projects()
	if len(projects) == 0 {
		return errors.New("no projects available, create one with: track project add <name>")
	}

	projectOptions := make([]huh.Option[int64], 0, len(projects))
	for _, p := range projects {
		projectOptions = append(projectOptions, huh.NewOption(p.Name, p.ID))
	}

	var projectID int64
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[int64]().
				Title(fmt.Sprintf("Stop timer at %s: which project?", elapsed)).
				Options(projectOptions...).
				Value(&projectID),
		),
	).WithShowHelp(false).Run()
	if err != nil {
		return err
	}
	if err := d.SelectProject(projectID); err != nil {
		return err
	}

	tasks := d.TasksFor(projectID)
	if len(tasks) == 0 {
		return errors.New("project has no open tasks, add one with: track task add --project " +
			strconv.FormatInt(projectID, 10) + " <title>")
	}
	taskOptions := make([]huh.Option[int64], 0, len(tasks))
	for _, t := range tasks {
		taskOptions = append(taskOptions, huh.NewOption(t.Title, t.ID))
	}

	var (
		taskID int64
		note   string
	)
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[int64]().
				Title("Which task?").
				Options(taskOptions...).
				Value(&taskID),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Note (optional)").
				Value(&note),
		),
	).WithShowHelp(false).Run()
	if err != nil {
		return err
	}
	if err := d.SelectTask(taskID); err != nil {
		return err
	}
	d.SetNote(note)
	return nil
}
