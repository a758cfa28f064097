package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/existflow/irontrack/internal/categorize"
	"github.com/existflow/irontrack/internal/model"
	"github.com/spf13/cobra"
)

var taskCmd = &cobra.Command{
	Use:     "task",
	Aliases: []string{"tasks"},
	Short:   "List, create and complete tasks",
	Long: `List the tasks you created or are assigned to.

Examples:
  track task
  track task --project 3 --done
  track task add --project 3 "Landing page"
  track task done 9`,
	Args: cobra.NoArgs,
	RunE: runTaskList,
}

var taskAddCmd = &cobra.Command{
	Use:   "add [title]",
	Short: "Create a task in a project",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskAdd,
}

var taskDoneCmd = &cobra.Command{
	Use:   "done [task-id]",
	Short: "Mark a task as done",
	Long:  `Mark a task as done. Done tasks can no longer receive tracked time.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskDone,
}

var (
	taskProject     int64
	taskAssignee    string
	taskIncludeDone bool
)

func init() {
	taskCmd.Flags().Int64VarP(&taskProject, "project", "p", 0, "Filter by project ID")
	taskCmd.Flags().BoolVar(&taskIncludeDone, "done", false, "Include completed tasks")

	taskAddCmd.Flags().Int64VarP(&taskProject, "project", "p", 0, "Project ID (required)")
	taskAddCmd.Flags().StringVarP(&taskAssignee, "assignee", "a", "", "Assignee user ID")
	_ = taskAddCmd.MarkFlagRequired("project")

	taskCmd.AddCommand(taskAddCmd)
	taskCmd.AddCommand(taskDoneCmd)
}

func runTaskList(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.close()

	reqCtx, cancel := a.requestContext(ctx)
	defer cancel()

	created, err := a.client.ListTasks(reqCtx, model.TaskScopeCreated)
	if err != nil {
		return fmt.Errorf("failed to list tasks: %w", err)
	}
	assigned, err := a.client.ListTasks(reqCtx, model.TaskScopeAssigned)
	if err != nil {
		return fmt.Errorf("failed to list tasks: %w", err)
	}

	var tasks []model.Task
	for _, t := range categorize.MergeTasks(created, assigned) {
		if taskProject != 0 && t.ProjectID != taskProject {
			continue
		}
		if t.IsDone() && !taskIncludeDone {
			continue
		}
		tasks = append(tasks, t)
	}

	if len(tasks) == 0 {
		fmt.Println("No tasks found. Add one with: track task add --project <id> \"Title\"")
		return nil
	}

	fmt.Println()
	fmt.Printf("  %-6s  %-8s  %-12s  %s\n", "ID", "Project", "Status", "Title")
	fmt.Println(strings.Repeat("─", 60))
	for _, t := range tasks {
		title := t.Title
		if t.AssigneeID != "" {
			title += mutedStyle.Render(" @" + t.AssigneeID)
		}
		fmt.Printf("  %-6d  %-8d  %-12s  %s\n", t.ID, t.ProjectID, t.Status, title)
	}
	fmt.Println(strings.Repeat("─", 60))
	fmt.Printf("  %d tasks\n\n", len(tasks))
	return nil
}

func runTaskAdd(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.close()

	reqCtx, cancel := a.requestContext(ctx)
	defer cancel()

	t, err := a.client.CreateTask(reqCtx, model.CreateTaskRequest{
		ProjectID:  taskProject,
		Title:      args[0],
		AssigneeID: taskAssignee,
	})
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}

	fmt.Printf("✓ Created task: %s (id: %d)\n", t.Title, t.ID)
	return nil
}

func runTaskDone(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid task id %q", args[0])
	}

	ctx := commandContext(cmd)
	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.close()

	reqCtx, cancel := a.requestContext(ctx)
	defer cancel()

	t, err := a.client.UpdateTaskStatus(reqCtx, id, model.TaskDone)
	if err != nil {
		return fmt.Errorf("failed to complete task: %w", err)
	}

	fmt.Printf("✓ Completed: %s\n", t.Title)
	return nil
}
