package cli

import (
	"fmt"
	"strings"

	"github.com/existflow/irontrack/internal/model"
	"github.com/spf13/cobra"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "List recent time logs",
	Long: `List recent time logs. The listing is cached locally and refetched after
a stop or with --refresh.

Examples:
  track logs
  track logs --refresh`,
	Args: cobra.NoArgs,
	RunE: runLogs,
}

var logsRefresh bool

func init() {
	logsCmd.Flags().BoolVarP(&logsRefresh, "refresh", "r", false, "Fetch from the server instead of the cache")
}

func runLogs(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.close()

	reqCtx, cancel := a.requestContext(ctx)
	defer cancel()

	logs, err := a.recentLogs(reqCtx, logsRefresh)
	if err != nil {
		return fmt.Errorf("failed to list logs: %w", err)
	}

	if len(logs) == 0 {
		fmt.Println("No logs yet. Start one with: track start")
		return nil
	}

	fmt.Println()
	fmt.Printf("  %-6s  %-12s  %-8s  %-10s  %s\n", "ID", "Started", "Duration", "Task", "Note")
	fmt.Println(strings.Repeat("─", 60))

	var total int64
	for _, l := range logs {
		fmt.Println(formatLogRow(l))
		total += l.DurationSeconds
	}

	fmt.Println(strings.Repeat("─", 60))
	fmt.Printf("  %d logs, %s tracked\n\n", len(logs), formatDuration(total))
	return nil
}

func formatLogRow(l model.TimeLog) string {
	duration := formatDuration(l.DurationSeconds)
	if l.IsOpen() {
		duration = "running"
	}

	task := "-"
	if l.IsCategorized() {
		task = fmt.Sprintf("%d/%d", *l.ProjectID, *l.TaskID)
	}

	note := l.Description
	if l.ClosedReason != "" && l.ClosedReason != model.ClosedFinalized {
		note = strings.TrimSpace(note + " (" + l.ClosedReason + ")")
	}

	return fmt.Sprintf("  %-6d  %-12s  %-8s  %-10s  %s", l.ID, formatClock(l.StartTime), duration, task, note)
}
