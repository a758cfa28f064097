package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/existflow/irontrack/internal/timer"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	runningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#95E1A3")).Bold(true)
	idleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C757D"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a timer",
	Long: `Start an uncategorized timer. Pick the project and task when you stop it.

Examples:
  track start`,
	Args: cobra.NoArgs,
	RunE: runStart,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the running timer",
	Long: `Show the running timer.

Examples:
  track status
  track status --watch`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

var statusWatch bool

func init() {
	statusCmd.Flags().BoolVarP(&statusWatch, "watch", "w", false, "Keep updating until interrupted")
}

func runStart(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.close()

	reqCtx, cancel := a.requestContext(ctx)
	defer cancel()

	log, err := a.ctrl.Start(reqCtx)
	if errors.Is(err, timer.ErrAlreadyRunning) {
		fmt.Printf("Timer already running: %s\n", formatDisplay(a.ctrl.Display()))
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Printf("✓ Timer started at %s (log %d)\n", log.StartTime.Local().Format("15:04:05"), log.ID)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	a, err := openApp(ctx, statusWatch)
	if err != nil {
		return err
	}
	defer a.close()

	if !statusWatch {
		fmt.Println(formatDisplay(a.ctrl.Display()))
		return nil
	}
	return watchStatus(ctx, a.ctrl)
}

// watchStatus redraws the display line on every change until interrupted.
// Without a terminal each change is printed on its own line.
func watchStatus(ctx context.Context, ctrl *timer.Controller) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	fd := int(os.Stdout.Fd())
	tty := term.IsTerminal(fd)

	updates := make(chan timer.Display, 1)
	unsubscribe := ctrl.SubscribeDisplay(func(d timer.Display) {
		select {
		case updates <- d:
		default:
		}
	})
	defer unsubscribe()

	draw := func(d timer.Display) {
		line := formatDisplay(d)
		if !tty {
			fmt.Println(line)
			return
		}
		width, _, err := term.GetSize(fd)
		if err != nil || width <= 0 {
			width = 80
		}
		pad := width - 1 - lipgloss.Width(line)
		if pad < 0 {
			pad = 0
		}
		fmt.Print("\r" + line + strings.Repeat(" ", pad))
	}

	draw(ctrl.Display())
	for {
		select {
		case <-ctx.Done():
			if tty {
				fmt.Println()
			}
			return nil
		case d := <-updates:
			draw(d)
		}
	}
}

func formatDisplay(d timer.Display) string {
	switch d.Phase {
	case timer.PhaseIdle:
		return idleStyle.Render("○ "+d.Formatted) + mutedStyle.Render("  no timer running")
	default:
		return runningStyle.Render("● "+d.Formatted) + mutedStyle.Render("  "+d.Phase.String())
	}
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func formatDuration(seconds int64) string {
	return timer.FormatElapsed(seconds)
}

func formatClock(t time.Time) string {
	return t.Local().Format("Jan 02 15:04")
}
