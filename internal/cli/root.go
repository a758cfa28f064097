package cli

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/existflow/irontrack/internal/config"
	"github.com/existflow/irontrack/internal/logger"
	"github.com/existflow/irontrack/internal/model"
	"github.com/existflow/irontrack/internal/tui"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

var (
	logLevel   string
	logFile    string
	logConsole bool
	serverURL  string
	userID     string

	// cfg is loaded once per invocation by the root command
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "track",
	Short: "IronTrack - Terminal time tracker",
	Long: `IronTrack tracks time against projects and tasks.

Start a timer now and decide what it was for when you stop it. The timer
keeps running across restarts and stays in step with the server.

Run 'track' without arguments to launch the interactive TUI.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Load config from file (or defaults if not exists)
		loaded, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v, using defaults\n", err)
			loaded = config.DefaultConfig()
		}
		cfg = loaded

		// Override with CLI flags if provided
		configChanged := false
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = logLevel
			configChanged = true
		}
		if cmd.Flags().Changed("log-file") {
			cfg.LogFile = logFile
			configChanged = true
		}
		if cmd.Flags().Changed("log-console") {
			cfg.LogConsole = logConsole
			configChanged = true
		}
		if cmd.Flags().Changed("server") {
			cfg.ServerURL = serverURL
			configChanged = true
		}
		if cmd.Flags().Changed("user") {
			cfg.UserID = userID
			configChanged = true
		}

		// Save config if changed via CLI flags
		if configChanged {
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := cfg.Save(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to save config: %v\n", err)
			}
		}

		logConfig := logger.DefaultConfig()
		logConfig.Level = logger.ParseLevel(cfg.LogLevel)
		logConfig.FilePath = cfg.LogFile
		logConfig.Console = cfg.LogConsole

		if err := logger.Init(logConfig); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		logger.Info("IronTrack started", logger.F("command", cmd.Name()))
		return nil
	},

	RunE: func(cmd *cobra.Command, args []string) error {
		if !isInteractive() {
			return runStatus(cmd, args)
		}
		return runTUI(commandContext(cmd))
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Info("IronTrack exiting", logger.F("command", cmd.Name()))
		logger.Close()
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Add logging flags
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (DEBUG, INFO, WARN, ERROR)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Path to log file")
	rootCmd.PersistentFlags().BoolVar(&logConsole, "log-console", false, "Enable console logging")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "Time-log server URL (saved)")
	rootCmd.PersistentFlags().StringVar(&userID, "user", "", "User ID sent to the server (saved)")

	// Add subcommands
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(projectCmd)
	rootCmd.AddCommand(taskCmd)
	rootCmd.AddCommand(configCmd)
}

// isInteractive reports whether stdin and stdout are terminals
func isInteractive() bool {
	in, out := os.Stdin.Fd(), os.Stdout.Fd()
	return (isatty.IsTerminal(in) || isatty.IsCygwinTerminal(in)) &&
		(isatty.IsTerminal(out) || isatty.IsCygwinTerminal(out))
}

func runTUI(ctx context.Context) error {
	a, err := openApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.close()

	logger.Info("Launching TUI")
	m := tui.NewModel(tui.Options{
		Controller: a.ctrl,
		Dialog:     a.dialog,
		Source:     a.client,
		RecentLogs: func(ctx context.Context) ([]model.TimeLog, error) {
			return a.recentLogs(ctx, false)
		},
		RequestTimeout: a.cfg.RequestTimeout,
	})
	defer m.Close()

	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		logger.Error("TUI error", logger.Err(err))
		return fmt.Errorf("failed to run TUI: %w", err)
	}

	logger.Info("TUI exited normally")
	return nil
}
