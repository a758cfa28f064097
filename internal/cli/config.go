package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/existflow/irontrack/internal/config"
	"github.com/existflow/irontrack/internal/remote"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change settings",
	Long: `Show the current settings, or change one.

Keys: server, user, request-timeout, reconcile-interval, log-level

Examples:
  track config
  track config set server https://track.example.com
  track config set user alice`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Change a setting",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

func init() {
	configCmd.AddCommand(configSetCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	path, _ := config.Path()
	fmt.Printf("  %-20s %s\n", "config", path)
	fmt.Printf("  %-20s %s\n", "server", cfg.ServerURL)
	fmt.Printf("  %-20s %s\n", "user", cfg.UserID)
	fmt.Printf("  %-20s %s\n", "db", cfg.DBPath)
	fmt.Printf("  %-20s %s\n", "request-timeout", cfg.RequestTimeout)
	fmt.Printf("  %-20s %s\n", "reconcile-interval", cfg.ReconcileInterval)
	fmt.Printf("  %-20s %s\n", "log-level", cfg.LogLevel)
	fmt.Printf("  %-20s %s\n", "log-file", cfg.LogFile)

	ctx, cancel := context.WithTimeout(commandContext(cmd), cfg.RequestTimeout)
	defer cancel()
	status := runningStyle.Render("reachable")
	if err := remote.NewClient(cfg.ServerURL, cfg.UserID, cfg.RequestTimeout).Health(ctx); err != nil {
		status = idleStyle.Render("unreachable: " + err.Error())
	}
	fmt.Printf("  %-20s %s\n", "server status", status)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	if err := applySetting(cfg, args[0], args[1]); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.Save(); err != nil {
		return err
	}
	fmt.Printf("✓ %s = %s\n", args[0], args[1])
	return nil
}

// applySetting sets one user-facing key on c
func applySetting(c *config.Config, key, value string) error {
	key = strings.ToLower(key)
	switch key {
	case "server":
		c.ServerURL = strings.TrimRight(value, "/")
	case "user":
		c.UserID = value
	case "request-timeout", "reconcile-interval":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value, err)
		}
		if key == "request-timeout" {
			c.RequestTimeout = d
		} else {
			c.ReconcileInterval = d
		}
	case "log-level":
		c.LogLevel = strings.ToUpper(value)
	default:
		return fmt.Errorf("unknown setting %q", key)
	}
	return nil
}
