package cli

import (
	"fmt"
	"strings"

	"github.com/existflow/irontrack/internal/categorize"
	"github.com/existflow/irontrack/internal/model"
	"github.com/spf13/cobra"
)

var projectCmd = &cobra.Command{
	Use:     "project",
	Aliases: []string{"projects"},
	Short:   "List and create projects",
	Long: `List the projects you can book time against, or create one.

Examples:
  track project
  track project add "Website" --member bob`,
	Args: cobra.NoArgs,
	RunE: runProjectList,
}

var projectAddCmd = &cobra.Command{
	Use:   "add [name]",
	Short: "Create a new project",
	Args:  cobra.ExactArgs(1),
	RunE:  runProjectAdd,
}

var (
	projectColor   string
	projectMembers []string
)

func init() {
	projectAddCmd.Flags().StringVarP(&projectColor, "color", "c", model.DefaultProjectColor, "Project color (hex)")
	projectAddCmd.Flags().StringSliceVarP(&projectMembers, "member", "m", nil, "User IDs to add as members")

	projectCmd.AddCommand(projectAddCmd)
}

func runProjectList(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.close()

	reqCtx, cancel := a.requestContext(ctx)
	defer cancel()

	owned, err := a.client.ListProjects(reqCtx, model.ProjectScopeOwned)
	if err != nil {
		return fmt.Errorf("failed to list projects: %w", err)
	}
	member, err := a.client.ListProjects(reqCtx, model.ProjectScopeMember)
	if err != nil {
		return fmt.Errorf("failed to list projects: %w", err)
	}

	projects := categorize.MergeProjects(owned, member)
	if len(projects) == 0 {
		fmt.Println("No projects found. Create one with: track project add \"Name\"")
		return nil
	}

	fmt.Println()
	fmt.Printf("  %-6s  %-24s  %s\n", "ID", "Name", "Owner")
	fmt.Println(strings.Repeat("─", 50))
	for _, p := range projects {
		fmt.Printf("  %-6d  %-24s  %s\n", p.ID, p.Name, p.OwnerID)
	}
	fmt.Println(strings.Repeat("─", 50))
	fmt.Printf("  %d projects\n\n", len(projects))
	return nil
}

func runProjectAdd(cmd *cobra.Command, args []string) error {
	ctx := commandContext(cmd)
	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.close()

	reqCtx, cancel := a.requestContext(ctx)
	defer cancel()

	p, err := a.client.CreateProject(reqCtx, model.CreateProjectRequest{
		Name:    args[0],
		Color:   projectColor,
		Members: projectMembers,
	})
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}

	fmt.Printf("✓ Created project: %s (id: %d)\n", p.Name, p.ID)
	return nil
}
