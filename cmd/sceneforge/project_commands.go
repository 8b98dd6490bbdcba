package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"sceneforge/internal/config"
	"sceneforge/internal/store"
)

func newProjectCommand(ctx *commandContext) *cobra.Command {
	projectCmd := &cobra.Command{
		Use:   "project",
		Short: "Inspect and manage projects",
	}

	projectCmd.AddCommand(newProjectCreateCommand(ctx))
	projectCmd.AddCommand(newProjectShowCommand(ctx))
	projectCmd.AddCommand(newProjectListCommand(ctx))

	return projectCmd
}

func newProjectCreateCommand(ctx *commandContext) *cobra.Command {
	var ownerFlag string

	cmd := &cobra.Command{
		Use:   "create <project-id>",
		Short: "Create a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				project, err := st.CreateProject(cmd.Context(), strings.TrimSpace(args[0]), ownerFlag)
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, projectView(project))
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created project %s (revision %d)\n", project.ID, project.Revision)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&ownerFlag, "owner", "", "Owning user identifier")

	return cmd
}

func newProjectShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <project-id>",
		Short: "Show one project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				project, err := st.GetProject(cmd.Context(), strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, projectView(project))
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Project: %s\n", project.ID)
				if project.OwnerID != "" {
					fmt.Fprintf(out, "Owner: %s\n", project.OwnerID)
				}
				fmt.Fprintf(out, "Revision: %d\n", project.Revision)
				fmt.Fprintf(out, "Created: %s\n", project.CreatedAt.Format(time.RFC3339))
				fmt.Fprintf(out, "Updated: %s\n", project.UpdatedAt.Format(time.RFC3339))
				return nil
			})
		},
	}
}

func newProjectListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				projects, err := st.ListProjects(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					views := make([]map[string]any, 0, len(projects))
					for _, project := range projects {
						views = append(views, projectView(project))
					}
					return writeJSON(cmd, views)
				}
				if len(projects) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No projects")
					return nil
				}
				rows := make([][]string, 0, len(projects))
				for _, project := range projects {
					rows = append(rows, []string{
						project.ID,
						project.OwnerID,
						fmt.Sprintf("%d", project.Revision),
						project.UpdatedAt.Format(time.RFC3339),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"ID", "Owner", "Revision", "Updated"}, rows, 2))
				return nil
			})
		},
	}
}

func projectView(project *store.Project) map[string]any {
	return map[string]any{
		"id":        project.ID,
		"ownerId":   project.OwnerID,
		"revision":  project.Revision,
		"createdAt": project.CreatedAt,
		"updatedAt": project.UpdatedAt,
	}
}
