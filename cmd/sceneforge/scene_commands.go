package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"sceneforge/internal/config"
	"sceneforge/internal/services"
	"sceneforge/internal/store"
)

func newSceneCommand(ctx *commandContext) *cobra.Command {
	sceneCmd := &cobra.Command{
		Use:   "scene",
		Short: "Inspect project scenes",
	}

	sceneCmd.AddCommand(newSceneListCommand(ctx))
	sceneCmd.AddCommand(newSceneShowCommand(ctx))

	return sceneCmd
}

func newSceneListCommand(ctx *commandContext) *cobra.Command {
	var includeDeleted bool

	cmd := &cobra.Command{
		Use:   "list <project-id>",
		Short: "List scenes in order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				projectID := strings.TrimSpace(args[0])
				if _, err := st.GetProject(cmd.Context(), projectID); err != nil {
					return err
				}
				scenes, err := st.ListScenes(cmd.Context(), projectID, includeDeleted)
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					views := make([]map[string]any, 0, len(scenes))
					for _, scene := range scenes {
						views = append(views, sceneView(scene))
					}
					return writeJSON(cmd, views)
				}
				if len(scenes) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No scenes")
					return nil
				}
				rows := make([][]string, 0, len(scenes))
				for _, scene := range scenes {
					rows = append(rows, []string{
						fmt.Sprintf("%d", scene.Order),
						scene.ID,
						scene.Name,
						formatDuration(scene.DurationMs),
						yesNo(scene.Deleted()),
						scene.UpdatedAt.Format(time.RFC3339),
					})
				}
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Order", "ID", "Name", "Duration", "Deleted", "Updated"}, rows, 0, 3))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&includeDeleted, "deleted", false, "Include tombstoned scenes")

	return cmd
}

func newSceneShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <scene-id>",
		Short: "Show one scene including its content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withStore(func(cfg *config.Config, st *store.Store) error {
				sceneID := strings.TrimSpace(args[0])
				scene, err := st.GetScene(cmd.Context(), sceneID)
				if err != nil {
					return err
				}
				if scene == nil {
					return services.Wrap(services.ErrNotFound, "cli", "scene show",
						fmt.Sprintf("no scene with id %q", sceneID), nil)
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, sceneView(scene))
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Scene: %s\n", scene.ID)
				fmt.Fprintf(out, "Project: %s\n", scene.ProjectID)
				fmt.Fprintf(out, "Order: %d\n", scene.Order)
				if scene.Name != "" {
					fmt.Fprintf(out, "Name: %s\n", scene.Name)
				}
				fmt.Fprintf(out, "Duration: %s\n", formatDuration(scene.DurationMs))
				if scene.Deleted() {
					fmt.Fprintf(out, "Deleted: %s\n", scene.DeletedAt.Format(time.RFC3339))
				}
				if scene.Content != "" {
					fmt.Fprintf(out, "Content:\n%s\n", scene.Content)
				}
				return nil
			})
		},
	}
}

func sceneView(scene *store.Scene) map[string]any {
	view := map[string]any{
		"id":         scene.ID,
		"projectId":  scene.ProjectID,
		"order":      scene.Order,
		"name":       scene.Name,
		"content":    scene.Content,
		"durationMs": scene.DurationMs,
		"createdAt":  scene.CreatedAt,
		"updatedAt":  scene.UpdatedAt,
	}
	if scene.DeletedAt != nil {
		view["deletedAt"] = *scene.DeletedAt
	}
	return view
}

func formatDuration(durationMs int64) string {
	if durationMs <= 0 {
		return "-"
	}
	return (time.Duration(durationMs) * time.Millisecond).String()
}
