package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"sceneforge/internal/config"
	"sceneforge/internal/generation"
	"sceneforge/internal/store"
)

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	var (
		promptFlag     string
		userFlag       string
		keyFlag        string
		imageFlags     []string
		videoFlags     []string
		audioFlags     []string
		sceneFlags     []string
		latestOnlyFlag bool
		policyFlag     string
	)

	cmd := &cobra.Command{
		Use:   "generate <project-id>",
		Short: "Submit one generation request and print the applied result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withOrchestrator(func(cfg *config.Config, st *store.Store, orch *generation.Orchestrator) error {
				req := generation.Request{
					ProjectID:          strings.TrimSpace(args[0]),
					UserID:             userFlag,
					PromptText:         promptFlag,
					ImageURLs:          imageFlags,
					VideoURLs:          videoFlags,
					AudioURLs:          audioFlags,
					SceneIDs:           sceneFlags,
					UseLatestOnly:      latestOnlyFlag,
					IdempotencyKey:     keyFlag,
					CrossProjectPolicy: policyFlag,
				}
				result, err := orch.Handle(cmd.Context(), req)
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, result)
				}
				printGenerationResult(cmd, result)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&promptFlag, "prompt", "p", "", "Freeform generation prompt (required)")
	cmd.Flags().StringVarP(&userFlag, "user", "u", "", "Submitting user identifier")
	cmd.Flags().StringVarP(&keyFlag, "key", "k", "", "Idempotency key (generated when omitted)")
	cmd.Flags().StringArrayVarP(&imageFlags, "image", "i", nil, "Attach an image URL (repeatable)")
	cmd.Flags().StringArrayVar(&videoFlags, "video", nil, "Attach a video URL (repeatable)")
	cmd.Flags().StringArrayVar(&audioFlags, "audio", nil, "Attach an audio URL (repeatable)")
	cmd.Flags().StringArrayVarP(&sceneFlags, "scene", "s", nil, "Reference an existing scene by id (repeatable)")
	cmd.Flags().BoolVar(&latestOnlyFlag, "latest-only", false, "Keep only the newest current image attachment")
	cmd.Flags().StringVar(&policyFlag, "policy", "", "Cross-project policy: fail, warn, or ignore")
	_ = cmd.MarkFlagRequired("prompt")

	return cmd
}

func printGenerationResult(cmd *cobra.Command, result *generation.Result) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Status: %s\n", displayLabel(result.Status))
	if result.Replayed {
		fmt.Fprintln(out, "Replayed: yes")
	}
	if result.Adopted {
		fmt.Fprintln(out, "Adopted: yes")
	}
	if result.Operation != "" {
		fmt.Fprintf(out, "Operation: %s\n", displayLabel(result.Operation))
	}
	if result.SceneID != "" {
		fmt.Fprintf(out, "Scene: %s\n", result.SceneID)
	}
	fmt.Fprintf(out, "Revision: %d -> %d\n", result.RevisionBefore, result.RevisionAfter)
	if result.ImageAction != "" {
		fmt.Fprintf(out, "Image action: %s\n", result.ImageAction)
	}
	if result.Error != "" {
		fmt.Fprintf(out, "Error: %s\n", result.Error)
	}
	for _, warning := range result.Warnings {
		fmt.Fprintf(out, "Warning: %s\n", warning)
	}
	if len(result.Media) > 0 {
		rows := make([][]string, 0, len(result.Media))
		for _, asset := range result.Media {
			rows = append(rows, []string{
				asset.URL,
				asset.Kind,
				asset.Directive,
				strings.Join(asset.Sources, ", "),
				yesNo(asset.CrossProject),
			})
		}
		fmt.Fprintln(out, renderTable([]string{"URL", "Kind", "Directive", "Discovered Via", "Cross-Project"}, rows))
	}
	if result.Reasoning != "" {
		fmt.Fprintf(out, "Reasoning: %s\n", result.Reasoning)
	}
}
