package oracle

import (
	"fmt"
	"strings"

	"sceneforge/internal/media"
)

const decisionSystemPrompt = `You are the scene planner for a video generation tool.
Given a user request, the project's current scenes, and the resolved media
attached to the request, choose exactly one operation:

- "create": add a new scene. Provide parameters.name and parameters.content;
  parameters.durationMs is optional.
- "edit": change an existing scene. Provide parameters.sceneId plus only the
  fields that change (name, content, durationMs).
- "delete": remove an existing scene. Provide parameters.sceneId only.

Rules:
- Pick "edit" or "delete" only when the request clearly targets an existing
  scene; otherwise prefer "create".
- Never invent scene ids; use only ids listed under SCENES.
- Respect the media directives: embed means reuse the file as supplied,
  recreate means regenerate it stylistically.

Respond with JSON only, exactly:
{"operation": "create|edit|delete", "parameters": {...}, "reasoning": "one sentence"}`

func buildDecisionPrompt(req NormalizedRequest, resolved *media.ResolvedSet, scenes []SceneSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "PROJECT: %s\n", req.ProjectID)
	fmt.Fprintf(&b, "REQUEST: %s\n", strings.TrimSpace(req.PromptText))
	if len(req.SceneIDs) > 0 {
		fmt.Fprintf(&b, "REFERENCED SCENES: %s\n", strings.Join(req.SceneIDs, ", "))
	}

	b.WriteString("\nSCENES:\n")
	if len(scenes) == 0 {
		b.WriteString("  (none)\n")
	}
	for _, scene := range scenes {
		fmt.Fprintf(&b, "  - id=%s order=%d name=%q", scene.ID, scene.Order, scene.Name)
		if scene.DurationMs > 0 {
			fmt.Fprintf(&b, " durationMs=%d", scene.DurationMs)
		}
		b.WriteString("\n")
		if content := truncate(scene.Content, 200); content != "" {
			fmt.Fprintf(&b, "    content: %s\n", content)
		}
	}

	b.WriteString("\nRESOLVED MEDIA")
	if resolved == nil || resolved.Len() == 0 {
		b.WriteString(": (none)\n")
	} else {
		fmt.Fprintf(&b, " (image action %s):\n", resolved.ImageAction)
		for _, asset := range resolved.Assets {
			fmt.Fprintf(&b, "  - %s kind=%s directive=%s via=%s\n",
				asset.URL, asset.Kind, asset.Directive, joinReasons(asset.Sources()))
		}
	}
	return b.String()
}

func joinReasons(reasons []media.DiscoveryReason) string {
	parts := make([]string, len(reasons))
	for i, reason := range reasons {
		parts[i] = string(reason)
	}
	return strings.Join(parts, ",")
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(value)
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit]) + "..."
}
