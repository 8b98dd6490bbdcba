package media

import (
	"fmt"
	"strings"

	"sceneforge/internal/services"
)

// MissingSceneReferenceError reports explicit scene references that do
// not exist in the project. Resolution fails as a whole; no partial set
// is returned.
type MissingSceneReferenceError struct {
	ProjectID string
	SceneIDs  []string
}

func (e *MissingSceneReferenceError) Error() string {
	return fmt.Sprintf("media: project %s has no scene %s", e.ProjectID, strings.Join(e.SceneIDs, ", "))
}

func (e *MissingSceneReferenceError) Unwrap() error {
	return services.ErrValidation
}

// OffendingAsset is one URL rejected by the cross-project policy,
// together with its inferred origin.
type OffendingAsset struct {
	URL           string
	OriginProject string
	Unlinked      bool
}

// CrossProjectSkipError aborts resolution under the fail policy. It
// names every offending URL and the project it was traced to so the
// caller can self-correct.
type CrossProjectSkipError struct {
	ProjectID string
	Offending []OffendingAsset
}

func (e *CrossProjectSkipError) Error() string {
	parts := make([]string, 0, len(e.Offending))
	for _, asset := range e.Offending {
		origin := asset.OriginProject
		if asset.Unlinked {
			origin = "unlinked"
		}
		parts = append(parts, fmt.Sprintf("%s (origin %s)", asset.URL, origin))
	}
	return fmt.Sprintf("media: project %s references foreign media: %s", e.ProjectID, strings.Join(parts, "; "))
}

func (e *CrossProjectSkipError) Unwrap() error {
	return services.ErrPolicy
}

// OriginProjects returns the distinct origin projects named by the
// error, in first-seen order. Unlinked assets contribute nothing.
func (e *CrossProjectSkipError) OriginProjects() []string {
	seen := make(map[string]struct{})
	var origins []string
	for _, asset := range e.Offending {
		if asset.Unlinked || asset.OriginProject == "" {
			continue
		}
		if _, ok := seen[asset.OriginProject]; ok {
			continue
		}
		seen[asset.OriginProject] = struct{}{}
		origins = append(origins, asset.OriginProject)
	}
	return origins
}
