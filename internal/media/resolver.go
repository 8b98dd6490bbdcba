package media

import "strings"

// Resolve turns a request, the project's chat history (oldest first),
// and the project's live scenes into a provenance-tagged asset set plus
// a cross-project report.
//
// The steps run strictly in order: collect current attachments, apply
// the latest-only filter, scan history, validate explicit scene
// references, trace origins, apply the cross-project policy, and
// finally assign image directives. The returned set is always a subset
// of what those steps discovered; nothing else can enter it.
func Resolve(req Request, history []Message, scenes []SceneRef) (*ResolvedSet, *Report, error) {
	set := newResolvedSet()
	report := &Report{}

	collectAttachments(set, req)
	applyLatestOnly(set, req)
	scanHistory(set, req, history)
	if err := resolveSceneReferences(set, req, scenes); err != nil {
		return nil, report, err
	}
	traceOrigins(set, req)
	if err := applyPolicy(set, req, report); err != nil {
		return nil, report, err
	}
	assignDirectives(set, req)
	return set, report, nil
}

func collectAttachments(set *ResolvedSet, req Request) {
	for _, url := range req.ImageURLs {
		set.add(url, KindImage, ReasonCurrentAttachment)
	}
	for _, url := range req.VideoURLs {
		set.add(url, KindVideo, ReasonCurrentAttachment)
	}
	for _, url := range req.AudioURLs {
		set.add(url, KindAudio, ReasonCurrentAttachment)
	}
}

// applyLatestOnly keeps only the last current attachment of each kind.
// It never touches history-derived entries because it runs before the
// history scan.
func applyLatestOnly(set *ResolvedSet, req Request) {
	if !req.UseLatestOnly {
		return
	}
	kinds := [][]string{req.ImageURLs, req.VideoURLs, req.AudioURLs}

	// A URL can appear in more than one kind list; winning any kind
	// keeps it, so collect winners before removing anything.
	winners := make(map[string]struct{}, len(kinds))
	for _, urls := range kinds {
		if len(urls) > 0 {
			winners[urls[len(urls)-1]] = struct{}{}
		}
	}
	for _, urls := range kinds {
		if len(urls) == 0 {
			continue
		}
		for _, url := range urls[:len(urls)-1] {
			if _, winning := winners[url]; !winning {
				set.remove(url)
			}
		}
		if asset := set.Lookup(urls[len(urls)-1]); asset != nil {
			asset.addSource(ReasonLatestOnlyFilter)
		}
	}
}

// scanHistory walks the chat oldest to newest and pulls in previously
// attached URLs the prompt refers back to, either verbatim or through a
// kind anaphor ("the image", "that video"). An anaphor binds to the
// newest history attachment of its kind, mirroring the latest-wins rule
// for current attachments.
func scanHistory(set *ResolvedSet, req Request, history []Message) {
	prompt := strings.ToLower(req.PromptText)
	wanted := anaphoricKinds(prompt)

	var latestByKind [3]string
	for _, msg := range history {
		for _, att := range msg.Attachments {
			if att.URL == "" {
				continue
			}
			kind := att.Kind
			if kind == "" {
				kind = ClassifyKind(att.URL)
			}
			latestByKind[kindIndex(kind)] = att.URL
			if set.Lookup(att.URL) == nil && strings.Contains(req.PromptText, att.URL) {
				set.add(att.URL, kind, ReasonChatHistory)
			}
		}
	}
	for kind := range wanted {
		url := latestByKind[kindIndex(kind)]
		if url == "" || set.Lookup(url) != nil {
			continue
		}
		set.add(url, kind, ReasonChatHistory)
	}
}

var anaphorMarkers = map[Kind][]string{
	KindImage: {"the image", "that image", "this image", "previous image", "last image", "the photo", "that photo", "the picture"},
	KindVideo: {"the video", "that video", "this video", "previous video", "last video", "the clip", "that clip"},
	KindAudio: {"the audio", "that audio", "the sound", "that sound", "the music", "that track", "the voiceover"},
}

func anaphoricKinds(prompt string) map[Kind]struct{} {
	kinds := make(map[Kind]struct{})
	for kind, markers := range anaphorMarkers {
		for _, marker := range markers {
			if strings.Contains(prompt, marker) {
				kinds[kind] = struct{}{}
				break
			}
		}
	}
	return kinds
}

func kindIndex(kind Kind) int {
	switch kind {
	case KindVideo:
		return 1
	case KindAudio:
		return 2
	default:
		return 0
	}
}

// resolveSceneReferences validates every explicit scene id and folds the
// referenced scenes' media into the set. A single unknown id fails the
// whole resolution; no partial set escapes.
func resolveSceneReferences(set *ResolvedSet, req Request, scenes []SceneRef) error {
	if len(req.SceneIDs) == 0 {
		return nil
	}
	byID := make(map[string]SceneRef, len(scenes))
	for _, scene := range scenes {
		byID[scene.ID] = scene
	}
	var missing []string
	for _, id := range req.SceneIDs {
		scene, ok := byID[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		for _, url := range scene.MediaURLs {
			set.add(url, ClassifyKind(url), ReasonSceneReference)
		}
	}
	if len(missing) > 0 {
		return &MissingSceneReferenceError{ProjectID: req.ProjectID, SceneIDs: missing}
	}
	return nil
}

// traceOrigins parses the owning project out of every URL. Assets with
// no parseable origin are unlinked unless they came straight from the
// request's own attachment flow, which vouches for them.
func traceOrigins(set *ResolvedSet, req Request) {
	for _, asset := range set.Assets {
		origin, ok := ParseProjectID(asset.URL)
		if ok {
			asset.OriginProject = origin
			asset.CrossProject = origin != req.ProjectID
			continue
		}
		if !asset.DiscoveredVia(ReasonCurrentAttachment) {
			asset.Unlinked = true
		}
	}
}

func applyPolicy(set *ResolvedSet, req Request, report *Report) error {
	var offending []OffendingAsset
	for _, asset := range set.Assets {
		if !asset.CrossProject && !asset.Unlinked {
			continue
		}
		offender := OffendingAsset{URL: asset.URL, OriginProject: asset.OriginProject, Unlinked: asset.Unlinked}
		offending = append(offending, offender)
		report.recordOffender(offender)
	}
	if len(offending) == 0 {
		return nil
	}
	switch req.Policy {
	case PolicyWarn:
		return nil
	case PolicyIgnore:
		for _, offender := range offending {
			set.remove(offender.URL)
		}
		return nil
	default:
		report.SkippedRequestCount = 1
		return &CrossProjectSkipError{ProjectID: req.ProjectID, Offending: offending}
	}
}

// assignDirectives decides per image whether it is reused byte-identical
// or regenerated stylistically. Current attachments and scene media are
// concrete files the user pointed at, so they embed; a history image is
// recreated when the prompt asks for a variation, embedded when it asks
// for reuse, and left unresolved otherwise. Non-image assets always
// embed. The overall action is derived from the directives afterwards,
// never requested from the oracle.
func assignDirectives(set *ResolvedSet, req Request) {
	prompt := strings.ToLower(req.PromptText)
	var embeds, recreates, unresolved int
	for _, asset := range set.Assets {
		if asset.Kind != KindImage {
			asset.Directive = DirectiveEmbed
			continue
		}
		asset.Directive = imageDirective(asset, prompt)
		switch asset.Directive {
		case DirectiveEmbed:
			embeds++
		case DirectiveRecreate:
			recreates++
		default:
			unresolved++
		}
	}
	switch {
	case embeds > 0 && recreates > 0:
		set.ImageAction = ActionMixed
	case embeds > 0:
		set.ImageAction = ActionEmbed
	case recreates > 0:
		set.ImageAction = ActionRecreate
	case unresolved > 0:
		set.ImageAction = ActionUnresolved
	default:
		set.ImageAction = ActionNone
	}
}

var (
	recreateCues = []string{"similar", "style of", "in the style", "another", "variation", "like the", "inspired by", "reimagine"}
	embedCues    = []string{"use the", "use this", "exact", "attached", "as is", "as-is", "keep the", "insert the"}
)

func imageDirective(asset *Asset, prompt string) Directive {
	if asset.DiscoveredVia(ReasonCurrentAttachment) || asset.DiscoveredVia(ReasonSceneReference) {
		return DirectiveEmbed
	}
	for _, cue := range recreateCues {
		if strings.Contains(prompt, cue) {
			return DirectiveRecreate
		}
	}
	for _, cue := range embedCues {
		if strings.Contains(prompt, cue) {
			return DirectiveEmbed
		}
	}
	return DirectiveUnresolved
}
