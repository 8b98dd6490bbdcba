package media

import "sort"

// Kind classifies an asset by the modality it carries.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
	KindAudio Kind = "audio"
)

// DiscoveryReason records how an asset entered the resolved set. Every
// asset in a resolved set carries at least one reason; assets are never
// included silently.
type DiscoveryReason string

const (
	ReasonCurrentAttachment DiscoveryReason = "current-attachment"
	ReasonLatestOnlyFilter  DiscoveryReason = "latest-only-filter"
	ReasonChatHistory       DiscoveryReason = "chat-history"
	ReasonSceneReference    DiscoveryReason = "explicit-scene-reference"
)

// Directive states what the downstream generation should do with an
// image asset: reuse it byte-identical, regenerate it stylistically, or
// neither could be determined.
type Directive string

const (
	DirectiveEmbed      Directive = "embed"
	DirectiveRecreate   Directive = "recreate"
	DirectiveUnresolved Directive = "unresolved"
)

// Action summarizes the image directives of a whole request. It is
// always derived from the per-asset directives, never requested from
// the decision oracle.
type Action string

const (
	ActionNone       Action = "none"
	ActionEmbed      Action = "embed"
	ActionRecreate   Action = "recreate"
	ActionMixed      Action = "mixed"
	ActionUnresolved Action = "unresolved"
)

// Policy controls what happens when a resolved asset turns out to
// belong to another project, or to no project at all.
type Policy string

const (
	PolicyFail   Policy = "fail"
	PolicyWarn   Policy = "warn"
	PolicyIgnore Policy = "ignore"
)

// ValidPolicy reports whether value names a known cross-project policy.
func ValidPolicy(value string) bool {
	switch Policy(value) {
	case PolicyFail, PolicyWarn, PolicyIgnore:
		return true
	}
	return false
}

// Request carries the media-relevant portion of a generation request.
type Request struct {
	ProjectID     string
	PromptText    string
	ImageURLs     []string
	VideoURLs     []string
	AudioURLs     []string
	SceneIDs      []string
	UseLatestOnly bool
	Policy        Policy
}

// Attachment is a single media reference carried by a chat message.
type Attachment struct {
	URL  string
	Kind Kind
}

// Message is one entry of a project's chat history, ordered oldest to
// newest by the caller.
type Message struct {
	Role        string
	Text        string
	Attachments []Attachment
}

// SceneRef is the slice of a stored scene the resolver needs: its
// identity plus any media URLs embedded in its content.
type SceneRef struct {
	ID        string
	MediaURLs []string
}

// Asset is one resolved media reference with full provenance.
type Asset struct {
	URL           string
	Kind          Kind
	OriginProject string
	CrossProject  bool
	Unlinked      bool
	Directive     Directive

	sources map[DiscoveryReason]struct{}
}

// Sources returns the discovery reasons for the asset in stable order.
func (a *Asset) Sources() []DiscoveryReason {
	reasons := make([]DiscoveryReason, 0, len(a.sources))
	for reason := range a.sources {
		reasons = append(reasons, reason)
	}
	sort.Slice(reasons, func(i, j int) bool { return reasons[i] < reasons[j] })
	return reasons
}

// DiscoveredVia reports whether the asset carries the given reason.
func (a *Asset) DiscoveredVia(reason DiscoveryReason) bool {
	_, ok := a.sources[reason]
	return ok
}

func (a *Asset) addSource(reason DiscoveryReason) {
	if a.sources == nil {
		a.sources = make(map[DiscoveryReason]struct{})
	}
	a.sources[reason] = struct{}{}
}

// ResolvedSet is the outcome of media resolution: assets in insertion
// order plus the derived overall image action.
type ResolvedSet struct {
	Assets      []*Asset
	ImageAction Action

	index map[string]*Asset
}

func newResolvedSet() *ResolvedSet {
	return &ResolvedSet{ImageAction: ActionNone, index: make(map[string]*Asset)}
}

// Lookup returns the asset for url, or nil when absent.
func (s *ResolvedSet) Lookup(url string) *Asset {
	return s.index[url]
}

// URLs returns every resolved URL in insertion order.
func (s *ResolvedSet) URLs() []string {
	urls := make([]string, 0, len(s.Assets))
	for _, asset := range s.Assets {
		urls = append(urls, asset.URL)
	}
	return urls
}

// ByKind returns the resolved assets of one kind, in insertion order.
func (s *ResolvedSet) ByKind(kind Kind) []*Asset {
	var assets []*Asset
	for _, asset := range s.Assets {
		if asset.Kind == kind {
			assets = append(assets, asset)
		}
	}
	return assets
}

// Len reports the number of resolved assets.
func (s *ResolvedSet) Len() int {
	return len(s.Assets)
}

func (s *ResolvedSet) add(url string, kind Kind, reason DiscoveryReason) *Asset {
	if asset, ok := s.index[url]; ok {
		asset.addSource(reason)
		return asset
	}
	asset := &Asset{URL: url, Kind: kind}
	asset.addSource(reason)
	s.index[url] = asset
	s.Assets = append(s.Assets, asset)
	return asset
}

func (s *ResolvedSet) remove(url string) {
	if _, ok := s.index[url]; !ok {
		return
	}
	delete(s.index, url)
	filtered := s.Assets[:0]
	for _, asset := range s.Assets {
		if asset.URL != url {
			filtered = append(filtered, asset)
		}
	}
	s.Assets = filtered
}
