package media

import (
	"net/url"
	"path"
	"strings"
)

// Asset URLs follow a stable path convention that embeds the owning
// project: any path containing a "projects" segment is owned by the
// project named in the segment that follows it. The parser is the
// single authority for that convention; callers must treat a false
// return as "unlinked", never fall back to their own string matching.
//
//	https://cdn.example.com/v1/projects/<project-id>/assets/<file>

const projectPathSegment = "projects"

// ParseProjectID extracts the owning project id from an asset URL.
// It returns false when the URL is unparseable or carries no project
// segment.
func ParseProjectID(rawURL string) (string, bool) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	for i := 0; i < len(segments)-1; i++ {
		if segments[i] != projectPathSegment {
			continue
		}
		if id := strings.TrimSpace(segments[i+1]); id != "" {
			return id, true
		}
	}
	return "", false
}

// ClassifyKind infers an asset kind from the URL's file extension.
// Unknown extensions default to image, the dominant modality.
func ClassifyKind(rawURL string) Kind {
	ext := strings.ToLower(path.Ext(urlPath(rawURL)))
	switch ext {
	case ".mp4", ".mov", ".webm", ".mkv", ".avi":
		return KindVideo
	case ".mp3", ".wav", ".m4a", ".flac", ".ogg", ".aac":
		return KindAudio
	default:
		return KindImage
	}
}

func urlPath(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	return parsed.Path
}
