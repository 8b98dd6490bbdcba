package generation

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"sceneforge/internal/media"
	"sceneforge/internal/services"
)

// Request is a raw generation request as received from the outer
// surface. History is the project's chat transcript, oldest first,
// supplied by the caller; the engine itself does not store chat.
type Request struct {
	ProjectID          string          `json:"projectId"`
	UserID             string          `json:"userId"`
	PromptText         string          `json:"promptText"`
	ImageURLs          []string        `json:"imageUrls,omitempty"`
	VideoURLs          []string        `json:"videoUrls,omitempty"`
	AudioURLs          []string        `json:"audioUrls,omitempty"`
	SceneIDs           []string        `json:"sceneIds,omitempty"`
	UseLatestOnly      bool            `json:"useLatestOnly,omitempty"`
	IdempotencyKey     string          `json:"idempotencyKey,omitempty"`
	CrossProjectPolicy string          `json:"crossProjectPolicy,omitempty"`
	History            []media.Message `json:"history,omitempty"`
}

// normalized is the validated, defaulted form of a request. The
// idempotency key is always set afterwards; the payload hash covers
// everything that makes the submission what it is.
type normalized struct {
	Request
	Policy media.Policy
}

// normalizeRequest validates the request and fills defaults. Malformed
// requests are rejected here, before any resolution or ledger work.
func normalizeRequest(req Request, defaultPolicy string) (normalized, error) {
	var out normalized
	req.ProjectID = strings.TrimSpace(req.ProjectID)
	req.UserID = strings.TrimSpace(req.UserID)
	req.PromptText = strings.TrimSpace(req.PromptText)
	req.IdempotencyKey = strings.TrimSpace(req.IdempotencyKey)
	req.CrossProjectPolicy = strings.TrimSpace(strings.ToLower(req.CrossProjectPolicy))

	if req.ProjectID == "" {
		return out, services.Wrap(services.ErrValidation, "generation", "normalize", "projectId is required", nil)
	}
	if req.PromptText == "" {
		return out, services.Wrap(services.ErrValidation, "generation", "normalize", "promptText is required", nil)
	}
	for _, urls := range [][]string{req.ImageURLs, req.VideoURLs, req.AudioURLs} {
		for _, url := range urls {
			if strings.TrimSpace(url) == "" {
				return out, services.Wrap(services.ErrValidation, "generation", "normalize", "attachment URLs must be non-empty", nil)
			}
		}
	}
	for _, id := range req.SceneIDs {
		if strings.TrimSpace(id) == "" {
			return out, services.Wrap(services.ErrValidation, "generation", "normalize", "sceneIds must be non-empty", nil)
		}
	}

	policy := req.CrossProjectPolicy
	if policy == "" {
		policy = strings.TrimSpace(strings.ToLower(defaultPolicy))
	}
	if !media.ValidPolicy(policy) {
		return out, services.Wrap(services.ErrValidation, "generation", "normalize",
			fmt.Sprintf("crossProjectPolicy %q is not one of fail, warn, ignore", policy), nil)
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = uuid.NewString()
	}

	out.Request = req
	out.Policy = media.Policy(policy)
	return out, nil
}

func (n normalized) mediaRequest() media.Request {
	return media.Request{
		ProjectID:     n.ProjectID,
		PromptText:    n.PromptText,
		ImageURLs:     n.ImageURLs,
		VideoURLs:     n.VideoURLs,
		AudioURLs:     n.AudioURLs,
		SceneIDs:      n.SceneIDs,
		UseLatestOnly: n.UseLatestOnly,
		Policy:        n.Policy,
	}
}

// payloadJSON is the ledger payload: everything that identifies the
// submission semantically. The idempotency key itself and the chat
// history are excluded; history is server context, not caller intent.
func (n normalized) payloadJSON() (string, error) {
	payload := struct {
		ProjectID     string   `json:"projectId"`
		UserID        string   `json:"userId,omitempty"`
		PromptText    string   `json:"promptText"`
		ImageURLs     []string `json:"imageUrls,omitempty"`
		VideoURLs     []string `json:"videoUrls,omitempty"`
		AudioURLs     []string `json:"audioUrls,omitempty"`
		SceneIDs      []string `json:"sceneIds,omitempty"`
		UseLatestOnly bool     `json:"useLatestOnly,omitempty"`
		Policy        string   `json:"crossProjectPolicy"`
	}{
		ProjectID:     n.ProjectID,
		UserID:        n.UserID,
		PromptText:    n.PromptText,
		ImageURLs:     n.ImageURLs,
		VideoURLs:     n.VideoURLs,
		AudioURLs:     n.AudioURLs,
		SceneIDs:      n.SceneIDs,
		UseLatestOnly: n.UseLatestOnly,
		Policy:        string(n.Policy),
	}
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode ledger payload: %w", err)
	}
	return string(encoded), nil
}

var mediaURLPattern = regexp.MustCompile(`https?://[^\s"'<>\)\]]+`)

// extractMediaURLs pulls media references out of opaque scene content so
// explicitly referenced scenes can contribute their media to resolution.
func extractMediaURLs(content string) []string {
	return mediaURLPattern.FindAllString(content, -1)
}
