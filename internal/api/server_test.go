package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sceneforge/internal/api"
	"sceneforge/internal/generation"
	"sceneforge/internal/oracle"
	"sceneforge/internal/store"
	"sceneforge/internal/testsupport"
)

func strptr(s string) *string { return &s }

func newTestServer(t *testing.T, decider oracle.Decider) (*api.Server, *store.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	testsupport.NewProject(t, st, "proj-1", "user-1")
	orch := generation.New(st, decider, cfg, nil)
	return api.New(st, orch, nil), st
}

func doJSON(t *testing.T, server *api.Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	recorder := httptest.NewRecorder()
	server.Handler().ServeHTTP(recorder, req)
	return recorder
}

func TestGenerateEndpoint(t *testing.T) {
	decider := &oracle.StaticDecider{Queue: []oracle.Decision{{
		Operation:  store.OperationCreate,
		Parameters: oracle.Parameters{Name: strptr("Opening"), Content: strptr("City at night")},
		Reasoning:  "new scene",
	}}}
	server, st := newTestServer(t, decider)

	recorder := doJSON(t, server, http.MethodPost, "/v1/projects/proj-1/generations", map[string]any{
		"promptText":     "Add an opening shot",
		"idempotencyKey": "key-1",
	})
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())

	var result generation.Result
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &result))
	assert.Equal(t, "create", result.Operation)
	assert.Equal(t, int64(1), result.RevisionAfter)
	assert.NotEmpty(t, result.SceneID)
	assert.NotEmpty(t, recorder.Header().Get("X-Request-ID"))

	record, err := st.GetLedgerRecord(context.Background(), "proj-1", "key-1")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, store.LedgerApplied, record.Status)
}

func TestGenerateEndpointValidation(t *testing.T) {
	server, _ := newTestServer(t, &oracle.StaticDecider{})

	recorder := doJSON(t, server, http.MethodPost, "/v1/projects/proj-1/generations", map[string]any{})
	assert.Equal(t, http.StatusUnprocessableEntity, recorder.Code)

	recorder = doJSON(t, server, http.MethodPost, "/v1/projects/proj-1/generations", map[string]any{
		"promptText":         "p",
		"crossProjectPolicy": "explode",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, recorder.Code)
}

func TestGenerateEndpointCrossProjectFail(t *testing.T) {
	server, _ := newTestServer(t, &oracle.StaticDecider{})

	recorder := doJSON(t, server, http.MethodPost, "/v1/projects/proj-1/generations", map[string]any{
		"promptText":         "Use this image",
		"imageUrls":          []string{"https://cdn.example.com/projects/proj-x/theirs.png"},
		"crossProjectPolicy": "fail",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "proj-x")
}

func TestGenerateEndpointIdempotencyConflict(t *testing.T) {
	decider := &oracle.StaticDecider{Fallback: oracle.Decision{
		Operation:  store.OperationCreate,
		Parameters: oracle.Parameters{Content: strptr("c")},
	}}
	server, _ := newTestServer(t, decider)

	first := doJSON(t, server, http.MethodPost, "/v1/projects/proj-1/generations", map[string]any{
		"promptText":     "first prompt",
		"idempotencyKey": "key-1",
	})
	require.Equal(t, http.StatusOK, first.Code, first.Body.String())

	conflict := doJSON(t, server, http.MethodPost, "/v1/projects/proj-1/generations", map[string]any{
		"promptText":     "a different prompt",
		"idempotencyKey": "key-1",
	})
	assert.Equal(t, http.StatusConflict, conflict.Code)
}

func TestProjectAndSceneEndpoints(t *testing.T) {
	server, st := newTestServer(t, &oracle.StaticDecider{})
	scene := testsupport.SeedScene(t, st, "proj-1", "Opening")

	recorder := doJSON(t, server, http.MethodGet, "/v1/projects/proj-1", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	var project struct {
		ID       string `json:"id"`
		Revision int64  `json:"revision"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &project))
	assert.Equal(t, "proj-1", project.ID)
	assert.Equal(t, int64(1), project.Revision)

	recorder = doJSON(t, server, http.MethodGet, "/v1/projects/proj-1/scenes", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	var listing struct {
		Scenes []struct {
			ID string `json:"id"`
		} `json:"scenes"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &listing))
	require.Len(t, listing.Scenes, 1)
	assert.Equal(t, scene.ID, listing.Scenes[0].ID)

	recorder = doJSON(t, server, http.MethodGet, "/v1/projects/unknown", nil)
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestSceneListingIncludeDeleted(t *testing.T) {
	newName := "Opening"
	decider := &oracle.StaticDecider{}
	server, st := newTestServer(t, decider)
	scene := testsupport.SeedScene(t, st, "proj-1", newName)

	decider.Queue = []oracle.Decision{{
		Operation:  store.OperationDelete,
		Parameters: oracle.Parameters{SceneID: scene.ID},
	}}
	recorder := doJSON(t, server, http.MethodPost, "/v1/projects/proj-1/generations", map[string]any{
		"promptText": "Delete the opening scene",
	})
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())

	recorder = doJSON(t, server, http.MethodGet, "/v1/projects/proj-1/scenes", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.NotContains(t, recorder.Body.String(), scene.ID)

	recorder = doJSON(t, server, http.MethodGet, "/v1/projects/proj-1/scenes?includeDeleted=1", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), scene.ID)
	assert.Contains(t, recorder.Body.String(), "deletedAt")
}

func TestLedgerEndpoint(t *testing.T) {
	decider := &oracle.StaticDecider{Fallback: oracle.Decision{
		Operation:  store.OperationCreate,
		Parameters: oracle.Parameters{Content: strptr("c")},
	}}
	server, _ := newTestServer(t, decider)

	recorder := doJSON(t, server, http.MethodPost, "/v1/projects/proj-1/generations", map[string]any{
		"promptText":     "Add a scene",
		"idempotencyKey": "key-1",
	})
	require.Equal(t, http.StatusOK, recorder.Code, recorder.Body.String())

	recorder = doJSON(t, server, http.MethodGet, "/v1/projects/proj-1/ledger/key-1", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	var record struct {
		Status        string `json:"status"`
		OperationType string `json:"operationType"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &record))
	assert.Equal(t, "applied", record.Status)
	assert.Equal(t, "create", record.OperationType)

	recorder = doJSON(t, server, http.MethodGet, "/v1/projects/proj-1/ledger/unknown", nil)
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestCreateProjectAndHealth(t *testing.T) {
	server, _ := newTestServer(t, &oracle.StaticDecider{})

	recorder := doJSON(t, server, http.MethodPost, "/v1/projects", map[string]any{
		"id": "proj-2", "ownerId": "user-2",
	})
	require.Equal(t, http.StatusCreated, recorder.Code, recorder.Body.String())

	recorder = doJSON(t, server, http.MethodGet, "/v1/projects/proj-2", nil)
	assert.Equal(t, http.StatusOK, recorder.Code)

	recorder = doJSON(t, server, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `"status":"ok"`)
}
