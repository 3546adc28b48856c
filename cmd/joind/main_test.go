package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kjoin/joinrun/internal/join"
)

const forwardSchemaJSON = `{
  "name": "forward",
  "molecules": [
    {"name": "ping"},
    {"name": "ask", "blocking": true}
  ],
  "reactions": [
    {
      "id": "forward",
      "name": "forward",
      "inputs": [
        {"molecule": "ping", "as": "p"},
        {"molecule": "ask", "as": "r"}
      ],
      "effects": [
        {"reply": "r", "from": "p"}
      ]
    }
  ]
}`

const forwardSchemaYAML = `name: forward
molecules:
  - name: ping
  - name: ask
    blocking: true
reactions:
  - id: forward
    name: forward
    inputs:
      - molecule: ping
        as: p
      - molecule: ask
        as: r
    effects:
      - reply: r
        from: p
`

func newTestServer(t *testing.T) *Server {
	t.Helper()
	srv := NewServer(join.NewNoOpLogger(), "")
	t.Cleanup(srv.Close)
	return srv
}

func applySchema(t *testing.T, srv *Server, id, body, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/definition/"+id+"/schema", strings.NewReader(body))
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	srv.handleDefinitionRoutes(w, req)
	return w
}

func TestServerHandleSchemaActivatesDefinition(t *testing.T) {
	srv := newTestServer(t)

	w := applySchema(t, srv, "fwd", forwardSchemaJSON, "application/json")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Definition string   `json:"definition"`
		Warnings   []string `json:"warnings"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "fwd", resp.Definition)
	require.Empty(t, resp.Warnings)

	_, exists := srv.manager.Get("fwd")
	require.True(t, exists)
}

func TestServerHandleSchemaAcceptsYAML(t *testing.T) {
	srv := newTestServer(t)

	w := applySchema(t, srv, "fwd-yaml", forwardSchemaYAML, "application/yaml")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestServerHandleSchemaRejectsGarbage(t *testing.T) {
	srv := newTestServer(t)

	w := applySchema(t, srv, "bad", "{not json", "application/json")
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestServerEmitCallAndSoup(t *testing.T) {
	srv := newTestServer(t)
	require.Equal(t, http.StatusOK, applySchema(t, srv, "fwd", forwardSchemaJSON, "application/json").Code)

	req := httptest.NewRequest(http.MethodPost, "/definition/fwd/molecule",
		strings.NewReader(`{"molecule": "ping", "payload": 42}`))
	w := httptest.NewRecorder()
	srv.handleDefinitionRoutes(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	req = httptest.NewRequest(http.MethodPost, "/definition/fwd/call",
		strings.NewReader(`{"molecule": "ask", "timeout_ms": 2000}`))
	w = httptest.NewRecorder()
	srv.handleDefinitionRoutes(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp callResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.False(t, resp.TimedOut)
	require.EqualValues(t, 42, resp.Value)

	req = httptest.NewRequest(http.MethodGet, "/definition/fwd/soup", nil)
	w = httptest.NewRecorder()
	srv.handleDefinitionRoutes(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "Join{ask + ping}")
}

func TestServerCallTimesOutWithoutMatchingTuple(t *testing.T) {
	srv := newTestServer(t)
	require.Equal(t, http.StatusOK, applySchema(t, srv, "fwd", forwardSchemaJSON, "application/json").Code)

	req := httptest.NewRequest(http.MethodPost, "/definition/fwd/call",
		strings.NewReader(`{"molecule": "ask", "timeout_ms": 50}`))
	w := httptest.NewRecorder()
	srv.handleDefinitionRoutes(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp callResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.TimedOut)
}

func TestServerSnapshotWritesFile(t *testing.T) {
	srv := newTestServer(t)
	tmpDir := t.TempDir()
	srv.SetSnapshotDir(tmpDir)
	require.Equal(t, http.StatusOK, applySchema(t, srv, "fwd", forwardSchemaJSON, "application/json").Code)

	req := httptest.NewRequest(http.MethodPost, "/definition/fwd/molecule",
		strings.NewReader(`{"molecule": "ping", "payload": 7}`))
	w := httptest.NewRecorder()
	srv.handleDefinitionRoutes(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	// The emission lands in the bag asynchronously.
	require.Eventually(t, func() bool {
		soup, err := srv.manager.Soup("fwd")
		return err == nil && strings.Contains(soup, "ping(7)")
	}, time.Second, 5*time.Millisecond)

	req = httptest.NewRequest(http.MethodPost, "/definition/fwd/snapshot", nil)
	w = httptest.NewRecorder()
	srv.handleDefinitionRoutes(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	data, err := os.ReadFile(filepath.Join(tmpDir, "fwd.json"))
	require.NoError(t, err)
	snap, err := join.DecodeSnapshotJSON(data)
	require.NoError(t, err)
	require.Equal(t, "fwd", snap.Name)
	require.Len(t, snap.Molecules, 1)
}

func TestServerListAndDeleteDefinitions(t *testing.T) {
	srv := newTestServer(t)
	require.Equal(t, http.StatusOK, applySchema(t, srv, "fwd", forwardSchemaJSON, "application/json").Code)

	req := httptest.NewRequest(http.MethodGet, "/definitions", nil)
	w := httptest.NewRecorder()
	srv.handleListDefinitions(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "fwd")

	req = httptest.NewRequest(http.MethodDelete, "/definition/fwd", nil)
	w = httptest.NewRecorder()
	srv.handleDefinitionRoutes(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	_, exists := srv.manager.Get("fwd")
	require.False(t, exists)
}

func TestSchemaWatcherLoadsAndReloadsFiles(t *testing.T) {
	srv := newTestServer(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fwd.yaml"), []byte(forwardSchemaYAML), 0o644))

	watcher, err := NewSchemaWatcher(dir, srv.manager, join.NewNoOpLogger())
	require.NoError(t, err)
	defer watcher.Close()

	require.NoError(t, watcher.LoadAll())
	first, exists := srv.manager.Get("fwd")
	require.True(t, exists)

	watcher.Start()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fwd.yaml"), []byte(forwardSchemaYAML), 0o644))

	require.Eventually(t, func() bool {
		current, ok := srv.manager.Get("fwd")
		return ok && current.JD != first.JD
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSchemaFormatMapsExtensions(t *testing.T) {
	require.Equal(t, "json", schemaFormat("a/b.json"))
	require.Equal(t, "yaml", schemaFormat("a/b.YAML"))
	require.Equal(t, "yaml", schemaFormat("b.yml"))
	require.Equal(t, "", schemaFormat("b.txt"))
}

func TestDefinitionIDForFile(t *testing.T) {
	require.Equal(t, join.DefinitionID("orders"), definitionIDForFile("/etc/joind/orders.yaml"))
	require.Equal(t, join.DefinitionID("fwd"), definitionIDForFile("fwd.json"))
}
