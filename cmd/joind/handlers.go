package main

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kjoin/joinrun/internal/join"
)

// extractDefinitionID extracts the definition ID from a path like
// "/definition/{id}/...". Returns the ID and the remaining path, or an empty
// ID if not found.
func extractDefinitionID(path string) (join.DefinitionID, string) {
	if !strings.HasPrefix(path, "/definition/") {
		return "", ""
	}

	rest := path[len("/definition/"):]

	idx := strings.Index(rest, "/")
	if idx == -1 {
		return join.DefinitionID(rest), ""
	}
	return join.DefinitionID(rest[:idx]), rest[idx:]
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// POST /definition/{id}/schema
// Body: SchemaConfig as JSON, or YAML when Content-Type mentions yaml.
// Activates a new definition under the given ID, or replaces an existing one.
func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	defID, _ := extractDefinitionID(r.URL.Path)
	if defID == "" {
		http.Error(w, "definition ID is required in path: /definition/{id}/schema", http.StatusBadRequest)
		return
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "cannot read body: "+err.Error(), http.StatusBadRequest)
		return
	}

	format := "json"
	if strings.Contains(r.Header.Get("Content-Type"), "yaml") {
		format = "yaml"
	}
	cfg, err := join.ParseSchemaDocument(data, format)
	if err != nil {
		http.Error(w, "invalid schema document: "+err.Error(), http.StatusBadRequest)
		return
	}

	_, wae, err := s.manager.Apply(defID, cfg)
	if err != nil {
		s.logger.Errorf("failed to apply schema: definition=%s error=%v", defID, err)
		http.Error(w, "cannot activate definition: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}
	s.logger.Infof("definition activated: id=%s schema=%s warnings=%d", defID, cfg.Name, len(wae.Warnings))

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"definition": string(defID),
		"warnings":   wae.Warnings,
	})
}

// POST /definition/{id}/molecule
// Body: { "molecule": "...", "payload": ... }
type emitRequest struct {
	Molecule string `json:"molecule"`
	Payload  any    `json:"payload"`
}

func (s *Server) handleEmit(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	defID, _ := extractDefinitionID(r.URL.Path)
	var req emitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.manager.Emit(defID, req.Molecule, req.Payload); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// POST /definition/{id}/call
// Body: { "molecule": "...", "payload": ..., "timeout_ms": 1000 }
// Emits a blocking molecule and waits for its reply.
type callRequest struct {
	Molecule  string `json:"molecule"`
	Payload   any    `json:"payload"`
	TimeoutMS int    `json:"timeout_ms"`
}

type callResponse struct {
	Value    any  `json:"value,omitempty"`
	TimedOut bool `json:"timed_out"`
}

func (s *Server) handleCall(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	defID, _ := extractDefinitionID(r.URL.Path)
	var req callRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json: "+err.Error(), http.StatusBadRequest)
		return
	}

	timeout := 30 * time.Second
	if req.TimeoutMS > 0 {
		timeout = time.Duration(req.TimeoutMS) * time.Millisecond
	}

	value, timedOut, err := s.manager.EmitBlocking(defID, req.Molecule, req.Payload, timeout)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(callResponse{Value: value, TimedOut: timedOut})
}

// GET /definition/{id}/soup
// Returns the definition's diagnostic soup listing as plain text.
func (s *Server) handleSoup(w http.ResponseWriter, r *http.Request) {
	defID, _ := extractDefinitionID(r.URL.Path)
	soup, err := s.manager.Soup(defID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(soup))
}

// POST /definition/{id}/snapshot
// Captures the definition's bag and writes it under the snapshot directory.
func (s *Server) handleSaveSnapshot(w http.ResponseWriter, r *http.Request) {
	defID, _ := extractDefinitionID(r.URL.Path)
	snap, err := s.manager.Snapshot(defID, time.Now().Unix())
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	data, err := join.EncodeSnapshotJSON(snap)
	if err != nil {
		http.Error(w, "cannot encode snapshot: "+err.Error(), http.StatusInternalServerError)
		return
	}

	var file string
	if s.snapshotDir != "" {
		if err := os.MkdirAll(s.snapshotDir, 0o755); err != nil {
			http.Error(w, "cannot create snapshot dir: "+err.Error(), http.StatusInternalServerError)
			return
		}
		file = filepath.Join(s.snapshotDir, string(defID)+".json")
		if err := os.WriteFile(file, data, 0o644); err != nil {
			http.Error(w, "cannot write snapshot: "+err.Error(), http.StatusInternalServerError)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"file": file, "snapshot": snap})
}

// POST /definition/{id}/restore
// Body: a snapshot document previously produced by /snapshot.
func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	defID, _ := extractDefinitionID(r.URL.Path)
	var snap join.Snapshot
	if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
		http.Error(w, "invalid snapshot json: "+err.Error(), http.StatusBadRequest)
		return
	}

	if err := s.manager.Restore(defID, snap); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("restored"))
}

// GET /definitions
// Lists all definition IDs.
func (s *Server) handleListDefinitions(w http.ResponseWriter, r *http.Request) {
	ids := s.manager.List()
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = string(id)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string][]string{"definitions": out})
}

// DELETE /definition/{id}
func (s *Server) handleDeleteDefinition(w http.ResponseWriter, r *http.Request) {
	defID, _ := extractDefinitionID(r.URL.Path)
	if err := s.manager.Delete(defID); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("definition deleted"))
}

// GET /events
// Upgrades to a websocket streaming reaction-fired events.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	upgrader := s.wsNotifier.GetUpgrader()
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnf("websocket upgrade failed: %v", err)
		return
	}
	s.wsNotifier.RegisterClient(conn)
}

// handleDefinitionRoutes routes requests like /definition/{id}/schema,
// /definition/{id}/molecule, etc. to their handlers.
func (s *Server) handleDefinitionRoutes(w http.ResponseWriter, r *http.Request) {
	defID, remainingPath := extractDefinitionID(r.URL.Path)
	if defID == "" {
		http.Error(w, "definition ID is required in path: /definition/{id}/...", http.StatusBadRequest)
		return
	}

	switch {
	case remainingPath == "/schema" && r.Method == http.MethodPost:
		s.handleSchema(w, r)
	case remainingPath == "/molecule" && r.Method == http.MethodPost:
		s.handleEmit(w, r)
	case remainingPath == "/call" && r.Method == http.MethodPost:
		s.handleCall(w, r)
	case remainingPath == "/soup" && r.Method == http.MethodGet:
		s.handleSoup(w, r)
	case remainingPath == "/snapshot" && r.Method == http.MethodPost:
		s.handleSaveSnapshot(w, r)
	case remainingPath == "/restore" && r.Method == http.MethodPost:
		s.handleRestore(w, r)
	case remainingPath == "" && r.Method == http.MethodDelete:
		s.handleDeleteDefinition(w, r)
	default:
		http.Error(w, "not found", http.StatusNotFound)
	}
}
