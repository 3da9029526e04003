package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"pkt.systems/promptdeck/core"
	"pkt.systems/promptdeck/internal/eventbus"
	"pkt.systems/promptdeck/internal/logx"
	"pkt.systems/promptdeck/internal/runlog"
	"pkt.systems/promptdeck/runhistory"
	"pkt.systems/promptdeck/schema"
)

// ProjectHeader selects the project when the query string does not.
const ProjectHeader = "X-Promptdeck-Project"

// Server serves the workspace and run-history HTTP API.
type Server struct {
	cfg      Config
	registry *core.Registry
	runs     *runlog.Log
	bus      *eventbus.Bus
	basePath string
}

// NewServer constructs an HTTP server.
func NewServer(cfg Config, registry *core.Registry, runs *runlog.Log, bus *eventbus.Bus) *Server {
	return &Server{
		cfg:      cfg,
		registry: registry,
		runs:     runs,
		bus:      bus,
		basePath: normalizeBasePath(cfg.BasePath),
	}
}

// Handler returns an http.Handler for the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/workspace", s.handleWorkspace)
	mux.HandleFunc("/api/workspace/tabs", s.handleTabs)
	mux.HandleFunc("/api/workspace/tabs/close", s.handleCloseTab)
	mux.HandleFunc("/api/workspace/tabs/split", s.handleSplitTab)
	mux.HandleFunc("/api/workspace/tabs/move", s.handleMoveTab)
	mux.HandleFunc("/api/workspace/tabs/update", s.handleUpdateTab)
	mux.HandleFunc("/api/workspace/activate", s.handleActivate)
	mux.HandleFunc("/api/workspace/reset", s.handleReset)
	mux.HandleFunc("/api/runs", s.handleRuns)
	mux.HandleFunc("/api/stream", s.handleStream)

	handler := withRequestLogging(mux, projectFromRequest)
	if s.basePath == "" {
		return handler
	}
	prefix := s.basePath
	root := http.NewServeMux()
	root.Handle(prefix+"/", http.StripPrefix(prefix, handler))
	root.HandleFunc(prefix, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != prefix {
			http.NotFound(w, r)
			return
		}
		http.Redirect(w, r, prefix+"/", http.StatusTemporaryRedirect)
	})
	return root
}

func projectFromRequest(r *http.Request) schema.ProjectID {
	if value := strings.TrimSpace(r.URL.Query().Get("project")); value != "" {
		return schema.ProjectID(value)
	}
	if value := strings.TrimSpace(r.Header.Get(ProjectHeader)); value != "" {
		return schema.ProjectID(value)
	}
	return schema.DefaultProjectID
}

func (s *Server) workspace(r *http.Request) (*core.Workspace, schema.ProjectID) {
	projectID := projectFromRequest(r)
	return s.registry.Get(projectID), projectID
}

func (s *Server) handleWorkspace(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	ws, _ := s.workspace(r)
	writeJSON(w, http.StatusOK, ws.View())
}

func (s *Server) handleTabs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	ws, projectID := s.workspace(r)
	log := logx.WithProject(r.Context(), projectID)
	var payload struct {
		Data schema.TabData `json:"data"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		log.Warn("http tab create decode failed", "err", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	tabID := ws.AddTab(r.Context(), payload.Data)
	writeJSON(w, http.StatusOK, map[string]any{
		"tab_id": tabID,
		"state":  ws.View(),
	})
	log.Info("http tab create ok", "tab", tabID)
}

func (s *Server) handleCloseTab(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	ws, projectID := s.workspace(r)
	log := logx.WithProject(r.Context(), projectID)
	var payload struct {
		TabID string `json:"tab_id"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		log.Warn("http tab close decode failed", "err", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	ws.RemoveTab(r.Context(), schema.TabID(payload.TabID))
	writeJSON(w, http.StatusOK, map[string]any{"state": ws.View()})
}

func (s *Server) handleSplitTab(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	ws, projectID := s.workspace(r)
	log := logx.WithProject(r.Context(), projectID)
	var payload struct {
		TabID string `json:"tab_id"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		log.Warn("http tab split decode failed", "err", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	ws.SplitTab(r.Context(), schema.TabID(payload.TabID))
	writeJSON(w, http.StatusOK, map[string]any{"state": ws.View()})
}

func (s *Server) handleMoveTab(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	ws, projectID := s.workspace(r)
	log := logx.WithProject(r.Context(), projectID)
	var payload struct {
		TabID    string `json:"tab_id"`
		WindowID string `json:"window_id"`
		Index    int    `json:"index"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		log.Warn("http tab move decode failed", "err", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	ws.MoveTab(r.Context(), schema.TabID(payload.TabID), schema.WindowID(payload.WindowID), payload.Index)
	writeJSON(w, http.StatusOK, map[string]any{"state": ws.View()})
}

func (s *Server) handleUpdateTab(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	ws, projectID := s.workspace(r)
	log := logx.WithProject(r.Context(), projectID)
	var payload struct {
		TabID string         `json:"tab_id"`
		Data  schema.TabData `json:"data"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		log.Warn("http tab update decode failed", "err", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	ws.UpdateTabData(r.Context(), schema.TabID(payload.TabID), func(schema.TabData) schema.TabData {
		return payload.Data
	})
	writeJSON(w, http.StatusOK, map[string]any{"state": ws.View()})
}

func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	ws, projectID := s.workspace(r)
	log := logx.WithProject(r.Context(), projectID)
	var payload struct {
		WindowID string `json:"window_id"`
		TabID    string `json:"tab_id"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		log.Warn("http activate decode failed", "err", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if payload.WindowID == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: window_id is required", schema.ErrInvalidRequest))
		return
	}
	if payload.TabID != "" {
		ws.SetActiveTab(r.Context(), schema.WindowID(payload.WindowID), schema.TabID(payload.TabID))
	} else {
		ws.SetActiveWindow(r.Context(), schema.WindowID(payload.WindowID))
	}
	writeJSON(w, http.StatusOK, map[string]any{"state": ws.View()})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	ws, _ := s.workspace(r)
	ws.Reset(r.Context())
	writeJSON(w, http.StatusOK, map[string]any{"state": ws.View()})
}

type runGroupPayload struct {
	schema.RunGroup
	Summary schema.BatchSummary `json:"summary"`
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleRunsQuery(w, r)
	case http.MethodPost:
		s.handleRunsIngest(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleRunsIngest(w http.ResponseWriter, r *http.Request) {
	projectID := projectFromRequest(r)
	log := logx.WithProject(r.Context(), projectID)
	var payload struct {
		Runs         []schema.ScenarioRun                       `json:"runs"`
		Targets      map[schema.TargetID]string                 `json:"targets"`
		ScenarioSets map[schema.BatchRunID]schema.ScenarioSetID `json:"scenario_sets"`
	}
	if err := decodeJSON(r.Body, &payload); err != nil {
		log.Warn("http runs decode failed", "err", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}
	for _, run := range payload.Runs {
		if run.ScenarioRunID == "" {
			writeError(w, http.StatusBadRequest, fmt.Errorf("%w: scenario_run_id is required", schema.ErrInvalidRequest))
			return
		}
	}
	entry := runlog.Entry{
		Runs:         payload.Runs,
		Targets:      payload.Targets,
		ScenarioSets: payload.ScenarioSets,
	}
	if err := s.runs.Record(r.Context(), projectID, entry); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ingested": len(payload.Runs)})
	log.Info("http runs ingest ok", "count", len(payload.Runs))
}

func (s *Server) handleRunsQuery(w http.ResponseWriter, r *http.Request) {
	projectID := projectFromRequest(r)
	log := logx.WithProject(r.Context(), projectID)
	groupBy := strings.TrimSpace(r.URL.Query().Get("group_by"))
	if groupBy == "" {
		groupBy = "batch"
	}

	runs := s.runs.Runs(r.Context(), projectID)
	sets := s.runs.ScenarioSets(r.Context(), projectID)

	var groups []schema.RunGroup
	switch groupBy {
	case "batch":
		groups = runhistory.GroupByBatch(runs, sets)
	case "scenario":
		groups = runhistory.GroupByScenario(runs)
	case "target":
		groups = runhistory.GroupByTarget(runs, s.runs.Targets(r.Context(), projectID))
	default:
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %q", schema.ErrUnknownGroupKind, groupBy))
		return
	}

	payload := make([]runGroupPayload, 0, len(groups))
	for _, group := range groups {
		payload = append(payload, runGroupPayload{
			RunGroup: group,
			Summary:  runhistory.SummarizeBatch(group),
		})
	}
	totals := runhistory.Totals(runhistory.GroupByBatch(runs, sets))
	writeJSON(w, http.StatusOK, map[string]any{
		"group_by": groupBy,
		"groups":   payload,
		"totals":   totals,
	})
	log.Debug("http runs query ok", "group_by", groupBy, "groups", len(groups))
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, errors.New("stream unsupported"))
		return
	}
	ws, projectID := s.workspace(r)
	log := logx.WithProject(r.Context(), projectID)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	_ = writeSSEvent(w, schema.WorkspaceEvent{
		ProjectID: projectID,
		Type:      schema.WorkspaceEventSnapshot,
		State:     ws.View(),
	})
	flusher.Flush()

	ch, unsubscribe := s.bus.Subscribe(projectID)
	defer unsubscribe()

	notify := r.Context().Done()
	log.Info("http stream opened")
	for {
		select {
		case <-notify:
			log.Info("http stream closed")
			return
		case event := <-ch:
			_ = writeSSEvent(w, event)
			flusher.Flush()
		}
	}
}

func writeSSEvent(w http.ResponseWriter, event schema.WorkspaceEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(w, "event: %s\n", event.Type)
	_, _ = fmt.Fprintf(w, "data: %s\n\n", strings.TrimSpace(string(data)))
	return nil
}

func decodeJSON(body io.Reader, target any) error {
	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	data, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}
