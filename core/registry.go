package core

import (
	"context"
	"strings"
	"sync"

	"pkt.systems/promptdeck/schema"
	"pkt.systems/pslog"
)

// Registry caches one workspace per project, created and rehydrated on
// first access. It is an explicit object rather than a module-level map
// so callers control the lifetime and tests stay isolated.
type Registry struct {
	deps       Deps
	mu         sync.Mutex
	workspaces map[schema.ProjectID]*Workspace
}

// NewRegistry constructs a registry sharing deps across its workspaces.
func NewRegistry(deps Deps) *Registry {
	if deps.Logger == nil {
		deps.Logger = pslog.Ctx(context.Background())
	}
	return &Registry{
		deps:       deps,
		workspaces: make(map[schema.ProjectID]*Workspace),
	}
}

// Get returns the workspace for the project, creating it on first access.
// An empty project id maps to schema.DefaultProjectID.
func (r *Registry) Get(projectID schema.ProjectID) *Workspace {
	if strings.TrimSpace(string(projectID)) == "" {
		projectID = schema.DefaultProjectID
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if ws, ok := r.workspaces[projectID]; ok {
		return ws
	}
	ws := newWorkspace(projectID, r.deps)
	r.workspaces[projectID] = ws
	return ws
}

// Clear drops every cached workspace instance. Persisted state is left
// untouched; Workspace.Reset clears a project's persisted copy.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workspaces = make(map[schema.ProjectID]*Workspace)
}
