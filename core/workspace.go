package core

import (
	"context"
	"sync"

	"pkt.systems/promptdeck/internal/logx"
	"pkt.systems/promptdeck/internal/persist"
	"pkt.systems/promptdeck/schema"
	"pkt.systems/pslog"
)

const workspaceKeySuffix = "workspace"

// Workspace owns the multi-window tab state for one project. All
// operations are synchronous and complete before returning; stale tab or
// window references are logged and ignored, never returned as errors,
// since UI callbacks may race benignly with state changes. Every
// successful transition is persisted and emitted to the event sink.
type Workspace struct {
	project schema.ProjectID
	store   *persist.Store
	sink    EventSink
	logger  pslog.Logger
	mu      sync.Mutex
	state   browserState
}

func newWorkspace(project schema.ProjectID, deps Deps) *Workspace {
	logger := deps.Logger
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	w := &Workspace{
		project: project,
		store:   deps.Store,
		sink:    deps.Sink,
		logger:  logger.With("project", project),
	}
	w.rehydrate()
	return w
}

// Project returns the owning project id.
func (w *Workspace) Project() schema.ProjectID {
	return w.project
}

func (w *Workspace) key() string {
	return string(w.project) + ":" + workspaceKeySuffix
}

// rehydrate loads the persisted snapshot, repairing what it can and
// discarding the persisted copy when nothing is salvageable. Malformed
// records never propagate: the workspace starts empty instead.
func (w *Workspace) rehydrate() {
	if w.store == nil {
		return
	}
	snapshot, ok, err := w.store.LoadWorkspace(w.key())
	if err != nil {
		w.logger.Warn("workspace rehydrate failed, discarding persisted state", "err", err)
		_ = w.store.Delete(w.key())
		return
	}
	if !ok {
		return
	}
	state, salvaged := stateFromSnapshot(snapshot)
	if !salvaged {
		w.logger.Warn("workspace rehydrate found no usable windows, discarding persisted state")
		_ = w.store.Delete(w.key())
		return
	}
	w.state = state
	w.logger.Debug("workspace rehydrated", "windows", len(state.windows))
}

// AddTab appends a tab holding data to the active window, creating a
// window first when none is active, and makes the new tab active.
func (w *Workspace) AddTab(ctx context.Context, data schema.TabData) schema.TabID {
	log := logx.WithProject(ctx, w.project)
	w.mu.Lock()
	var win *window
	if wi := w.state.windowIndex(w.state.activeWindow); wi >= 0 {
		win = w.state.windows[wi]
	} else {
		win = &window{id: newWindowID()}
		w.state.windows = append(w.state.windows, win)
		w.state.activeWindow = win.id
	}
	t := &tab{id: newTabID(), data: data}
	win.tabs = append(win.tabs, t)
	win.activeTab = t.id
	event := w.eventLocked(schema.WorkspaceEventTabAdded, t.id, win.id)
	snapshot := w.snapshotLocked()
	w.mu.Unlock()
	w.persist(log, snapshot)
	w.emit(event)
	log.Info("workspace tab added", "tab", t.id, "window", win.id)
	return t.id
}

// RemoveTab removes the tab, dropping its window when it was the last tab.
// Unknown tab ids are ignored.
func (w *Workspace) RemoveTab(ctx context.Context, tabID schema.TabID) {
	log := logx.WithProjectTab(ctx, w.project, tabID)
	w.mu.Lock()
	wi, ti := w.state.locate(tabID)
	if wi < 0 {
		w.mu.Unlock()
		log.Warn("workspace tab close ignored", "reason", "tab not found")
		return
	}
	win := w.state.windows[wi]
	win.removeTabAt(ti)
	windowID := win.id
	if len(win.tabs) == 0 {
		w.state.removeWindowAt(wi)
	}
	event := w.eventLocked(schema.WorkspaceEventTabClosed, tabID, windowID)
	snapshot := w.snapshotLocked()
	w.mu.Unlock()
	w.persist(log, snapshot)
	w.emit(event)
	log.Info("workspace tab closed", "window", windowID)
}

// SplitTab deep-copies the tab into a new window inserted right after the
// source tab's window, and activates the copy. Later edits to either side
// never leak into the other.
func (w *Workspace) SplitTab(ctx context.Context, tabID schema.TabID) {
	log := logx.WithProjectTab(ctx, w.project, tabID)
	w.mu.Lock()
	wi, ti := w.state.locate(tabID)
	if wi < 0 {
		w.mu.Unlock()
		log.Warn("workspace tab split ignored", "reason", "tab not found")
		return
	}
	src := w.state.windows[wi].tabs[ti]
	copied := &tab{id: newTabID(), data: cloneData(src.data)}
	win := &window{id: newWindowID(), tabs: []*tab{copied}, activeTab: copied.id}
	w.state.windows = append(w.state.windows, nil)
	copy(w.state.windows[wi+2:], w.state.windows[wi+1:])
	w.state.windows[wi+1] = win
	w.state.activeWindow = win.id
	event := w.eventLocked(schema.WorkspaceEventTabSplit, copied.id, win.id)
	snapshot := w.snapshotLocked()
	w.mu.Unlock()
	w.persist(log, snapshot)
	w.emit(event)
	log.Info("workspace tab split", "copy", copied.id, "window", win.id)
}

// MoveTab moves the tab into the target window at index, clamped to the
// target's bounds. The moved tab and its new window become active, and any
// window left empty by the move is pruned. Unknown tab or window ids are
// ignored.
func (w *Workspace) MoveTab(ctx context.Context, tabID schema.TabID, windowID schema.WindowID, index int) {
	log := logx.WithProjectTab(ctx, w.project, tabID)
	w.mu.Lock()
	wi, ti := w.state.locate(tabID)
	if wi < 0 {
		w.mu.Unlock()
		log.Warn("workspace tab move ignored", "reason", "tab not found")
		return
	}
	twi := w.state.windowIndex(windowID)
	if twi < 0 {
		w.mu.Unlock()
		log.Warn("workspace tab move ignored", "window", windowID, "reason", "window not found")
		return
	}
	moved := w.state.windows[wi].removeTabAt(ti)
	target := w.state.windows[twi]
	idx := index
	if idx < 0 {
		idx = 0
	}
	if idx > len(target.tabs) {
		idx = len(target.tabs)
	}
	target.tabs = append(target.tabs, nil)
	copy(target.tabs[idx+1:], target.tabs[idx:])
	target.tabs[idx] = moved
	target.activeTab = moved.id
	w.state.activeWindow = target.id
	w.state.pruneEmptyWindows()
	event := w.eventLocked(schema.WorkspaceEventTabMoved, tabID, target.id)
	snapshot := w.snapshotLocked()
	w.mu.Unlock()
	w.persist(log, snapshot)
	w.emit(event)
	log.Info("workspace tab moved", "window", target.id, "index", idx)
}

// SetActiveTab marks the tab active within its window and makes that
// window the active window. The pair must match an existing window/tab.
func (w *Workspace) SetActiveTab(ctx context.Context, windowID schema.WindowID, tabID schema.TabID) {
	log := logx.WithProjectTab(ctx, w.project, tabID)
	w.mu.Lock()
	wi := w.state.windowIndex(windowID)
	if wi < 0 {
		w.mu.Unlock()
		log.Warn("workspace tab activate ignored", "window", windowID, "reason", "window not found")
		return
	}
	win := w.state.windows[wi]
	if win.tabIndex(tabID) < 0 {
		w.mu.Unlock()
		log.Warn("workspace tab activate ignored", "window", windowID, "reason", "tab not in window")
		return
	}
	win.activeTab = tabID
	w.state.activeWindow = win.id
	event := w.eventLocked(schema.WorkspaceEventActivated, tabID, win.id)
	snapshot := w.snapshotLocked()
	w.mu.Unlock()
	w.persist(log, snapshot)
	w.emit(event)
	log.Debug("workspace tab activated", "window", windowID)
}

// SetActiveWindow marks the window active. Unknown ids are ignored.
func (w *Workspace) SetActiveWindow(ctx context.Context, windowID schema.WindowID) {
	log := logx.WithProject(ctx, w.project)
	w.mu.Lock()
	wi := w.state.windowIndex(windowID)
	if wi < 0 {
		w.mu.Unlock()
		log.Warn("workspace window activate ignored", "window", windowID, "reason", "window not found")
		return
	}
	w.state.activeWindow = windowID
	event := w.eventLocked(schema.WorkspaceEventActivated, "", windowID)
	snapshot := w.snapshotLocked()
	w.mu.Unlock()
	w.persist(log, snapshot)
	w.emit(event)
	log.Debug("workspace window activated", "window", windowID)
}

// UpdateTabData replaces the tab's payload with updater(current). The
// updater returns the complete new payload, not a partial patch; callers
// merge themselves. Unknown tab ids are ignored.
func (w *Workspace) UpdateTabData(ctx context.Context, tabID schema.TabID, updater func(schema.TabData) schema.TabData) {
	log := logx.WithProjectTab(ctx, w.project, tabID)
	w.mu.Lock()
	wi, ti := w.state.locate(tabID)
	if wi < 0 {
		w.mu.Unlock()
		log.Warn("workspace tab update ignored", "reason", "tab not found")
		return
	}
	t := w.state.windows[wi].tabs[ti]
	t.data = updater(t.data)
	event := w.eventLocked(schema.WorkspaceEventTabUpdated, tabID, w.state.windows[wi].id)
	snapshot := w.snapshotLocked()
	w.mu.Unlock()
	w.persist(log, snapshot)
	w.emit(event)
	log.Trace("workspace tab updated")
}

// TabData returns the tab's payload. Callers must not mutate the returned
// value in place; replacements go through UpdateTabData.
func (w *Workspace) TabData(tabID schema.TabID) (schema.TabData, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	wi, ti := w.state.locate(tabID)
	if wi < 0 {
		return nil, false
	}
	return w.state.windows[wi].tabs[ti].data, true
}

// IsTabActive reports whether any window's active tab is tabID.
func (w *Workspace) IsTabActive(tabID schema.TabID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, win := range w.state.windows {
		if win.activeTab == tabID {
			return true
		}
	}
	return false
}

// View returns a deep copy of the current workspace state.
func (w *Workspace) View() schema.WorkspaceView {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.viewLocked()
}

// Reset clears the workspace and discards the persisted copy.
func (w *Workspace) Reset(ctx context.Context) {
	log := logx.WithProject(ctx, w.project)
	w.mu.Lock()
	w.state = browserState{}
	event := w.eventLocked(schema.WorkspaceEventReset, "", "")
	w.mu.Unlock()
	if w.store != nil {
		if err := w.store.Delete(w.key()); err != nil {
			log.Warn("workspace reset persist failed", "err", err)
		}
	}
	w.emit(event)
	log.Info("workspace reset")
}

func (w *Workspace) viewLocked() schema.WorkspaceView {
	view := schema.WorkspaceView{ActiveWindow: w.state.activeWindow}
	for _, win := range w.state.windows {
		wv := schema.WindowView{ID: win.id, ActiveTab: win.activeTab}
		for _, t := range win.tabs {
			wv.Tabs = append(wv.Tabs, schema.TabView{ID: t.id, Data: cloneData(t.data)})
		}
		view.Windows = append(view.Windows, wv)
	}
	return view
}

func (w *Workspace) snapshotLocked() persist.WorkspaceSnapshot {
	snapshot := persist.WorkspaceSnapshot{ActiveWindow: w.state.activeWindow}
	for _, win := range w.state.windows {
		ws := persist.WindowSnapshot{ID: win.id, ActiveTab: win.activeTab}
		for _, t := range win.tabs {
			ws.Tabs = append(ws.Tabs, persist.TabSnapshot{ID: t.id, Data: cloneData(t.data)})
		}
		snapshot.Windows = append(snapshot.Windows, ws)
	}
	return snapshot
}

func (w *Workspace) eventLocked(eventType schema.WorkspaceEventType, tabID schema.TabID, windowID schema.WindowID) schema.WorkspaceEvent {
	return schema.WorkspaceEvent{
		ProjectID: w.project,
		Type:      eventType,
		TabID:     tabID,
		WindowID:  windowID,
		State:     w.viewLocked(),
	}
}

func (w *Workspace) persist(log pslog.Logger, snapshot persist.WorkspaceSnapshot) {
	if w.store == nil {
		return
	}
	if err := w.store.SaveWorkspace(w.key(), snapshot); err != nil {
		log.Warn("workspace persist failed", "err", err)
	}
}

func (w *Workspace) emit(event schema.WorkspaceEvent) {
	if w.sink != nil {
		w.sink.OnWorkspaceEvent(event)
	}
}
