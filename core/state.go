package core

import (
	"pkt.systems/promptdeck/internal/persist"
	"pkt.systems/promptdeck/schema"
)

// tab is one editable document in a window.
type tab struct {
	id   schema.TabID
	data schema.TabData
}

// window is an ordered pane of tabs with one active tab.
type window struct {
	id        schema.WindowID
	tabs      []*tab
	activeTab schema.TabID
}

// browserState holds every window of one project workspace.
//
// Invariants after every operation: no window has zero tabs; activeWindow
// is empty exactly when windows is empty, otherwise it names an existing
// window; each window's activeTab names a tab it contains.
type browserState struct {
	windows      []*window
	activeWindow schema.WindowID
}

func (s *browserState) windowIndex(id schema.WindowID) int {
	for i, win := range s.windows {
		if win.id == id {
			return i
		}
	}
	return -1
}

// locate returns the window and tab indexes for the tab id, or (-1, -1).
func (s *browserState) locate(tabID schema.TabID) (int, int) {
	for wi, win := range s.windows {
		for ti, t := range win.tabs {
			if t.id == tabID {
				return wi, ti
			}
		}
	}
	return -1, -1
}

// removeTabAt removes and returns the tab at index ti. When the removed
// tab was active, the tab now occupying the same index takes over, or the
// previous one when the removed tab was last. activeTab is left empty only
// when the window is empty.
func (w *window) removeTabAt(ti int) *tab {
	removed := w.tabs[ti]
	w.tabs = append(w.tabs[:ti], w.tabs[ti+1:]...)
	if w.activeTab != removed.id {
		return removed
	}
	if len(w.tabs) == 0 {
		w.activeTab = ""
		return removed
	}
	idx := ti
	if idx >= len(w.tabs) {
		idx = len(w.tabs) - 1
	}
	w.activeTab = w.tabs[idx].id
	return removed
}

// removeWindowAt drops the window at index wi. When it was active, the
// window now occupying the same index takes over, or the previous one when
// the removed window was last, or nothing when none remain.
func (s *browserState) removeWindowAt(wi int) {
	removed := s.windows[wi]
	s.windows = append(s.windows[:wi], s.windows[wi+1:]...)
	if s.activeWindow != removed.id {
		return
	}
	if len(s.windows) == 0 {
		s.activeWindow = ""
		return
	}
	idx := wi
	if idx >= len(s.windows) {
		idx = len(s.windows) - 1
	}
	s.activeWindow = s.windows[idx].id
}

// pruneEmptyWindows drops windows left without tabs after a move. When the
// active window was pruned, the first remaining window takes over.
func (s *browserState) pruneEmptyWindows() {
	kept := s.windows[:0]
	for _, win := range s.windows {
		if len(win.tabs) > 0 {
			kept = append(kept, win)
		}
	}
	s.windows = kept
	if len(s.windows) == 0 {
		s.activeWindow = ""
		return
	}
	if s.windowIndex(s.activeWindow) == -1 {
		s.activeWindow = s.windows[0].id
	}
}

// stateFromSnapshot rebuilds state from a persisted snapshot, repairing
// broken invariants: windows without tabs are dropped, dangling active-tab
// pointers reset to the first tab, a dangling active-window pointer resets
// to the first window. ok is false when the snapshot held windows but none
// survived; the caller discards the persisted copy in that case.
func stateFromSnapshot(snapshot persist.WorkspaceSnapshot) (browserState, bool) {
	state := browserState{}
	for _, ws := range snapshot.Windows {
		if len(ws.Tabs) == 0 {
			continue
		}
		win := &window{id: ws.ID, activeTab: ws.ActiveTab}
		for _, ts := range ws.Tabs {
			win.tabs = append(win.tabs, &tab{id: ts.ID, data: ts.Data})
		}
		if win.tabIndex(win.activeTab) == -1 {
			win.activeTab = win.tabs[0].id
		}
		state.windows = append(state.windows, win)
	}
	if len(state.windows) == 0 {
		return browserState{}, len(snapshot.Windows) == 0
	}
	state.activeWindow = snapshot.ActiveWindow
	if state.windowIndex(state.activeWindow) == -1 {
		state.activeWindow = state.windows[0].id
	}
	return state, true
}

func (w *window) tabIndex(tabID schema.TabID) int {
	for i, t := range w.tabs {
		if t.id == tabID {
			return i
		}
	}
	return -1
}

// cloneData deep-copies a tab payload so split copies and outbound views
// never share mutable references with stored state.
func cloneData(data schema.TabData) schema.TabData {
	if data == nil {
		return nil
	}
	out := make(schema.TabData, len(data))
	for k, v := range data {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch value := v.(type) {
	case schema.TabData:
		return cloneData(value)
	case map[string]any:
		return map[string]any(cloneData(value))
	case []any:
		out := make([]any, len(value))
		for i, item := range value {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
