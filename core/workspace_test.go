package core

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"pkt.systems/promptdeck/internal/persist"
	"pkt.systems/promptdeck/schema"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(Deps{})
}

func newPersistentRegistry(t *testing.T, dir string) *Registry {
	t.Helper()
	store, err := persist.NewStore(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return NewRegistry(Deps{Store: store})
}

func checkInvariants(t *testing.T, view schema.WorkspaceView) {
	t.Helper()
	if len(view.Windows) == 0 {
		if view.ActiveWindow != "" {
			t.Fatalf("active window %q with no windows", view.ActiveWindow)
		}
		return
	}
	if view.ActiveWindow == "" {
		t.Fatalf("no active window with %d windows", len(view.Windows))
	}
	activeFound := false
	for _, win := range view.Windows {
		if len(win.Tabs) == 0 {
			t.Fatalf("window %q has no tabs", win.ID)
		}
		if win.ID == view.ActiveWindow {
			activeFound = true
		}
		tabFound := false
		for _, tab := range win.Tabs {
			if tab.ID == win.ActiveTab {
				tabFound = true
			}
		}
		if !tabFound {
			t.Fatalf("window %q active tab %q not present", win.ID, win.ActiveTab)
		}
	}
	if !activeFound {
		t.Fatalf("active window %q not present", view.ActiveWindow)
	}
}

func TestAddTabCreatesWindow(t *testing.T) {
	ws := newTestRegistry(t).Get("proj1")
	ctx := context.Background()

	tabID := ws.AddTab(ctx, schema.TabData{"title": "prompt a"})
	view := ws.View()
	checkInvariants(t, view)
	if len(view.Windows) != 1 {
		t.Fatalf("expected 1 window, got %d", len(view.Windows))
	}
	if view.Windows[0].ActiveTab != tabID {
		t.Fatalf("expected active tab %q, got %q", tabID, view.Windows[0].ActiveTab)
	}
	if view.ActiveWindow != view.Windows[0].ID {
		t.Fatalf("expected active window %q, got %q", view.Windows[0].ID, view.ActiveWindow)
	}
}

func TestAddTabsShareActiveWindow(t *testing.T) {
	ws := newTestRegistry(t).Get("proj1")
	ctx := context.Background()

	ids := make(map[schema.TabID]bool)
	for i := 0; i < 3; i++ {
		ids[ws.AddTab(ctx, schema.TabData{"index": i})] = true
	}
	view := ws.View()
	checkInvariants(t, view)
	if len(view.Windows) != 1 {
		t.Fatalf("expected 1 window, got %d", len(view.Windows))
	}
	if len(view.Windows[0].Tabs) != 3 {
		t.Fatalf("expected 3 tabs, got %d", len(view.Windows[0].Tabs))
	}
	for _, tab := range view.Windows[0].Tabs {
		if !ids[tab.ID] {
			t.Fatalf("unexpected tab %q", tab.ID)
		}
		delete(ids, tab.ID)
	}
	if len(ids) != 0 {
		t.Fatalf("tabs missing from window: %v", ids)
	}
}

func TestRemoveTabReassignsActiveTab(t *testing.T) {
	ws := newTestRegistry(t).Get("proj1")
	ctx := context.Background()

	tab1 := ws.AddTab(ctx, schema.TabData{"n": 1})
	tab2 := ws.AddTab(ctx, schema.TabData{"n": 2})
	tab3 := ws.AddTab(ctx, schema.TabData{"n": 3})
	view := ws.View()
	ws.SetActiveTab(ctx, view.Windows[0].ID, tab2)

	ws.RemoveTab(ctx, tab2)
	view = ws.View()
	checkInvariants(t, view)
	// The tab shifted into the vacated index takes over.
	if view.Windows[0].ActiveTab != tab3 {
		t.Fatalf("expected active tab %q, got %q", tab3, view.Windows[0].ActiveTab)
	}

	ws.RemoveTab(ctx, tab3)
	view = ws.View()
	checkInvariants(t, view)
	if view.Windows[0].ActiveTab != tab1 {
		t.Fatalf("expected active tab %q, got %q", tab1, view.Windows[0].ActiveTab)
	}
}

func TestRemoveLastTabRemovesWindow(t *testing.T) {
	ws := newTestRegistry(t).Get("proj1")
	ctx := context.Background()

	tabID := ws.AddTab(ctx, schema.TabData{"title": "only"})
	ws.RemoveTab(ctx, tabID)
	view := ws.View()
	checkInvariants(t, view)
	if len(view.Windows) != 0 {
		t.Fatalf("expected no windows, got %d", len(view.Windows))
	}
	if view.ActiveWindow != "" {
		t.Fatalf("expected empty active window, got %q", view.ActiveWindow)
	}
}

func TestRemoveTabReassignsActiveWindow(t *testing.T) {
	ws := newTestRegistry(t).Get("proj1")
	ctx := context.Background()

	tab1 := ws.AddTab(ctx, schema.TabData{"n": 1})
	ws.SplitTab(ctx, tab1) // windows: [A B], active B
	ws.SplitTab(ctx, tab1) // windows: [A C B], active C
	view := ws.View()
	if len(view.Windows) != 3 {
		t.Fatalf("expected 3 windows, got %d", len(view.Windows))
	}
	middle := view.Windows[1]
	if view.ActiveWindow != middle.ID {
		t.Fatalf("expected middle window active, got %q", view.ActiveWindow)
	}

	ws.RemoveTab(ctx, middle.Tabs[0].ID)
	view = ws.View()
	checkInvariants(t, view)
	if len(view.Windows) != 2 {
		t.Fatalf("expected 2 windows, got %d", len(view.Windows))
	}
	// The window shifted into the vacated index takes over.
	if view.ActiveWindow != view.Windows[1].ID {
		t.Fatalf("expected active window %q, got %q", view.Windows[1].ID, view.ActiveWindow)
	}
}

func TestRemoveUnknownTabIsNoop(t *testing.T) {
	ws := newTestRegistry(t).Get("proj1")
	ctx := context.Background()

	ws.AddTab(ctx, schema.TabData{"title": "keep"})
	before := ws.View()
	ws.RemoveTab(ctx, "no-such-tab")
	after := ws.View()
	checkInvariants(t, after)
	if len(after.Windows) != len(before.Windows) || len(after.Windows[0].Tabs) != 1 {
		t.Fatalf("expected unchanged state, got %+v", after)
	}
}

func TestSplitTabDeepCopiesData(t *testing.T) {
	ws := newTestRegistry(t).Get("proj1")
	ctx := context.Background()

	original := ws.AddTab(ctx, schema.TabData{
		"title": "prompt",
		"vars":  map[string]any{"tone": "neutral"},
	})
	ws.SplitTab(ctx, original)
	view := ws.View()
	checkInvariants(t, view)
	if len(view.Windows) != 2 {
		t.Fatalf("expected 2 windows, got %d", len(view.Windows))
	}
	copyTab := view.Windows[1].Tabs[0]
	if copyTab.ID == original {
		t.Fatalf("expected fresh id for split copy")
	}
	if view.ActiveWindow != view.Windows[1].ID {
		t.Fatalf("expected split window active")
	}

	ws.UpdateTabData(ctx, original, func(data schema.TabData) schema.TabData {
		vars := data["vars"].(map[string]any)
		vars["tone"] = "aggressive"
		return data
	})
	copied, ok := ws.TabData(copyTab.ID)
	if !ok {
		t.Fatalf("expected split copy to exist")
	}
	if tone := copied["vars"].(map[string]any)["tone"]; tone != "neutral" {
		t.Fatalf("split copy mutated through original: tone=%v", tone)
	}

	ws.UpdateTabData(ctx, copyTab.ID, func(schema.TabData) schema.TabData {
		return schema.TabData{"title": "rewritten"}
	})
	orig, ok := ws.TabData(original)
	if !ok {
		t.Fatalf("expected original to exist")
	}
	if orig["title"] != "prompt" {
		t.Fatalf("original mutated through split copy: %+v", orig)
	}
}

func TestSplitUnknownTabIsNoop(t *testing.T) {
	ws := newTestRegistry(t).Get("proj1")
	ctx := context.Background()

	ws.SplitTab(ctx, "no-such-tab")
	view := ws.View()
	if len(view.Windows) != 0 {
		t.Fatalf("expected no windows, got %d", len(view.Windows))
	}
}

func TestMoveTabClampsIndex(t *testing.T) {
	ws := newTestRegistry(t).Get("proj1")
	ctx := context.Background()

	tab1 := ws.AddTab(ctx, schema.TabData{"n": 1})
	ws.AddTab(ctx, schema.TabData{"n": 2})
	ws.SplitTab(ctx, tab1)
	view := ws.View()
	target := view.Windows[1]

	ws.MoveTab(ctx, tab1, target.ID, 99)
	view = ws.View()
	checkInvariants(t, view)
	moved := view.Windows[1]
	if len(moved.Tabs) != 2 {
		t.Fatalf("expected 2 tabs in target, got %d", len(moved.Tabs))
	}
	// Out-of-range index appends.
	if moved.Tabs[1].ID != tab1 {
		t.Fatalf("expected %q appended, got %+v", tab1, moved.Tabs)
	}
	if moved.ActiveTab != tab1 {
		t.Fatalf("expected moved tab active, got %q", moved.ActiveTab)
	}
	if view.ActiveWindow != moved.ID {
		t.Fatalf("expected target window active, got %q", view.ActiveWindow)
	}
}

func TestMoveTabPrunesEmptySource(t *testing.T) {
	ws := newTestRegistry(t).Get("proj1")
	ctx := context.Background()

	tab1 := ws.AddTab(ctx, schema.TabData{"n": 1})
	ws.SplitTab(ctx, tab1)
	view := ws.View()
	target := view.Windows[1]

	ws.MoveTab(ctx, tab1, target.ID, 0)
	view = ws.View()
	checkInvariants(t, view)
	if len(view.Windows) != 1 {
		t.Fatalf("expected vacated window pruned, got %d windows", len(view.Windows))
	}
	if view.Windows[0].ID != target.ID {
		t.Fatalf("expected target window to survive")
	}
	if view.Windows[0].Tabs[0].ID != tab1 {
		t.Fatalf("expected moved tab first, got %+v", view.Windows[0].Tabs)
	}
}

func TestMoveTabWithinWindow(t *testing.T) {
	ws := newTestRegistry(t).Get("proj1")
	ctx := context.Background()

	tab1 := ws.AddTab(ctx, schema.TabData{"n": 1})
	tab2 := ws.AddTab(ctx, schema.TabData{"n": 2})
	tab3 := ws.AddTab(ctx, schema.TabData{"n": 3})
	view := ws.View()

	ws.MoveTab(ctx, tab3, view.Windows[0].ID, 0)
	view = ws.View()
	checkInvariants(t, view)
	got := []schema.TabID{view.Windows[0].Tabs[0].ID, view.Windows[0].Tabs[1].ID, view.Windows[0].Tabs[2].ID}
	want := []schema.TabID{tab3, tab1, tab2}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}
	if view.Windows[0].ActiveTab != tab3 {
		t.Fatalf("expected moved tab active, got %q", view.Windows[0].ActiveTab)
	}
}

func TestMoveTabUnknownTargetIsNoop(t *testing.T) {
	ws := newTestRegistry(t).Get("proj1")
	ctx := context.Background()

	tab1 := ws.AddTab(ctx, schema.TabData{"n": 1})
	before := ws.View()
	ws.MoveTab(ctx, tab1, "no-such-window", 0)
	after := ws.View()
	checkInvariants(t, after)
	if len(after.Windows) != len(before.Windows) {
		t.Fatalf("expected unchanged state")
	}
	if after.Windows[0].Tabs[0].ID != tab1 {
		t.Fatalf("expected tab untouched")
	}
}

func TestSetActiveTabActivatesWindow(t *testing.T) {
	ws := newTestRegistry(t).Get("proj1")
	ctx := context.Background()

	tab1 := ws.AddTab(ctx, schema.TabData{"n": 1})
	ws.SplitTab(ctx, tab1)
	view := ws.View()
	first := view.Windows[0]
	if view.ActiveWindow == first.ID {
		t.Fatalf("expected split window active before the test")
	}

	ws.SetActiveTab(ctx, first.ID, tab1)
	view = ws.View()
	checkInvariants(t, view)
	if view.ActiveWindow != first.ID {
		t.Fatalf("expected window %q active, got %q", first.ID, view.ActiveWindow)
	}
	if !ws.IsTabActive(tab1) {
		t.Fatalf("expected tab %q active", tab1)
	}
}

func TestSetActiveTabWrongWindowIsNoop(t *testing.T) {
	ws := newTestRegistry(t).Get("proj1")
	ctx := context.Background()

	tab1 := ws.AddTab(ctx, schema.TabData{"n": 1})
	ws.SplitTab(ctx, tab1)
	view := ws.View()
	split := view.Windows[1]

	// tab1 lives in the first window, not the split one.
	ws.SetActiveTab(ctx, split.ID, tab1)
	after := ws.View()
	checkInvariants(t, after)
	if after.ActiveWindow != split.ID {
		t.Fatalf("expected active window unchanged")
	}
	if after.Windows[1].ActiveTab == tab1 {
		t.Fatalf("expected split window active tab unchanged")
	}
}

func TestUpdateUnknownTabIsNoop(t *testing.T) {
	ws := newTestRegistry(t).Get("proj1")
	ctx := context.Background()

	called := false
	ws.UpdateTabData(ctx, "no-such-tab", func(data schema.TabData) schema.TabData {
		called = true
		return data
	})
	if called {
		t.Fatalf("updater must not run for unknown tabs")
	}
}

func TestTabDataMissing(t *testing.T) {
	ws := newTestRegistry(t).Get("proj1")
	if _, ok := ws.TabData("no-such-tab"); ok {
		t.Fatalf("expected missing tab")
	}
}

func TestOperationSequenceKeepsInvariants(t *testing.T) {
	ws := newTestRegistry(t).Get("proj1")
	ctx := context.Background()

	adds := 0
	var tabs []schema.TabID
	addTab := func(n int) {
		tabs = append(tabs, ws.AddTab(ctx, schema.TabData{"n": n}))
		adds++
	}

	addTab(1)
	addTab(2)
	ws.SplitTab(ctx, tabs[0])
	addTab(3)
	view := ws.View()
	checkInvariants(t, view)
	ws.MoveTab(ctx, tabs[1], view.Windows[1].ID, 5)
	checkInvariants(t, ws.View())
	ws.RemoveTab(ctx, tabs[0])
	checkInvariants(t, ws.View())
	ws.RemoveTab(ctx, tabs[0]) // stale id
	ws.MoveTab(ctx, tabs[2], "gone", 0)
	ws.SetActiveWindow(ctx, "gone")
	view = ws.View()
	checkInvariants(t, view)
	if len(view.Windows) > adds {
		t.Fatalf("window count %d exceeds add count %d", len(view.Windows), adds)
	}
	seen := map[schema.TabID]int{}
	for _, win := range view.Windows {
		for _, tab := range win.Tabs {
			seen[tab.ID]++
		}
	}
	for id, n := range seen {
		if n != 1 {
			t.Fatalf("tab %q appears %d times", id, n)
		}
	}
}

func TestWorkspacePersistRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	ws := newPersistentRegistry(t, dir).Get("proj1")
	tab1 := ws.AddTab(ctx, schema.TabData{"title": "prompt a"})
	ws.AddTab(ctx, schema.TabData{"title": "prompt b"})
	ws.SplitTab(ctx, tab1)
	want := ws.View()

	got := newPersistentRegistry(t, dir).Get("proj1").View()
	checkInvariants(t, got)
	if len(got.Windows) != len(want.Windows) {
		t.Fatalf("expected %d windows, got %d", len(want.Windows), len(got.Windows))
	}
	if got.ActiveWindow != want.ActiveWindow {
		t.Fatalf("expected active window %q, got %q", want.ActiveWindow, got.ActiveWindow)
	}
	for i := range want.Windows {
		if got.Windows[i].ID != want.Windows[i].ID {
			t.Fatalf("window order mismatch at %d", i)
		}
		if got.Windows[i].ActiveTab != want.Windows[i].ActiveTab {
			t.Fatalf("active tab mismatch at %d", i)
		}
	}
}

func TestWorkspaceResetClearsPersistedState(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	ws := newPersistentRegistry(t, dir).Get("proj1")
	ws.AddTab(ctx, schema.TabData{"title": "gone soon"})
	ws.Reset(ctx)
	if len(ws.View().Windows) != 0 {
		t.Fatalf("expected empty state after reset")
	}

	got := newPersistentRegistry(t, dir).Get("proj1").View()
	if len(got.Windows) != 0 {
		t.Fatalf("expected no persisted windows after reset, got %d", len(got.Windows))
	}
}

func TestRehydrateRepairsBrokenPointers(t *testing.T) {
	dir := t.TempDir()
	store, err := persist.NewStore(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	snapshot := persist.WorkspaceSnapshot{
		Windows: []persist.WindowSnapshot{
			{ID: "empty", ActiveTab: "", Tabs: nil},
			{
				ID:        "win1",
				ActiveTab: "dangling",
				Tabs:      []persist.TabSnapshot{{ID: "tab1", Data: schema.TabData{"n": 1}}},
			},
		},
		ActiveWindow: "missing",
	}
	if err := store.SaveWorkspace("proj1:workspace", snapshot); err != nil {
		t.Fatalf("save: %v", err)
	}

	view := NewRegistry(Deps{Store: store}).Get("proj1").View()
	checkInvariants(t, view)
	if len(view.Windows) != 1 {
		t.Fatalf("expected empty window dropped, got %d windows", len(view.Windows))
	}
	if view.Windows[0].ActiveTab != "tab1" {
		t.Fatalf("expected active tab repaired to %q, got %q", "tab1", view.Windows[0].ActiveTab)
	}
	if view.ActiveWindow != "win1" {
		t.Fatalf("expected active window repaired to %q, got %q", "win1", view.ActiveWindow)
	}
}

func TestRehydrateDiscardsUnsalvageableState(t *testing.T) {
	dir := t.TempDir()
	store, err := persist.NewStore(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	snapshot := persist.WorkspaceSnapshot{
		Windows:      []persist.WindowSnapshot{{ID: "empty1"}, {ID: "empty2"}},
		ActiveWindow: "empty1",
	}
	if err := store.SaveWorkspace("proj1:workspace", snapshot); err != nil {
		t.Fatalf("save: %v", err)
	}

	view := NewRegistry(Deps{Store: store}).Get("proj1").View()
	if len(view.Windows) != 0 {
		t.Fatalf("expected empty state, got %d windows", len(view.Windows))
	}
	if _, err := os.Stat(filepath.Join(dir, "proj1_workspace.json")); !os.IsNotExist(err) {
		t.Fatalf("expected corrupted record discarded, stat err=%v", err)
	}
}

func TestRehydrateDiscardsMalformedRecord(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "proj1_workspace.json"), []byte("{broken"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	store, err := persist.NewStore(dir)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	view := NewRegistry(Deps{Store: store}).Get("proj1").View()
	if len(view.Windows) != 0 {
		t.Fatalf("expected empty state, got %d windows", len(view.Windows))
	}
	if _, err := os.Stat(filepath.Join(dir, "proj1_workspace.json")); !os.IsNotExist(err) {
		t.Fatalf("expected malformed record discarded, stat err=%v", err)
	}
}

type captureSink struct {
	events []schema.WorkspaceEvent
}

func (c *captureSink) OnWorkspaceEvent(event schema.WorkspaceEvent) {
	c.events = append(c.events, event)
}

func TestWorkspaceEmitsEvents(t *testing.T) {
	sink := &captureSink{}
	ws := NewRegistry(Deps{Sink: sink}).Get("proj1")
	ctx := context.Background()

	tab1 := ws.AddTab(ctx, schema.TabData{"n": 1})
	ws.SplitTab(ctx, tab1)
	ws.RemoveTab(ctx, tab1)
	ws.Reset(ctx)

	want := []schema.WorkspaceEventType{
		schema.WorkspaceEventTabAdded,
		schema.WorkspaceEventTabSplit,
		schema.WorkspaceEventTabClosed,
		schema.WorkspaceEventReset,
	}
	if len(sink.events) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(sink.events))
	}
	for i, event := range sink.events {
		if event.Type != want[i] {
			t.Fatalf("event %d: expected %q, got %q", i, want[i], event.Type)
		}
		if event.ProjectID != "proj1" {
			t.Fatalf("event %d: expected project proj1, got %q", i, event.ProjectID)
		}
	}
	// Events carry the full post-transition state.
	if len(sink.events[2].State.Windows) != 1 {
		t.Fatalf("expected close event to carry remaining window")
	}
}
