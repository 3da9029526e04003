package schema

// WorkspaceEventType identifies a workspace state transition.
type WorkspaceEventType string

const (
	// WorkspaceEventTabAdded indicates a tab was created.
	WorkspaceEventTabAdded WorkspaceEventType = "tab_added"
	// WorkspaceEventTabClosed indicates a tab was removed.
	WorkspaceEventTabClosed WorkspaceEventType = "tab_closed"
	// WorkspaceEventTabSplit indicates a tab was split into a new window.
	WorkspaceEventTabSplit WorkspaceEventType = "tab_split"
	// WorkspaceEventTabMoved indicates a tab moved between or within windows.
	WorkspaceEventTabMoved WorkspaceEventType = "tab_moved"
	// WorkspaceEventTabUpdated indicates a tab payload was replaced.
	WorkspaceEventTabUpdated WorkspaceEventType = "tab_updated"
	// WorkspaceEventActivated indicates the active tab or window changed.
	WorkspaceEventActivated WorkspaceEventType = "activated"
	// WorkspaceEventReset indicates the workspace was cleared.
	WorkspaceEventReset WorkspaceEventType = "reset"
	// WorkspaceEventSnapshot carries the current state when a stream opens.
	WorkspaceEventSnapshot WorkspaceEventType = "snapshot"
)

// WorkspaceEvent is emitted after every successful workspace transition.
// State carries the full post-transition view so subscribers never have to
// replay individual mutations.
type WorkspaceEvent struct {
	ProjectID ProjectID          `json:"project_id"`
	Type      WorkspaceEventType `json:"type"`
	TabID     TabID              `json:"tab_id,omitempty"`
	WindowID  WindowID           `json:"window_id,omitempty"`
	State     WorkspaceView      `json:"state"`
}
