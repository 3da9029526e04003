package schema

// ProjectID identifies the project owning a workspace.
type ProjectID string

// DefaultProjectID is used when no project context is available.
const DefaultProjectID ProjectID = "default"

// TabID identifies a single tab.
type TabID string

// WindowID identifies a window (pane) of tabs.
type WindowID string

// ScenarioID identifies a test scenario.
type ScenarioID string

// ScenarioSetID identifies the scenario set a batch was run from.
type ScenarioSetID string

// BatchRunID identifies one invocation of a test suite.
type BatchRunID string

// ScenarioRunID identifies one scenario execution within a batch.
type ScenarioRunID string

// TargetID identifies the system under test a scenario runs against.
type TargetID string

// TabData is the UI-owned tab payload (editor form values, chat
// transcript, variable bindings). The workspace stores it opaquely and
// never interprets its contents.
type TabData map[string]any

// RunStatus is the lifecycle state of a scenario run.
type RunStatus string

const (
	// RunStatusSuccess marks a passed run.
	RunStatusSuccess RunStatus = "success"
	// RunStatusError marks a run that errored.
	RunStatusError RunStatus = "error"
	// RunStatusFailed marks a run that failed its assertions.
	RunStatusFailed RunStatus = "failed"
	// RunStatusInProgress marks a still-executing run.
	RunStatusInProgress RunStatus = "in-progress"
	// RunStatusStalled marks a run that stopped making progress.
	RunStatusStalled RunStatus = "stalled"
	// RunStatusCancelled marks a run cancelled by the user.
	RunStatusCancelled RunStatus = "cancelled"
)

// RunMetadata carries optional per-run annotations.
type RunMetadata struct {
	TargetReferenceID TargetID `json:"target_reference_id,omitempty"`
}

// ScenarioRun is one execution record of a scenario against a target.
type ScenarioRun struct {
	ScenarioID    ScenarioID    `json:"scenario_id"`
	BatchRunID    BatchRunID    `json:"batch_run_id"`
	ScenarioRunID ScenarioRunID `json:"scenario_run_id"`
	Name          string        `json:"name"`
	Status        RunStatus     `json:"status"`
	Timestamp     int64         `json:"timestamp"`
	DurationMs    int64         `json:"duration_ms"`
	Metadata      *RunMetadata  `json:"metadata,omitempty"`
}

// GroupKind describes how runs were grouped.
type GroupKind string

const (
	// GroupNone is the per-batch grouping (no semantic dimension).
	GroupNone GroupKind = "none"
	// GroupScenario groups runs by scenario.
	GroupScenario GroupKind = "scenario"
	// GroupTarget groups runs by target.
	GroupTarget GroupKind = "target"
)

// RunGroup is one ordered group of scenario runs.
type RunGroup struct {
	Key           string        `json:"key"`
	Label         string        `json:"label"`
	Kind          GroupKind     `json:"kind"`
	Timestamp     int64         `json:"timestamp"`
	ScenarioSetID ScenarioSetID `json:"scenario_set_id,omitempty"`
	Runs          []ScenarioRun `json:"runs"`
}

// BatchSummary holds derived pass/fail counts for one group of runs.
type BatchSummary struct {
	PassRate        float64 `json:"pass_rate"`
	PassedCount     int     `json:"passed_count"`
	FailedCount     int     `json:"failed_count"`
	StalledCount    int     `json:"stalled_count"`
	CancelledCount  int     `json:"cancelled_count"`
	InProgressCount int     `json:"in_progress_count"`
	TotalCount      int     `json:"total_count"`
}

// RunTotals aggregates counts across batches.
type RunTotals struct {
	RunCount    int `json:"run_count"`
	PassedCount int `json:"passed_count"`
	FailedCount int `json:"failed_count"`
}

// TabView is a transport-friendly view of one tab.
type TabView struct {
	ID   TabID   `json:"id"`
	Data TabData `json:"data"`
}

// WindowView is a transport-friendly view of one window.
type WindowView struct {
	ID        WindowID  `json:"id"`
	ActiveTab TabID     `json:"active_tab_id"`
	Tabs      []TabView `json:"tabs"`
}

// WorkspaceView is a transport-friendly view of a project workspace.
// ActiveWindow is empty exactly when Windows is empty.
type WorkspaceView struct {
	Windows      []WindowView `json:"windows"`
	ActiveWindow WindowID     `json:"active_window_id,omitempty"`
}
