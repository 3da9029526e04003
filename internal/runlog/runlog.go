// Package runlog keeps the per-project history of scenario runs behind the
// run aggregation endpoints. Entries are persisted through the shared state
// store and rehydrated lazily on first access per project.
package runlog

import (
	"context"
	"strings"
	"sync"

	"pkt.systems/promptdeck/internal/logx"
	"pkt.systems/promptdeck/internal/persist"
	"pkt.systems/promptdeck/schema"
)

const runLogKeySuffix = "runlog"

// Entry is one ingest payload: runs plus optional lookup-table updates.
type Entry struct {
	Runs         []schema.ScenarioRun
	Targets      map[schema.TargetID]string
	ScenarioSets map[schema.BatchRunID]schema.ScenarioSetID
}

type projectLog struct {
	runs         []schema.ScenarioRun
	index        map[schema.ScenarioRunID]int
	targets      map[schema.TargetID]string
	scenarioSets map[schema.BatchRunID]schema.ScenarioSetID
}

// Log stores scenario runs per project. Re-ingesting a run id replaces the
// earlier record in place, so status transitions (in-progress to success)
// update rather than duplicate.
type Log struct {
	store *persist.Store

	mu       sync.Mutex
	projects map[schema.ProjectID]*projectLog
}

// New returns an empty Log backed by the provided store.
func New(store *persist.Store) *Log {
	return &Log{
		store:    store,
		projects: make(map[schema.ProjectID]*projectLog),
	}
}

// Record ingests an entry for the project and persists the updated log.
func (l *Log) Record(ctx context.Context, projectID schema.ProjectID, entry Entry) error {
	projectID = normalize(projectID)
	log := logx.WithProject(ctx, projectID)

	l.mu.Lock()
	defer l.mu.Unlock()
	state := l.loadLocked(ctx, projectID)
	for _, run := range entry.Runs {
		if i, ok := state.index[run.ScenarioRunID]; ok {
			state.runs[i] = run
			continue
		}
		state.index[run.ScenarioRunID] = len(state.runs)
		state.runs = append(state.runs, run)
	}
	for id, name := range entry.Targets {
		state.targets[id] = name
	}
	for batch, set := range entry.ScenarioSets {
		state.scenarioSets[batch] = set
	}
	if err := l.store.SaveRunLog(l.key(projectID), snapshotOf(state)); err != nil {
		log.Error("failed to persist run log", "error", err)
		return err
	}
	log.Debug("recorded scenario runs", "runs", len(entry.Runs), "total", len(state.runs))
	return nil
}

// Runs returns a copy of the project's run history in ingest order.
func (l *Log) Runs(ctx context.Context, projectID schema.ProjectID) []schema.ScenarioRun {
	projectID = normalize(projectID)
	l.mu.Lock()
	defer l.mu.Unlock()
	state := l.loadLocked(ctx, projectID)
	runs := make([]schema.ScenarioRun, len(state.runs))
	copy(runs, state.runs)
	return runs
}

// Targets returns a copy of the project's target name lookup table.
func (l *Log) Targets(ctx context.Context, projectID schema.ProjectID) map[schema.TargetID]string {
	projectID = normalize(projectID)
	l.mu.Lock()
	defer l.mu.Unlock()
	state := l.loadLocked(ctx, projectID)
	targets := make(map[schema.TargetID]string, len(state.targets))
	for id, name := range state.targets {
		targets[id] = name
	}
	return targets
}

// ScenarioSets returns a copy of the project's batch to scenario-set mapping.
func (l *Log) ScenarioSets(ctx context.Context, projectID schema.ProjectID) map[schema.BatchRunID]schema.ScenarioSetID {
	projectID = normalize(projectID)
	l.mu.Lock()
	defer l.mu.Unlock()
	state := l.loadLocked(ctx, projectID)
	sets := make(map[schema.BatchRunID]schema.ScenarioSetID, len(state.scenarioSets))
	for batch, set := range state.scenarioSets {
		sets[batch] = set
	}
	return sets
}

// Clear drops the project's run history in memory and on disk.
func (l *Log) Clear(ctx context.Context, projectID schema.ProjectID) error {
	projectID = normalize(projectID)
	l.mu.Lock()
	delete(l.projects, projectID)
	l.mu.Unlock()
	if err := l.store.Delete(l.key(projectID)); err != nil {
		logx.WithProject(ctx, projectID).Error("failed to delete run log", "error", err)
		return err
	}
	return nil
}

func (l *Log) loadLocked(ctx context.Context, projectID schema.ProjectID) *projectLog {
	if state, ok := l.projects[projectID]; ok {
		return state
	}
	state := emptyProjectLog()
	snapshot, found, err := l.store.LoadRunLog(l.key(projectID))
	switch {
	case err != nil:
		// Corrupted on disk. Start over rather than refuse every ingest.
		logx.WithProject(ctx, projectID).Warn("discarding unreadable run log", "error", err)
		if derr := l.store.Delete(l.key(projectID)); derr != nil {
			logx.WithProject(ctx, projectID).Warn("failed to remove unreadable run log", "error", derr)
		}
	case found:
		state.runs = snapshot.Runs
		for i, run := range state.runs {
			state.index[run.ScenarioRunID] = i
		}
		for id, name := range snapshot.Targets {
			state.targets[id] = name
		}
		for batch, set := range snapshot.ScenarioSets {
			state.scenarioSets[batch] = set
		}
	}
	l.projects[projectID] = state
	return state
}

func (l *Log) key(projectID schema.ProjectID) string {
	return string(projectID) + ":" + runLogKeySuffix
}

func emptyProjectLog() *projectLog {
	return &projectLog{
		index:        make(map[schema.ScenarioRunID]int),
		targets:      make(map[schema.TargetID]string),
		scenarioSets: make(map[schema.BatchRunID]schema.ScenarioSetID),
	}
}

func snapshotOf(state *projectLog) persist.RunLogSnapshot {
	snapshot := persist.RunLogSnapshot{
		Runs: make([]schema.ScenarioRun, len(state.runs)),
	}
	copy(snapshot.Runs, state.runs)
	if len(state.targets) > 0 {
		snapshot.Targets = make(map[schema.TargetID]string, len(state.targets))
		for id, name := range state.targets {
			snapshot.Targets[id] = name
		}
	}
	if len(state.scenarioSets) > 0 {
		snapshot.ScenarioSets = make(map[schema.BatchRunID]schema.ScenarioSetID, len(state.scenarioSets))
		for batch, set := range state.scenarioSets {
			snapshot.ScenarioSets[batch] = set
		}
	}
	return snapshot
}

func normalize(projectID schema.ProjectID) schema.ProjectID {
	if strings.TrimSpace(string(projectID)) == "" {
		return schema.DefaultProjectID
	}
	return projectID
}
