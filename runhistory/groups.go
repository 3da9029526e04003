// Package runhistory groups and summarizes scenario-run records. All
// functions are pure: they never mutate their inputs and have no error
// paths, degrading to defined fallback buckets on missing fields.
package runhistory

import (
	"sort"

	"pkt.systems/promptdeck/schema"
)

const (
	// UnknownTargetKey collects runs without target metadata.
	UnknownTargetKey = "__unknown__"
	// UnknownTargetLabel is the display label for that bucket.
	UnknownTargetLabel = "Unknown"
)

// GroupByBatch partitions runs by batch id, most recent batch first.
// All runs of a batch share one conceptual run time, so the group carries
// the first member's timestamp. A scenario-set id is attached when the
// optional scenarioSets lookup knows the batch.
func GroupByBatch(runs []schema.ScenarioRun, scenarioSets map[schema.BatchRunID]schema.ScenarioSetID) []schema.RunGroup {
	groups := partition(runs, func(run schema.ScenarioRun) (string, string) {
		return string(run.BatchRunID), string(run.BatchRunID)
	})
	for i := range groups {
		groups[i].Kind = schema.GroupNone
		groups[i].ScenarioSetID = scenarioSets[schema.BatchRunID(groups[i].Key)]
		groups[i].Timestamp = groups[i].Runs[0].Timestamp
	}
	sortByTimestampDesc(groups)
	return groups
}

// GroupByScenario partitions runs by scenario, labeled with the scenario
// name (constant per scenario) and stamped with the most recent member
// timestamp. Most recent scenario first.
func GroupByScenario(runs []schema.ScenarioRun) []schema.RunGroup {
	groups := partition(runs, func(run schema.ScenarioRun) (string, string) {
		return string(run.ScenarioID), run.Name
	})
	for i := range groups {
		groups[i].Kind = schema.GroupScenario
		groups[i].Timestamp = maxTimestamp(groups[i].Runs)
	}
	sortByTimestampDesc(groups)
	return groups
}

// GroupByTarget partitions runs by the target reference in their
// metadata. Runs without one land in a single "Unknown" bucket. Known
// targets are labeled via targetNames; a key absent from the map keeps
// the raw key as its label. Most recent target first.
func GroupByTarget(runs []schema.ScenarioRun, targetNames map[schema.TargetID]string) []schema.RunGroup {
	groups := partition(runs, func(run schema.ScenarioRun) (string, string) {
		if run.Metadata == nil || run.Metadata.TargetReferenceID == "" {
			return UnknownTargetKey, UnknownTargetLabel
		}
		key := run.Metadata.TargetReferenceID
		if name, ok := targetNames[key]; ok {
			return string(key), name
		}
		return string(key), string(key)
	})
	for i := range groups {
		groups[i].Kind = schema.GroupTarget
		groups[i].Timestamp = maxTimestamp(groups[i].Runs)
	}
	sortByTimestampDesc(groups)
	return groups
}

// partition splits runs into groups in first-encounter order.
func partition(runs []schema.ScenarioRun, keyOf func(schema.ScenarioRun) (key, label string)) []schema.RunGroup {
	var groups []schema.RunGroup
	index := make(map[string]int)
	for _, run := range runs {
		key, label := keyOf(run)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, schema.RunGroup{Key: key, Label: label})
		}
		groups[i].Runs = append(groups[i].Runs, run)
	}
	return groups
}

func maxTimestamp(runs []schema.ScenarioRun) int64 {
	var max int64
	for _, run := range runs {
		if run.Timestamp > max {
			max = run.Timestamp
		}
	}
	return max
}

// sortByTimestampDesc orders groups most recent first, keeping
// first-encounter order between equal timestamps.
func sortByTimestampDesc(groups []schema.RunGroup) {
	sort.SliceStable(groups, func(i, j int) bool {
		return groups[i].Timestamp > groups[j].Timestamp
	})
}
