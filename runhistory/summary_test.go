package runhistory

import (
	"math"
	"testing"

	"pkt.systems/promptdeck/schema"
)

func groupOf(statuses ...schema.RunStatus) schema.RunGroup {
	group := schema.RunGroup{Key: "batch-1", Kind: schema.GroupNone}
	for i, status := range statuses {
		group.Runs = append(group.Runs, schema.ScenarioRun{
			ScenarioRunID: schema.ScenarioRunID(rune('a' + i)),
			Status:        status,
		})
	}
	return group
}

func TestSummarizeBatchMixedOutcomes(t *testing.T) {
	summary := SummarizeBatch(groupOf(
		schema.RunStatusSuccess,
		schema.RunStatusSuccess,
		schema.RunStatusError,
	))
	if summary.TotalCount != 3 || summary.PassedCount != 2 || summary.FailedCount != 1 {
		t.Fatalf("unexpected counts: %+v", summary)
	}
	if math.Abs(summary.PassRate-200.0/3.0) > 0.001 {
		t.Fatalf("expected pass rate ~66.67, got %v", summary.PassRate)
	}
}

func TestSummarizeBatchErrorAndFailedBothFail(t *testing.T) {
	summary := SummarizeBatch(groupOf(schema.RunStatusError, schema.RunStatusFailed))
	if summary.FailedCount != 2 {
		t.Fatalf("expected 2 failed, got %d", summary.FailedCount)
	}
	if summary.PassRate != 0 {
		t.Fatalf("expected pass rate 0, got %v", summary.PassRate)
	}
}

func TestSummarizeBatchExcludesInProgressFromRate(t *testing.T) {
	summary := SummarizeBatch(groupOf(schema.RunStatusSuccess, schema.RunStatusInProgress))
	if summary.TotalCount != 2 || summary.InProgressCount != 1 {
		t.Fatalf("unexpected counts: %+v", summary)
	}
	if summary.PassRate != 100 {
		t.Fatalf("expected pass rate 100 with in-progress excluded, got %v", summary.PassRate)
	}
}

func TestSummarizeBatchAllInProgress(t *testing.T) {
	summary := SummarizeBatch(groupOf(schema.RunStatusInProgress, schema.RunStatusInProgress))
	if summary.PassRate != 0 {
		t.Fatalf("expected pass rate 0 when nothing finished, got %v", summary.PassRate)
	}
}

func TestSummarizeBatchCountsStalledAndCancelled(t *testing.T) {
	summary := SummarizeBatch(groupOf(schema.RunStatusStalled, schema.RunStatusCancelled))
	if summary.StalledCount != 1 || summary.CancelledCount != 1 {
		t.Fatalf("unexpected counts: %+v", summary)
	}
	if summary.FailedCount != 0 {
		t.Fatalf("stalled and cancelled are not failures: %+v", summary)
	}
}

func TestTotalsEmpty(t *testing.T) {
	totals := Totals(nil)
	if totals.RunCount != 0 || totals.PassedCount != 0 || totals.FailedCount != 0 {
		t.Fatalf("expected zero totals, got %+v", totals)
	}
}

func TestTotalsAcrossBatches(t *testing.T) {
	batches := []schema.RunGroup{
		groupOf(schema.RunStatusSuccess, schema.RunStatusError),
		groupOf(schema.RunStatusSuccess, schema.RunStatusSuccess, schema.RunStatusFailed),
	}
	totals := Totals(batches)
	if totals.RunCount != 2 {
		t.Fatalf("expected one run per batch, got %d", totals.RunCount)
	}
	if totals.PassedCount != 3 || totals.FailedCount != 2 {
		t.Fatalf("unexpected totals: %+v", totals)
	}
}
