package runhistory

import "pkt.systems/promptdeck/schema"

// SummarizeBatch classifies a group's runs into pass/fail/in-progress/
// stalled/cancelled counts. Both "error" and "failed" statuses count as
// failures. PassRate is passed over finished (everything but in-progress)
// as a percentage, 0 when nothing finished; it is not rounded here.
func SummarizeBatch(group schema.RunGroup) schema.BatchSummary {
	summary := schema.BatchSummary{TotalCount: len(group.Runs)}
	for _, run := range group.Runs {
		switch run.Status {
		case schema.RunStatusSuccess:
			summary.PassedCount++
		case schema.RunStatusError, schema.RunStatusFailed:
			summary.FailedCount++
		case schema.RunStatusInProgress:
			summary.InProgressCount++
		case schema.RunStatusStalled:
			summary.StalledCount++
		case schema.RunStatusCancelled:
			summary.CancelledCount++
		}
	}
	finished := summary.TotalCount - summary.InProgressCount
	if finished > 0 {
		summary.PassRate = float64(summary.PassedCount) / float64(finished) * 100
	}
	return summary
}

// Totals reduces batch groups to overall counts: one run per batch, with
// passed and failed summed across every member run.
func Totals(batches []schema.RunGroup) schema.RunTotals {
	totals := schema.RunTotals{RunCount: len(batches)}
	for _, batch := range batches {
		for _, run := range batch.Runs {
			switch run.Status {
			case schema.RunStatusSuccess:
				totals.PassedCount++
			case schema.RunStatusError, schema.RunStatusFailed:
				totals.FailedCount++
			}
		}
	}
	return totals
}
