package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"
)

var (
	slotsFilled        atomic.Int64
	slotsSkipped       atomic.Int64
	slotsEmpty         atomic.Int64
	duplicatesExcluded atomic.Int64
	allocationRuns     atomic.Int64
	publishedTotal     atomic.Int64
	publishFailedTotal atomic.Int64
	diversityScorePct  atomic.Int64
)

// ObserveAllocation records the outcome of one allocation run. The
// diversity score is stored as an integer percentage.
func ObserveAllocation(filled, skipped, empty, excluded int, diversityScore float64) {
	allocationRuns.Add(1)
	slotsFilled.Add(int64(filled))
	slotsSkipped.Add(int64(skipped))
	slotsEmpty.Add(int64(empty))
	duplicatesExcluded.Add(int64(excluded))
	diversityScorePct.Store(int64(diversityScore * 100))
}

func IncPublished() {
	publishedTotal.Add(1)
}

func IncPublishFailed() {
	publishFailedTotal.Add(1)
}

func WritePrometheus(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	fmt.Fprintf(w, "# HELP pulsefeed_schedule_slots_filled_total Slots filled by allocation runs.\n")
	fmt.Fprintf(w, "# TYPE pulsefeed_schedule_slots_filled_total counter\n")
	fmt.Fprintf(w, "pulsefeed_schedule_slots_filled_total %d\n", slotsFilled.Load())

	fmt.Fprintf(w, "# HELP pulsefeed_schedule_slots_skipped_total Slots skipped because they were already filled, in flight, or lost a concurrent claim.\n")
	fmt.Fprintf(w, "# TYPE pulsefeed_schedule_slots_skipped_total counter\n")
	fmt.Fprintf(w, "pulsefeed_schedule_slots_skipped_total %d\n", slotsSkipped.Load())

	fmt.Fprintf(w, "# HELP pulsefeed_schedule_slots_empty_total Slots left empty for lack of eligible candidates.\n")
	fmt.Fprintf(w, "# TYPE pulsefeed_schedule_slots_empty_total counter\n")
	fmt.Fprintf(w, "pulsefeed_schedule_slots_empty_total %d\n", slotsEmpty.Load())

	fmt.Fprintf(w, "# HELP pulsefeed_schedule_duplicates_excluded_total Candidates excluded by the duplicate guard.\n")
	fmt.Fprintf(w, "# TYPE pulsefeed_schedule_duplicates_excluded_total counter\n")
	fmt.Fprintf(w, "pulsefeed_schedule_duplicates_excluded_total %d\n", duplicatesExcluded.Load())

	fmt.Fprintf(w, "# HELP pulsefeed_schedule_allocation_runs_total Allocation runs executed.\n")
	fmt.Fprintf(w, "# TYPE pulsefeed_schedule_allocation_runs_total counter\n")
	fmt.Fprintf(w, "pulsefeed_schedule_allocation_runs_total %d\n", allocationRuns.Load())

	fmt.Fprintf(w, "# HELP pulsefeed_publication_posted_total Slots successfully posted.\n")
	fmt.Fprintf(w, "# TYPE pulsefeed_publication_posted_total counter\n")
	fmt.Fprintf(w, "pulsefeed_publication_posted_total %d\n", publishedTotal.Load())

	fmt.Fprintf(w, "# HELP pulsefeed_publication_failed_total Delivery attempts reported as failed.\n")
	fmt.Fprintf(w, "# TYPE pulsefeed_publication_failed_total counter\n")
	fmt.Fprintf(w, "pulsefeed_publication_failed_total %d\n", publishFailedTotal.Load())

	fmt.Fprintf(w, "# HELP pulsefeed_schedule_diversity_score_percent Diversity score of the recent publication history, 0-100.\n")
	fmt.Fprintf(w, "# TYPE pulsefeed_schedule_diversity_score_percent gauge\n")
	fmt.Fprintf(w, "pulsefeed_schedule_diversity_score_percent %d\n", diversityScorePct.Load())
}
