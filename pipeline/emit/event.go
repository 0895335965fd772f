package emit

// Event is an observability event produced while a research workflow runs.
//
// Events cover the full pipeline lifecycle:
//   - Stage start/complete/retry
//   - Paper source queries and dedup results
//   - LLM attempts, safety fallbacks, cooldowns
//   - Checkpoint save/load/skip
type Event struct {
	// Topic identifies the research workflow that produced this event.
	Topic string

	// Stage names the pipeline stage (e.g. "literature_survey").
	// Empty for workflow-level events.
	Stage string

	// Step is the 1-indexed position of the stage in the pipeline.
	// Zero for workflow-level events.
	Step int

	// Msg is a short machine-matchable description, e.g. "stage_start",
	// "stage_complete", "stage_retry", "checkpoint_skip", "llm_fallback".
	Msg string

	// Meta carries structured detail for the event. Common keys:
	//   - "duration_ms": stage execution time
	//   - "error": error detail
	//   - "papers": paper count after a stage
	//   - "attempt": retry attempt number
	Meta map[string]interface{}
}
