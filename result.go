package textpipe

import (
	"time"
)

// StepReport is the per-step diagnostic record of one run: what ran, for
// how long, with which resolved parameters, and how it ended.
type StepReport struct {
	StepName Name          `json:"step_name"`
	Duration time.Duration `json:"duration"`
	Success  bool          `json:"success"`
	Error    string        `json:"error,omitempty"`
	Params   Params        `json:"parameters"`
}

// Result is the structured output of one pipeline run. It is created
// fresh for every processed text and never mutated after return; batch
// processing yields one independent Result per input.
//
// Under PolicyContinue a failed run still returns a complete, well-formed
// Result: callers detect partial failure by inspecting Errors and
// StepsSkipped, since the call itself does not fail.
type Result struct {
	ProcessedText string         `json:"processed_text"`
	Tokens        []string       `json:"tokens"`
	StepsApplied  []Name         `json:"steps_applied"`
	StepsSkipped  []Name         `json:"steps_skipped"`
	Errors        []string       `json:"errors"`
	Analysis      map[string]any `json:"analysis"`
	Duration      time.Duration  `json:"processing_time"`
	Timestamp     time.Time      `json:"timestamp"`
	Reports       []StepReport   `json:"step_reports,omitempty"`
}

// Failed reports whether any step failed during the run.
func (r *Result) Failed() bool {
	return len(r.Errors) > 0
}
