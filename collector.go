package textpipe

import (
	"fmt"
	"strings"
	"time"

	"github.com/zoobzio/clockz"
)

// Collector accumulates the observable facts of one pipeline run: which
// steps applied, which were skipped, the error strings, per-step reports,
// and the analysis metrics. Each run owns its own Collector, so no locking
// is needed; the zero value is not usable, construct with NewCollector.
type Collector struct {
	clock    clockz.Clock
	start    time.Time
	end      time.Time
	applied  []Name
	skipped  []Name
	errs     []string
	reports  []StepReport
	analysis map[string]any
}

// NewCollector creates an empty Collector.
func NewCollector() *Collector {
	return &Collector{
		analysis: make(map[string]any),
	}
}

// WithClock sets a custom clock for testing.
func (c *Collector) WithClock(clock clockz.Clock) *Collector {
	c.clock = clock
	return c
}

// getClock returns the clock to use.
func (c *Collector) getClock() clockz.Clock {
	if c.clock == nil {
		return clockz.RealClock
	}
	return c.clock
}

// Start marks the beginning of the run. Elapsed time is measured once per
// run, from Start to Stop.
func (c *Collector) Start() {
	c.start = c.getClock().Now()
}

// Stop marks the end of the run.
func (c *Collector) Stop() {
	c.end = c.getClock().Now()
}

// Elapsed returns the wall time between Start and Stop, non-negative by
// construction.
func (c *Collector) Elapsed() time.Duration {
	if c.end.Before(c.start) {
		return 0
	}
	return c.end.Sub(c.start)
}

// RecordSuccess records a step that applied, with its duration and
// resolved parameters.
func (c *Collector) RecordSuccess(step Name, duration time.Duration, params Params) {
	c.applied = append(c.applied, step)
	c.reports = append(c.reports, StepReport{
		StepName: step,
		Duration: duration,
		Success:  true,
		Params:   params,
	})
}

// RecordFailure records a step that failed. The step lands in the skipped
// list and a human-readable "step: message" entry in the error list.
func (c *Collector) RecordFailure(step Name, duration time.Duration, err error, params Params) {
	c.skipped = append(c.skipped, step)
	c.errs = append(c.errs, fmt.Sprintf("%s: %v", step, err))
	c.reports = append(c.reports, StepReport{
		StepName: step,
		Duration: duration,
		Success:  false,
		Error:    err.Error(),
		Params:   params,
	})
}

// RecordAnalysis merges analysis metrics into the run's analysis map.
func (c *Collector) RecordAnalysis(analysis map[string]any) {
	for k, v := range analysis {
		c.analysis[k] = v
	}
}

// Finalize assembles the Result for the given final text. It is a pure
// read over the accumulators — calling it twice returns equivalent data —
// and is meant to be called after Stop.
func (c *Collector) Finalize(text string) *Result {
	analysis := make(map[string]any, len(c.analysis))
	for k, v := range c.analysis {
		analysis[k] = v
	}

	return &Result{
		ProcessedText: text,
		Tokens:        strings.Fields(text),
		StepsApplied:  append([]Name{}, c.applied...),
		StepsSkipped:  append([]Name{}, c.skipped...),
		Errors:        append([]string{}, c.errs...),
		Analysis:      analysis,
		Duration:      c.Elapsed(),
		Timestamp:     c.getClock().Now(),
		Reports:       append([]StepReport{}, c.reports...),
	}
}

// Summary aggregates the per-step reports into run-level diagnostics.
type Summary struct {
	StepsApplied  []Name        `json:"steps_applied"`
	StepsSkipped  []Name        `json:"steps_skipped"`
	Errors        []string      `json:"errors"`
	StepCount     int           `json:"step_count"`
	SuccessRate   float64       `json:"success_rate"`
	TotalStepTime time.Duration `json:"total_step_time"`
}

// Summary returns aggregate diagnostics over everything recorded so far.
// The success rate is applied steps over attempted steps, 1.0 for an
// empty run.
func (c *Collector) Summary() Summary {
	var total time.Duration
	for _, report := range c.reports {
		total += report.Duration
	}

	rate := 1.0
	if len(c.reports) > 0 {
		rate = float64(len(c.applied)) / float64(len(c.reports))
	}

	return Summary{
		StepsApplied:  append([]Name{}, c.applied...),
		StepsSkipped:  append([]Name{}, c.skipped...),
		Errors:        append([]string{}, c.errs...),
		StepCount:     len(c.reports),
		SuccessRate:   rate,
		TotalStepTime: total,
	}
}
