package textpipe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zoobzio/clockz"
	"github.com/zoobzio/hookz"
	"github.com/zoobzio/metricz"
	"github.com/zoobzio/tracez"
)

// Observability constants for the Pipeline.
const (
	// Metrics.
	PipelineProcessedTotal = metricz.Key("pipeline.processed.total")
	PipelineSuccessesTotal = metricz.Key("pipeline.successes.total")
	PipelineFailuresTotal  = metricz.Key("pipeline.failures.total")
	PipelineStepsApplied   = metricz.Key("pipeline.steps.applied")
	PipelineStepsSkipped   = metricz.Key("pipeline.steps.skipped")
	PipelineDurationMs     = metricz.Key("pipeline.duration.ms")

	// Spans.
	PipelineProcessSpan = tracez.Key("pipeline.process")
	PipelineStepSpan    = tracez.Key("pipeline.step")

	// Tags.
	PipelineTagStepCount  = tracez.Tag("pipeline.step_count")
	PipelineTagStepNumber = tracez.Tag("pipeline.step_number")
	PipelineTagStepName   = tracez.Tag("pipeline.step_name")
	PipelineTagPolicy     = tracez.Tag("pipeline.policy")
	PipelineTagSuccess    = tracez.Tag("pipeline.success")
	PipelineTagError      = tracez.Tag("pipeline.error")

	// Hook event keys.
	PipelineEventStepComplete = hookz.Key("pipeline.step_complete")
	PipelineEventRunComplete  = hookz.Key("pipeline.run_complete")
)

const pipelineName Name = "pipeline"

// StepEvent represents a pipeline processing event. It is emitted via
// hookz as individual steps complete and when a run finishes, providing
// visibility into run progress.
type StepEvent struct {
	Pipeline      Name          // Pipeline name
	StepName      Name          // Step that completed (step_complete only)
	StepNumber    int           // Position of the step in the run (1-based)
	TotalSteps    int           // Number of configured steps
	Success       bool          // Whether the step (or run) succeeded
	Error         error         // Failure cause, nil on success
	Duration      time.Duration // How long the step took
	StepsApplied  int           // Steps applied so far (run_complete: total)
	StepsSkipped  int           // Steps skipped so far (run_complete: total)
	TotalDuration time.Duration // Whole-run duration (run_complete only)
	Timestamp     time.Time     // When the event occurred
}

// Pipeline executes a configured sequence of named steps over text.
//
// A Pipeline is constructed once from a Config, which is validated up
// front: every configured step name must resolve in the registry before
// any text is processed. The configuration is copied at construction and
// immutable afterwards. Each call to Process owns an independent
// Collector and text value, so a Pipeline is safe for concurrent use.
//
// # Observability
//
// Pipeline provides metrics, tracing, and events:
//
// Metrics:
//   - pipeline.processed.total: Counter of runs
//   - pipeline.successes.total: Counter of runs with no failed step
//   - pipeline.failures.total: Counter of runs with at least one failure
//   - pipeline.steps.applied: Gauge of steps applied in the last run
//   - pipeline.steps.skipped: Gauge of steps skipped in the last run
//   - pipeline.duration.ms: Gauge of the last run's duration
//
// Traces:
//   - pipeline.process: Parent span for the whole run
//   - pipeline.step: Child span for each step
//
// Events (via hooks):
//   - pipeline.step_complete: Fired as each step completes
//   - pipeline.run_complete: Fired when a run finishes without aborting
//
// Example:
//
//	pipeline, _ := textpipe.NewFromSteps("clean", "transform", "analyze")
//	pipeline.OnStepComplete(func(_ context.Context, event textpipe.StepEvent) error {
//	    log.Printf("step %d/%d %s: success=%v (%v)",
//	        event.StepNumber, event.TotalSteps,
//	        event.StepName, event.Success, event.Duration)
//	    return nil
//	})
type Pipeline struct {
	config   *Config
	registry *Registry
	clock    clockz.Clock
	metrics  *metricz.Registry
	tracer   *tracez.Tracer
	hooks    *hookz.Hooks[StepEvent]
}

// New creates a Pipeline from cfg with a fresh registry holding the three
// built-in steps. A nil cfg gets the documented defaults. Configuration
// errors (unknown step name, invalid policy) are fatal to construction.
func New(cfg *Config) (*Pipeline, error) {
	return NewWithRegistry(cfg, NewRegistry())
}

// NewWithRegistry creates a Pipeline that resolves steps through the given
// registry. Use this to share one registry across pipelines or to run
// third-party steps.
func NewWithRegistry(cfg *Config, registry *Registry) (*Pipeline, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg = cfg.clone()
	if err := cfg.normalize(); err != nil {
		return nil, err
	}

	for _, name := range cfg.Steps {
		if _, err := registry.Resolve(name); err != nil {
			return nil, err
		}
	}

	// Initialize observability
	metrics := metricz.New()
	metrics.Counter(PipelineProcessedTotal)
	metrics.Counter(PipelineSuccessesTotal)
	metrics.Counter(PipelineFailuresTotal)
	metrics.Gauge(PipelineStepsApplied)
	metrics.Gauge(PipelineStepsSkipped)
	metrics.Gauge(PipelineDurationMs)

	return &Pipeline{
		config:   cfg,
		registry: registry,
		metrics:  metrics,
		tracer:   tracez.New(),
		hooks:    hookz.New[StepEvent](),
	}, nil
}

// NewFromSteps is the convenience shorthand: the given step order with
// default parameters and the continue policy. With no arguments the
// default step order is used.
func NewFromSteps(steps ...Name) (*Pipeline, error) {
	return New(&Config{Steps: steps})
}

// Process runs a single text through the configured steps in order, each
// step receiving the previous step's output. The returned Result reports
// the processed text, the steps applied and skipped, error strings, the
// analysis metrics, and timing.
//
// A failing step leaves the text as it was before the step. Under
// PolicyContinue the run proceeds and Process returns a nil error; the
// failure is visible in Result.Errors and Result.StepsSkipped. Under
// PolicyStop the run aborts and Process returns the partial Result
// together with a *Error naming the failing step.
//
// The context is checked before each step; a canceled or expired context
// aborts the run regardless of policy.
func (p *Pipeline) Process(ctx context.Context, text string) (result *Result, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	clock := p.getClock()

	collector := NewCollector().WithClock(clock)
	collector.Start()

	p.metrics.Counter(PipelineProcessedTotal).Inc()
	start := clock.Now()

	ctx, span := p.tracer.StartSpan(ctx, PipelineProcessSpan)
	span.SetTag(PipelineTagStepCount, fmt.Sprintf("%d", len(p.config.Steps)))
	span.SetTag(PipelineTagPolicy, string(p.config.ErrorHandling))
	defer func() {
		elapsed := clock.Since(start)
		p.metrics.Gauge(PipelineDurationMs).Set(float64(elapsed.Milliseconds()))
		if result != nil {
			p.metrics.Gauge(PipelineStepsApplied).Set(float64(len(result.StepsApplied)))
			p.metrics.Gauge(PipelineStepsSkipped).Set(float64(len(result.StepsSkipped)))
		}

		if err == nil && (result == nil || !result.Failed()) {
			span.SetTag(PipelineTagSuccess, "true")
			p.metrics.Counter(PipelineSuccessesTotal).Inc()
		} else {
			span.SetTag(PipelineTagSuccess, "false")
			p.metrics.Counter(PipelineFailuresTotal).Inc()
			if err != nil {
				span.SetTag(PipelineTagError, err.Error())
			}
		}
		span.Finish()
	}()

	current := text
	for i, stepName := range p.config.Steps {
		// Check context before starting the step
		select {
		case <-ctx.Done():
			collector.Stop()
			result = collector.Finalize(current)
			return result, &Error{
				Err:       ctx.Err(),
				Input:     current,
				Pipeline:  pipelineName,
				Timeout:   errors.Is(ctx.Err(), context.DeadlineExceeded),
				Canceled:  errors.Is(ctx.Err(), context.Canceled),
				Timestamp: clock.Now(),
			}
		default:
		}

		params := p.config.resolveParams(stepName)

		stepCtx, stepSpan := p.tracer.StartSpan(ctx, PipelineStepSpan)
		stepSpan.SetTag(PipelineTagStepNumber, fmt.Sprintf("%d", i+1))
		stepSpan.SetTag(PipelineTagStepName, string(stepName))

		stepStart := clock.Now()
		output, step, stepErr := p.runStep(stepCtx, stepName, params, current)
		stepDuration := clock.Since(stepStart)
		stepSpan.Finish()

		if stepErr == nil {
			current = output
			collector.RecordSuccess(stepName, stepDuration, params)

			// Analysis-capable steps feed the result's metrics map.
			if analyzer, ok := step.(Analyzer); ok {
				collector.RecordAnalysis(analyzer.Analyze(current))
			}
		} else {
			collector.RecordFailure(stepName, stepDuration, stepErr, params)
		}

		_ = p.hooks.Emit(ctx, PipelineEventStepComplete, StepEvent{ //nolint:errcheck
			Pipeline:     pipelineName,
			StepName:     stepName,
			StepNumber:   i + 1,
			TotalSteps:   len(p.config.Steps),
			Success:      stepErr == nil,
			Error:        stepErr,
			Duration:     stepDuration,
			StepsApplied: len(collector.applied),
			StepsSkipped: len(collector.skipped),
			Timestamp:    clock.Now(),
		})

		if stepErr != nil && p.config.ErrorHandling == PolicyStop {
			collector.Stop()
			result = collector.Finalize(current)
			return result, &Error{
				Err:       stepErr,
				Input:     current,
				Pipeline:  pipelineName,
				StepName:  stepName,
				Duration:  stepDuration,
				Timeout:   errors.Is(stepErr, context.DeadlineExceeded),
				Canceled:  errors.Is(stepErr, context.Canceled),
				Timestamp: clock.Now(),
			}
		}
	}

	collector.Stop()
	result = collector.Finalize(current)

	_ = p.hooks.Emit(ctx, PipelineEventRunComplete, StepEvent{ //nolint:errcheck
		Pipeline:      pipelineName,
		TotalSteps:    len(p.config.Steps),
		Success:       !result.Failed(),
		StepsApplied:  len(result.StepsApplied),
		StepsSkipped:  len(result.StepsSkipped),
		TotalDuration: result.Duration,
		Timestamp:     clock.Now(),
	})

	return result, nil
}

// runStep constructs the named step and invokes it on text. Construction
// failure (missing parameter) is indistinguishable from a processing
// failure for policy purposes. Panics inside the step surface as errors.
func (p *Pipeline) runStep(ctx context.Context, name Name, params Params, text string) (out string, step Step, err error) {
	defer recoverStepPanic(&err, name)

	step, err = p.registry.New(name, params)
	if err != nil {
		return "", nil, err
	}

	out, err = step.Process(ctx, text)
	return out, step, err
}

// ProcessAll runs each text through the pipeline independently, in input
// order, with no shared state between items, and returns one Result per
// input. Under PolicyStop (or on cancellation) the batch ends at the first
// failing item and the results produced so far are returned with the
// error; under PolicyContinue every item runs.
func (p *Pipeline) ProcessAll(ctx context.Context, texts []string) ([]*Result, error) {
	results := make([]*Result, 0, len(texts))
	for _, text := range texts {
		result, err := p.Process(ctx, text)
		if result != nil {
			results = append(results, result)
		}
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

// Steps returns the configured step order.
func (p *Pipeline) Steps() []Name {
	return append([]Name{}, p.config.Steps...)
}

// Policy returns the configured failure policy.
func (p *Pipeline) Policy() Policy {
	return p.config.ErrorHandling
}

// Registry returns the registry this pipeline resolves steps through.
// Registering additional steps is safe at any time.
func (p *Pipeline) Registry() *Registry {
	return p.registry
}

// Name returns the pipeline's name as used in errors and events.
func (p *Pipeline) Name() Name {
	return pipelineName
}

// Metrics returns the metrics registry for this pipeline.
func (p *Pipeline) Metrics() *metricz.Registry {
	return p.metrics
}

// Tracer returns the tracer for this pipeline.
func (p *Pipeline) Tracer() *tracez.Tracer {
	return p.tracer
}

// Close gracefully shuts down observability components.
func (p *Pipeline) Close() error {
	if p.tracer != nil {
		p.tracer.Close()
	}
	p.hooks.Close()
	return nil
}

// OnStepComplete registers a handler invoked asynchronously as each step
// finishes, whether it succeeded or failed.
func (p *Pipeline) OnStepComplete(handler func(context.Context, StepEvent) error) error {
	_, err := p.hooks.Hook(PipelineEventStepComplete, handler)
	return err
}

// OnRunComplete registers a handler invoked asynchronously when a run
// finishes without aborting. The event carries aggregate run statistics.
func (p *Pipeline) OnRunComplete(handler func(context.Context, StepEvent) error) error {
	_, err := p.hooks.Hook(PipelineEventRunComplete, handler)
	return err
}

// WithClock sets a custom clock for testing.
func (p *Pipeline) WithClock(clock clockz.Clock) *Pipeline {
	p.clock = clock
	return p
}

// getClock returns the clock to use.
func (p *Pipeline) getClock() clockz.Clock {
	if p.clock == nil {
		return clockz.RealClock
	}
	return p.clock
}
