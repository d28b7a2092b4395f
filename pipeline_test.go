package textpipe

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

// Test step names.
const (
	upperName   Name = "upper"
	exclaimName Name = "exclaim"
	failingName Name = "failing"
	panicName   Name = "panic"
	gatedName   Name = "gated"
)

type funcStep struct {
	name Name
	fn   func(string) (string, error)
}

func (s funcStep) Name() Name { return s.name }

func (s funcStep) Process(_ context.Context, text string) (string, error) {
	return s.fn(text)
}

// newTestRegistry adds a handful of synthetic steps next to the built-ins:
// upper and exclaim transform, failing always errors, panic panics, and
// gated requires an "enabled" parameter.
func newTestRegistry() *Registry {
	reg := NewRegistry()
	reg.Register(upperName, func(Params) (Step, error) {
		return funcStep{name: upperName, fn: func(s string) (string, error) {
			return strings.ToUpper(s), nil
		}}, nil
	})
	reg.Register(exclaimName, func(Params) (Step, error) {
		return funcStep{name: exclaimName, fn: func(s string) (string, error) {
			return s + "!", nil
		}}, nil
	})
	reg.Register(failingName, func(Params) (Step, error) {
		return funcStep{name: failingName, fn: func(string) (string, error) {
			return "", errors.New("boom")
		}}, nil
	})
	reg.Register(panicName, func(Params) (Step, error) {
		return funcStep{name: panicName, fn: func(string) (string, error) {
			panic("unexpected fault")
		}}, nil
	})
	reg.Register(gatedName, func(params Params) (Step, error) {
		if err := params.require(gatedName, "enabled"); err != nil {
			return nil, err
		}
		return funcStep{name: gatedName, fn: func(s string) (string, error) {
			return s, nil
		}}, nil
	})
	return reg
}

func TestNew(t *testing.T) {
	t.Run("Nil Config Gets Defaults", func(t *testing.T) {
		p, err := New(nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer p.Close()

		if !reflect.DeepEqual(p.Steps(), DefaultSteps()) {
			t.Errorf("expected default steps, got %v", p.Steps())
		}
		if p.Policy() != PolicyContinue {
			t.Errorf("expected continue policy, got %q", p.Policy())
		}
	})

	t.Run("Unknown Step Fatal To Construction", func(t *testing.T) {
		_, err := New(&Config{Steps: []Name{StepClean, "tokenize"}})
		if !errors.Is(err, ErrUnknownStep) {
			t.Fatalf("expected ErrUnknownStep, got %v", err)
		}
	})

	t.Run("Invalid Policy Fatal To Construction", func(t *testing.T) {
		_, err := New(&Config{ErrorHandling: "retry"})
		if !errors.Is(err, ErrInvalidPolicy) {
			t.Fatalf("expected ErrInvalidPolicy, got %v", err)
		}
	})

	t.Run("Config Copied At Construction", func(t *testing.T) {
		cfg := &Config{Steps: []Name{StepClean}}
		p, err := New(cfg)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer p.Close()

		cfg.Steps[0] = "tokenize"
		if p.Steps()[0] != StepClean {
			t.Error("pipeline must not observe later config mutation")
		}
	})
}

func TestProcess(t *testing.T) {
	t.Run("Empty Step List Is Identity", func(t *testing.T) {
		p, err := New(&Config{Steps: []Name{}})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer p.Close()

		input := "  untouched   Text!  "
		result, err := p.Process(context.Background(), input)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.ProcessedText != input {
			t.Errorf("expected unchanged text, got %q", result.ProcessedText)
		}
		if len(result.StepsApplied) != 0 || len(result.StepsSkipped) != 0 || len(result.Errors) != 0 {
			t.Errorf("expected empty bookkeeping, got %+v", result)
		}
	})

	t.Run("Default Pipeline End To End", func(t *testing.T) {
		p, err := NewFromSteps()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer p.Close()

		result, err := p.Process(context.Background(), "  Hello, World!  \n  This is a TEST.  ")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if result.ProcessedText != "hello world this is a test" {
			t.Errorf("unexpected text: %q", result.ProcessedText)
		}
		if !reflect.DeepEqual(result.StepsApplied, DefaultSteps()) {
			t.Errorf("unexpected applied steps: %v", result.StepsApplied)
		}
		if result.Analysis[MetricWordCount] != 6 {
			t.Errorf("expected word_count 6, got %v", result.Analysis[MetricWordCount])
		}
		// Analyze runs on the transformed text: punctuation is gone, so
		// the whole text counts as one sentence.
		if result.Analysis[MetricSentenceCount] != 1 {
			t.Errorf("expected sentence_count 1, got %v", result.Analysis[MetricSentenceCount])
		}
		if result.Analysis[MetricAverageWordLength] != 3.5 {
			t.Errorf("expected average_word_length 3.5, got %v", result.Analysis[MetricAverageWordLength])
		}
		if result.Analysis[MetricReadingLevel] != ReadingLevelBasic {
			t.Errorf("expected Basic, got %v", result.Analysis[MetricReadingLevel])
		}
		if !reflect.DeepEqual(result.Tokens, strings.Fields(result.ProcessedText)) {
			t.Errorf("unexpected tokens: %v", result.Tokens)
		}
	})

	t.Run("Continue Policy Skips Failing Step", func(t *testing.T) {
		cfg := &Config{
			Steps:         []Name{upperName, failingName, exclaimName},
			ErrorHandling: PolicyContinue,
		}
		p, err := NewWithRegistry(cfg, newTestRegistry())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer p.Close()

		result, err := p.Process(context.Background(), "hello")
		if err != nil {
			t.Fatalf("continue policy must not surface step errors, got %v", err)
		}
		if result.ProcessedText != "HELLO!" {
			t.Errorf("expected HELLO!, got %q", result.ProcessedText)
		}
		if !reflect.DeepEqual(result.StepsApplied, []Name{upperName, exclaimName}) {
			t.Errorf("unexpected applied: %v", result.StepsApplied)
		}
		if !reflect.DeepEqual(result.StepsSkipped, []Name{failingName}) {
			t.Errorf("unexpected skipped: %v", result.StepsSkipped)
		}
		if !result.Failed() || len(result.Errors) != 1 {
			t.Errorf("expected one recorded error, got %v", result.Errors)
		}
		if !strings.HasPrefix(result.Errors[0], "failing: ") {
			t.Errorf("error entry should name the step: %q", result.Errors[0])
		}
	})

	t.Run("Stop Policy Aborts On Failure", func(t *testing.T) {
		cfg := &Config{
			Steps:         []Name{upperName, failingName, exclaimName},
			ErrorHandling: PolicyStop,
		}
		p, err := NewWithRegistry(cfg, newTestRegistry())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer p.Close()

		result, err := p.Process(context.Background(), "hello")
		if err == nil {
			t.Fatal("stop policy must surface the step error")
		}

		var pipeErr *Error
		if !errors.As(err, &pipeErr) {
			t.Fatalf("expected *Error, got %T", err)
		}
		if pipeErr.StepName != failingName {
			t.Errorf("expected step %q in error, got %q", failingName, pipeErr.StepName)
		}

		// The partial result reflects steps attempted up to the failure.
		if result == nil {
			t.Fatal("expected a partial result")
		}
		if result.ProcessedText != "HELLO" {
			t.Errorf("text must remain the last successful output, got %q", result.ProcessedText)
		}
		if !reflect.DeepEqual(result.StepsApplied, []Name{upperName}) {
			t.Errorf("unexpected applied: %v", result.StepsApplied)
		}
		if !reflect.DeepEqual(result.StepsSkipped, []Name{failingName}) {
			t.Errorf("unexpected skipped: %v", result.StepsSkipped)
		}
	})

	t.Run("Missing Step Parameter Is A Step Failure", func(t *testing.T) {
		cfg := &Config{Steps: []Name{gatedName, upperName}}
		p, err := NewWithRegistry(cfg, newTestRegistry())
		if err != nil {
			t.Fatalf("construction must succeed, got %v", err)
		}
		defer p.Close()

		result, err := p.Process(context.Background(), "hi")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !reflect.DeepEqual(result.StepsSkipped, []Name{gatedName}) {
			t.Errorf("unexpected skipped: %v", result.StepsSkipped)
		}
		if result.ProcessedText != "HI" {
			t.Errorf("remaining steps must still run, got %q", result.ProcessedText)
		}
	})

	t.Run("Step Parameter Satisfied Through Config", func(t *testing.T) {
		cfg := &Config{
			Steps:      []Name{gatedName},
			StepParams: map[Name]Params{gatedName: {"enabled": true}},
		}
		p, err := NewWithRegistry(cfg, newTestRegistry())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer p.Close()

		result, err := p.Process(context.Background(), "hi")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !reflect.DeepEqual(result.StepsApplied, []Name{gatedName}) {
			t.Errorf("unexpected applied: %v", result.StepsApplied)
		}
	})

	t.Run("Panic Recovered As Step Failure", func(t *testing.T) {
		cfg := &Config{Steps: []Name{panicName, upperName}}
		p, err := NewWithRegistry(cfg, newTestRegistry())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer p.Close()

		result, err := p.Process(context.Background(), "calm")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !reflect.DeepEqual(result.StepsSkipped, []Name{panicName}) {
			t.Errorf("unexpected skipped: %v", result.StepsSkipped)
		}
		if !strings.Contains(result.Errors[0], "panicked") {
			t.Errorf("expected panic to be reported, got %q", result.Errors[0])
		}
		if result.ProcessedText != "CALM" {
			t.Errorf("unexpected text: %q", result.ProcessedText)
		}
	})

	t.Run("Skipped Analyze Yields Empty Analysis", func(t *testing.T) {
		reg := newTestRegistry()
		reg.Register(StepAnalyze, func(Params) (Step, error) {
			return nil, errors.New("analyzer unavailable")
		})
		p, err := NewWithRegistry(&Config{Steps: []Name{upperName, StepAnalyze}}, reg)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer p.Close()

		result, err := p.Process(context.Background(), "hi")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Analysis) != 0 {
			t.Errorf("expected empty analysis, got %v", result.Analysis)
		}
		if !reflect.DeepEqual(result.StepsSkipped, []Name{StepAnalyze}) {
			t.Errorf("unexpected skipped: %v", result.StepsSkipped)
		}
	})

	t.Run("Canceled Context Aborts Run", func(t *testing.T) {
		p, err := NewFromSteps()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer p.Close()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		result, err := p.Process(ctx, "text")
		if err == nil {
			t.Fatal("expected cancellation error")
		}
		var pipeErr *Error
		if !errors.As(err, &pipeErr) {
			t.Fatalf("expected *Error, got %T", err)
		}
		if !pipeErr.IsCanceled() {
			t.Error("expected Canceled flag")
		}
		if result == nil || len(result.StepsApplied) != 0 {
			t.Errorf("expected empty partial result, got %+v", result)
		}
	})
}

func TestProcessAll(t *testing.T) {
	t.Run("Batch Matches Single Runs", func(t *testing.T) {
		p, err := NewFromSteps()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer p.Close()

		texts := []string{"  One, two.  ", "THREE four FIVE", ""}
		batch, err := p.ProcessAll(context.Background(), texts)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(batch) != len(texts) {
			t.Fatalf("expected %d results, got %d", len(texts), len(batch))
		}

		for i, text := range texts {
			single, err := p.Process(context.Background(), text)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if batch[i].ProcessedText != single.ProcessedText {
				t.Errorf("item %d: %q vs %q", i, batch[i].ProcessedText, single.ProcessedText)
			}
			if !reflect.DeepEqual(batch[i].Analysis, single.Analysis) {
				t.Errorf("item %d analysis diverged: %v vs %v", i, batch[i].Analysis, single.Analysis)
			}
			if !reflect.DeepEqual(batch[i].StepsApplied, single.StepsApplied) {
				t.Errorf("item %d applied diverged", i)
			}
		}
	})

	t.Run("Stop Policy Short-Circuits Batch", func(t *testing.T) {
		cfg := &Config{
			Steps:         []Name{failingName},
			ErrorHandling: PolicyStop,
		}
		p, err := NewWithRegistry(cfg, newTestRegistry())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer p.Close()

		results, err := p.ProcessAll(context.Background(), []string{"a", "b", "c"})
		if err == nil {
			t.Fatal("expected batch to surface the error")
		}
		if len(results) != 1 {
			t.Errorf("expected batch to end at the first failing item, got %d results", len(results))
		}
	})

	t.Run("Continue Policy Runs Every Item", func(t *testing.T) {
		cfg := &Config{
			Steps:         []Name{failingName},
			ErrorHandling: PolicyContinue,
		}
		p, err := NewWithRegistry(cfg, newTestRegistry())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer p.Close()

		results, err := p.ProcessAll(context.Background(), []string{"a", "b"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(results) != 2 {
			t.Fatalf("expected 2 results, got %d", len(results))
		}
		for i, result := range results {
			if !result.Failed() {
				t.Errorf("item %d: expected recorded failure", i)
			}
		}
	})
}

func TestPipelineObservability(t *testing.T) {
	t.Run("Metrics Track Outcomes", func(t *testing.T) {
		cfg := &Config{Steps: []Name{upperName, failingName}}
		p, err := NewWithRegistry(cfg, newTestRegistry())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer p.Close()

		if _, err := p.Process(context.Background(), "a"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := p.Process(context.Background(), "b"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if got := p.Metrics().Counter(PipelineProcessedTotal).Value(); got != 2 {
			t.Errorf("expected 2 processed, got %v", got)
		}
		if got := p.Metrics().Counter(PipelineFailuresTotal).Value(); got != 2 {
			t.Errorf("expected 2 failures, got %v", got)
		}
		if got := p.Metrics().Gauge(PipelineStepsApplied).Value(); got != 1 {
			t.Errorf("expected 1 applied step in last run, got %v", got)
		}
		if got := p.Metrics().Gauge(PipelineStepsSkipped).Value(); got != 1 {
			t.Errorf("expected 1 skipped step in last run, got %v", got)
		}
	})

	t.Run("Successes Counted Without Failures", func(t *testing.T) {
		p, err := NewFromSteps(StepClean)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer p.Close()

		if _, err := p.Process(context.Background(), "ok"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got := p.Metrics().Counter(PipelineSuccessesTotal).Value(); got != 1 {
			t.Errorf("expected 1 success, got %v", got)
		}
	})

	t.Run("Step Complete Events", func(t *testing.T) {
		cfg := &Config{Steps: []Name{upperName, failingName}}
		p, err := NewWithRegistry(cfg, newTestRegistry())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer p.Close()

		events := make(chan StepEvent, 8)
		if err := p.OnStepComplete(func(_ context.Context, event StepEvent) error {
			events <- event
			return nil
		}); err != nil {
			t.Fatalf("hook registration failed: %v", err)
		}

		if _, err := p.Process(context.Background(), "x"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var got []StepEvent
		for len(got) < 2 {
			select {
			case event := <-events:
				got = append(got, event)
			case <-time.After(time.Second):
				t.Fatalf("timed out waiting for events, have %d", len(got))
			}
		}

		if got[0].StepName != upperName || !got[0].Success {
			t.Errorf("unexpected first event: %+v", got[0])
		}
		if got[1].StepName != failingName || got[1].Success {
			t.Errorf("unexpected second event: %+v", got[1])
		}
		if got[1].Error == nil {
			t.Error("failed step event should carry the error")
		}
	})

	t.Run("Run Complete Event", func(t *testing.T) {
		p, err := NewFromSteps(StepClean)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer p.Close()

		events := make(chan StepEvent, 1)
		if err := p.OnRunComplete(func(_ context.Context, event StepEvent) error {
			events <- event
			return nil
		}); err != nil {
			t.Fatalf("hook registration failed: %v", err)
		}

		if _, err := p.Process(context.Background(), "x"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		select {
		case event := <-events:
			if !event.Success || event.StepsApplied != 1 {
				t.Errorf("unexpected run event: %+v", event)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for run event")
		}
	})
}
