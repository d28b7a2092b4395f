package textpipe

import (
	"context"
	"errors"
	"testing"
)

func TestCleanStep(t *testing.T) {
	t.Run("Trim And Collapse", func(t *testing.T) {
		step, err := NewCleanStep(DefaultParams(StepClean))
		if err != nil {
			t.Fatalf("unexpected construction error: %v", err)
		}

		result, err := step.Process(context.Background(), "  Hello,   World!  \n  This is a TEST.  ")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result != "Hello, World! This is a TEST." {
			t.Errorf("unexpected result: %q", result)
		}
	})

	t.Run("Preserve Newlines", func(t *testing.T) {
		params := DefaultParams(StepClean)
		params["preserve_newlines"] = true
		step, err := NewCleanStep(params)
		if err != nil {
			t.Fatalf("unexpected construction error: %v", err)
		}

		result, err := step.Process(context.Background(), "one  \ttwo\n\n\n\nthree   four")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result != "one two\n\nthree four" {
			t.Errorf("expected single blank line between paragraphs, got %q", result)
		}
	})

	t.Run("Horizontal Collapse Keeps Single Newlines", func(t *testing.T) {
		params := DefaultParams(StepClean)
		params["preserve_newlines"] = true
		step, _ := NewCleanStep(params)

		result, _ := step.Process(context.Background(), "line one\nline   two")
		if result != "line one\nline two" {
			t.Errorf("unexpected result: %q", result)
		}
	})

	t.Run("All Flags Off Is Identity", func(t *testing.T) {
		step, err := NewCleanStep(Params{
			"remove_extra_spaces": false,
			"preserve_newlines":   false,
			"trim_edges":          false,
		})
		if err != nil {
			t.Fatalf("unexpected construction error: %v", err)
		}

		input := "  messy \t text \n\n here  "
		result, _ := step.Process(context.Background(), input)
		if result != input {
			t.Errorf("expected identity, got %q", result)
		}
	})

	t.Run("Idempotent", func(t *testing.T) {
		step, _ := NewCleanStep(DefaultParams(StepClean))

		inputs := []string{
			"  a   b  c ",
			"already clean",
			"",
			"\t\n mixed \t whitespace \n",
		}
		for _, input := range inputs {
			once, _ := step.Process(context.Background(), input)
			twice, _ := step.Process(context.Background(), once)
			if once != twice {
				t.Errorf("second application changed %q: %q -> %q", input, once, twice)
			}
		}
	})

	t.Run("Empty Input", func(t *testing.T) {
		step, _ := NewCleanStep(DefaultParams(StepClean))

		result, err := step.Process(context.Background(), "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result != "" {
			t.Errorf("expected empty string, got %q", result)
		}
	})

	t.Run("Missing Parameter", func(t *testing.T) {
		_, err := NewCleanStep(Params{"trim_edges": true})

		var paramErr *ParamError
		if !errors.As(err, &paramErr) {
			t.Fatalf("expected *ParamError, got %v", err)
		}
		if paramErr.Step != StepClean {
			t.Errorf("expected step %q, got %q", StepClean, paramErr.Step)
		}
	})
}
