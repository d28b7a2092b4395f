package textpipe

import (
	"context"
	"regexp"
	"strings"
)

var (
	horizontalRun = regexp.MustCompile(`[ \t]+`)
	blankLineRun  = regexp.MustCompile(`\n[ \t]*(?:\n[ \t]*)+`)
	whitespaceRun = regexp.MustCompile(`\s+`)
)

// CleanStep trims and normalizes whitespace. It is idempotent: applying it
// twice with the same parameters changes nothing on the second pass.
//
// Parameters:
//   - trim_edges: strip leading and trailing whitespace
//   - remove_extra_spaces: collapse whitespace runs to a single space
//   - preserve_newlines: with remove_extra_spaces, collapse horizontal
//     whitespace only and normalize blank-line runs to exactly one blank
//     line between paragraphs
type CleanStep struct {
	params Params
}

// NewCleanStep constructs the clean step, failing fast if a required
// parameter is absent.
func NewCleanStep(params Params) (Step, error) {
	if err := params.require(StepClean, "remove_extra_spaces", "preserve_newlines", "trim_edges"); err != nil {
		return nil, err
	}
	return &CleanStep{params: params.Clone()}, nil
}

// Name returns the registry name of this step.
func (s *CleanStep) Name() Name { return StepClean }

// Process cleans the input text according to the step's parameters.
func (s *CleanStep) Process(_ context.Context, text string) (string, error) {
	result := text

	if s.params["trim_edges"] {
		result = strings.TrimSpace(result)
	}

	if s.params["remove_extra_spaces"] {
		if s.params["preserve_newlines"] {
			result = horizontalRun.ReplaceAllString(result, " ")
			result = blankLineRun.ReplaceAllString(result, "\n\n")
		} else {
			result = whitespaceRun.ReplaceAllString(result, " ")
		}
	}

	return result, nil
}
