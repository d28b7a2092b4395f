package textpipe

import (
	"context"
	"regexp"
	"strings"
)

// punctuation is the ASCII punctuation set stripped by remove_punctuation.
const punctuation = "!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~"

var (
	digitRun = regexp.MustCompile(`\d+`)
	nonAlnum = regexp.MustCompile(`[^a-zA-Z0-9\s]`)
)

// TransformStep rewrites the text itself: case folding and character
// stripping. All four flags are independent and compose in a fixed order:
// lowercase, then punctuation, then digit runs, then special characters.
//
// Parameters:
//   - to_lowercase: lowercase the whole text
//   - remove_punctuation: strip ASCII punctuation characters
//   - remove_numbers: strip digit runs
//   - remove_special_chars: strip everything outside letters, digits,
//     and whitespace
type TransformStep struct {
	params Params
}

// NewTransformStep constructs the transform step, failing fast if a
// required parameter is absent.
func NewTransformStep(params Params) (Step, error) {
	if err := params.require(StepTransform, "to_lowercase", "remove_punctuation", "remove_numbers", "remove_special_chars"); err != nil {
		return nil, err
	}
	return &TransformStep{params: params.Clone()}, nil
}

// Name returns the registry name of this step.
func (s *TransformStep) Name() Name { return StepTransform }

// Process transforms the input text according to the step's parameters.
// With every flag false it is the identity.
func (s *TransformStep) Process(_ context.Context, text string) (string, error) {
	result := text

	if s.params["to_lowercase"] {
		result = strings.ToLower(result)
	}

	if s.params["remove_punctuation"] {
		result = strings.Map(func(r rune) rune {
			if strings.ContainsRune(punctuation, r) {
				return -1
			}
			return r
		}, result)
	}

	if s.params["remove_numbers"] {
		result = digitRun.ReplaceAllString(result, "")
	}

	if s.params["remove_special_chars"] {
		result = nonAlnum.ReplaceAllString(result, "")
	}

	return result, nil
}
