package textpipe

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

// Policy controls how a pipeline reacts to a failing step.
type Policy string

// The two failure policies.
const (
	// PolicyContinue skips the failing step, records the failure in the
	// Result, and proceeds with the text unchanged.
	PolicyContinue Policy = "continue"

	// PolicyStop aborts the run at the first failure and returns the
	// error to the caller along with the partial Result.
	PolicyStop Policy = "stop"
)

func (p Policy) valid() bool {
	return p == PolicyContinue || p == PolicyStop
}

// Config describes one pipeline: which steps to run, in what order, with
// what per-step parameters, and under which failure policy. Duplicate step
// names are permitted; each invocation is independent. A Config is read
// once at pipeline construction and never mutated afterwards.
type Config struct {
	Steps         []Name          `json:"steps"`
	ErrorHandling Policy          `json:"error_handling"`
	StepParams    map[Name]Params `json:"step_params"`
}

// DefaultSteps is the step order used when a configuration names none.
func DefaultSteps() []Name {
	return []Name{StepClean, StepTransform, StepAnalyze}
}

// ParseConfig decodes a JSON configuration document. The schema is strict:
// unknown top-level fields are rejected. A missing steps list falls back
// to DefaultSteps and a missing error_handling to PolicyContinue; an
// invalid error_handling value is a configuration error.
func ParseConfig(data []byte) (*Config, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadConfig reads and parses a JSON configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return ParseConfig(data)
}

// clone returns a deep copy so a Pipeline's view of its configuration
// cannot change after construction.
func (c *Config) clone() *Config {
	out := &Config{
		Steps:         append([]Name{}, c.Steps...),
		ErrorHandling: c.ErrorHandling,
	}
	if c.Steps == nil {
		out.Steps = nil
	}
	if c.StepParams != nil {
		out.StepParams = make(map[Name]Params, len(c.StepParams))
		for name, params := range c.StepParams {
			out.StepParams[name] = params.Clone()
		}
	}
	return out
}

// normalize fills in documented defaults for absent fields and validates
// the failure policy. A nil steps list means "not specified" and falls
// back to DefaultSteps; an explicitly empty list stays empty and the run
// returns its input unchanged.
func (c *Config) normalize() error {
	if c.Steps == nil {
		c.Steps = DefaultSteps()
	}
	if c.ErrorHandling == "" {
		c.ErrorHandling = PolicyContinue
	}
	if !c.ErrorHandling.valid() {
		return fmt.Errorf("%w %q (valid: %s, %s)", ErrInvalidPolicy, c.ErrorHandling, PolicyContinue, PolicyStop)
	}
	return nil
}

// DefaultParams returns the documented default parameter set for a
// built-in step. Steps the library does not know default to an empty set;
// registered third-party steps supply their own defaults through their
// factory's validation.
func DefaultParams(name Name) Params {
	switch name {
	case StepClean:
		return Params{
			"remove_extra_spaces": true,
			"preserve_newlines":   false,
			"trim_edges":          true,
		}
	case StepTransform:
		return Params{
			"to_lowercase":         true,
			"remove_punctuation":   true,
			"remove_numbers":       false,
			"remove_special_chars": false,
		}
	case StepAnalyze:
		return Params{
			"count_words":         true,
			"count_characters":    true,
			"count_sentences":     true,
			"count_paragraphs":    true,
			"average_word_length": true,
			"reading_level":       true,
		}
	default:
		return Params{}
	}
}

// resolveParams merges the documented defaults for name with the user
// overrides from the configuration. Overrides win.
func (c *Config) resolveParams(name Name) Params {
	params := DefaultParams(name)
	for k, v := range c.StepParams[name] {
		params[k] = v
	}
	return params
}
