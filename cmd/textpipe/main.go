// Command textpipe processes text through a configurable pipeline of
// named steps and prints the result.
//
// Usage:
//
//	textpipe "Some text to process"
//	textpipe -c config.json -s clean,analyze "Some text"
//	textpipe -i
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"

	"github.com/zoobzio/textpipe"
)

var version = "0.1.0"

type options struct {
	configPath    string
	steps         string
	errorHandling string
	interactive   bool
	verbose       bool
	asJSON        bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "textpipe [text]",
		Short: "Process text through configurable steps",
		Long: `textpipe runs text through an ordered sequence of named processing
steps (clean, transform, analyze) and reports the processed text together
with the run's statistics.

Step order, per-step parameters, and the failure policy come from a JSON
configuration file; command-line flags override it.`,
		Version: version,
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args, opts)
		},
	}

	cmd.CompletionOptions.DisableDefaultCmd = true
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "JSON configuration file")
	cmd.Flags().StringVarP(&opts.steps, "steps", "s", "", "comma-separated step order, overrides the configuration")
	cmd.Flags().StringVarP(&opts.errorHandling, "error-handling", "e", "", "failure policy: continue or stop")
	cmd.Flags().BoolVarP(&opts.interactive, "interactive", "i", false, "read lines from stdin until quit/exit/q")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "log per-step detail and print step reports")
	cmd.Flags().Bool("json", false, "print results as JSON")

	return cmd
}

func run(cmd *cobra.Command, args []string, opts *options) error {
	opts.asJSON, _ = cmd.Flags().GetBool("json")
	logger := newLogger(cmd.ErrOrStderr(), opts.verbose)

	cfg, err := buildConfig(opts)
	if err != nil {
		return err
	}

	pipeline, err := textpipe.New(cfg)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	if opts.verbose {
		if err := pipeline.OnStepComplete(func(_ context.Context, event textpipe.StepEvent) error {
			logger.Debug("step complete",
				"step", event.StepName,
				"number", event.StepNumber,
				"success", event.Success,
				"duration", event.Duration,
				"error", event.Error)
			return nil
		}); err != nil {
			return err
		}
	}

	if opts.interactive {
		return runInteractive(cmd, pipeline, opts, logger)
	}

	if len(args) == 0 {
		return fmt.Errorf("text argument required unless --interactive is set")
	}

	return processText(cmd, pipeline, args[0], opts, logger)
}

// buildConfig loads the configuration file (if any) and applies the
// command-line overrides on top.
func buildConfig(opts *options) (*textpipe.Config, error) {
	cfg := &textpipe.Config{}
	if opts.configPath != "" {
		loaded, err := textpipe.LoadConfig(opts.configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if opts.steps != "" {
		cfg.Steps = splitSteps(opts.steps)
	}
	if opts.errorHandling != "" {
		cfg.ErrorHandling = textpipe.Policy(opts.errorHandling)
	}

	return cfg, nil
}

// splitSteps parses a comma-separated step list, trimming whitespace and
// dropping empty entries.
func splitSteps(list string) []textpipe.Name {
	var steps []textpipe.Name
	for _, s := range strings.Split(list, ",") {
		if s = strings.TrimSpace(s); s != "" {
			steps = append(steps, s)
		}
	}
	return steps
}

func runInteractive(cmd *cobra.Command, pipeline *textpipe.Pipeline, opts *options, logger *slog.Logger) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "textpipe interactive mode (quit to exit)")

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}

		line := scanner.Text()
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "quit", "exit", "q":
			return nil
		case "":
			continue
		}

		if err := processText(cmd, pipeline, line, opts, logger); err != nil {
			logger.Error("processing failed", "error", err)
		}
	}
	return scanner.Err()
}

func processText(cmd *cobra.Command, pipeline *textpipe.Pipeline, text string, opts *options, logger *slog.Logger) error {
	start := time.Now()
	result, err := pipeline.Process(cmd.Context(), text)
	if err != nil {
		// Stop policy: the partial result is still worth showing.
		if result != nil {
			printResult(cmd.OutOrStdout(), result, opts)
		}
		return err
	}

	logger.Debug("run complete",
		"applied", len(result.StepsApplied),
		"skipped", len(result.StepsSkipped),
		"elapsed", time.Since(start))

	printResult(cmd.OutOrStdout(), result, opts)
	return nil
}

func printResult(w io.Writer, result *textpipe.Result, opts *options) {
	if opts.asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		_ = enc.Encode(result) //nolint:errcheck
		return
	}

	fmt.Fprintf(w, "processed: %s\n", result.ProcessedText)
	fmt.Fprintf(w, "steps applied: %s\n", strings.Join(result.StepsApplied, ", "))
	if len(result.StepsSkipped) > 0 {
		fmt.Fprintf(w, "steps skipped: %s\n", strings.Join(result.StepsSkipped, ", "))
	}
	for _, e := range result.Errors {
		fmt.Fprintf(w, "error: %s\n", e)
	}
	if len(result.Analysis) > 0 {
		fmt.Fprintln(w, "analysis:")
		for _, key := range analysisKeys(result.Analysis) {
			fmt.Fprintf(w, "  %s: %v\n", key, result.Analysis[key])
		}
	}
	fmt.Fprintf(w, "elapsed: %s\n", result.Duration)

	if opts.verbose {
		for _, report := range result.Reports {
			status := "ok"
			if !report.Success {
				status = "failed: " + report.Error
			}
			fmt.Fprintf(w, "  step %s (%s) %s\n", report.StepName, report.Duration, status)
		}
	}
}

// analysisKeys returns the metric keys in a stable display order.
func analysisKeys(analysis map[string]any) []string {
	order := []string{
		textpipe.MetricWordCount,
		textpipe.MetricCharacterCount,
		textpipe.MetricCharacterCountNoSpace,
		textpipe.MetricSentenceCount,
		textpipe.MetricParagraphCount,
		textpipe.MetricAverageWordLength,
		textpipe.MetricReadingLevel,
		textpipe.MetricFleschScore,
	}

	keys := make([]string, 0, len(analysis))
	for _, key := range order {
		if _, ok := analysis[key]; ok {
			keys = append(keys, key)
		}
	}
	// Third-party steps may report metrics outside the known set.
	for key := range analysis {
		known := false
		for _, k := range order {
			if k == key {
				known = true
				break
			}
		}
		if !known {
			keys = append(keys, key)
		}
	}
	return keys
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.Kitchen,
	}))
}
