package textpipe

import (
	"context"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Analysis metric keys. The analyze step reports metrics under these keys
// in Result.Analysis; each is gated by the parameter of the same concern.
const (
	MetricWordCount             = "word_count"
	MetricCharacterCount        = "character_count"
	MetricCharacterCountNoSpace = "character_count_no_spaces"
	MetricSentenceCount         = "sentence_count"
	MetricParagraphCount        = "paragraph_count"
	MetricAverageWordLength     = "average_word_length"
	MetricReadingLevel          = "reading_level"
	MetricFleschScore           = "flesch_score"
)

// Reading level labels produced by the analyze step. The label is derived
// from the fraction of words longer than six characters and is monotonic
// in that fraction: Basic < Intermediate < Advanced.
const (
	ReadingLevelBasic        = "Basic"
	ReadingLevelIntermediate = "Intermediate"
	ReadingLevelAdvanced     = "Advanced"
	ReadingLevelUnknown      = "Unknown"
)

var sentenceEnd = regexp.MustCompile(`[.!?]+`)

// AnalyzeStep produces metrics without altering the text: its Process is
// the identity. Metrics are computed over the text the step receives, so
// an analyze step ordered after transform sees the transformed text —
// with punctuation stripped, the sentence count degrades to one.
//
// Parameters: count_words, count_characters, count_sentences,
// count_paragraphs, average_word_length, reading_level. Each gates the
// metric of the same name; average_word_length additionally requires
// count_words, and the Flesch score requires count_words and
// count_sentences.
type AnalyzeStep struct {
	params Params
}

// NewAnalyzeStep constructs the analyze step, failing fast if a required
// parameter is absent.
func NewAnalyzeStep(params Params) (Step, error) {
	err := params.require(StepAnalyze,
		"count_words", "count_characters", "count_sentences",
		"count_paragraphs", "average_word_length", "reading_level")
	if err != nil {
		return nil, err
	}
	return &AnalyzeStep{params: params.Clone()}, nil
}

// Name returns the registry name of this step.
func (s *AnalyzeStep) Name() Name { return StepAnalyze }

// Process returns the text unchanged. Analysis happens through Analyze.
func (s *AnalyzeStep) Process(_ context.Context, text string) (string, error) {
	return text, nil
}

// Analyze computes the enabled metrics over text.
func (s *AnalyzeStep) Analyze(text string) map[string]any {
	analysis := make(map[string]any)
	words := strings.Fields(text)

	if s.params["count_characters"] {
		analysis[MetricCharacterCount] = utf8.RuneCountInString(text)
		analysis[MetricCharacterCountNoSpace] = utf8.RuneCountInString(strings.ReplaceAll(text, " ", ""))
	}

	if s.params["count_words"] {
		analysis[MetricWordCount] = len(words)

		if s.params["average_word_length"] && len(words) > 0 {
			total := 0
			for _, word := range words {
				total += utf8.RuneCountInString(word)
			}
			analysis[MetricAverageWordLength] = round2(float64(total) / float64(len(words)))
		}
	}

	sentences := splitSentences(text)
	if s.params["count_sentences"] {
		analysis[MetricSentenceCount] = len(sentences)
	}

	if s.params["count_paragraphs"] {
		count := 0
		for _, p := range strings.Split(text, "\n\n") {
			if strings.TrimSpace(p) != "" {
				count++
			}
		}
		analysis[MetricParagraphCount] = count
	}

	if s.params["reading_level"] {
		analysis[MetricReadingLevel] = readingLevel(words)

		if s.params["count_words"] && s.params["count_sentences"] && len(words) > 0 && len(sentences) > 0 {
			analysis[MetricFleschScore] = fleschScore(words, sentences)
		}
	}

	return analysis
}

// splitSentences splits on runs of sentence-ending punctuation and keeps
// the non-empty fragments.
func splitSentences(text string) []string {
	var sentences []string
	for _, s := range sentenceEnd.Split(text, -1) {
		if strings.TrimSpace(s) != "" {
			sentences = append(sentences, strings.TrimSpace(s))
		}
	}
	return sentences
}

// readingLevel classifies text by the fraction of words longer than six
// characters: above 30% Advanced, above 15% Intermediate, otherwise
// Basic. With no words the level is Unknown.
func readingLevel(words []string) string {
	if len(words) == 0 {
		return ReadingLevelUnknown
	}

	long := 0
	for _, word := range words {
		if utf8.RuneCountInString(word) > 6 {
			long++
		}
	}

	fraction := float64(long) / float64(len(words))
	switch {
	case fraction > 0.30:
		return ReadingLevelAdvanced
	case fraction > 0.15:
		return ReadingLevelIntermediate
	default:
		return ReadingLevelBasic
	}
}

// fleschScore approximates the Flesch Reading Ease score from average
// sentence length and average syllables per word.
func fleschScore(words, sentences []string) float64 {
	avgSentenceLength := float64(len(words)) / float64(len(sentences))

	totalSyllables := 0
	for _, word := range words {
		totalSyllables += countSyllables(word)
	}
	avgSyllables := float64(totalSyllables) / float64(len(words))

	return round2(206.835 - 1.015*avgSentenceLength - 84.6*avgSyllables)
}

// countSyllables approximates syllable count by counting vowel runs, with
// an adjustment for a trailing silent 'e'. Never returns less than one.
func countSyllables(word string) int {
	word = strings.ToLower(word)

	count := 0
	prevVowel := false
	for _, r := range word {
		vowel := strings.ContainsRune("aeiouy", r)
		if vowel && !prevVowel {
			count++
		}
		prevVowel = vowel
	}

	if strings.HasSuffix(word, "e") && count > 1 {
		count--
	}

	if count < 1 {
		count = 1
	}
	return count
}

// round2 rounds to two decimal places.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
