// Package score implements pronunciation scoring: it normalizes a
// transcribed utterance and a set of acceptable kana readings, computes a
// normalized edit-distance similarity, and classifies the result into a
// graded feedback taxonomy.
//
// Everything in this package is a pure function — fully deterministic given
// its inputs and free of side effects — so it is unit-testable without any
// capture machinery.
package score

import (
	"strings"
	"unicode/utf8"

	"github.com/antzucaro/matchr"
)

// Feedback is the graded verdict for a scored utterance.
type Feedback string

const (
	// Correct means the utterance matches a reading (similarity ≥ the
	// correct threshold).
	Correct Feedback = "correct"

	// Close means the utterance nearly matches (similarity in the close
	// band). Close counts toward correct in session statistics but carries
	// its own label for display.
	Close Feedback = "close"

	// Incorrect means the utterance does not match any reading.
	Incorrect Feedback = "incorrect"
)

// Default feedback thresholds. The bands are total and non-overlapping:
// similarity ≥ DefaultCorrectThreshold is correct, ≥ DefaultCloseThreshold
// is close, anything below is incorrect. Boundary values are exact.
const (
	DefaultCorrectThreshold = 90
	DefaultCloseThreshold   = 70
)

// Result is the outcome of scoring one transcript against one reading.
type Result struct {
	// Similarity is the normalized edit-distance score in [0, 100].
	Similarity int

	// Feedback is the graded verdict derived from Similarity.
	Feedback Feedback

	// Reading is the acceptable reading the transcript was scored against
	// (the best-matching one for [Scorer.BestMatch]).
	Reading string
}

// Option is a functional option for configuring a [Scorer].
type Option func(*Scorer)

// WithThresholds overrides the feedback band boundaries. correct must be
// greater than close; values outside (0, 100] fall back to the defaults.
func WithThresholds(correct, close int) Option {
	return func(s *Scorer) {
		if correct > close && close > 0 && correct <= 100 {
			s.correctThreshold = correct
			s.closeThreshold = close
		}
	}
}

// Scorer grades transcripts against known-correct readings. All methods are
// safe for concurrent use — the Scorer is read-only after construction.
type Scorer struct {
	correctThreshold int
	closeThreshold   int
}

// New returns a Scorer configured with the supplied options. Default
// thresholds are 90 for correct and 70 for close.
func New(opts ...Option) *Scorer {
	s := &Scorer{
		correctThreshold: DefaultCorrectThreshold,
		closeThreshold:   DefaultCloseThreshold,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Pronunciation scores transcript against a single reading.
//
// Both strings are normalized first (see [Normalize]); similarity is
//
//	round(100 * (1 - levenshtein(a, b) / max(len(a), len(b))))
//
// clamped to [0, 100], computed over runes. An exact match after
// normalization always yields 100.
func (s *Scorer) Pronunciation(transcript, reading string) Result {
	a := Normalize(transcript)
	b := Normalize(reading)

	sim := similarity(a, b)
	return Result{
		Similarity: sim,
		Feedback:   s.classify(sim),
		Reading:    reading,
	}
}

// BestMatch scores transcript against every reading and returns the result
// for the best-matching one (maximum similarity; ties broken by earliest
// index). It returns ok == false when there is nothing to score — an
// empty or whitespace-only transcript, or no readings — and the caller must
// not advance any state in that case.
func (s *Scorer) BestMatch(transcript string, readings []string) (Result, bool) {
	if strings.TrimSpace(transcript) == "" || len(readings) == 0 {
		return Result{}, false
	}

	best := s.Pronunciation(transcript, readings[0])
	for _, r := range readings[1:] {
		if res := s.Pronunciation(transcript, r); res.Similarity > best.Similarity {
			best = res
		}
	}
	return best, true
}

// classify maps a similarity score onto the feedback taxonomy.
func (s *Scorer) classify(sim int) Feedback {
	switch {
	case sim >= s.correctThreshold:
		return Correct
	case sim >= s.closeThreshold:
		return Close
	default:
		return Incorrect
	}
}

// similarity computes the normalized edit-distance score for two
// already-normalized strings.
func similarity(a, b string) int {
	if a == b {
		return 100
	}
	la := utf8.RuneCountInString(a)
	lb := utf8.RuneCountInString(b)
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 100
	}

	dist := matchr.Levenshtein(a, b)
	sim := int(100*(1-float64(dist)/float64(longest)) + 0.5)
	if sim < 0 {
		sim = 0
	}
	if sim > 100 {
		sim = 100
	}
	return sim
}
