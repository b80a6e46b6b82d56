// Package funfact picks a light-hearted reply line for a sentiment label.
package funfact

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"

	"sentibot/pkg/analysis"
)

// DefaultResponse is returned for labels outside the category table.
const DefaultResponse = "Every message tells a story, and yours is somewhere in the middle."

var (
	jokes = []string{
		"Why don't skeletons fight each other? They don't have the guts!",
		"I'm reading a book about anti-gravity. It's impossible to put down!",
		"Why do cows wear bells? Because their horns don't work!",
	}
	facts = []string{
		"Did you know? Honey never spoils.",
		"A group of flamingos is called a 'flamboyance'.",
		"Bananas are berries, but strawberries aren't!",
	}
	quotes = []string{
		"Keep your face always toward the sunshine.",
		"The best way to predict the future is to create it.",
		"Believe you can and you're halfway there.",
	}
)

// Source yields a uniform index in [0, n). *rand.Rand satisfies it.
type Source interface {
	IntN(n int) int
}

// globalSource uses the process-wide math/rand/v2 generator, which is safe
// for concurrent use.
type globalSource struct{}

func (globalSource) IntN(n int) int { return rand.IntN(n) }

// Selector maps sentiment labels to categories and picks one entry at random.
// Its table is fixed at construction and safe for concurrent reads.
type Selector struct {
	table  map[analysis.Label][]string
	source Source
}

// Overrides replaces built-in categories; empty entries keep the defaults.
type Overrides struct {
	Positive []string
	Neutral  []string
	Negative []string
}

// New builds a selector. A nil source uses the process-wide generator.
func New(source Source, overrides Overrides) *Selector {
	if source == nil {
		source = globalSource{}
	}

	return &Selector{
		table: map[analysis.Label][]string{
			analysis.LabelPositive: pick(overrides.Positive, jokes),
			analysis.LabelNeutral:  pick(overrides.Neutral, facts),
			analysis.LabelNegative: pick(overrides.Negative, quotes),
		},
		source: source,
	}
}

// Lookup returns a copy of the candidates for label.
func (s *Selector) Lookup(label analysis.Label) ([]string, error) {
	candidates, ok := s.table[label]
	if !ok || len(candidates) == 0 {
		return nil, fmt.Errorf("%w: %q", analysis.ErrUnrecognizedSentimentLabel, label)
	}

	return slices.Clone(candidates), nil
}

// Select returns one random candidate for label, or DefaultResponse when the
// label has no category.
func (s *Selector) Select(label analysis.Label) string {
	candidates, ok := s.table[label]
	if !ok || len(candidates) == 0 {
		return DefaultResponse
	}

	return candidates[s.source.IntN(len(candidates))]
}

// pick returns the trimmed non-empty custom values, or fallback when none remain.
func pick(custom []string, fallback []string) []string {
	clean := make([]string, 0, len(custom))
	for _, value := range custom {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			clean = append(clean, trimmed)
		}
	}
	if len(clean) == 0 {
		return slices.Clone(fallback)
	}

	return clean
}
