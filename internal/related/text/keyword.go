package text

import (
	"fmt"
	"math"
	"sort"

	apperrors "github.com/Adithya-Monish-Kumar-K/related-content/pkg/errors"
)

// TermDensity is one row of the frequency table.
type TermDensity struct {
	Term  string `json:"term"`
	Count int    `json:"count"`
	// Density is the share of all tokens, as a rounded percentage.
	Density int `json:"density"`
}

// Densities returns every distinct token ordered by descending count.
// Equal counts keep first-occurrence order.
func Densities(tokens []string) ([]TermDensity, error) {
	if len(tokens) == 0 {
		return nil, fmt.Errorf("computing term densities: %w", apperrors.ErrEmptyInput)
	}
	counts := make(map[string]int, len(tokens))
	order := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if counts[tok] == 0 {
			order = append(order, tok)
		}
		counts[tok]++
	}

	total := len(tokens)
	table := make([]TermDensity, len(order))
	for i, term := range order {
		table[i] = TermDensity{
			Term:    term,
			Count:   counts[term],
			Density: density(counts[term], total),
		}
	}
	sort.SliceStable(table, func(i, j int) bool {
		return table[i].Count > table[j].Count
	})
	return table, nil
}

// ExtractKeyword returns the most frequent token. It fails with
// ErrEmptyInput when there are no tokens.
func ExtractKeyword(tokens []string) (string, error) {
	table, err := Densities(tokens)
	if err != nil {
		return "", err
	}
	return table[0].Term, nil
}

// density rounds half away from zero.
func density(count, total int) int {
	return int(math.Round(float64(count) / float64(total) * 100))
}
