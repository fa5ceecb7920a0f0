// Package words manages the guess dictionary and the secret-word pool.
//
// A Dictionary holds two lists:
//   - "answers": the pool daily secret words are drawn from.
//   - "allowed": every word accepted as a guess (always includes answers).
//
// The allowed list is kept sorted lexicographically so the puzzle generator
// can partition it around a secret word with binary search.
//
// Constraints:
//   - Words must be 5 alphabetic letters (a-z).
//   - Lists are normalized to lowercase and deduplicated.
package words

import (
	"sort"
	"strings"

	"github.com/samber/lo"
)

// WordLength is the fixed length of every word in the game.
const WordLength = 5

// Dictionary is an immutable word-list pair built by New.
type Dictionary struct {
	answers    []string            // secret-word pool
	sorted     []string            // allowed words, lexicographic order
	allowedSet map[string]struct{} // answers ∪ guesses
}

// New builds a Dictionary from an answers list and an allowed list.
// Both lists are normalized; the allowed list always absorbs the answers.
func New(answers, allowed []string) *Dictionary {
	ans := normalize(answers)
	all := normalize(append(append([]string{}, allowed...), ans...))
	sort.Strings(all)

	return &Dictionary{
		answers:    ans,
		sorted:     all,
		allowedSet: lo.SliceToMap(all, func(w string) (string, struct{}) { return w, struct{}{} }),
	}
}

// normalize lowercases, trims, filters to valid 5-letter words, and dedupes.
func normalize(list []string) []string {
	cleaned := lo.FilterMap(list, func(w string, _ int) (string, bool) {
		w = strings.TrimSpace(strings.ToLower(w))
		return w, len(w) == WordLength && isAlpha(w)
	})
	return lo.Uniq(cleaned)
}

// isAlpha reports whether s is all lowercase ASCII letters.
func isAlpha(s string) bool {
	for _, r := range s {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}

// IsAllowed reports whether w is a valid guess (answers ∪ guesses).
func (d *Dictionary) IsAllowed(w string) bool {
	_, ok := d.allowedSet[strings.ToLower(w)]
	return ok
}

// Answers returns the secret-word pool.
func (d *Dictionary) Answers() []string { return d.answers }

// Sorted returns all allowed words in lexicographic order.
// Callers must not mutate the returned slice.
func (d *Dictionary) Sorted() []string { return d.sorted }

// Below returns the allowed words strictly less than w, in order.
// w itself need not be in the dictionary.
func (d *Dictionary) Below(w string) []string {
	i := sort.SearchStrings(d.sorted, w)
	return d.sorted[:i]
}

// Above returns the allowed words strictly greater than w, in order.
func (d *Dictionary) Above(w string) []string {
	i := sort.SearchStrings(d.sorted, w)
	for i < len(d.sorted) && d.sorted[i] == w {
		i++
	}
	return d.sorted[i:]
}

// CountAround returns how many allowed words sort strictly before and
// strictly after w. Used by the generator's data-sufficiency check.
func (d *Dictionary) CountAround(w string) (below, above int) {
	return len(d.Below(w)), len(d.Above(w))
}

// Stats returns counts of loaded words: (answers, allowed).
func (d *Dictionary) Stats() (answersCount, allowedCount int) {
	return len(d.answers), len(d.sorted)
}
