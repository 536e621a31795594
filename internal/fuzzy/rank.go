package fuzzy

import (
	"sort"
	"strings"

	"github.com/antzucaro/matchr"
)

// Rank orders candidates by how plausibly text could be a mishearing of
// them, for building suggestion lists. Candidates whose Double Metaphone
// codes overlap with the input are ranked first (phonetic agreement is
// stronger evidence than spelling closeness), then by Jaro-Winkler
// similarity on the full strings. Up to n results are returned; candidates
// with a Jaro-Winkler score below 0.5 are omitted.
func Rank(text string, candidates []string, n int) []Scored {
	if text == "" || len(candidates) == 0 || n <= 0 {
		return nil
	}
	text = strings.ToLower(strings.TrimSpace(text))
	inputCodes := metaphoneCodes(text)

	type ranked struct {
		Scored
		phonetic bool
	}
	var all []ranked
	for _, c := range candidates {
		lower := strings.ToLower(c)
		jw := matchr.JaroWinkler(text, lower, false)
		if jw < 0.5 {
			continue
		}
		all = append(all, ranked{
			Scored:   Scored{Candidate: c, Score: jw},
			phonetic: codesOverlap(inputCodes, metaphoneCodes(lower)),
		})
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].phonetic != all[j].phonetic {
			return all[i].phonetic
		}
		return all[i].Score > all[j].Score
	})

	if len(all) > n {
		all = all[:n]
	}
	out := make([]Scored, len(all))
	for i, r := range all {
		out[i] = r.Scored
	}
	return out
}

// metaphoneCodes returns the union of Double Metaphone codes for every word
// in s. Empty codes are excluded.
func metaphoneCodes(s string) map[string]struct{} {
	codes := make(map[string]struct{})
	for _, w := range strings.Fields(s) {
		p, sec := matchr.DoubleMetaphone(w)
		if p != "" {
			codes[p] = struct{}{}
		}
		if sec != "" {
			codes[sec] = struct{}{}
		}
	}
	return codes
}

func codesOverlap(a, b map[string]struct{}) bool {
	if len(a) > len(b) {
		a, b = b, a
	}
	for code := range a {
		if _, ok := b[code]; ok {
			return true
		}
	}
	return false
}
