package fuzzy

import (
	"log/slog"
	"strings"

	"github.com/antzucaro/matchr"
)

// digraphFolds maps spelling digraphs to the consonant actually pronounced.
// Applied before vowel stripping so "phone" and "fone" reduce identically.
var digraphFolds = [...][2]string{
	{"ph", "f"}, {"gh", "f"}, {"gn", "n"}, {"kn", "n"}, {"pn", "n"},
	{"wr", "r"}, {"ps", "s"}, {"wh", "w"}, {"ck", "k"}, {"dg", "j"},
	{"sc", "s"}, {"ce", "s"}, {"ci", "s"}, {"cy", "s"},
	{"ge", "j"}, {"gi", "j"}, {"gy", "j"},
}

const vowels = "aeiou"

// soundexExactScore is the score contribution of a Soundex code comparison:
// an exact code match counts as 0.8, a partial one as 0.8 × code similarity.
const soundexExactScore = 0.8

// PronCode reduces a word to its pronunciation skeleton: digraphs are folded
// to single consonants, interior vowels are stripped (the leading character
// survives), and consecutive duplicate letters collapse. The code is
// uppercase. Encoding is deterministic — equal words always yield equal codes.
func PronCode(word string) string {
	word = strings.ToLower(strings.TrimSpace(word))
	if word == "" {
		return ""
	}

	for _, fold := range digraphFolds {
		word = strings.ReplaceAll(word, fold[0], fold[1])
	}

	if len(word) > 1 {
		var b strings.Builder
		b.WriteByte(word[0])
		for i := 1; i < len(word); i++ {
			if !strings.ContainsRune(vowels, rune(word[i])) {
				b.WriteByte(word[i])
			}
		}
		word = b.String()
	}

	var b strings.Builder
	var prev byte
	for i := 0; i < len(word); i++ {
		if word[i] != prev {
			b.WriteByte(word[i])
			prev = word[i]
		}
	}
	return strings.ToUpper(b.String())
}

// SoundexCode returns the classic 4-character Soundex code for word, or ""
// when the word contains no letters.
func SoundexCode(word string) string {
	var letters strings.Builder
	for _, r := range strings.ToLower(word) {
		if r >= 'a' && r <= 'z' {
			letters.WriteRune(r)
		}
	}
	if letters.Len() == 0 {
		return ""
	}
	return matchr.Soundex(letters.String())
}

// EncodeWord returns the pronunciation code pair (PronCode, SoundexCode) for
// a word.
func EncodeWord(word string) (pron, soundex string) {
	return PronCode(word), SoundexCode(word)
}

// PhoneticScore rates how alike two words sound, in [0,1]. The score is the
// better of the two code comparisons: similarity of the pronunciation
// skeletons, or 0.8 for an exact Soundex match (0.8 × code similarity when
// the codes differ).
func PhoneticScore(a, b string) float64 {
	pronA, sdxA := EncodeWord(a)
	pronB, sdxB := EncodeWord(b)

	var pronScore float64
	if pronA != "" && pronB != "" {
		pronScore = Similarity(pronA, pronB)
	}

	var sdxScore float64
	switch {
	case sdxA == "" || sdxB == "":
		// no letters on one side; leave zero
	case sdxA == sdxB:
		sdxScore = soundexExactScore
	default:
		sdxScore = soundexExactScore * Similarity(sdxA, sdxB)
	}

	if pronScore > sdxScore {
		return pronScore
	}
	return sdxScore
}

// PhoneticMatch finds the candidate that sounds most like text.
//
// Comparison is keyed on the first word of text and of each candidate — for
// command phrases the verb carries the pronunciation errors worth absorbing
// ("klose tab" → "close tab"). Candidates scoring below threshold are
// rejected.
func (m *Matcher) PhoneticMatch(text string, candidates []string, threshold float64) (string, float64, bool) {
	if text == "" || len(candidates) == 0 {
		return "", 0, false
	}

	textWord := firstWord(text)
	best, bestScore := "", 0.0
	for _, c := range candidates {
		score := PhoneticScore(textWord, firstWord(c))
		if score > bestScore {
			best, bestScore = c, score
		}
	}

	if best == "" || bestScore < threshold {
		return "", 0, false
	}
	slog.Debug("phonetic match", "text", text, "candidate", best, "score", bestScore)
	return best, bestScore, true
}

func firstWord(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	if i := strings.IndexByte(s, ' '); i >= 0 {
		return s[:i]
	}
	return s
}
