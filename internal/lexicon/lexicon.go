// Package lexicon normalizes caller questions and derives the word sets used
// for keyword matching, tag extraction and relevance scoring.
package lexicon

import (
	"math"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// tagStopWords is the short list applied when deriving entry tags.
var tagStopWords = map[string]bool{
	"what": true, "when": true, "where": true, "how": true, "why": true,
	"is": true, "are": true, "the": true, "a": true, "an": true,
}

// scoreStopWords are dropped before relevance scoring.
var scoreStopWords = map[string]bool{
	"a": true, "an": true, "the": true, "is": true, "are": true, "was": true, "were": true,
	"be": true, "do": true, "does": true, "did": true, "can": true, "could": true,
	"will": true, "would": true, "should": true, "i": true, "me": true, "my": true,
	"we": true, "our": true, "you": true, "your": true, "it": true, "its": true,
	"to": true, "of": true, "in": true, "on": true, "at": true, "for": true,
	"and": true, "or": true, "what": true, "when": true, "where": true,
	"how": true, "why": true, "which": true, "who": true, "there": true,
	"this": true, "that": true, "with": true, "have": true, "has": true,
	"please": true,
}

// Normalize case-folds s, strips combining marks and collapses runs of
// whitespace to a single space.
func Normalize(s string) string {
	// Transformers and casers hold state and are built per call.
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}
	folded := cases.Fold().String(stripped)
	return strings.Join(strings.Fields(folded), " ")
}

// Words splits s into normalized words, treating anything that is not a
// letter or digit as a separator.
func Words(s string) []string {
	return strings.FieldsFunc(Normalize(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// Tokens returns the distinct content words of s in first-seen order.
func Tokens(s string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, w := range Words(s) {
		if scoreStopWords[w] || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

// Terms returns the words used for relevance scoring: the content words of
// s, or every distinct word when s consists only of stop words.
func Terms(s string) []string {
	if tokens := Tokens(s); len(tokens) > 0 {
		return tokens
	}
	var out []string
	seen := make(map[string]bool)
	for _, w := range Words(s) {
		if !seen[w] {
			seen[w] = true
			out = append(out, w)
		}
	}
	return out
}

// ExtractTags derives up to five tags from a question: words longer than
// three characters that are not stop words, de-duplicated.
func ExtractTags(question string) []string {
	tags := []string{}
	seen := make(map[string]bool)
	for _, w := range Words(question) {
		if len([]rune(w)) <= 3 || tagStopWords[w] || seen[w] {
			continue
		}
		seen[w] = true
		tags = append(tags, w)
		if len(tags) == 5 {
			break
		}
	}
	return tags
}

// Similarity is the cosine similarity of two token sets, in [0,1].
func Similarity(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	setA := make(map[string]bool, len(a))
	for _, w := range a {
		setA[w] = true
	}
	setB := make(map[string]bool, len(b))
	for _, w := range b {
		setB[w] = true
	}
	shared := 0
	for w := range setB {
		if setA[w] {
			shared++
		}
	}
	if shared == 0 {
		return 0
	}
	s := float64(shared) / math.Sqrt(float64(len(setA))*float64(len(setB)))
	if s > 1 {
		s = 1
	}
	return s
}

// ContainsAny reports whether any keyword occurs as a substring of the
// normalized text. Keywords are normalized the same way.
func ContainsAny(normalized string, keywords []string) bool {
	for _, k := range keywords {
		k = Normalize(k)
		if k != "" && strings.Contains(normalized, k) {
			return true
		}
	}
	return false
}
