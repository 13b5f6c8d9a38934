// Package profanity masks offensive words in player guesses before they are
// shown on the projector or written to the guess log.
package profanity

import (
	"regexp"
	"strings"
	"unicode"
)

// defaultWords is the built-in block list. Matching is whole-word and case-insensitive.
var defaultWords = []string{
	"arse", "arsehole", "ass", "asshole", "bastard", "bitch", "bollocks",
	"bullshit", "crap", "cunt", "damn", "dick", "dickhead", "fuck", "fucker",
	"fucking", "goddamn", "motherfucker", "piss", "prick", "pussy", "shit",
	"shitty", "slut", "twat", "wanker", "whore",
}

var wordPattern = regexp.MustCompile(`[\p{L}\p{N}_]+`)

// Filter replaces every maskable character of a blocked word with '*'.
// A Filter is immutable after construction and safe for concurrent use.
type Filter struct {
	words map[string]struct{}
}

// New returns a Filter using the built-in list plus extra words.
func New(extra ...string) *Filter {
	f := &Filter{words: make(map[string]struct{}, len(defaultWords)+len(extra))}
	for _, w := range defaultWords {
		f.words[w] = struct{}{}
	}
	for _, w := range extra {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			f.words[w] = struct{}{}
		}
	}
	return f
}

// IsProfane reports whether word is on the block list.
func (f *Filter) IsProfane(word string) bool {
	_, ok := f.words[strings.ToLower(word)]
	return ok
}

// Clean masks blocked words in s and leaves everything else untouched.
func (f *Filter) Clean(s string) string {
	return wordPattern.ReplaceAllStringFunc(s, func(word string) string {
		if !f.IsProfane(word) {
			return word
		}
		return strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
				return '*'
			}
			return r
		}, word)
	})
}
