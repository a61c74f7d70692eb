// Package moderation censors forbidden words in message content before it
// is persisted. Matching runs on a normalized text (lowercased, leet
// characters mapped back, punctuation stripped) so obfuscated variants of
// a word are still caught, while the replacement is applied to the
// original runes to preserve spacing.
package moderation

import (
	"unicode"

	"github.com/abadojack/whatlanggo"
	goahocorasick "github.com/anknown/ahocorasick"

	apperrors "libroreads/errors"
)

type Moderator struct {
	matcher      *goahocorasick.Machine
	censoredChar rune
}

// Result is the outcome of reviewing one message.
type Result struct {
	Content       string
	CensoredWords []string
	Lang          string
}

// NewModerator builds the Aho-Corasick automaton over the normalized word
// list. Building is the expensive part; Review is cheap and reusable.
func NewModerator(censoredWords []string, censoredChar rune) (Moderator, error) {
	if len(censoredWords) == 0 {
		return Moderator{}, apperrors.ErrEmptyWords
	}
	patterns := make([][]rune, len(censoredWords))
	for i, word := range censoredWords {
		normalized, _ := normalize([]rune(word))
		patterns[i] = normalized
	}

	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return Moderator{}, err
	}
	return Moderator{matcher: m, censoredChar: censoredChar}, nil
}

// Review censors forbidden patterns in content and tags the detected
// language of the original text.
func (m *Moderator) Review(content string) Result {
	info := whatlanggo.Detect(content)
	result := Result{Content: content, Lang: info.Lang.Iso6391()}

	origRunes := []rune(content)
	normalized, origIdx := normalize(origRunes)
	if len(normalized) == 0 {
		return result
	}

	spans := m.matcher.MultiPatternSearch(normalized, false)
	if len(spans) == 0 {
		return result
	}

	for _, span := range spans {
		start := span.Pos
		end := start + len(span.Word)
		if start < 0 || end > len(origIdx) {
			continue
		}
		result.CensoredWords = append(result.CensoredWords, string(span.Word))
		for i := origIdx[start]; i <= origIdx[end-1]; i++ {
			origRunes[i] = m.censoredChar
		}
	}

	result.Content = string(origRunes)
	return result
}

// normalize lowercases, maps leet characters back, and drops punctuation
// and spacing. The second return value maps each normalized rune back to
// its index in the input.
func normalize(input []rune) ([]rune, []int) {
	norm := make([]rune, 0, len(input))
	origIdx := make([]int, 0, len(input))
	for i, r := range input {
		clean := simplifyRune(r)
		if isNoise(clean) {
			continue
		}
		norm = append(norm, unicode.ToLower(clean))
		origIdx = append(origIdx, i)
	}
	return norm, origIdx
}

// simplifyRune maps common leet-speak characters back to their standard
// alphabet counterparts.
func simplifyRune(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3', '€':
		return 'e'
	case '1', '!', '|':
		return 'i'
	case '0':
		return 'o'
	case '5', '$':
		return 's'
	default:
		return r
	}
}

func isNoise(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)
}
