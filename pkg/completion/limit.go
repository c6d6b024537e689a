package completion

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// smsMaxChars is the longest body a single outbound message may carry.
const smsMaxChars = 1600

// Limiter enforces short spoken turns.
type Limiter struct {
	MaxChars     int
	MaxSentences int
}

func NewLimiter(maxChars, maxSentences int) Limiter {
	if maxChars <= 0 {
		maxChars = 420
	}
	if maxSentences <= 0 {
		maxSentences = 3
	}
	return Limiter{MaxChars: maxChars, MaxSentences: maxSentences}
}

// Apply returns text cut to the sentence and character limits and reports
// whether anything was removed.
func (l Limiter) Apply(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return text, false
	}
	out := truncateSentences(text, l.MaxSentences)
	out = truncateChars(out, l.MaxChars)
	return out, out != text
}

// truncateSentences keeps the first maxSentences sentences. A terminator only
// ends a sentence when followed by whitespace or the end of text, so "$1.50"
// stays intact.
func truncateSentences(text string, maxSentences int) string {
	if maxSentences <= 0 {
		return text
	}
	count := 0
	for i, r := range text {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		next := i + utf8.RuneLen(r)
		if next < len(text) {
			nr, _ := utf8.DecodeRuneInString(text[next:])
			if !unicode.IsSpace(nr) {
				continue
			}
		}
		count++
		if count >= maxSentences {
			return strings.TrimSpace(text[:next])
		}
	}
	return text
}

// truncateChars cuts at the last word boundary within max runes.
func truncateChars(text string, max int) string {
	if max <= 0 || utf8.RuneCountInString(text) <= max {
		return text
	}
	runes := []rune(text)[:max]
	cut := string(runes)
	if i := strings.LastIndexFunc(cut, unicode.IsSpace); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut)
}
