package assemble

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/ppiankov/triggerscope/internal/util"
)

// sentences splits text into verbatim spans. A span ends at '.', '!' or '?'
// followed by whitespace, or at a line break. Spans are sliced from text,
// never rebuilt, so each one is a substring of the input.
func sentences(text string) []string {
	var out []string
	start := 0

	flush := func(end int) {
		span := strings.TrimSpace(text[start:end])
		if span != "" {
			out = append(out, span)
		}
		start = end
	}

	for i, r := range text {
		switch r {
		case '\n', '\r':
			flush(i)
		case '.', '!', '?':
			next := i + utf8.RuneLen(r)
			if next >= len(text) {
				continue
			}
			nr, _ := utf8.DecodeRuneInString(text[next:])
			if unicode.IsSpace(nr) {
				flush(next)
			}
		}
	}
	flush(len(text))

	return out
}

// BestExcerpt returns the sentence of content that covers the most title
// tokens, capped at maxLen bytes on a word boundary. Ties keep the earlier
// sentence. The result is always a substring of content.
func BestExcerpt(content, title string, maxLen int) string {
	titleTokens := util.TokenSet(title)

	best := ""
	bestScore := -1.0
	for _, s := range sentences(content) {
		score := util.Coverage(titleTokens, util.TokenSet(s))
		if score > bestScore {
			best, bestScore = s, score
		}
	}

	return capQuote(best, maxLen)
}

// capQuote cuts s to at most maxLen bytes, backing off to the last space.
// Nothing is appended; a capped quote stays verbatim.
func capQuote(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}

	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	if sp := strings.LastIndexFunc(s[:cut], unicode.IsSpace); sp > 0 {
		cut = sp
	}
	return strings.TrimRightFunc(s[:cut], func(r rune) bool {
		return unicode.IsSpace(r) || r == ',' || r == ';' || r == ':'
	})
}
