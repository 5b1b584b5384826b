package assemble

import "github.com/ppiankov/triggerscope/internal/util"

var positiveWords = map[string]bool{
	"love": true, "loved": true, "great": true, "amazing": true, "finally": true, "easy": true,
	"easier": true, "fast": true, "faster": true, "happy": true, "recommend": true, "best": true,
	"helpful": true, "reliable": true, "saved": true, "saves": true, "excellent": true, "trust": true,
	"wish": true, "hope": true, "want": true,
}

var negativeWords = map[string]bool{
	"hate": true, "hated": true, "frustrated": true, "frustrating": true, "annoying": true,
	"worried": true, "worry": true, "afraid": true, "scared": true, "terrible": true, "awful": true,
	"slow": true, "broken": true, "expensive": true, "nightmare": true, "lost": true, "losing": true,
	"waste": true, "never": true, "cant": true, "wont": true, "fail": true, "failed": true,
	"stress": true, "stressed": true, "confusing": true, "risk": true, "penalty": true,
}

// Sentiment labels text positive, negative or neutral by lexicon hits
func Sentiment(text string) string {
	pos, neg := 0, 0
	for _, tok := range util.Tokens(text) {
		switch {
		case positiveWords[tok]:
			pos++
		case negativeWords[tok]:
			neg++
		}
	}
	switch {
	case neg > pos:
		return "negative"
	case pos > neg:
		return "positive"
	}
	return "neutral"
}
