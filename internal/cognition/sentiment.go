package cognition

import "strings"

// Score is a lexicon-based polarity estimate in [-1, 1]. It is recorded
// alongside each turn for analytics only and is never fed back into a
// prompt or used to steer routing.
func Score(text string) float64 {
	words := strings.Fields(strings.ToLower(text))
	if len(words) == 0 {
		return 0
	}

	var total float64
	for _, w := range words {
		w = strings.Trim(w, ".,!?;:\"'")
		if v, ok := polarityLexicon[w]; ok {
			total += v
		}
	}

	avg := total / float64(len(words))
	if avg > 1 {
		return 1
	}
	if avg < -1 {
		return -1
	}
	return avg
}

var polarityLexicon = map[string]float64{
	"good":       1,
	"great":      1,
	"excellent":  1,
	"wonderful":  1,
	"thanks":     1,
	"thank":      1,
	"perfect":    1,
	"love":       1,
	"happy":      1,
	"helpful":    1,
	"awesome":    1,
	"please":     0.3,
	"ok":         0.2,
	"okay":       0.2,
	"fine":       0.2,
	"bad":        -1,
	"terrible":   -1,
	"awful":      -1,
	"hate":       -1,
	"angry":      -1,
	"frustrated": -1,
	"annoyed":    -1,
	"broken":     -1,
	"wrong":      -0.6,
	"no":         -0.3,
	"not":        -0.3,
	"never":      -0.5,
	"confused":   -0.5,
	"slow":       -0.4,
	"stupid":     -1,
	"useless":    -1,
}
