package command

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// Similarity returns the difflib ratio between a and b, compared character
// by character. The result is in [0, 1]; identical strings score 1.
func Similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	return difflib.NewMatcher(splitChars(a), splitChars(b)).Ratio()
}

func splitChars(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "")
}

// closest scores every candidate against utterance and returns the index of
// the best one whose ratio reaches cutoff. Ties keep the earliest candidate.
// The cheap upper bounds are checked first, as difflib's get_close_matches
// does, so most candidates never reach the full ratio computation.
func closest(utterance string, candidates []string, cutoff float64) (int, float64) {
	sm := difflib.NewMatcher(nil, nil)
	sm.SetSeq2(splitChars(utterance))

	best, bestScore := -1, 0.0
	for i, c := range candidates {
		if c == utterance {
			return i, 1
		}
		sm.SetSeq1(splitChars(c))
		if sm.RealQuickRatio() < cutoff || sm.QuickRatio() < cutoff {
			continue
		}
		score := sm.Ratio()
		if score >= cutoff && score > bestScore {
			best, bestScore = i, score
		}
	}
	return best, bestScore
}
