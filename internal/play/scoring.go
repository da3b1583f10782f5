package play

import (
	"math"

	"github.com/aimstudio/aims-backend/internal/model"
)

// TotalScore sums the point weights of all recorded answers. Answers are
// keyed by question id, so re-selecting an option for a question replaces
// its contribution rather than adding to it.
func TotalScore(answers map[string]model.AnswerRecord) int {
	total := 0
	for _, a := range answers {
		total += a.Points
	}
	return total
}

// MatchResult selects the first bucket, in authored order, whose inclusive
// [ScoreMin, ScoreMax] range contains score. If no bucket matches, the last
// bucket acts as the catch-all. Returns nil when no buckets are configured —
// a valid, score-only terminal outcome rather than an error.
func MatchResult(score int, results []model.ResultBucket) *model.ResultBucket {
	if len(results) == 0 {
		return nil
	}
	for i := range results {
		if score >= results[i].ScoreMin && score <= results[i].ScoreMax {
			return &results[i]
		}
	}
	return &results[len(results)-1]
}

// ProgressPercent is the rounded share of answered questions, 0..100.
func ProgressPercent(answered, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(answered) / float64(total)))
}
