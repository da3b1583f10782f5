package play_test

import (
	"testing"

	"github.com/aimstudio/aims-backend/internal/model"
	"github.com/aimstudio/aims-backend/internal/play"
)

func TestTotalScoreSumsLastSelectionPerQuestion(t *testing.T) {
	answers := map[string]model.AnswerRecord{
		"q1": {OptionID: "o1", Points: 10},
		"q2": {OptionID: "o3", Points: 5},
		"q3": {OptionID: "o2", Points: -2},
	}
	if got := play.TotalScore(answers); got != 13 {
		t.Fatalf("expected 13, got %d", got)
	}

	// Overwriting a question's answer replaces its contribution.
	answers["q2"] = model.AnswerRecord{OptionID: "o1", Points: 0}
	if got := play.TotalScore(answers); got != 8 {
		t.Fatalf("expected 8 after re-selection, got %d", got)
	}
}

func TestTotalScoreEmpty(t *testing.T) {
	if got := play.TotalScore(nil); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestMatchResultFirstMatchWinsOnOverlap(t *testing.T) {
	results := []model.ResultBucket{
		{ID: "a", ScoreMin: 0, ScoreMax: 20},
		{ID: "b", ScoreMin: 10, ScoreMax: 30}, // overlaps a
	}
	got := play.MatchResult(15, results)
	if got == nil || got.ID != "a" {
		t.Fatalf("expected first bucket a, got %+v", got)
	}
}

func TestMatchResultFallsBackToLastBucket(t *testing.T) {
	results := []model.ResultBucket{
		{ID: "low", ScoreMin: 0, ScoreMax: 10},
		{ID: "high", ScoreMin: 20, ScoreMax: 30},
	}
	// 15 falls in the gap between buckets.
	got := play.MatchResult(15, results)
	if got == nil || got.ID != "high" {
		t.Fatalf("expected last bucket as catch-all, got %+v", got)
	}
	// Out of range entirely still lands on the last bucket.
	got = play.MatchResult(99, results)
	if got == nil || got.ID != "high" {
		t.Fatalf("expected last bucket for out-of-range score, got %+v", got)
	}
}

func TestMatchResultInclusiveBounds(t *testing.T) {
	results := []model.ResultBucket{
		{ID: "a", ScoreMin: 0, ScoreMax: 20},
		{ID: "b", ScoreMin: 21, ScoreMax: 50},
	}
	for score, want := range map[int]string{0: "a", 20: "a", 21: "b", 50: "b"} {
		got := play.MatchResult(score, results)
		if got == nil || got.ID != want {
			t.Fatalf("score %d: expected bucket %s, got %+v", score, want, got)
		}
	}
}

func TestMatchResultNoBucketsConfigured(t *testing.T) {
	if got := play.MatchResult(42, nil); got != nil {
		t.Fatalf("expected nil for empty results, got %+v", got)
	}
}

func TestProgressPercentRounding(t *testing.T) {
	cases := []struct {
		answered, total, want int
	}{
		{0, 4, 0},
		{2, 4, 50},
		{1, 3, 33},
		{2, 3, 67},
		{4, 4, 100},
		{0, 0, 0},
	}
	for _, tc := range cases {
		if got := play.ProgressPercent(tc.answered, tc.total); got != tc.want {
			t.Fatalf("%d/%d: expected %d, got %d", tc.answered, tc.total, tc.want, got)
		}
	}
}
