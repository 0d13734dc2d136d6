package app

import (
	"testing"
	"time"

	"quiz-battle-service/internal/domain"
)

func TestScoreFloorHalf(t *testing.T) {
	limit := 20 * time.Second

	if got := scorePoints(domain.PolicyFloorHalf, true, 100, 0, limit); got != 100 {
		t.Fatalf("instant answer: expected 100, got %d", got)
	}
	if got := scorePoints(domain.PolicyFloorHalf, true, 100, limit, limit); got != 50 {
		t.Fatalf("answer at the limit: expected floor of 50, got %d", got)
	}
	if got := scorePoints(domain.PolicyFloorHalf, true, 100, limit/2, limit); got != 75 {
		t.Fatalf("midpoint answer: expected 75, got %d", got)
	}
}

func TestScoreFullDecay(t *testing.T) {
	limit := 20 * time.Second

	if got := scorePoints(domain.PolicyFullDecay, true, 100, 0, limit); got != 100 {
		t.Fatalf("instant answer: expected 100, got %d", got)
	}
	if got := scorePoints(domain.PolicyFullDecay, true, 100, limit, limit); got != 0 {
		t.Fatalf("answer at the limit: expected full decay to 0, got %d", got)
	}
	if got := scorePoints(domain.PolicyFullDecay, true, 100, limit/2, limit); got != 50 {
		t.Fatalf("midpoint answer: expected 50, got %d", got)
	}
}

func TestScoreIncorrectAlwaysZero(t *testing.T) {
	limit := 20 * time.Second
	for _, policy := range []domain.ScoringPolicy{domain.PolicyFullDecay, domain.PolicyFloorHalf} {
		if got := scorePoints(policy, false, 100, 0, limit); got != 0 {
			t.Fatalf("%s: incorrect answer earned %d", policy, got)
		}
	}
}

func TestScoreClampsElapsedTime(t *testing.T) {
	limit := 10 * time.Second

	if got := scorePoints(domain.PolicyFullDecay, true, 100, -time.Second, limit); got != 100 {
		t.Fatalf("negative elapsed should clamp to 0, got %d", got)
	}
	if got := scorePoints(domain.PolicyFullDecay, true, 100, 2*limit, limit); got != 0 {
		t.Fatalf("over-limit elapsed should clamp to limit, got %d", got)
	}
}

func TestScoreDefaultsBasePoints(t *testing.T) {
	if got := scorePoints(domain.PolicyFloorHalf, true, 0, 0, time.Second); got != 1 {
		t.Fatalf("zero base points should default to 1, got %d", got)
	}
}

func TestQuestionLimitDerivation(t *testing.T) {
	fixed := 20 * time.Second

	quiz := domain.Quiz{
		TimeLimitSec: 60,
		Questions:    make([]domain.Question, 3),
	}
	if got := questionLimit(quiz, fixed); got != 20*time.Second {
		t.Fatalf("expected 60s/3 = 20s, got %v", got)
	}

	quiz.TimeLimitSec = 0
	if got := questionLimit(quiz, fixed); got != fixed {
		t.Fatalf("expected fixed limit %v, got %v", fixed, got)
	}
}
