package app

import (
	"math"
	"time"

	"quiz-battle-service/internal/domain"
)

// scorePoints maps a submission to awarded points. It is pure: correctness,
// base points, elapsed time and the per-question limit fully determine the
// result. Incorrect (and timed-out) submissions always earn zero.
//
// Two reward curves are supported and deliberately kept apart:
//
//	full_decay: factor = max(0, 1 - spent/limit), a slow correct answer can earn 0
//	floor_half: factor = 0.5 + 0.5*max(0, 1 - spent/limit), correct always earns >= 50%
func scorePoints(policy domain.ScoringPolicy, correct bool, basePoints int, timeSpent, limit time.Duration) int {
	if !correct {
		return 0
	}
	if basePoints <= 0 {
		basePoints = 1
	}
	if limit <= 0 {
		return basePoints
	}

	spent := timeSpent
	if spent < 0 {
		spent = 0
	}
	if spent > limit {
		spent = limit
	}
	remaining := 1 - float64(spent)/float64(limit)

	var factor float64
	switch policy {
	case domain.PolicyFullDecay:
		factor = remaining
	default:
		factor = 0.5 + 0.5*remaining
	}
	return int(math.Round(float64(basePoints) * factor))
}

// questionLimit derives the per-question time limit. A quiz-level budget, when
// present, is split evenly across questions; otherwise the fixed configured
// limit applies.
func questionLimit(quiz domain.Quiz, fixed time.Duration) time.Duration {
	if quiz.TimeLimitSec > 0 && len(quiz.Questions) > 0 {
		return time.Duration(quiz.TimeLimitSec) * time.Second / time.Duration(len(quiz.Questions))
	}
	return fixed
}
