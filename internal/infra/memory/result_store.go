package memory

import (
	"context"
	"sync"
	"time"

	"quiz-battle-service/internal/domain"
)

// SavedResult is one persisted final leaderboard.
type SavedResult struct {
	Code        string
	QuizID      string
	Results     []domain.RankedResult
	CompletedAt time.Time
}

// ResultStore keeps final leaderboards in memory (tests and demo mode).
type ResultStore struct {
	mu    sync.Mutex
	saved []SavedResult
}

func NewResultStore() *ResultStore {
	return &ResultStore{}
}

func (s *ResultStore) SaveResults(_ context.Context, code, quizID string, results []domain.RankedResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, SavedResult{
		Code:        code,
		QuizID:      quizID,
		Results:     results,
		CompletedAt: time.Now(),
	})
	return nil
}

// Saved returns a copy of everything stored so far.
func (s *ResultStore) Saved() []SavedResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SavedResult, len(s.saved))
	copy(out, s.saved)
	return out
}
