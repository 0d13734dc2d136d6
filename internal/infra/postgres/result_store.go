package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"quiz-battle-service/internal/domain"
	"github.com/jackc/pgx/v4/pgxpool"
)

// ResultStore persists final battle leaderboards as JSONB rows.
type ResultStore struct {
	pool *pgxpool.Pool
}

func NewResultStore(pool *pgxpool.Pool) *ResultStore {
	return &ResultStore{pool: pool}
}

func (s *ResultStore) SaveResults(ctx context.Context, code, quizID string, results []domain.RankedResult) error {
	data, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("marshal results: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO battle_results (room_code, quiz_id, results) VALUES ($1, $2, $3::jsonb)`,
		code, quizID, string(data))
	if err != nil {
		return fmt.Errorf("insert results: %w", err)
	}
	return nil
}
