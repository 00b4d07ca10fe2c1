package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/radiusdt/printworks-analytics/internal/models"
)

// PostgresGoalStore reads goals from the user_goals table.
type PostgresGoalStore struct {
	pool *pgxpool.Pool
}

// NewPostgresGoalStore creates a PostgreSQL-backed goal store.
func NewPostgresGoalStore(pool *pgxpool.Pool) *PostgresGoalStore {
	return &PostgresGoalStore{pool: pool}
}

func (s *PostgresGoalStore) ListByUser(ctx context.Context, userID string) ([]*models.Goal, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id::text, user_id, title, status
		FROM user_goals WHERE user_id = $1
		ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list goals: %w", err)
	}
	defer rows.Close()

	goals := make([]*models.Goal, 0)
	for rows.Next() {
		var (
			g      models.Goal
			status string
		)
		if err := rows.Scan(&g.ID, &g.UserID, &g.Title, &status); err != nil {
			return nil, fmt.Errorf("failed to scan goal: %w", err)
		}
		g.Status = models.GoalStatus(status)
		goals = append(goals, &g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read goals: %w", err)
	}
	return goals, nil
}

// InMemoryGoalStore keeps goals per user in process memory.
type InMemoryGoalStore struct {
	mu    sync.RWMutex
	goals map[string][]*models.Goal
}

// NewInMemoryGoalStore creates an empty goal store.
func NewInMemoryGoalStore() *InMemoryGoalStore {
	return &InMemoryGoalStore{goals: make(map[string][]*models.Goal)}
}

// Add stores g under its user id.
func (s *InMemoryGoalStore) Add(g *models.Goal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *g
	s.goals[g.UserID] = append(s.goals[g.UserID], &cp)
}

func (s *InMemoryGoalStore) ListByUser(ctx context.Context, userID string) ([]*models.Goal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*models.Goal, 0, len(s.goals[userID]))
	for _, g := range s.goals[userID] {
		cp := *g
		result = append(result, &cp)
	}
	return result, nil
}
