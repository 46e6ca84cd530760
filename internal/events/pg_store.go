package events

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Mintos48/dental-clinic-scheduling/internal/db"
)

type PgStore struct {
	pool db.Querier
}

func NewPgStore(pool db.Querier) *PgStore {
	return &PgStore{pool: pool}
}

func (s *PgStore) Append(ctx context.Context, ev Event) error {
	createdAt := ev.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, entity_id, branch_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, ev.EventType, ev.EntityID, ev.BranchID, ev.Payload, createdAt)
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}

const (
	defaultFeedLimit = 100
	maxFeedLimit     = 500
)

func (s *PgStore) ChangesSince(ctx context.Context, since time.Time, branchID *uuid.UUID, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = defaultFeedLimit
	} else if limit > maxFeedLimit {
		limit = maxFeedLimit
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, event_type, entity_id, branch_id, payload, created_at
		FROM event_logs
		WHERE created_at > $1
		  AND ($2::uuid IS NULL OR branch_id = $2)
		ORDER BY created_at, id
		LIMIT $3
	`, since, branchID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []Event
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.ID, &ev.EventType, &ev.EntityID, &ev.BranchID, &ev.Payload, &ev.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, ev)
	}
	return result, rows.Err()
}
