package db

import (
	"context"
	"fmt"

	"github.com/fieldops/backend/internal/models"
)

// ExpireActiveEntries retires every live entry for the work order, pending
// and assigned alike, so the next insert keeps at most one non-expired row.
func (s *Store) ExpireActiveEntries(ctx context.Context, workOrderID string) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE dispatch_queue SET status = $1, updated_at = NOW()
		WHERE work_order_id = $2 AND status IN ($3, $4)
	`, models.QueueExpired, workOrderID, models.QueuePending, models.QueueAssigned)
	return err
}

func (s *Store) InsertQueueEntry(ctx context.Context, e models.DispatchQueueEntry) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO dispatch_queue (id, work_order_id, suggested_technician_id, score, required_skills, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, e.ID, e.WorkOrderID, e.SuggestedTechnicianID, e.Score, e.RequiredSkills, e.Status, e.CreatedAt, e.UpdatedAt)
	return err
}

func (s *Store) MarkQueueEntryAssigned(ctx context.Context, workOrderID string) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE dispatch_queue SET status = $1, updated_at = NOW()
		WHERE work_order_id = $2 AND status = $3
	`, models.QueueAssigned, workOrderID, models.QueuePending)
	return err
}

func (s *Store) ListQueueEntries(ctx context.Context, status string, limit, offset int) ([]models.DispatchQueueEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT id, work_order_id, suggested_technician_id, score, required_skills, status, created_at, updated_at
		FROM dispatch_queue`
	args := []any{}
	if status != "" {
		args = append(args, status)
		query += ` WHERE status = $1`
	}
	query += ` ORDER BY created_at DESC LIMIT $` + fmt.Sprint(len(args)+1) + ` OFFSET $` + fmt.Sprint(len(args)+2)
	args = append(args, limit, offset)

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.DispatchQueueEntry
	for rows.Next() {
		var e models.DispatchQueueEntry
		if err := rows.Scan(&e.ID, &e.WorkOrderID, &e.SuggestedTechnicianID, &e.Score,
			&e.RequiredSkills, &e.Status, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
