package db

import (
	"context"
	"time"

	"github.com/fieldops/backend/internal/models"
)

func (s *Store) GetWorkOrder(ctx context.Context, id string) (models.WorkOrder, error) {
	var w models.WorkOrder
	err := s.Pool.QueryRow(ctx, `
		SELECT id, client_id, required_skills, priority, sla_tier, estimated_duration,
			scheduled_date, lat, lon, technician_id, status, created_at
		FROM work_orders WHERE id = $1
	`, id).Scan(&w.ID, &w.ClientID, &w.RequiredSkills, &w.Priority, &w.SLATier,
		&w.EstimatedDuration, &w.ScheduledDate, &w.Lat, &w.Lon, &w.TechnicianID,
		&w.Status, &w.CreatedAt)
	return w, err
}

// AssignWorkOrder writes the technician reference and moves the order from
// open to assigned in one statement. It reports whether the transition
// happened; an order on any other status is left untouched.
func (s *Store) AssignWorkOrder(ctx context.Context, id, technicianID string) (bool, error) {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE work_orders
		SET technician_id = $1, status = $2
		WHERE id = $3 AND status = $4
	`, technicianID, models.WorkOrderAssigned, id, models.WorkOrderOpen)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *Store) CompleteWorkOrder(ctx context.Context, id string) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE work_orders SET status = $1 WHERE id = $2 AND status IN ($3, $4)
	`, models.WorkOrderCompleted, id, models.WorkOrderAssigned, models.WorkOrderInProgress)
	return err
}

// CommittedMinutesByTechnician sums the estimated duration of every order
// already on a technician's plate for the given day. Point-in-time read;
// not locked against concurrent assignment.
func (s *Store) CommittedMinutesByTechnician(ctx context.Context, day time.Time) (map[string]int, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT technician_id, COALESCE(SUM(estimated_duration), 0)
		FROM work_orders
		WHERE technician_id IS NOT NULL
			AND scheduled_date::date = $1::date
			AND status IN ($2, $3)
		GROUP BY technician_id
	`, day, models.WorkOrderAssigned, models.WorkOrderInProgress)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var id string
		var minutes int
		if err := rows.Scan(&id, &minutes); err != nil {
			return nil, err
		}
		out[id] = minutes
	}
	return out, rows.Err()
}
