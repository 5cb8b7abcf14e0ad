package db

import (
	"context"

	"github.com/fieldops/backend/internal/models"
)

const technicianColumns = `t.id, t.name, t.email, t.phone, t.active, t.status,
	t.lat, t.lon, t.day_capacity_minutes, t.updated_at,
	COALESCE(array_agg(s.name) FILTER (WHERE s.name IS NOT NULL), '{}')`

func (s *Store) ListActiveTechnicians(ctx context.Context) ([]models.Technician, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT `+technicianColumns+`
		FROM technicians t
		LEFT JOIN technician_skills ts ON ts.technician_id = t.id
		LEFT JOIN skills s ON s.id = ts.skill_id
		WHERE t.active
		GROUP BY t.id
		ORDER BY t.id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Technician
	for rows.Next() {
		var t models.Technician
		if err := rows.Scan(&t.ID, &t.Name, &t.Email, &t.Phone, &t.Active, &t.Status,
			&t.Lat, &t.Lon, &t.DayCapacityMinutes, &t.UpdatedAt, &t.Skills); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) GetTechnician(ctx context.Context, id string) (models.Technician, error) {
	var t models.Technician
	err := s.Pool.QueryRow(ctx, `
		SELECT `+technicianColumns+`
		FROM technicians t
		LEFT JOIN technician_skills ts ON ts.technician_id = t.id
		LEFT JOIN skills s ON s.id = ts.skill_id
		WHERE t.id = $1
		GROUP BY t.id
	`, id).Scan(&t.ID, &t.Name, &t.Email, &t.Phone, &t.Active, &t.Status,
		&t.Lat, &t.Lon, &t.DayCapacityMinutes, &t.UpdatedAt, &t.Skills)
	return t, err
}

func (s *Store) UpdateTechnicianLocation(ctx context.Context, id string, lat, lon float64, status string) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE technicians SET lat = $1, lon = $2, status = $3, updated_at = NOW()
		WHERE id = $4
	`, lat, lon, status, id)
	return err
}

func (s *Store) InsertLocationHistory(ctx context.Context, h models.LocationHistory) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO technician_location_history (id, technician_id, lat, lon, status, work_order_id, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, h.ID, h.TechnicianID, h.Lat, h.Lon, h.Status, h.WorkOrderID, h.RecordedAt)
	return err
}
