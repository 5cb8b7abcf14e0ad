package db

import (
	"context"
	"fmt"
	"time"

	"github.com/fieldops/backend/internal/models"
)

func (s *Store) InsertNotification(ctx context.Context, m models.NotificationMessage) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO notifications (id, type, recipient_kind, recipient, channel, subject, body,
			status, scheduled_for, sent_at, error_message, related_type, related_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, m.ID, m.Type, m.RecipientKind, m.Recipient, m.Channel, m.Subject, m.Body,
		m.Status, m.ScheduledFor, m.SentAt, m.ErrorMessage, m.RelatedType, m.RelatedID, m.CreatedAt)
	return err
}

func (s *Store) ListDueNotifications(ctx context.Context, now time.Time) ([]models.NotificationMessage, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, type, recipient_kind, recipient, channel, subject, body,
			status, scheduled_for, sent_at, error_message, related_type, related_id, created_at
		FROM notifications
		WHERE status = $1 AND scheduled_for <= $2
		ORDER BY scheduled_for ASC
	`, models.NotificationPending, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanNotifications(rows)
}

// ClaimNotification flips pending to in_flight for exactly one worker. The
// status predicate makes the claim atomic; a second worker sees zero rows
// affected and skips the message.
func (s *Store) ClaimNotification(ctx context.Context, id string) (bool, error) {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE notifications SET status = $1, claimed_at = NOW()
		WHERE id = $2 AND status = $3
	`, models.NotificationInFlight, id, models.NotificationPending)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// RequeueStaleInFlight returns in_flight messages whose claim is older than
// the cutoff to pending. A worker that crashed between claim and resolve
// leaves its message behind; the next drain pass picks it up again here.
func (s *Store) RequeueStaleInFlight(ctx context.Context, before time.Time) (int, error) {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE notifications SET status = $1, claimed_at = NULL
		WHERE status = $2 AND claimed_at < $3
	`, models.NotificationPending, models.NotificationInFlight, before)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) MarkNotificationSent(ctx context.Context, id string, at time.Time) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE notifications SET status = $1, sent_at = $2, error_message = NULL
		WHERE id = $3
	`, models.NotificationSent, at, id)
	return err
}

func (s *Store) MarkNotificationFailed(ctx context.Context, id, errorMessage string) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE notifications SET status = $1, error_message = $2
		WHERE id = $3
	`, models.NotificationFailed, errorMessage, id)
	return err
}

func (s *Store) ListNotifications(ctx context.Context, status string, limit, offset int) ([]models.NotificationMessage, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT id, type, recipient_kind, recipient, channel, subject, body,
			status, scheduled_for, sent_at, error_message, related_type, related_id, created_at
		FROM notifications`
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
	return scanNotifications(rows)
}

type notificationRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanNotifications(rows notificationRows) ([]models.NotificationMessage, error) {
	var out []models.NotificationMessage
	for rows.Next() {
		var m models.NotificationMessage
		if err := rows.Scan(&m.ID, &m.Type, &m.RecipientKind, &m.Recipient, &m.Channel,
			&m.Subject, &m.Body, &m.Status, &m.ScheduledFor, &m.SentAt, &m.ErrorMessage,
			&m.RelatedType, &m.RelatedID, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
