package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/fieldops/backend/internal/models"
)

const (
	defaultSendTimeout = 15 * time.Second
	defaultStaleAfter  = 10 * time.Minute
)

type Store interface {
	ListDueNotifications(ctx context.Context, now time.Time) ([]models.NotificationMessage, error)
	ClaimNotification(ctx context.Context, id string) (bool, error)
	RequeueStaleInFlight(ctx context.Context, before time.Time) (int, error)
	MarkNotificationSent(ctx context.Context, id string, at time.Time) error
	MarkNotificationFailed(ctx context.Context, id, errorMessage string) error
}

// Outbox drains pending notification messages through per-channel adapters.
// Each message is claimed (pending -> in_flight) before its adapter runs, so
// overlapping drain passes cannot deliver the same message twice. A message
// that fails delivery is terminal; operators re-enqueue after fixing the
// cause.
type Outbox struct {
	Store       Store
	Adapters    map[string]Adapter
	SendTimeout time.Duration
	StaleAfter  time.Duration
	Logger      zerolog.Logger
}

// Drain processes every due pending message once and returns how many
// transitioned to sent. In_flight claims older than StaleAfter are returned
// to pending first, so a worker crash never strands a message. Adapter
// failures mark the single message failed and never abort the pass; store
// failures are hard errors.
func (o *Outbox) Drain(ctx context.Context) (int, error) {
	now := time.Now().UTC()

	stale := o.StaleAfter
	if stale <= 0 {
		stale = defaultStaleAfter
	}
	requeued, err := o.Store.RequeueStaleInFlight(ctx, now.Add(-stale))
	if err != nil {
		return 0, err
	}
	if requeued > 0 {
		o.Logger.Warn().Int("requeued", requeued).Msg("stale in_flight notifications returned to pending")
	}

	messages, err := o.Store.ListDueNotifications(ctx, now)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, m := range messages {
		claimed, err := o.Store.ClaimNotification(ctx, m.ID)
		if err != nil {
			return sent, err
		}
		if !claimed {
			// another worker got there first
			continue
		}

		ok, sendErr := o.deliver(ctx, m)
		now := time.Now().UTC()
		if ok {
			if err := o.Store.MarkNotificationSent(ctx, m.ID, now); err != nil {
				return sent, err
			}
			sent++
			continue
		}

		reason := "delivery rejected by adapter"
		if sendErr != nil {
			reason = sendErr.Error()
		}
		if err := o.Store.MarkNotificationFailed(ctx, m.ID, reason); err != nil {
			return sent, err
		}
		o.Logger.Warn().
			Str("notification_id", m.ID).
			Str("channel", m.Channel).
			Str("type", m.Type).
			Str("reason", reason).
			Msg("notification delivery failed")
	}
	return sent, nil
}

func (o *Outbox) deliver(ctx context.Context, m models.NotificationMessage) (bool, error) {
	adapter, ok := o.Adapters[m.Channel]
	if !ok {
		return false, fmt.Errorf("no adapter for channel %q", m.Channel)
	}

	timeout := o.SendTimeout
	if timeout <= 0 {
		timeout = defaultSendTimeout
	}
	sendCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return adapter.Send(sendCtx, m.Recipient, m.Subject, m.Body)
}
