package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fieldops/backend/internal/models"
)

// Store interfaces are kept narrow so tests can run the engine against
// in-memory fakes.

type WorkOrderStore interface {
	GetWorkOrder(ctx context.Context, id string) (models.WorkOrder, error)
	AssignWorkOrder(ctx context.Context, id, technicianID string) (bool, error)
	CompleteWorkOrder(ctx context.Context, id string) error
}

type TechnicianStore interface {
	ListActiveTechnicians(ctx context.Context) ([]models.Technician, error)
	GetTechnician(ctx context.Context, id string) (models.Technician, error)
	CommittedMinutesByTechnician(ctx context.Context, day time.Time) (map[string]int, error)
	UpdateTechnicianLocation(ctx context.Context, id string, lat, lon float64, status string) error
	InsertLocationHistory(ctx context.Context, h models.LocationHistory) error
}

type QueueStore interface {
	ExpireActiveEntries(ctx context.Context, workOrderID string) error
	InsertQueueEntry(ctx context.Context, e models.DispatchQueueEntry) error
	MarkQueueEntryAssigned(ctx context.Context, workOrderID string) error
}

type NotificationStore interface {
	InsertNotification(ctx context.Context, m models.NotificationMessage) error
}

type ClientStore interface {
	GetClient(ctx context.Context, id string) (models.Client, error)
}

type DispatchEngine struct {
	Orders        WorkOrderStore
	Technicians   TechnicianStore
	Queue         QueueStore
	Notifications NotificationStore
	Clients       ClientStore
	Logger        zerolog.Logger
}

// Suggest ranks every eligible active technician for the work order and
// returns the best candidate. A nil score with a nil error means no
// technician qualified; that is an expected outcome, not a failure.
func (e *DispatchEngine) Suggest(ctx context.Context, workOrderID string) (*models.DispatchScore, error) {
	order, err := e.Orders.GetWorkOrder(ctx, workOrderID)
	if err != nil {
		return nil, err
	}
	technicians, err := e.Technicians.ListActiveTechnicians(ctx)
	if err != nil {
		return nil, err
	}
	committed, err := e.Technicians.CommittedMinutesByTechnician(ctx, order.ScheduledDate)
	if err != nil {
		return nil, err
	}

	var best *models.DispatchScore
	for _, t := range technicians {
		score := ScoreTechnician(order, t, committed[t.ID])
		if score == nil {
			continue
		}
		if best == nil || score.Total > best.Total ||
			(score.Total == best.Total && score.TechnicianID < best.TechnicianID) {
			best = score
		}
	}
	return best, nil
}

// ScoreTechnician computes the four component scores and the weighted total
// for one candidate. It returns nil when skills were required and the
// technician has none of them; such a technician is never a useful
// assignment. Partial overlap stays in the pool, heavily penalized.
func ScoreTechnician(order models.WorkOrder, t models.Technician, committedMinutes int) *models.DispatchScore {
	skill := SkillScore(order.RequiredSkills, t.Skills)
	if len(order.RequiredSkills) > 0 && skill == 0 {
		return nil
	}

	distScore := NeutralProximityScore
	var distKm *float64
	var travel *int
	if order.Lat != nil && order.Lon != nil && t.Lat != nil && t.Lon != nil {
		d := DistanceKm(*t.Lat, *t.Lon, *order.Lat, *order.Lon)
		distScore = ProximityScore(d)
		minutes := TravelTimeMinutes(d)
		distKm = &d
		travel = &minutes
	}

	availability := CapacityScore(committedMinutes, t.DayCapacityMinutes, order.EstimatedDuration)
	urgency := UrgencyScore(order.Priority, order.SLATier, t.Status)

	return &models.DispatchScore{
		TechnicianID:      t.ID,
		TechnicianName:    t.Name,
		SkillScore:        skill,
		DistanceScore:     distScore,
		UrgencyScore:      urgency,
		AvailabilityScore: availability,
		Total:             WeightedTotal(skill, distScore, urgency, availability),
		DistanceKm:        distKm,
		TravelTimeMinutes: travel,
	}
}

// AutoAssign runs Suggest and, when a candidate exists, writes the
// assignment back, settles the matching queue entry and enqueues the
// confirmation notifications. It returns false without error when no
// technician qualifies, and also when the order already left the open
// status: success means the open -> assigned transition actually happened,
// so a repeated call never re-notifies anyone.
func (e *DispatchEngine) AutoAssign(ctx context.Context, workOrderID string) (bool, error) {
	score, err := e.Suggest(ctx, workOrderID)
	if err != nil {
		return false, err
	}
	if score == nil {
		return false, nil
	}

	assigned, err := e.Orders.AssignWorkOrder(ctx, workOrderID, score.TechnicianID)
	if err != nil {
		return false, err
	}
	if !assigned {
		return false, nil
	}
	if err := e.Queue.MarkQueueEntryAssigned(ctx, workOrderID); err != nil {
		e.Logger.Error().Err(err).Str("work_order_id", workOrderID).Msg("failed to settle queue entry")
	}

	e.enqueueAssignmentNotifications(ctx, workOrderID, score)
	return true, nil
}

// AddToQueue computes a suggestion snapshot and persists it as a pending
// queue entry. Any previous non-expired entry for the same work order,
// pending or assigned, is expired first, so at most one stays live.
func (e *DispatchEngine) AddToQueue(ctx context.Context, workOrderID string, requiredSkills []string) (*models.DispatchQueueEntry, error) {
	score, err := e.Suggest(ctx, workOrderID)
	if err != nil {
		return nil, err
	}
	if err := e.Queue.ExpireActiveEntries(ctx, workOrderID); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	entry := models.DispatchQueueEntry{
		ID:             uuid.NewString(),
		WorkOrderID:    workOrderID,
		RequiredSkills: requiredSkills,
		Status:         models.QueuePending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if score != nil {
		entry.SuggestedTechnicianID = &score.TechnicianID
		entry.Score = score.Total
	}
	if err := e.Queue.InsertQueueEntry(ctx, entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// UpdateTechnicianLocation records a live position/status report and appends
// a history row.
func (e *DispatchEngine) UpdateTechnicianLocation(ctx context.Context, technicianID string, lat, lon float64, status string, workOrderID *string) error {
	if err := e.Technicians.UpdateTechnicianLocation(ctx, technicianID, lat, lon, status); err != nil {
		return err
	}
	return e.Technicians.InsertLocationHistory(ctx, models.LocationHistory{
		ID:           uuid.NewString(),
		TechnicianID: technicianID,
		Lat:          lat,
		Lon:          lon,
		Status:       status,
		WorkOrderID:  workOrderID,
		RecordedAt:   time.Now().UTC(),
	})
}

// CompleteWorkOrder transitions the order to completed and queues the
// satisfaction survey for the client.
func (e *DispatchEngine) CompleteWorkOrder(ctx context.Context, workOrderID string) error {
	order, err := e.Orders.GetWorkOrder(ctx, workOrderID)
	if err != nil {
		return err
	}
	if err := e.Orders.CompleteWorkOrder(ctx, workOrderID); err != nil {
		return err
	}

	client, err := e.Clients.GetClient(ctx, order.ClientID)
	if err != nil {
		e.Logger.Error().Err(err).Str("work_order_id", workOrderID).Msg("survey skipped, client lookup failed")
		return nil
	}
	channel, recipient := clientChannel(client)
	if recipient == "" {
		return nil
	}
	e.insertNotification(ctx, models.NotificationMessage{
		ID:            uuid.NewString(),
		Type:          models.NotifyNPSSurvey,
		RecipientKind: models.RecipientClient,
		Recipient:     recipient,
		Channel:       channel,
		Subject:       "How did we do?",
		Body:          fmt.Sprintf("Hi %s, your service visit is complete. Please rate your experience from 0 to 10.", client.Name),
		RelatedType:   "work_order",
		RelatedID:     workOrderID,
	})
	return nil
}

func (e *DispatchEngine) enqueueAssignmentNotifications(ctx context.Context, workOrderID string, score *models.DispatchScore) {
	order, err := e.Orders.GetWorkOrder(ctx, workOrderID)
	if err != nil {
		e.Logger.Error().Err(err).Str("work_order_id", workOrderID).Msg("notifications skipped, order reload failed")
		return
	}

	// Technician alert goes out over SMS when a phone is on file.
	if tech, err := e.Technicians.GetTechnician(ctx, score.TechnicianID); err == nil {
		channel, recipient := models.ChannelSMS, tech.Phone
		if recipient == "" {
			channel, recipient = models.ChannelEmail, tech.Email
		}
		if recipient != "" {
			e.insertNotification(ctx, models.NotificationMessage{
				ID:            uuid.NewString(),
				Type:          models.NotifyTechnicianAssignment,
				RecipientKind: models.RecipientTechnician,
				Recipient:     recipient,
				Channel:       channel,
				Subject:       "New work order assigned",
				Body:          fmt.Sprintf("You have been assigned work order %s scheduled for %s.", workOrderID, order.ScheduledDate.Format("2006-01-02")),
				RelatedType:   "work_order",
				RelatedID:     workOrderID,
			})
		}
	}

	client, err := e.Clients.GetClient(ctx, order.ClientID)
	if err != nil {
		e.Logger.Error().Err(err).Str("client_id", order.ClientID).Msg("confirmation skipped, client lookup failed")
		return
	}
	channel, recipient := clientChannel(client)
	if recipient == "" {
		return
	}
	e.insertNotification(ctx, models.NotificationMessage{
		ID:            uuid.NewString(),
		Type:          models.NotifySchedulingConfirmation,
		RecipientKind: models.RecipientClient,
		Recipient:     recipient,
		Channel:       channel,
		Subject:       "Your visit is scheduled",
		Body:          fmt.Sprintf("Hi %s, technician %s has been assigned to your service visit on %s.", client.Name, score.TechnicianName, order.ScheduledDate.Format("2006-01-02")),
		RelatedType:   "work_order",
		RelatedID:     workOrderID,
	})
}

func (e *DispatchEngine) insertNotification(ctx context.Context, m models.NotificationMessage) {
	now := time.Now().UTC()
	m.Status = models.NotificationPending
	m.ScheduledFor = now
	m.CreatedAt = now
	if err := e.Notifications.InsertNotification(ctx, m); err != nil {
		e.Logger.Error().Err(err).Str("type", m.Type).Msg("failed to enqueue notification")
	}
}

// clientChannel picks the client's delivery channel: explicit preference
// first, then whatsapp, phone, email in that order.
func clientChannel(c models.Client) (channel, recipient string) {
	switch c.PreferredChannel {
	case models.ChannelEmail:
		if c.Email != "" {
			return models.ChannelEmail, c.Email
		}
	case models.ChannelSMS:
		if c.Phone != "" {
			return models.ChannelSMS, c.Phone
		}
	case models.ChannelWhatsApp:
		if c.WhatsApp != "" {
			return models.ChannelWhatsApp, c.WhatsApp
		}
	}
	if c.WhatsApp != "" {
		return models.ChannelWhatsApp, c.WhatsApp
	}
	if c.Phone != "" {
		return models.ChannelSMS, c.Phone
	}
	if c.Email != "" {
		return models.ChannelEmail, c.Email
	}
	return "", ""
}
