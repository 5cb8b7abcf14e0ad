package models

import "time"

// Work order statuses.
const (
	WorkOrderOpen       = "open"
	WorkOrderAssigned   = "assigned"
	WorkOrderInProgress = "in_progress"
	WorkOrderCompleted  = "completed"
	WorkOrderCancelled  = "cancelled"
)

// SLA tiers.
const (
	SLANormal   = "normal"
	SLAHigh     = "high"
	SLACritical = "critical"
)

// Technician operational statuses.
const (
	TechAvailable   = "available"
	TechInTransit   = "in_transit"
	TechInService   = "in_service"
	TechUnavailable = "unavailable"
)

// Dispatch queue entry statuses.
const (
	QueuePending  = "pending"
	QueueAssigned = "assigned"
	QueueExpired  = "expired"
)

// Notification statuses. A message is claimed (pending -> in_flight) before
// the channel adapter is called, so two drain workers never deliver it twice.
const (
	NotificationPending  = "pending"
	NotificationInFlight = "in_flight"
	NotificationSent     = "sent"
	NotificationFailed   = "failed"
)

// Notification channels.
const (
	ChannelEmail    = "email"
	ChannelSMS      = "sms"
	ChannelWhatsApp = "whatsapp"
)

// Notification recipient kinds.
const (
	RecipientClient     = "client"
	RecipientTechnician = "technician"
)

// Notification types.
const (
	NotifySchedulingConfirmation = "scheduling_confirmation"
	NotifyETA                    = "eta"
	NotifyNPSSurvey              = "nps_survey"
	NotifyTechnicianAssignment   = "technician_assignment"
	NotifyMaintenanceReminder    = "maintenance_reminder"
)

// Client segments.
const (
	SegmentStandard   = "standard"
	SegmentPremium    = "premium"
	SegmentEnterprise = "enterprise"
	SegmentHighValue  = "high_value"
)

// Lead statuses.
const (
	LeadOpen      = "open"
	LeadConverted = "converted"
	LeadDiscarded = "discarded"
)

// Invoice statuses.
const (
	InvoicePending = "pending"
	InvoicePaid    = "paid"
	InvoiceVoid    = "void"
)

type WorkOrder struct {
	ID                string    `json:"id"`
	ClientID          string    `json:"client_id"`
	RequiredSkills    []string  `json:"required_skills"`
	Priority          int       `json:"priority"`
	SLATier           string    `json:"sla_tier"`
	EstimatedDuration int       `json:"estimated_duration"`
	ScheduledDate     time.Time `json:"scheduled_date"`
	Lat               *float64  `json:"lat"`
	Lon               *float64  `json:"lon"`
	TechnicianID      *string   `json:"technician_id"`
	Status            string    `json:"status"`
	CreatedAt         time.Time `json:"created_at"`
}

type Technician struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Email              string    `json:"email"`
	Phone              string    `json:"phone"`
	Active             bool      `json:"active"`
	Status             string    `json:"status"`
	Lat                *float64  `json:"lat"`
	Lon                *float64  `json:"lon"`
	Skills             []string  `json:"skills"`
	DayCapacityMinutes int       `json:"day_capacity_minutes"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// DispatchScore is the per-technician ranking result. Component scores are
// clamped to [0,100]; Total is the weighted combination.
type DispatchScore struct {
	TechnicianID      string   `json:"technician_id"`
	TechnicianName    string   `json:"technician_name"`
	SkillScore        float64  `json:"skill_score"`
	DistanceScore     float64  `json:"distance_score"`
	UrgencyScore      float64  `json:"urgency_score"`
	AvailabilityScore float64  `json:"availability_score"`
	Total             float64  `json:"total"`
	DistanceKm        *float64 `json:"distance_km,omitempty"`
	TravelTimeMinutes *int     `json:"travel_time_minutes,omitempty"`
}

type DispatchQueueEntry struct {
	ID                    string    `json:"id"`
	WorkOrderID           string    `json:"work_order_id"`
	SuggestedTechnicianID *string   `json:"suggested_technician_id"`
	Score                 float64   `json:"score"`
	RequiredSkills        []string  `json:"required_skills"`
	Status                string    `json:"status"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

type NotificationMessage struct {
	ID            string     `json:"id"`
	Type          string     `json:"type"`
	RecipientKind string     `json:"recipient_kind"`
	Recipient     string     `json:"recipient"`
	Channel       string     `json:"channel"`
	Subject       string     `json:"subject,omitempty"`
	Body          string     `json:"body"`
	Status        string     `json:"status"`
	ScheduledFor  time.Time  `json:"scheduled_for"`
	SentAt        *time.Time `json:"sent_at"`
	ErrorMessage  *string    `json:"error_message"`
	RelatedType   string     `json:"related_type,omitempty"`
	RelatedID     string     `json:"related_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

type Client struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Email            string    `json:"email"`
	Phone            string    `json:"phone"`
	WhatsApp         string    `json:"whatsapp"`
	PreferredChannel string    `json:"preferred_channel"`
	Segment          string    `json:"segment"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type Asset struct {
	ID                string     `json:"id"`
	ClientID          string     `json:"client_id"`
	Name              string     `json:"name"`
	Active            bool       `json:"active"`
	CapacityBTU       int        `json:"capacity_btu"`
	NextMaintenanceAt *time.Time `json:"next_maintenance_at"`
}

type Lead struct {
	ID        string    `json:"id"`
	ClientID  string    `json:"client_id"`
	AssetID   string    `json:"asset_id"`
	Source    string    `json:"source"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type Contract struct {
	ID         string  `json:"id"`
	ClientID   string  `json:"client_id"`
	Type       string  `json:"type"`
	Amount     float64 `json:"amount"`
	BillingDay int     `json:"billing_day"`
	Active     bool    `json:"active"`
}

type Invoice struct {
	ID         string    `json:"id"`
	ContractID string    `json:"contract_id"`
	ClientID   string    `json:"client_id"`
	Amount     float64   `json:"amount"`
	Status     string    `json:"status"`
	DueDate    time.Time `json:"due_date"`
	CreatedAt  time.Time `json:"created_at"`
}

type LocationHistory struct {
	ID           string    `json:"id"`
	TechnicianID string    `json:"technician_id"`
	Lat          float64   `json:"lat"`
	Lon          float64   `json:"lon"`
	Status       string    `json:"status"`
	WorkOrderID  *string   `json:"work_order_id"`
	RecordedAt   time.Time `json:"recorded_at"`
}

// ClientPortfolio is the aggregate view the weekly segmentation works from.
type ClientPortfolio struct {
	ClientID       string   `json:"client_id"`
	Segment        string   `json:"segment"`
	ContractTypes  []string `json:"contract_types"`
	AssetCount     int      `json:"asset_count"`
	MaxCapacityBTU int      `json:"max_capacity_btu"`
}
