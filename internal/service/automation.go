package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fieldops/backend/internal/models"
)

const (
	DefaultMaintenanceHorizonDays = 30
	DefaultLeadCooldownDays       = 7

	EnterpriseAssetCount = 5
	HighValueCapacityBTU = 60000
)

type AutomationStore interface {
	ListAssetsDueForMaintenance(ctx context.Context, before time.Time) ([]models.Asset, error)
	HasRecentLeadForAsset(ctx context.Context, assetID string, since time.Time) (bool, error)
	InsertLead(ctx context.Context, l models.Lead) error
	InsertNotification(ctx context.Context, m models.NotificationMessage) error
	GetClient(ctx context.Context, id string) (models.Client, error)
	ListContractsWithoutPendingInvoice(ctx context.Context) ([]models.Contract, error)
	InsertInvoice(ctx context.Context, inv models.Invoice) error
	ListClientPortfolios(ctx context.Context) ([]models.ClientPortfolio, error)
	UpdateClientSegment(ctx context.Context, clientID, segment string) error
}

type AutomationService struct {
	Store                  AutomationStore
	Logger                 zerolog.Logger
	MaintenanceHorizonDays int
	LeadCooldownDays       int
}

type DailySummary struct {
	AssetsScanned   int `json:"assets_scanned"`
	LeadsCreated    int `json:"leads_created"`
	RemindersQueued int `json:"reminders_queued"`
	SkippedRecent   int `json:"skipped_recent"`
	InvoicesCreated int `json:"invoices_created"`
	Errors          int `json:"errors"`
}

type SegmentationSummary struct {
	ClientsEvaluated int            `json:"clients_evaluated"`
	Changed          int            `json:"changed"`
	ByTier           map[string]int `json:"by_tier"`
}

// RunDaily performs the maintenance scan and recurring invoicing. Running it
// twice on the same day creates no duplicate leads or reminders: the lead
// cooldown window is the dedupe guard.
func (s *AutomationService) RunDaily(ctx context.Context) (DailySummary, error) {
	summary := DailySummary{}
	now := time.Now().UTC()

	horizon := s.MaintenanceHorizonDays
	if horizon <= 0 {
		horizon = DefaultMaintenanceHorizonDays
	}
	cooldown := s.LeadCooldownDays
	if cooldown <= 0 {
		cooldown = DefaultLeadCooldownDays
	}

	assets, err := s.Store.ListAssetsDueForMaintenance(ctx, now.AddDate(0, 0, horizon))
	if err != nil {
		return summary, err
	}
	summary.AssetsScanned = len(assets)

	cutoff := now.AddDate(0, 0, -cooldown)
	for _, asset := range assets {
		recent, err := s.Store.HasRecentLeadForAsset(ctx, asset.ID, cutoff)
		if err != nil {
			return summary, err
		}
		if recent {
			summary.SkippedRecent++
			continue
		}

		lead := models.Lead{
			ID:        uuid.NewString(),
			ClientID:  asset.ClientID,
			AssetID:   asset.ID,
			Source:    "maintenance_scan",
			Status:    models.LeadOpen,
			CreatedAt: now,
		}
		if err := s.Store.InsertLead(ctx, lead); err != nil {
			return summary, err
		}
		summary.LeadsCreated++

		client, err := s.Store.GetClient(ctx, asset.ClientID)
		if err != nil {
			s.Logger.Error().Err(err).Str("asset_id", asset.ID).Msg("reminder skipped, client lookup failed")
			summary.Errors++
			continue
		}
		channel, recipient := clientChannel(client)
		if recipient == "" {
			continue
		}
		msg := models.NotificationMessage{
			ID:            uuid.NewString(),
			Type:          models.NotifyMaintenanceReminder,
			RecipientKind: models.RecipientClient,
			Recipient:     recipient,
			Channel:       channel,
			Subject:       "Maintenance due soon",
			Body:          fmt.Sprintf("Hi %s, your equipment %q is due for maintenance. Reply to schedule a visit.", client.Name, asset.Name),
			Status:        models.NotificationPending,
			ScheduledFor:  now,
			RelatedType:   "asset",
			RelatedID:     asset.ID,
			CreatedAt:     now,
		}
		if err := s.Store.InsertNotification(ctx, msg); err != nil {
			s.Logger.Error().Err(err).Str("asset_id", asset.ID).Msg("failed to enqueue maintenance reminder")
			summary.Errors++
			continue
		}
		summary.RemindersQueued++
	}

	contracts, err := s.Store.ListContractsWithoutPendingInvoice(ctx)
	if err != nil {
		return summary, err
	}
	for _, c := range contracts {
		inv := models.Invoice{
			ID:         uuid.NewString(),
			ContractID: c.ID,
			ClientID:   c.ClientID,
			Amount:     c.Amount,
			Status:     models.InvoicePending,
			DueDate:    nextBillingDate(now, c.BillingDay),
			CreatedAt:  now,
		}
		if err := s.Store.InsertInvoice(ctx, inv); err != nil {
			return summary, err
		}
		summary.InvoicesCreated++
	}

	return summary, nil
}

// SegmentClients recomputes every client's tier. Rules apply in order and the
// last matching rule wins: any contract upgrades standard to premium, five or
// more assets makes enterprise, and a single asset at or above the high-value
// capacity threshold makes high_value regardless of the enterprise rule.
func (s *AutomationService) SegmentClients(ctx context.Context) (SegmentationSummary, error) {
	summary := SegmentationSummary{ByTier: map[string]int{}}

	portfolios, err := s.Store.ListClientPortfolios(ctx)
	if err != nil {
		return summary, err
	}
	summary.ClientsEvaluated = len(portfolios)

	for _, p := range portfolios {
		segment := SegmentFor(p)
		summary.ByTier[segment]++
		if segment == p.Segment {
			continue
		}
		if err := s.Store.UpdateClientSegment(ctx, p.ClientID, segment); err != nil {
			return summary, err
		}
		summary.Changed++
	}
	return summary, nil
}

// SegmentFor derives a client tier from its portfolio.
func SegmentFor(p models.ClientPortfolio) string {
	segment := models.SegmentStandard
	if len(p.ContractTypes) > 0 {
		segment = models.SegmentPremium
	}
	if p.AssetCount >= EnterpriseAssetCount {
		segment = models.SegmentEnterprise
	}
	if p.MaxCapacityBTU >= HighValueCapacityBTU {
		segment = models.SegmentHighValue
	}
	return segment
}

// nextBillingDate returns the contract's billing day in the current month,
// or next month when the day has already passed.
func nextBillingDate(now time.Time, billingDay int) time.Time {
	if billingDay < 1 || billingDay > 28 {
		billingDay = 1
	}
	due := time.Date(now.Year(), now.Month(), billingDay, 0, 0, 0, 0, time.UTC)
	if due.Before(now) {
		due = due.AddDate(0, 1, 0)
	}
	return due
}
