package db

import (
	"context"
	"time"

	"github.com/fieldops/backend/internal/models"
)

func (s *Store) ListAssetsDueForMaintenance(ctx context.Context, before time.Time) ([]models.Asset, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, client_id, name, active, capacity_btu, next_maintenance_at
		FROM assets
		WHERE active AND next_maintenance_at IS NOT NULL AND next_maintenance_at <= $1
		ORDER BY next_maintenance_at ASC
	`, before)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Asset
	for rows.Next() {
		var a models.Asset
		if err := rows.Scan(&a.ID, &a.ClientID, &a.Name, &a.Active, &a.CapacityBTU, &a.NextMaintenanceAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// HasRecentLeadForAsset reports whether the asset already has an open
// follow-up or one created inside the re-notify cooldown window.
func (s *Store) HasRecentLeadForAsset(ctx context.Context, assetID string, since time.Time) (bool, error) {
	var exists bool
	err := s.Pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM leads
			WHERE asset_id = $1 AND (status = $2 OR created_at >= $3)
		)
	`, assetID, models.LeadOpen, since).Scan(&exists)
	return exists, err
}

func (s *Store) InsertLead(ctx context.Context, l models.Lead) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO leads (id, client_id, asset_id, source, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, l.ID, l.ClientID, l.AssetID, l.Source, l.Status, l.CreatedAt)
	return err
}

func (s *Store) GetClient(ctx context.Context, id string) (models.Client, error) {
	var c models.Client
	err := s.Pool.QueryRow(ctx, `
		SELECT id, name, email, phone, whatsapp, preferred_channel, segment, updated_at
		FROM clients WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.WhatsApp, &c.PreferredChannel, &c.Segment, &c.UpdatedAt)
	return c, err
}

func (s *Store) ListContractsWithoutPendingInvoice(ctx context.Context) ([]models.Contract, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT c.id, c.client_id, c.type, c.amount, c.billing_day, c.active
		FROM contracts c
		WHERE c.active AND NOT EXISTS (
			SELECT 1 FROM invoices i
			WHERE i.contract_id = c.id AND i.status = $1
		)
		ORDER BY c.id ASC
	`, models.InvoicePending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Contract
	for rows.Next() {
		var c models.Contract
		if err := rows.Scan(&c.ID, &c.ClientID, &c.Type, &c.Amount, &c.BillingDay, &c.Active); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) InsertInvoice(ctx context.Context, inv models.Invoice) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO invoices (id, contract_id, client_id, amount, status, due_date, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, inv.ID, inv.ContractID, inv.ClientID, inv.Amount, inv.Status, inv.DueDate, inv.CreatedAt)
	return err
}

func (s *Store) ListClientPortfolios(ctx context.Context) ([]models.ClientPortfolio, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT cl.id, cl.segment,
			COALESCE(array_agg(DISTINCT co.type) FILTER (WHERE co.type IS NOT NULL), '{}'),
			COUNT(DISTINCT a.id),
			COALESCE(MAX(a.capacity_btu), 0)
		FROM clients cl
		LEFT JOIN contracts co ON co.client_id = cl.id AND co.active
		LEFT JOIN assets a ON a.client_id = cl.id AND a.active
		GROUP BY cl.id
		ORDER BY cl.id ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ClientPortfolio
	for rows.Next() {
		var p models.ClientPortfolio
		var assetCount int64
		if err := rows.Scan(&p.ClientID, &p.Segment, &p.ContractTypes, &assetCount, &p.MaxCapacityBTU); err != nil {
			return nil, err
		}
		p.AssetCount = int(assetCount)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) UpdateClientSegment(ctx context.Context, clientID, segment string) error {
	_, err := s.Pool.Exec(ctx, `
		UPDATE clients SET segment = $1, updated_at = NOW() WHERE id = $2
	`, segment, clientID)
	return err
}
