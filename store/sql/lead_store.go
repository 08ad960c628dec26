// Package sqlstore persists leads, per-channel delivery rows, and
// attribution rules on bun-managed SQL storage.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"

	"github.com/goliatone/go-leads/core"
)

// ErrLeadNotFound is returned for lookups of unknown lead IDs.
var ErrLeadNotFound = errors.New("sqlstore: lead not found")

type LeadStore struct {
	db           *bun.DB
	leadRepo     repository.Repository[*leadRecord]
	deliveryRepo repository.Repository[*leadDeliveryRecord]
}

func NewLeadStore(db *bun.DB) (*LeadStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	leadRepo := repository.NewRepository[*leadRecord](db, leadHandlers())
	if validator, ok := leadRepo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid lead repository wiring: %w", err)
		}
	}
	deliveryRepo := repository.NewRepository[*leadDeliveryRecord](db, leadDeliveryHandlers())
	if validator, ok := deliveryRepo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid lead delivery repository wiring: %w", err)
		}
	}
	return &LeadStore{
		db:           db,
		leadRepo:     leadRepo,
		deliveryRepo: deliveryRepo,
	}, nil
}

// Create persists the lead and one pending delivery row per channel in a
// single transaction. Once it returns, the submission is durable.
func (s *LeadStore) Create(ctx context.Context, input core.CreateLeadInput) (core.Lead, error) {
	if s == nil || s.db == nil {
		return core.Lead{}, fmt.Errorf("sqlstore: lead store is not configured")
	}
	input.SiteID = strings.TrimSpace(input.SiteID)
	if input.SiteID == "" {
		return core.Lead{}, fmt.Errorf("sqlstore: site id is required")
	}
	if strings.TrimSpace(input.Email) == "" {
		return core.Lead{}, fmt.Errorf("sqlstore: email is required")
	}

	now := time.Now().UTC()
	record := &leadRecord{
		ID:               uuid.NewString(),
		SiteID:           input.SiteID,
		FormType:         strings.TrimSpace(input.FormType),
		Name:             input.Name,
		Email:            input.Email,
		Phone:            input.Phone,
		Message:          input.Message,
		FormData:         copyStringMap(input.FormData),
		UTMSource:        input.UTMSource,
		UTMMedium:        input.UTMMedium,
		UTMCampaign:      input.UTMCampaign,
		UTMTerm:          input.UTMTerm,
		UTMContent:       input.UTMContent,
		LandingPageURL:   input.LandingPageURL,
		PageURL:          input.PageURL,
		ReferrerURL:      input.ReferrerURL,
		LeadSource:       input.LeadSource,
		LeadSourceDetail: input.LeadSourceDetail,
		Status:           string(core.LeadStatusNew),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	deliveries := make([]*leadDeliveryRecord, 0, len(core.Channels()))
	for _, channel := range core.Channels() {
		deliveries = append(deliveries, &leadDeliveryRecord{
			ID:        uuid.NewString(),
			LeadID:    record.ID,
			Channel:   string(channel),
			Status:    core.DeliveryStatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, insertErr := tx.NewInsert().Model(record).Exec(ctx); insertErr != nil {
			return insertErr
		}
		for _, delivery := range deliveries {
			if _, insertErr := tx.NewInsert().Model(delivery).Exec(ctx); insertErr != nil {
				return insertErr
			}
		}
		return nil
	})
	if err != nil {
		return core.Lead{}, err
	}

	lead := record.toDomain()
	for _, delivery := range deliveries {
		lead.Deliveries[core.Channel(delivery.Channel)] = delivery.toDomain()
	}
	return lead, nil
}

func (s *LeadStore) Get(ctx context.Context, id string) (core.Lead, error) {
	if s == nil || s.db == nil {
		return core.Lead{}, fmt.Errorf("sqlstore: lead store is not configured")
	}
	id = strings.TrimSpace(id)
	record := &leadRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if err == sql.ErrNoRows {
			return core.Lead{}, fmt.Errorf("%w: id %q", ErrLeadNotFound, id)
		}
		return core.Lead{}, err
	}

	var deliveryRecords []*leadDeliveryRecord
	err = s.db.NewSelect().
		Model(&deliveryRecords).
		Where("?TableAlias.lead_id = ?", id).
		OrderExpr("?TableAlias.channel ASC").
		Scan(ctx)
	if err != nil {
		return core.Lead{}, err
	}

	lead := record.toDomain()
	for _, delivery := range deliveryRecords {
		lead.Deliveries[core.Channel(delivery.Channel)] = delivery.toDomain()
	}
	return lead, nil
}

func (s *LeadStore) UpdateWorkflowStatus(ctx context.Context, id string, status core.LeadStatus) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: lead store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("sqlstore: lead id is required")
	}
	if !status.Valid() {
		return fmt.Errorf("sqlstore: invalid lead status %q", status)
	}

	result, err := s.db.NewUpdate().
		Model((*leadRecord)(nil)).
		Set("status = ?", string(status)).
		Set("updated_at = ?", time.Now().UTC()).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return fmt.Errorf("%w: id %q", ErrLeadNotFound, id)
	}
	return nil
}

func (s *LeadStore) GetChannelDelivery(ctx context.Context, leadID string, channel core.Channel) (core.ChannelDelivery, error) {
	if s == nil || s.db == nil {
		return core.ChannelDelivery{}, fmt.Errorf("sqlstore: lead store is not configured")
	}
	record, err := s.findDelivery(ctx, s.db, leadID, channel, false)
	if err != nil {
		return core.ChannelDelivery{}, err
	}
	return record.toDomain(), nil
}

// WithChannelLock runs fn while holding a row lock on the (lead, channel)
// delivery row. On Postgres this is SELECT ... FOR UPDATE; on SQLite the
// transaction's write lock serializes the same way.
func (s *LeadStore) WithChannelLock(
	ctx context.Context,
	leadID string,
	channel core.Channel,
	fn func(ctx context.Context, lead core.Lead, delivery core.ChannelDelivery) (core.ChannelDelivery, bool, error),
) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: lead store is not configured")
	}
	if fn == nil {
		return fmt.Errorf("sqlstore: channel lock callback is required")
	}
	if !channel.Valid() {
		return fmt.Errorf("sqlstore: invalid channel %q", channel)
	}

	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := s.findDelivery(ctx, tx, leadID, channel, true)
		if err != nil {
			return err
		}

		leadRow := &leadRecord{}
		err = tx.NewSelect().
			Model(leadRow).
			Where("?TableAlias.id = ?", record.LeadID).
			Limit(1).
			Scan(ctx)
		if err != nil {
			if err == sql.ErrNoRows {
				return fmt.Errorf("%w: id %q", ErrLeadNotFound, record.LeadID)
			}
			return err
		}

		updated, persist, err := fn(ctx, leadRow.toDomain(), record.toDomain())
		if err != nil {
			return err
		}
		if !persist {
			return nil
		}

		record.applyDomain(updated)
		record.UpdatedAt = time.Now().UTC()
		if _, err := tx.NewUpdate().
			Model(record).
			Where("id = ?", record.ID).
			Exec(ctx); err != nil {
			return err
		}
		return nil
	})
}

type bunQuerier interface {
	NewSelect() *bun.SelectQuery
}

func (s *LeadStore) findDelivery(
	ctx context.Context,
	querier bunQuerier,
	leadID string,
	channel core.Channel,
	forUpdate bool,
) (*leadDeliveryRecord, error) {
	leadID = strings.TrimSpace(leadID)
	record := &leadDeliveryRecord{}
	query := querier.NewSelect().
		Model(record).
		Where("?TableAlias.lead_id = ?", leadID).
		Where("?TableAlias.channel = ?", string(channel)).
		Limit(1)
	if forUpdate && s.db.Dialect().Name() == dialect.PG {
		query = query.For("UPDATE")
	}
	if err := query.Scan(ctx); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: id %q channel %q", ErrLeadNotFound, leadID, channel)
		}
		return nil, err
	}
	return record, nil
}

var _ core.LeadStore = (*LeadStore)(nil)
