package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-leads/core"
)

type AttributionRuleStore struct {
	db   *bun.DB
	repo repository.Repository[*attributionRuleRecord]
}

func NewAttributionRuleStore(db *bun.DB) (*AttributionRuleStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*attributionRuleRecord](db, attributionRuleHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid attribution rule repository wiring: %w", err)
		}
	}
	return &AttributionRuleStore{
		db:   db,
		repo: repo,
	}, nil
}

// ActiveRules returns active rules ordered by priority, with id as the tie
// breaker so equal-priority rules evaluate deterministically.
func (s *AttributionRuleStore) ActiveRules(ctx context.Context) ([]core.AttributionRule, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: attribution rule store is not configured")
	}
	var records []*attributionRuleRecord
	err := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.is_active = ?", true).
		OrderExpr("?TableAlias.priority ASC").
		OrderExpr("?TableAlias.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	rules := make([]core.AttributionRule, 0, len(records))
	for _, record := range records {
		rules = append(rules, record.toDomain())
	}
	return rules, nil
}

func (s *AttributionRuleStore) List(ctx context.Context) ([]core.AttributionRule, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: attribution rule store is not configured")
	}
	var records []*attributionRuleRecord
	err := s.db.NewSelect().
		Model(&records).
		OrderExpr("?TableAlias.priority ASC").
		OrderExpr("?TableAlias.id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	rules := make([]core.AttributionRule, 0, len(records))
	for _, record := range records {
		rules = append(rules, record.toDomain())
	}
	return rules, nil
}

// Save inserts or updates one rule. Rules are configuration data, written by
// operators and read by the attribution resolver.
func (s *AttributionRuleStore) Save(ctx context.Context, rule core.AttributionRule) (core.AttributionRule, error) {
	if s == nil || s.db == nil {
		return core.AttributionRule{}, fmt.Errorf("sqlstore: attribution rule store is not configured")
	}
	rule.DerivedSource = strings.TrimSpace(rule.DerivedSource)
	if rule.DerivedSource == "" {
		return core.AttributionRule{}, fmt.Errorf("sqlstore: derived source is required")
	}
	if strings.TrimSpace(rule.UTMSource) == "" &&
		strings.TrimSpace(rule.UTMMedium) == "" &&
		strings.TrimSpace(rule.ReferrerContains) == "" {
		return core.AttributionRule{}, fmt.Errorf("sqlstore: at least one match predicate is required")
	}

	now := time.Now().UTC()
	created := strings.TrimSpace(rule.ID) == ""
	if created {
		rule.ID = uuid.NewString()
	}
	record := newAttributionRuleRecord(rule, now)

	if created {
		if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
			return core.AttributionRule{}, err
		}
		return record.toDomain(), nil
	}
	if _, err := s.db.NewUpdate().
		Model(record).
		Where("id = ?", record.ID).
		Exec(ctx); err != nil {
		return core.AttributionRule{}, err
	}
	return record.toDomain(), nil
}

func (s *AttributionRuleStore) Delete(ctx context.Context, id string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: attribution rule store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("sqlstore: rule id is required")
	}
	_, err := s.db.NewDelete().
		Model((*attributionRuleRecord)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	return err
}

var _ core.RuleSource = (*AttributionRuleStore)(nil)
