package sqlstore

import (
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
)

func leadHandlers() repository.ModelHandlers[*leadRecord] {
	return repository.ModelHandlers[*leadRecord]{
		NewRecord: func() *leadRecord {
			return &leadRecord{}
		},
		GetID: func(record *leadRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *leadRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *leadRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func leadDeliveryHandlers() repository.ModelHandlers[*leadDeliveryRecord] {
	return repository.ModelHandlers[*leadDeliveryRecord]{
		NewRecord: func() *leadDeliveryRecord {
			return &leadDeliveryRecord{}
		},
		GetID: func(record *leadDeliveryRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *leadDeliveryRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *leadDeliveryRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func attributionRuleHandlers() repository.ModelHandlers[*attributionRuleRecord] {
	return repository.ModelHandlers[*attributionRuleRecord]{
		NewRecord: func() *attributionRuleRecord {
			return &attributionRuleRecord{}
		},
		GetID: func(record *attributionRuleRecord) uuid.UUID {
			if record == nil {
				return uuid.Nil
			}
			return parseUUID(record.ID)
		},
		SetID: func(record *attributionRuleRecord, id uuid.UUID) {
			if record == nil {
				return
			}
			record.ID = id.String()
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(record *attributionRuleRecord) string {
			if record == nil {
				return ""
			}
			return strings.TrimSpace(record.ID)
		},
	}
}

func parseUUID(value string) uuid.UUID {
	parsed, err := uuid.Parse(strings.TrimSpace(value))
	if err != nil {
		return uuid.Nil
	}
	return parsed
}
