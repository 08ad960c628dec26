package sqlstore

import (
	"fmt"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-leads/core"
)

type RepositoryFactory struct {
	db *bun.DB

	leadStore            *LeadStore
	attributionRuleStore *AttributionRuleStore
}

func NewRepositoryFactory() *RepositoryFactory {
	return &RepositoryFactory{}
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if _, err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if _, err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

func (f *RepositoryFactory) BuildStores(persistenceClient any) (core.StoreProvider, error) {
	if f == nil {
		return nil, fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return nil, err
		}
		f.db = db
	}
	if f.leadStore != nil && f.attributionRuleStore != nil {
		return f, nil
	}
	if err := f.initStores(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *RepositoryFactory) LeadStore() core.LeadStore {
	if f == nil {
		return nil
	}
	return f.leadStore
}

func (f *RepositoryFactory) AttributionRuleStore() core.RuleSource {
	if f == nil {
		return nil
	}
	return f.attributionRuleStore
}

// AttributionRules exposes the concrete rule store for operator tooling that
// needs the write side.
func (f *RepositoryFactory) AttributionRules() *AttributionRuleStore {
	if f == nil {
		return nil
	}
	return f.attributionRuleStore
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) initStores() error {
	leadStore, err := NewLeadStore(f.db)
	if err != nil {
		return err
	}
	f.leadStore = leadStore

	attributionRuleStore, err := NewAttributionRuleStore(f.db)
	if err != nil {
		return err
	}
	f.attributionRuleStore = attributionRuleStore

	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}

var _ core.StoreProvider = (*RepositoryFactory)(nil)
