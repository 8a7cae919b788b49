package sqlstore

import (
	"fmt"

	persistence "github.com/goliatone/go-persistence-bun"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-relay/core"
	"github.com/uptrace/bun"
)

type RepositoryFactory struct {
	db *bun.DB

	notificationStore *NotificationStore
	integrationStore  *IntegrationStore
	filterConfigStore *FilterConfigStore
	queueStore        *QueueStore
	settingStore      *SettingStore
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
	if f.queueStore != nil {
		return f, nil
	}
	if err := f.initStores(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) NotificationStore() core.NotificationStore {
	if f == nil {
		return nil
	}
	return f.notificationStore
}

func (f *RepositoryFactory) IntegrationStore() core.IntegrationStore {
	if f == nil {
		return nil
	}
	return f.integrationStore
}

func (f *RepositoryFactory) FilterConfigStore() core.FilterConfigStore {
	if f == nil {
		return nil
	}
	return f.filterConfigStore
}

func (f *RepositoryFactory) QueueStore() core.QueueStore {
	if f == nil {
		return nil
	}
	return f.queueStore
}

func (f *RepositoryFactory) SettingStore() core.SettingStore {
	if f == nil {
		return nil
	}
	return f.settingStore
}

func (f *RepositoryFactory) initStores() error {
	notificationRepo := repository.NewRepository[*notificationRecord](f.db, notificationHandlers())
	if validator, ok := notificationRepo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("sqlstore: invalid notification repository wiring: %w", err)
		}
	}

	integrationRepo := repository.NewRepository[*integrationRecord](f.db, integrationHandlers())
	if validator, ok := integrationRepo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("sqlstore: invalid integration repository wiring: %w", err)
		}
	}

	filterConfigRepo := repository.NewRepository[*filterConfigRecord](f.db, filterConfigHandlers())
	if validator, ok := filterConfigRepo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("sqlstore: invalid filter config repository wiring: %w", err)
		}
	}

	queueRepo := repository.NewRepository[*queueItemRecord](f.db, queueItemHandlers())
	if validator, ok := queueRepo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("sqlstore: invalid queue repository wiring: %w", err)
		}
	}

	f.notificationStore = &NotificationStore{db: f.db, repo: notificationRepo}
	f.integrationStore = &IntegrationStore{db: f.db, repo: integrationRepo}
	f.filterConfigStore = &FilterConfigStore{db: f.db, repo: filterConfigRepo}
	f.queueStore = &QueueStore{db: f.db, repo: queueRepo}
	settingStore, err := NewSettingStore(f.db)
	if err != nil {
		return err
	}
	f.settingStore = settingStore

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
