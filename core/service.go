package core

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
)

// ServiceDependencies is the resolved dependency set the relay runs on.
// Every field is non-nil after ResolveDependencies except the stores and
// collaborators the caller chose not to wire.
type ServiceDependencies struct {
	Logger            Logger
	LoggerProvider    LoggerProvider
	MetricsRecorder   MetricsRecorder
	ErrorFactory      ErrorFactory
	ErrorMapper       ErrorMapper
	PersistenceClient any
	RepositoryFactory any
	ConfigProvider    ConfigProvider
	OptionsResolver   OptionsResolver
	FilterEngine      FilterEngine
	PlatformSender    PlatformSender
	Authorizer        AccessAuthorizer
	Blocklist         IPBlocklist
	NotificationStore NotificationStore
	IntegrationStore  IntegrationStore
	FilterConfigStore FilterConfigStore
	QueueStore        QueueStore
	SettingStore      SettingStore
	Now               func() time.Time
}

// ResolveDependencies applies the option set over the defaults, loads and
// merges configuration through the provider and resolver, and materializes
// stores from the repository factory when none were supplied directly.
func ResolveDependencies(cfg Config, options ...Option) (ServiceDependencies, Config, error) {
	builder := defaultServiceBuilder(cfg)
	for _, option := range options {
		if option == nil {
			continue
		}
		option(&builder)
	}

	provider, logger := glog.Resolve("relay", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("relay"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.errorFactory == nil {
		builder.errorFactory = goerrors.New
	}
	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = defaultErrorMapper
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.now == nil {
		builder.now = func() time.Time { return time.Now().UTC() }
	}

	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return ServiceDependencies{}, Config{}, mapBuildError(builder.errorMapper, err)
	}
	finalConfig, err := builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
	if err != nil {
		return ServiceDependencies{}, Config{}, mapBuildError(builder.errorMapper, err)
	}

	if builder.missingStores() && builder.repositoryFactory != nil {
		var storeProvider StoreProvider
		if factory, ok := builder.repositoryFactory.(RepositoryStoreFactory); ok {
			built, buildErr := factory.BuildStores(builder.persistenceClient)
			if buildErr != nil {
				return ServiceDependencies{}, Config{}, mapBuildError(builder.errorMapper, buildErr)
			}
			storeProvider = built
		} else if ready, ok := builder.repositoryFactory.(StoreProvider); ok {
			storeProvider = ready
		}
		if storeProvider != nil {
			if builder.notificationStore == nil {
				builder.notificationStore = storeProvider.NotificationStore()
			}
			if builder.integrationStore == nil {
				builder.integrationStore = storeProvider.IntegrationStore()
			}
			if builder.filterConfigStore == nil {
				builder.filterConfigStore = storeProvider.FilterConfigStore()
			}
			if builder.queueStore == nil {
				builder.queueStore = storeProvider.QueueStore()
			}
			if builder.settingStore == nil {
				builder.settingStore = storeProvider.SettingStore()
			}
		}
	}

	return ServiceDependencies{
		Logger:            logger,
		LoggerProvider:    provider,
		MetricsRecorder:   builder.metricsRecorder,
		ErrorFactory:      builder.errorFactory,
		ErrorMapper:       builder.errorMapper,
		PersistenceClient: builder.persistenceClient,
		RepositoryFactory: builder.repositoryFactory,
		ConfigProvider:    builder.configProvider,
		OptionsResolver:   builder.optionsResolver,
		FilterEngine:      builder.filterEngine,
		PlatformSender:    builder.platformSender,
		Authorizer:        builder.authorizer,
		Blocklist:         builder.blocklist,
		NotificationStore: builder.notificationStore,
		IntegrationStore:  builder.integrationStore,
		FilterConfigStore: builder.filterConfigStore,
		QueueStore:        builder.queueStore,
		SettingStore:      builder.settingStore,
		Now:               builder.now,
	}, finalConfig, nil
}

func (b *serviceBuilder) missingStores() bool {
	return b.notificationStore == nil ||
		b.integrationStore == nil ||
		b.filterConfigStore == nil ||
		b.queueStore == nil ||
		b.settingStore == nil
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}
