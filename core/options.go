package core

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
)

type ErrorFactory func(message string, category ...goerrors.Category) *goerrors.Error

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type serviceBuilder struct {
	runtimeConfig     Config
	logger            Logger
	loggerProvider    LoggerProvider
	metricsRecorder   MetricsRecorder
	errorFactory      ErrorFactory
	errorMapper       ErrorMapper
	persistenceClient any
	repositoryFactory any
	configProvider    ConfigProvider
	optionsResolver   OptionsResolver
	filterEngine      FilterEngine
	platformSender    PlatformSender
	authorizer        AccessAuthorizer
	blocklist         IPBlocklist
	notificationStore NotificationStore
	integrationStore  IntegrationStore
	filterConfigStore FilterConfigStore
	queueStore        QueueStore
	settingStore      SettingStore
	now               func() time.Time
}

type Option func(*serviceBuilder)

func WithLogger(logger Logger) Option {
	return func(b *serviceBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *serviceBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *serviceBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorFactory(factory ErrorFactory) Option {
	return func(b *serviceBuilder) {
		b.errorFactory = factory
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *serviceBuilder) {
		b.errorMapper = mapper
	}
}

func WithPersistenceClient(client any) Option {
	return func(b *serviceBuilder) {
		b.persistenceClient = client
	}
}

func WithRepositoryFactory(factory any) Option {
	return func(b *serviceBuilder) {
		b.repositoryFactory = factory
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *serviceBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *serviceBuilder) {
		b.optionsResolver = resolver
	}
}

func WithFilterEngine(engine FilterEngine) Option {
	return func(b *serviceBuilder) {
		b.filterEngine = engine
	}
}

func WithPlatformSender(sender PlatformSender) Option {
	return func(b *serviceBuilder) {
		b.platformSender = sender
	}
}

func WithAccessAuthorizer(authorizer AccessAuthorizer) Option {
	return func(b *serviceBuilder) {
		b.authorizer = authorizer
	}
}

func WithIPBlocklist(blocklist IPBlocklist) Option {
	return func(b *serviceBuilder) {
		b.blocklist = blocklist
	}
}

func WithNotificationStore(store NotificationStore) Option {
	return func(b *serviceBuilder) {
		b.notificationStore = store
	}
}

func WithIntegrationStore(store IntegrationStore) Option {
	return func(b *serviceBuilder) {
		b.integrationStore = store
	}
}

func WithFilterConfigStore(store FilterConfigStore) Option {
	return func(b *serviceBuilder) {
		b.filterConfigStore = store
	}
}

func WithQueueStore(store QueueStore) Option {
	return func(b *serviceBuilder) {
		b.queueStore = store
	}
}

func WithSettingStore(store SettingStore) Option {
	return func(b *serviceBuilder) {
		b.settingStore = store
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *serviceBuilder) {
		b.now = now
	}
}

func defaultServiceBuilder(runtime Config) serviceBuilder {
	loggerProvider, logger := glog.Resolve("relay", nil, nil)
	return serviceBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  loggerProvider,
		logger:          logger,
		metricsRecorder: NopMetricsRecorder{},
		errorFactory:    goerrors.New,
		errorMapper:     defaultErrorMapper,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
		now:             func() time.Time { return time.Now().UTC() },
	}
}

func defaultErrorMapper(err error) *goerrors.Error {
	if err == nil {
		return nil
	}
	return relayErrorMapper(err)
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, false)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || cfg.ServiceName != "" {
		layer["service_name"] = cfg.ServiceName
	}

	queue := map[string]any{}
	if includeZero || cfg.Queue.MaxRetries != 0 {
		queue["max_retries"] = cfg.Queue.MaxRetries
	}
	if includeZero || cfg.Queue.BaseIntervalMs != 0 {
		queue["base_interval_ms"] = cfg.Queue.BaseIntervalMs
	}
	if includeZero || cfg.Queue.MaxIntervalMs != 0 {
		queue["max_interval_ms"] = cfg.Queue.MaxIntervalMs
	}
	if includeZero || cfg.Queue.BatchSize != 0 {
		queue["batch_size"] = cfg.Queue.BatchSize
	}
	if includeZero || cfg.Queue.WorkerCount != 0 {
		queue["worker_count"] = cfg.Queue.WorkerCount
	}
	if includeZero || cfg.Queue.PollIntervalMs != 0 {
		queue["poll_interval_ms"] = cfg.Queue.PollIntervalMs
	}
	if includeZero || cfg.Queue.SendTimeoutMs != 0 {
		queue["send_timeout_ms"] = cfg.Queue.SendTimeoutMs
	}
	if includeZero || cfg.Queue.ClaimLeaseMs != 0 {
		queue["claim_lease_ms"] = cfg.Queue.ClaimLeaseMs
	}
	if len(queue) > 0 {
		layer["queue"] = queue
	}
	return layer
}
