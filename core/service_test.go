package core

import (
	"context"
	"testing"
	"time"
)

type fakeStoreProvider struct {
	notificationStore NotificationStore
	integrationStore  IntegrationStore
	filterConfigStore FilterConfigStore
	queueStore        QueueStore
	settingStore      SettingStore
}

func (f *fakeStoreProvider) NotificationStore() NotificationStore { return f.notificationStore }
func (f *fakeStoreProvider) IntegrationStore() IntegrationStore   { return f.integrationStore }
func (f *fakeStoreProvider) FilterConfigStore() FilterConfigStore { return f.filterConfigStore }
func (f *fakeStoreProvider) QueueStore() QueueStore               { return f.queueStore }
func (f *fakeStoreProvider) SettingStore() SettingStore           { return f.settingStore }

type fakeStoreFactory struct {
	provider *fakeStoreProvider
	built    bool
	client   any
}

func (f *fakeStoreFactory) BuildStores(persistenceClient any) (StoreProvider, error) {
	f.built = true
	f.client = persistenceClient
	return f.provider, nil
}

type markerSettingStore struct{ id string }

func (markerSettingStore) Get(context.Context, string) (string, bool, error) {
	return "", false, nil
}

func (markerSettingStore) Set(context.Context, string, string) error {
	return nil
}

func TestResolveDependenciesDefaults(t *testing.T) {
	deps, cfg, err := ResolveDependencies(Config{})
	if err != nil {
		t.Fatalf("resolve dependencies: %v", err)
	}
	if deps.Logger == nil {
		t.Fatalf("expected default logger")
	}
	if deps.MetricsRecorder == nil {
		t.Fatalf("expected default metrics recorder")
	}
	if deps.ErrorMapper == nil {
		t.Fatalf("expected default error mapper")
	}
	if deps.Now == nil {
		t.Fatalf("expected default clock")
	}
	if cfg.ServiceName != "relay" {
		t.Fatalf("expected default service name, got %q", cfg.ServiceName)
	}
	if cfg.Queue.BatchSize != 25 {
		t.Fatalf("expected default batch size, got %d", cfg.Queue.BatchSize)
	}
}

func TestResolveDependenciesRuntimeConfigWins(t *testing.T) {
	runtime := Config{}
	runtime.Queue.BatchSize = 100

	_, cfg, err := ResolveDependencies(runtime)
	if err != nil {
		t.Fatalf("resolve dependencies: %v", err)
	}
	if cfg.Queue.BatchSize != 100 {
		t.Fatalf("expected runtime batch size, got %d", cfg.Queue.BatchSize)
	}
	if cfg.Queue.WorkerCount != 8 {
		t.Fatalf("expected default worker count, got %d", cfg.Queue.WorkerCount)
	}
}

func TestResolveDependenciesMaterializesStoresFromFactory(t *testing.T) {
	provider := &fakeStoreProvider{settingStore: markerSettingStore{id: "factory"}}
	factory := &fakeStoreFactory{provider: provider}
	client := &struct{ Name string }{Name: "persistence"}

	deps, _, err := ResolveDependencies(Config{},
		WithPersistenceClient(client),
		WithRepositoryFactory(factory),
	)
	if err != nil {
		t.Fatalf("resolve dependencies: %v", err)
	}
	if !factory.built {
		t.Fatalf("expected factory BuildStores invocation")
	}
	if factory.client != client {
		t.Fatalf("expected persistence client handoff")
	}
	if deps.SettingStore == nil {
		t.Fatalf("expected setting store from factory")
	}
}

func TestResolveDependenciesDirectStoresTakePrecedence(t *testing.T) {
	direct := markerSettingStore{id: "direct"}
	provider := &fakeStoreProvider{settingStore: markerSettingStore{id: "factory"}}
	factory := &fakeStoreFactory{provider: provider}

	deps, _, err := ResolveDependencies(Config{},
		WithRepositoryFactory(factory),
		WithSettingStore(direct),
	)
	if err != nil {
		t.Fatalf("resolve dependencies: %v", err)
	}
	got, ok := deps.SettingStore.(markerSettingStore)
	if !ok || got.id != "direct" {
		t.Fatalf("expected directly wired setting store, got %#v", deps.SettingStore)
	}
}

func TestResolveDependenciesClockOverride(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	deps, _, err := ResolveDependencies(Config{}, WithClock(func() time.Time { return fixed }))
	if err != nil {
		t.Fatalf("resolve dependencies: %v", err)
	}
	if !deps.Now().Equal(fixed) {
		t.Fatalf("expected fixed clock, got %v", deps.Now())
	}
}
