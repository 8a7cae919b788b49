package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goliatone/go-relay/core"
)

type stubSender struct {
	mu       sync.Mutex
	outcome  core.Outcome
	perItem  map[string]core.Outcome
	sends    int32
	payloads map[string]int
}

func newStubSender(outcome core.Outcome) *stubSender {
	return &stubSender{outcome: outcome, perItem: map[string]core.Outcome{}, payloads: map[string]int{}}
}

func (s *stubSender) Send(_ context.Context, _ core.Platform, url string, _ []byte) core.Outcome {
	atomic.AddInt32(&s.sends, 1)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads[url]++
	if outcome, ok := s.perItem[url]; ok {
		return outcome
	}
	return s.outcome
}

func (s *stubSender) sendCount() int {
	return int(atomic.LoadInt32(&s.sends))
}

func testConfig() core.QueueConfig {
	config := core.DefaultConfig().Queue
	config.BaseIntervalMs = 5_000
	config.MaxIntervalMs = 300_000
	config.MaxRetries = 5
	return config
}

func noJitter(policy BackoffPolicy) BackoffPolicy {
	policy.Jitter = func(time.Duration) time.Duration { return 0 }
	return policy
}

func newTestProcessor(t *testing.T, store core.QueueStore, sender core.PlatformSender, settings core.SettingStore, config core.QueueConfig, now time.Time) *Processor {
	t.Helper()
	processor, err := NewProcessor(store, sender, settings, config,
		WithBackoffPolicy(noJitter(NewBackoffPolicy(config.BaseInterval(), config.MaxInterval()))),
		WithClock(func() time.Time { return now }),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return processor
}

func enqueueItem(t *testing.T, store *memoryQueueStore, url string) core.QueueItem {
	t.Helper()
	item, err := store.Enqueue(context.Background(), core.EnqueueInput{
		NotificationID: "ntf-1",
		IntegrationID:  "int-1",
		WebhookURL:     url,
		Platform:       core.PlatformWebhook,
		Payload:        []byte(`{"a":1}`),
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	return item
}

func TestProcessorRunOnceSends(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newMemoryQueueStore()
	sender := newStubSender(core.Outcome{Kind: core.OutcomeSuccess, StatusCode: 200})
	item := enqueueItem(t, store, "https://a.example.com")

	processor := newTestProcessor(t, store, sender, nil, testConfig(), now)
	summary, err := processor.RunOnce(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Claimed != 1 || summary.Sent != 1 {
		t.Fatalf("expected 1 claimed 1 sent, got %+v", summary)
	}

	final, _ := store.Get(context.Background(), item.ID)
	if final.Status != core.QueueStatusSent {
		t.Fatalf("expected sent, got %s", final.Status)
	}
	if final.RetryCount != 0 {
		t.Fatalf("expected retry count 0, got %d", final.RetryCount)
	}
}

func TestProcessorRetryableSchedulesRetry(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newMemoryQueueStore()
	sender := newStubSender(core.Outcome{Kind: core.OutcomeRetryable, StatusCode: 503, Reason: "server error 503"})
	item := enqueueItem(t, store, "https://a.example.com")

	config := testConfig()
	processor := newTestProcessor(t, store, sender, nil, config, now)
	summary, err := processor.RunOnce(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Retried != 1 {
		t.Fatalf("expected 1 retried, got %+v", summary)
	}

	final, _ := store.Get(context.Background(), item.ID)
	if final.Status != core.QueueStatusPending {
		t.Fatalf("expected pending, got %s", final.Status)
	}
	if final.RetryCount != 1 {
		t.Fatalf("expected retry count 1, got %d", final.RetryCount)
	}
	if final.NextRetryAt == nil {
		t.Fatal("expected a scheduled retry")
	}
	if got, want := *final.NextRetryAt, now.Add(config.BaseInterval()); !got.Equal(want) {
		t.Fatalf("expected next retry at %v, got %v", want, got)
	}
	if final.LastError == "" {
		t.Fatal("expected last error to be recorded")
	}

	// The item is not due again until its schedule elapses.
	again, err := processor.RunOnce(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if again.Claimed != 0 {
		t.Fatalf("expected nothing due, got %+v", again)
	}
}

func TestProcessorExhaustedRetriesFail(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newMemoryQueueStore()
	sender := newStubSender(core.Outcome{Kind: core.OutcomeRetryable, Reason: "delivery timed out"})
	item := enqueueItem(t, store, "https://a.example.com")

	config := testConfig()
	store.mu.Lock()
	store.items[item.ID].RetryCount = config.MaxRetries - 1
	store.mu.Unlock()

	processor := newTestProcessor(t, store, sender, nil, config, now)
	summary, err := processor.RunOnce(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Failed != 1 {
		t.Fatalf("expected 1 failed, got %+v", summary)
	}

	final, _ := store.Get(context.Background(), item.ID)
	if final.Status != core.QueueStatusFailed {
		t.Fatalf("expected failed, got %s", final.Status)
	}

	// Terminal rows never come back.
	again, _ := processor.RunOnce(context.Background(), 10)
	if again.Claimed != 0 {
		t.Fatalf("expected terminal item to stay put, got %+v", again)
	}
}

func TestProcessorTerminalFailureSkipsRetries(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newMemoryQueueStore()
	sender := newStubSender(core.Outcome{Kind: core.OutcomeTerminal, StatusCode: 404, Reason: "rejected with status 404"})
	item := enqueueItem(t, store, "https://a.example.com")

	processor := newTestProcessor(t, store, sender, nil, testConfig(), now)
	summary, err := processor.RunOnce(context.Background(), 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Failed != 1 {
		t.Fatalf("expected 1 failed, got %+v", summary)
	}

	final, _ := store.Get(context.Background(), item.ID)
	if final.Status != core.QueueStatusFailed {
		t.Fatalf("expected failed, got %s", final.Status)
	}
	if final.RetryCount != 0 {
		t.Fatalf("expected no retries, got %d", final.RetryCount)
	}
	if sender.sendCount() != 1 {
		t.Fatalf("expected a single attempt, got %d", sender.sendCount())
	}
}

func TestProcessorRetryAfterOverridesBackoff(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	config := testConfig()

	cases := []struct {
		name       string
		retryAfter time.Duration
		want       time.Duration
	}{
		{name: "header wins over backoff", retryAfter: 2 * time.Minute, want: 2 * time.Minute},
		{name: "header clamped to max interval", retryAfter: time.Hour, want: config.MaxInterval()},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newMemoryQueueStore()
			retryAfter := tc.retryAfter
			sender := newStubSender(core.Outcome{
				Kind:       core.OutcomeRetryable,
				StatusCode: 429,
				Reason:     "rate limited",
				RetryAfter: &retryAfter,
			})
			item := enqueueItem(t, store, "https://a.example.com")

			processor := newTestProcessor(t, store, sender, nil, config, now)
			if _, err := processor.RunOnce(context.Background(), 10); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			final, _ := store.Get(context.Background(), item.ID)
			if final.NextRetryAt == nil {
				t.Fatal("expected a scheduled retry")
			}
			if got, want := *final.NextRetryAt, now.Add(tc.want); !got.Equal(want) {
				t.Fatalf("expected next retry at %v, got %v", want, got)
			}
		})
	}
}

func TestProcessorRunCycleGate(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name        string
		setting     string
		absent      bool
		wantClaimed int
	}{
		{name: "disabled claims nothing", setting: "false", wantClaimed: 0},
		{name: "enabled claims", setting: "true", wantClaimed: 1},
		{name: "missing setting means enabled", absent: true, wantClaimed: 1},
		{name: "garbage value means enabled", setting: "banana", wantClaimed: 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			store := newMemoryQueueStore()
			settings := newMemorySettingStore()
			if !tc.absent {
				_ = settings.Set(context.Background(), core.SettingQueueProcessingEnabled, tc.setting)
			}
			sender := newStubSender(core.Outcome{Kind: core.OutcomeSuccess, StatusCode: 200})
			enqueueItem(t, store, "https://a.example.com")

			processor := newTestProcessor(t, store, sender, settings, testConfig(), now)
			summary, err := processor.RunCycle(context.Background())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if summary.Claimed != tc.wantClaimed {
				t.Fatalf("expected %d claimed, got %+v", tc.wantClaimed, summary)
			}
		})
	}
}

func TestProcessorGateToggleTakesEffectNextCycle(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newMemoryQueueStore()
	settings := newMemorySettingStore()
	_ = settings.Set(context.Background(), core.SettingQueueProcessingEnabled, "false")
	sender := newStubSender(core.Outcome{Kind: core.OutcomeSuccess, StatusCode: 200})
	enqueueItem(t, store, "https://a.example.com")

	processor := newTestProcessor(t, store, sender, settings, testConfig(), now)
	if summary, _ := processor.RunCycle(context.Background()); summary.Claimed != 0 {
		t.Fatalf("expected no claims while disabled, got %+v", summary)
	}

	_ = settings.Set(context.Background(), core.SettingQueueProcessingEnabled, "true")
	summary, err := processor.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Sent != 1 {
		t.Fatalf("expected delivery after re-enable, got %+v", summary)
	}
}

func TestProcessorReleasesStaleClaims(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newMemoryQueueStore()
	sender := newStubSender(core.Outcome{Kind: core.OutcomeSuccess, StatusCode: 200})
	item := enqueueItem(t, store, "https://a.example.com")

	config := testConfig()
	stale := now.Add(-2 * config.ClaimLease())
	store.mu.Lock()
	store.items[item.ID].Status = core.QueueStatusProcessing
	store.items[item.ID].LastAttemptAt = &stale
	store.items[item.ID].RetryCount = 2
	store.mu.Unlock()

	processor := newTestProcessor(t, store, sender, nil, config, now)
	summary, err := processor.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Claimed != 1 || summary.Sent != 1 {
		t.Fatalf("expected the released item to deliver, got %+v", summary)
	}

	final, _ := store.Get(context.Background(), item.ID)
	if final.Status != core.QueueStatusSent {
		t.Fatalf("expected sent, got %s", final.Status)
	}
	if final.RetryCount != 2 {
		t.Fatalf("expected recovery to leave retry count alone, got %d", final.RetryCount)
	}
}

func TestProcessorConcurrentDrainsDeliverOnce(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newMemoryQueueStore()
	sender := newStubSender(core.Outcome{Kind: core.OutcomeSuccess, StatusCode: 200})

	const total = 40
	for i := 0; i < total; i++ {
		enqueueItem(t, store, "https://a.example.com")
	}

	processor := newTestProcessor(t, store, sender, nil, testConfig(), now)

	const drains = 4
	var wg sync.WaitGroup
	var sent int32
	for i := 0; i < drains; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				summary, err := processor.RunOnce(context.Background(), 5)
				if err != nil {
					t.Errorf("unexpected error: %v", err)
					return
				}
				if summary.Claimed == 0 {
					return
				}
				atomic.AddInt32(&sent, int32(summary.Sent))
			}
		}()
	}
	wg.Wait()

	if int(sent) != total {
		t.Fatalf("expected %d deliveries, got %d", total, sent)
	}
	if sender.sendCount() != total {
		t.Fatalf("expected each item sent exactly once, got %d sends", sender.sendCount())
	}
	counts, _ := store.Counts(context.Background())
	if counts.Sent != total || counts.Pending != 0 || counts.Processing != 0 {
		t.Fatalf("unexpected final counts %+v", counts)
	}
}

func TestMemoryStoreClaimRace(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newMemoryQueueStore()
	item := enqueueItem(t, store, "https://a.example.com")

	const racers = 8
	var wg sync.WaitGroup
	var wins int32
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, won, err := store.Claim(context.Background(), item.ID, now)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if won {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()

	if wins != 1 {
		t.Fatalf("expected exactly one winner, got %d", wins)
	}
}

type recordingMetrics struct {
	mu       sync.Mutex
	counters map[string]int64
}

func (m *recordingMetrics) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counters == nil {
		m.counters = map[string]int64{}
	}
	m.counters[name+"|"+tags["platform"]+"|"+tags["outcome"]] += value
}

func (m *recordingMetrics) ObserveHistogram(context.Context, string, float64, map[string]string) {}

func (m *recordingMetrics) attempts(platform string, outcome string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counters["relay.delivery.attempts|"+platform+"|"+outcome]
}

func TestProcessorRecordsDeliveryAttemptOutcomes(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newMemoryQueueStore()
	sender := newStubSender(core.Outcome{Kind: core.OutcomeSuccess, StatusCode: 200})
	sender.perItem["https://retry.example.com"] = core.Outcome{Kind: core.OutcomeRetryable, StatusCode: 503, Reason: "server error 503"}
	sender.perItem["https://fail.example.com"] = core.Outcome{Kind: core.OutcomeTerminal, StatusCode: 400, Reason: "bad request"}
	enqueueItem(t, store, "https://ok.example.com")
	enqueueItem(t, store, "https://retry.example.com")
	enqueueItem(t, store, "https://fail.example.com")

	config := testConfig()
	metrics := &recordingMetrics{}
	processor, err := NewProcessor(store, sender, nil, config,
		WithBackoffPolicy(noJitter(NewBackoffPolicy(config.BaseInterval(), config.MaxInterval()))),
		WithClock(func() time.Time { return now }),
		WithMetrics(metrics),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := processor.RunOnce(context.Background(), 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	platform := string(core.PlatformWebhook)
	if got := metrics.attempts(platform, "sent"); got != 1 {
		t.Fatalf("expected 1 sent attempt, got %d", got)
	}
	if got := metrics.attempts(platform, "retry"); got != 1 {
		t.Fatalf("expected 1 retry attempt, got %d", got)
	}
	if got := metrics.attempts(platform, "failed"); got != 1 {
		t.Fatalf("expected 1 failed attempt, got %d", got)
	}
}

func TestProcessorExhaustedRetryCountsAsFailedAttempt(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	store := newMemoryQueueStore()
	sender := newStubSender(core.Outcome{Kind: core.OutcomeRetryable, StatusCode: 503, Reason: "server error 503"})
	enqueueItem(t, store, "https://a.example.com")

	config := testConfig()
	config.MaxRetries = 1
	metrics := &recordingMetrics{}
	processor, err := NewProcessor(store, sender, nil, config,
		WithBackoffPolicy(noJitter(NewBackoffPolicy(config.BaseInterval(), config.MaxInterval()))),
		WithClock(func() time.Time { return now }),
		WithMetrics(metrics),
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := processor.RunOnce(context.Background(), 10); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	platform := string(core.PlatformWebhook)
	if got := metrics.attempts(platform, "failed"); got != 1 {
		t.Fatalf("expected exhausted retry to report failed, got %d", got)
	}
	if got := metrics.attempts(platform, "retry"); got != 0 {
		t.Fatalf("expected no retry attempts, got %d", got)
	}
}
