package queue

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-relay/core"
)

// Processor drains the delivery ledger: it claims due pending items in
// batches and hands each to the platform sender under a bounded worker
// pool. Items are independent; no ordering is preserved across them and
// every transition is applied per item as its attempt finishes.
type Processor struct {
	store    core.QueueStore
	sender   core.PlatformSender
	settings core.SettingStore
	config   core.QueueConfig
	backoff  BackoffPolicy
	logger   core.Logger
	metrics  core.MetricsRecorder
	now      func() time.Time
}

type ProcessorOption func(*Processor)

func WithLogger(logger core.Logger) ProcessorOption {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func WithMetrics(recorder core.MetricsRecorder) ProcessorOption {
	return func(p *Processor) {
		if recorder != nil {
			p.metrics = recorder
		}
	}
}

func WithBackoffPolicy(policy BackoffPolicy) ProcessorOption {
	return func(p *Processor) {
		p.backoff = policy
	}
}

func WithClock(now func() time.Time) ProcessorOption {
	return func(p *Processor) {
		if now != nil {
			p.now = now
		}
	}
}

func NewProcessor(store core.QueueStore, sender core.PlatformSender, settings core.SettingStore, config core.QueueConfig, options ...ProcessorOption) (*Processor, error) {
	if store == nil {
		return nil, fmt.Errorf("queue: processor requires a queue store")
	}
	if sender == nil {
		return nil, fmt.Errorf("queue: processor requires a platform sender")
	}
	processor := &Processor{
		store:    store,
		sender:   sender,
		settings: settings,
		config:   config,
		backoff:  NewBackoffPolicy(config.BaseInterval(), config.MaxInterval()),
		metrics:  core.NopMetricsRecorder{},
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, option := range options {
		option(processor)
	}
	return processor, nil
}

// Run polls until the context is cancelled, executing one cycle per poll
// interval. The first cycle runs immediately.
func (p *Processor) Run(ctx context.Context) error {
	if p == nil {
		return fmt.Errorf("queue: processor is nil")
	}
	interval := p.config.PollInterval()
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := p.RunCycle(ctx); err != nil {
			p.logError("processing cycle failed", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunCycle executes one polling cycle: re-read the processing gate, release
// stale claims, then drain one batch. A disabled gate claims nothing.
func (p *Processor) RunCycle(ctx context.Context) (core.CycleSummary, error) {
	if p == nil {
		return core.CycleSummary{}, fmt.Errorf("queue: processor is nil")
	}

	enabled, err := p.processingEnabled(ctx)
	if err != nil {
		return core.CycleSummary{}, err
	}
	if !enabled {
		return core.CycleSummary{}, nil
	}

	if lease := p.config.ClaimLease(); lease > 0 {
		released, err := p.store.ReleaseStale(ctx, p.now().Add(-lease))
		if err != nil {
			return core.CycleSummary{}, fmt.Errorf("queue: release stale claims: %w", err)
		}
		if released > 0 {
			p.logInfo("released stale claims", "count", released)
			p.metrics.IncCounter(ctx, "relay.queue.stale_released", int64(released), nil)
		}
	}

	return p.RunOnce(ctx, p.config.BatchSize)
}

// RunOnce claims and processes up to batchSize due items, bypassing the
// processing gate. It is the manual drive used by commands and tests.
func (p *Processor) RunOnce(ctx context.Context, batchSize int) (core.CycleSummary, error) {
	if p == nil {
		return core.CycleSummary{}, fmt.Errorf("queue: processor is nil")
	}
	if batchSize <= 0 {
		batchSize = p.config.BatchSize
	}
	if batchSize <= 0 {
		batchSize = 1
	}

	claimed, err := p.store.ClaimDue(ctx, p.now(), batchSize)
	if err != nil {
		return core.CycleSummary{}, fmt.Errorf("queue: claim due items: %w", err)
	}
	summary := core.CycleSummary{Claimed: len(claimed)}
	if len(claimed) == 0 {
		return summary, nil
	}

	workers := p.config.WorkerCount
	if workers <= 0 {
		workers = 1
	}
	if workers > len(claimed) {
		workers = len(claimed)
	}

	items := make(chan core.QueueItem)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range items {
				transition := p.processItem(ctx, item)
				if outcome := transition.outcome(); outcome != "" {
					p.metrics.IncCounter(ctx, "relay.delivery.attempts", 1, map[string]string{
						"platform": string(item.Platform),
						"outcome":  outcome,
					})
				}
				mu.Lock()
				switch transition {
				case transitionSent:
					summary.Sent++
				case transitionRetried:
					summary.Retried++
				case transitionFailed:
					summary.Failed++
				}
				mu.Unlock()
			}
		}()
	}
	for _, item := range claimed {
		items <- item
	}
	close(items)
	wg.Wait()

	p.metrics.IncCounter(ctx, "relay.queue.claimed", int64(summary.Claimed), nil)
	p.metrics.IncCounter(ctx, "relay.queue.sent", int64(summary.Sent), nil)
	p.metrics.IncCounter(ctx, "relay.queue.retried", int64(summary.Retried), nil)
	p.metrics.IncCounter(ctx, "relay.queue.failed", int64(summary.Failed), nil)
	return summary, nil
}

type itemTransition int

const (
	transitionNone itemTransition = iota
	transitionSent
	transitionRetried
	transitionFailed
)

// outcome is the resolved delivery outcome tag. A retryable failure that
// exhausts the retry allowance reports failed, not retry.
func (t itemTransition) outcome() string {
	switch t {
	case transitionSent:
		return "sent"
	case transitionRetried:
		return "retry"
	case transitionFailed:
		return "failed"
	default:
		return ""
	}
}

func (p *Processor) processItem(ctx context.Context, item core.QueueItem) itemTransition {
	sendCtx := ctx
	if timeout := p.config.SendTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	outcome := p.sender.Send(sendCtx, item.Platform, item.WebhookURL, item.Payload)
	p.metrics.ObserveHistogram(ctx, "relay.delivery.latency_ms",
		float64(outcome.Latency.Milliseconds()),
		map[string]string{"platform": string(item.Platform), "kind": string(outcome.Kind)},
	)

	switch outcome.Kind {
	case core.OutcomeSuccess:
		if err := p.store.MarkSent(ctx, item.ID, p.now()); err != nil {
			p.logError("mark sent failed", err, "item_id", item.ID)
			return transitionNone
		}
		return transitionSent
	case core.OutcomeRetryable:
		return p.retryOrFail(ctx, item, outcome)
	default:
		cause := fmt.Errorf("queue: terminal delivery failure: %s", outcome.Reason)
		if err := p.store.MarkFailed(ctx, item.ID, cause); err != nil {
			p.logError("mark failed failed", err, "item_id", item.ID)
			return transitionNone
		}
		p.logInfo("delivery failed terminally",
			"item_id", item.ID,
			"platform", string(item.Platform),
			"status_code", outcome.StatusCode,
			"reason", outcome.Reason,
		)
		return transitionFailed
	}
}

// retryOrFail applies the retry budget: the attempt that just failed is
// counted first, and the item only returns to pending while the new count
// is still under the budget.
func (p *Processor) retryOrFail(ctx context.Context, item core.QueueItem, outcome core.Outcome) itemTransition {
	newCount := item.RetryCount + 1
	cause := fmt.Errorf("queue: retryable delivery failure: %s", outcome.Reason)

	if newCount >= p.config.MaxRetries {
		exhausted := fmt.Errorf("queue: retries exhausted after %d attempts: %s", newCount, outcome.Reason)
		if err := p.store.MarkFailed(ctx, item.ID, exhausted); err != nil {
			p.logError("mark failed failed", err, "item_id", item.ID)
			return transitionNone
		}
		p.logInfo("delivery retries exhausted",
			"item_id", item.ID,
			"platform", string(item.Platform),
			"attempts", newCount,
		)
		return transitionFailed
	}

	delay := p.backoff.NextDelay(newCount)
	if outcome.RetryAfter != nil {
		delay = p.backoff.Clamp(*outcome.RetryAfter)
	}
	nextRetryAt := p.now().Add(delay)
	if err := p.store.MarkRetry(ctx, item.ID, cause, nextRetryAt); err != nil {
		p.logError("mark retry failed", err, "item_id", item.ID)
		return transitionNone
	}
	p.logInfo("delivery scheduled for retry",
		"item_id", item.ID,
		"platform", string(item.Platform),
		"retry_count", newCount,
		"next_retry_at", nextRetryAt.Format(time.RFC3339),
	)
	return transitionRetried
}

// processingEnabled re-reads the gate every cycle so a toggle takes effect
// on the next poll without a restart. A missing setting means enabled.
func (p *Processor) processingEnabled(ctx context.Context) (bool, error) {
	if p.settings == nil {
		return true, nil
	}
	value, found, err := p.settings.Get(ctx, core.SettingQueueProcessingEnabled)
	if err != nil {
		return false, fmt.Errorf("queue: read processing gate: %w", err)
	}
	if !found {
		return true, nil
	}
	enabled, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return true, nil
	}
	return enabled, nil
}

func (p *Processor) logInfo(message string, args ...any) {
	if p.logger != nil {
		p.logger.Info(message, args...)
	}
}

func (p *Processor) logError(message string, err error, args ...any) {
	if p.logger != nil {
		p.logger.Error(message, append(args, "error", err.Error())...)
	}
}
