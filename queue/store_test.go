package queue

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/goliatone/go-relay/core"
)

// memoryQueueStore is a mutex-guarded in-memory ledger that honors the same
// transition guards as the SQL store: claims are conditional writes and
// terminal rows never move again.
type memoryQueueStore struct {
	mu    sync.Mutex
	seq   int
	items map[string]*core.QueueItem
}

func newMemoryQueueStore() *memoryQueueStore {
	return &memoryQueueStore{items: map[string]*core.QueueItem{}}
}

func (s *memoryQueueStore) Enqueue(_ context.Context, input core.EnqueueInput) (core.QueueItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	status := input.InitialStatus
	if status == "" {
		status = core.QueueStatusPending
	}
	createdAt := input.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	item := &core.QueueItem{
		ID:             fmt.Sprintf("item-%d", s.seq),
		NotificationID: input.NotificationID,
		IntegrationID:  input.IntegrationID,
		WebhookURL:     input.WebhookURL,
		Platform:       input.Platform,
		Payload:        append([]byte(nil), input.Payload...),
		Status:         status,
		CreatedAt:      createdAt,
		LastError:      input.LastError,
	}
	s.items[item.ID] = item
	return *item, nil
}

func (s *memoryQueueStore) Claim(_ context.Context, id string, now time.Time) (core.QueueItem, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return core.QueueItem{}, false, fmt.Errorf("queue item %q not found", id)
	}
	if !s.due(item, now) {
		return *item, false, nil
	}
	s.claim(item, now)
	return *item, true, nil
}

func (s *memoryQueueStore) ClaimDue(_ context.Context, now time.Time, limit int) ([]core.QueueItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*core.QueueItem
	for _, item := range s.items {
		if s.due(item, now) {
			due = append(due, item)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].CreatedAt.Before(due[j].CreatedAt) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	claimed := make([]core.QueueItem, 0, len(due))
	for _, item := range due {
		s.claim(item, now)
		claimed = append(claimed, *item)
	}
	return claimed, nil
}

func (s *memoryQueueStore) due(item *core.QueueItem, now time.Time) bool {
	if item.Status != core.QueueStatusPending {
		return false
	}
	return item.NextRetryAt == nil || !item.NextRetryAt.After(now)
}

func (s *memoryQueueStore) claim(item *core.QueueItem, now time.Time) {
	attemptAt := now
	item.Status = core.QueueStatusProcessing
	item.LastAttemptAt = &attemptAt
	item.NextRetryAt = nil
}

func (s *memoryQueueStore) MarkSent(_ context.Context, id string, at time.Time) error {
	return s.transition(id, core.QueueStatusProcessing, func(item *core.QueueItem) {
		item.Status = core.QueueStatusSent
		item.LastAttemptAt = &at
	})
}

func (s *memoryQueueStore) MarkRetry(_ context.Context, id string, cause error, nextRetryAt time.Time) error {
	return s.transition(id, core.QueueStatusProcessing, func(item *core.QueueItem) {
		item.Status = core.QueueStatusPending
		item.RetryCount++
		item.NextRetryAt = &nextRetryAt
		if cause != nil {
			item.LastError = cause.Error()
		}
	})
}

func (s *memoryQueueStore) MarkFailed(_ context.Context, id string, cause error) error {
	return s.transition(id, core.QueueStatusProcessing, func(item *core.QueueItem) {
		item.Status = core.QueueStatusFailed
		if cause != nil {
			item.LastError = cause.Error()
		}
	})
}

func (s *memoryQueueStore) transition(id string, from core.QueueItemStatus, apply func(*core.QueueItem)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return fmt.Errorf("queue item %q not found", id)
	}
	if item.Status != from {
		return nil
	}
	apply(item)
	return nil
}

func (s *memoryQueueStore) ReleaseStale(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	released := 0
	for _, item := range s.items {
		if item.Status != core.QueueStatusProcessing {
			continue
		}
		if item.LastAttemptAt != nil && item.LastAttemptAt.Before(cutoff) {
			item.Status = core.QueueStatusPending
			released++
		}
	}
	return released, nil
}

func (s *memoryQueueStore) Get(_ context.Context, id string) (core.QueueItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return core.QueueItem{}, fmt.Errorf("queue item %q not found", id)
	}
	return *item, nil
}

func (s *memoryQueueStore) List(_ context.Context, filter core.QueueFilter) ([]core.QueueItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []core.QueueItem
	for _, item := range s.items {
		if filter.Status != "" && item.Status != filter.Status {
			continue
		}
		if filter.IntegrationID != "" && item.IntegrationID != filter.IntegrationID {
			continue
		}
		matched = append(matched, *item)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.Before(matched[j].CreatedAt) })
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

func (s *memoryQueueStore) Counts(_ context.Context) (core.QueueCounts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := core.QueueCounts{}
	for _, item := range s.items {
		switch item.Status {
		case core.QueueStatusPending:
			counts.Pending++
		case core.QueueStatusProcessing:
			counts.Processing++
		case core.QueueStatusSent:
			counts.Sent++
		case core.QueueStatusFailed:
			counts.Failed++
		}
	}
	return counts, nil
}

var _ core.QueueStore = (*memoryQueueStore)(nil)

type memorySettingStore struct {
	mu     sync.Mutex
	values map[string]string
}

func newMemorySettingStore() *memorySettingStore {
	return &memorySettingStore{values: map[string]string{}}
}

func (s *memorySettingStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.values[key]
	return value, ok, nil
}

func (s *memorySettingStore) Set(_ context.Context, key string, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

var _ core.SettingStore = (*memorySettingStore)(nil)
