package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-relay/core"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// QueueStore is the durable delivery ledger. Claims are conditional writes
// guarded by the current status, so concurrent pollers can race for the
// same rows and each row still moves to processing exactly once. Terminal
// rows are never deleted and the transition guards keep them terminal.
type QueueStore struct {
	db   *bun.DB
	repo repository.Repository[*queueItemRecord]
}

func (s *QueueStore) Enqueue(ctx context.Context, in core.EnqueueInput) (core.QueueItem, error) {
	if s == nil || s.repo == nil {
		return core.QueueItem{}, fmt.Errorf("sqlstore: queue store is not configured")
	}
	if strings.TrimSpace(in.NotificationID) == "" {
		return core.QueueItem{}, fmt.Errorf("sqlstore: notification id is required")
	}
	if strings.TrimSpace(in.IntegrationID) == "" {
		return core.QueueItem{}, fmt.Errorf("sqlstore: integration id is required")
	}
	if strings.TrimSpace(in.WebhookURL) == "" {
		return core.QueueItem{}, fmt.Errorf("sqlstore: webhook url is required")
	}
	if !in.Platform.Valid() {
		return core.QueueItem{}, fmt.Errorf("sqlstore: unknown platform %q", in.Platform)
	}

	status := in.InitialStatus
	if strings.TrimSpace(string(status)) == "" {
		status = core.QueueStatusPending
	}
	createdAt := in.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	record := &queueItemRecord{
		ID:             uuid.NewString(),
		NotificationID: strings.TrimSpace(in.NotificationID),
		IntegrationID:  strings.TrimSpace(in.IntegrationID),
		WebhookURL:     strings.TrimSpace(in.WebhookURL),
		Platform:       string(in.Platform),
		Payload:        append([]byte(nil), in.Payload...),
		Status:         string(status),
		RetryCount:     0,
		LastError:      in.LastError,
		CreatedAt:      createdAt.UTC(),
		UpdatedAt:      createdAt.UTC(),
	}

	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return core.QueueItem{}, err
	}
	return created.toDomain(), nil
}

// Claim attempts the pending -> processing transition for one item. The
// update is guarded on the current status so only one caller wins.
func (s *QueueStore) Claim(ctx context.Context, id string, now time.Time) (core.QueueItem, bool, error) {
	if s == nil || s.db == nil {
		return core.QueueItem{}, false, fmt.Errorf("sqlstore: queue store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return core.QueueItem{}, false, fmt.Errorf("sqlstore: queue item id is required")
	}

	now = now.UTC()
	result, err := s.db.NewUpdate().
		Model((*queueItemRecord)(nil)).
		Set("status = ?", string(core.QueueStatusProcessing)).
		Set("last_attempt_at = ?", now).
		Set("next_retry_at = NULL").
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Where("status = ?", string(core.QueueStatusPending)).
		Where("(next_retry_at IS NULL OR next_retry_at <= ?)", now).
		Exec(ctx)
	if err != nil {
		return core.QueueItem{}, false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return core.QueueItem{}, false, err
	}
	item, getErr := s.Get(ctx, id)
	if getErr != nil {
		return core.QueueItem{}, false, getErr
	}
	return item, affected == 1, nil
}

// ClaimDue atomically claims up to limit due pending items, oldest first.
func (s *QueueStore) ClaimDue(ctx context.Context, now time.Time, limit int) ([]core.QueueItem, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: queue store is not configured")
	}
	if limit <= 0 {
		limit = 1
	}

	now = now.UTC()
	var records []queueItemRecord
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		query := `
WITH claimed AS (
	SELECT id
	FROM relay_queue_items
	WHERE status = ?
	  AND (next_retry_at IS NULL OR next_retry_at <= ?)
	ORDER BY created_at ASC
	LIMIT ?
)
UPDATE relay_queue_items
SET status = ?, last_attempt_at = ?, next_retry_at = NULL, updated_at = ?
WHERE id IN (SELECT id FROM claimed)
  AND status = ?
RETURNING
	id,
	notification_id,
	integration_id,
	webhook_url,
	platform,
	payload,
	status,
	retry_count,
	last_attempt_at,
	next_retry_at,
	last_error,
	created_at,
	updated_at
`
		return tx.NewRaw(
			query,
			string(core.QueueStatusPending),
			now,
			limit,
			string(core.QueueStatusProcessing),
			now,
			now,
			string(core.QueueStatusPending),
		).Scan(ctx, &records)
	})
	if err != nil {
		return nil, err
	}

	items := make([]core.QueueItem, 0, len(records))
	for _, record := range records {
		items = append(items, record.toDomain())
	}
	return items, nil
}

func (s *QueueStore) MarkSent(ctx context.Context, id string, at time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: queue store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("sqlstore: queue item id is required")
	}

	at = at.UTC()
	_, err := s.db.NewUpdate().
		Model((*queueItemRecord)(nil)).
		Set("status = ?", string(core.QueueStatusSent)).
		Set("last_attempt_at = ?", at).
		Set("last_error = ?", "").
		Set("next_retry_at = NULL").
		Set("updated_at = ?", at).
		Where("id = ?", id).
		Where("status = ?", string(core.QueueStatusProcessing)).
		Exec(ctx)
	return err
}

func (s *QueueStore) MarkRetry(ctx context.Context, id string, cause error, nextRetryAt time.Time) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: queue store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("sqlstore: queue item id is required")
	}

	lastError := ""
	if cause != nil {
		lastError = cause.Error()
	}
	now := time.Now().UTC()
	_, err := s.db.NewUpdate().
		Model((*queueItemRecord)(nil)).
		Set("status = ?", string(core.QueueStatusPending)).
		Set("retry_count = retry_count + 1").
		Set("next_retry_at = ?", nextRetryAt.UTC()).
		Set("last_error = ?", lastError).
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Where("status = ?", string(core.QueueStatusProcessing)).
		Exec(ctx)
	return err
}

func (s *QueueStore) MarkFailed(ctx context.Context, id string, cause error) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: queue store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("sqlstore: queue item id is required")
	}

	lastError := ""
	if cause != nil {
		lastError = cause.Error()
	}
	now := time.Now().UTC()
	_, err := s.db.NewUpdate().
		Model((*queueItemRecord)(nil)).
		Set("status = ?", string(core.QueueStatusFailed)).
		Set("next_retry_at = NULL").
		Set("last_error = ?", lastError).
		Set("updated_at = ?", now).
		Where("id = ?", id).
		Where("status = ?", string(core.QueueStatusProcessing)).
		Exec(ctx)
	return err
}

// ReleaseStale returns rows stuck in processing since before the cutoff to
// pending. Retry counts are untouched; a lost worker is not a failed
// delivery attempt.
func (s *QueueStore) ReleaseStale(ctx context.Context, cutoff time.Time) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: queue store is not configured")
	}

	result, err := s.db.NewUpdate().
		Model((*queueItemRecord)(nil)).
		Set("status = ?", string(core.QueueStatusPending)).
		Set("updated_at = ?", time.Now().UTC()).
		Where("status = ?", string(core.QueueStatusProcessing)).
		Where("last_attempt_at IS NOT NULL").
		Where("last_attempt_at < ?", cutoff.UTC()).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}

func (s *QueueStore) Get(ctx context.Context, id string) (core.QueueItem, error) {
	if s == nil || s.repo == nil {
		return core.QueueItem{}, fmt.Errorf("sqlstore: queue store is not configured")
	}
	record, err := s.repo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return core.QueueItem{}, err
	}
	return record.toDomain(), nil
}

func (s *QueueStore) List(ctx context.Context, filter core.QueueFilter) ([]core.QueueItem, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("sqlstore: queue store is not configured")
	}

	query := s.db.NewSelect().
		Model((*queueItemRecord)(nil)).
		Order("created_at ASC")
	if strings.TrimSpace(string(filter.Status)) != "" {
		query = query.Where("?TableAlias.status = ?", string(filter.Status))
	}
	if strings.TrimSpace(filter.IntegrationID) != "" {
		query = query.Where("?TableAlias.integration_id = ?", strings.TrimSpace(filter.IntegrationID))
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var records []queueItemRecord
	if err := query.Scan(ctx, &records); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	items := make([]core.QueueItem, 0, len(records))
	for _, record := range records {
		items = append(items, record.toDomain())
	}
	return items, nil
}

func (s *QueueStore) Counts(ctx context.Context) (core.QueueCounts, error) {
	if s == nil || s.db == nil {
		return core.QueueCounts{}, fmt.Errorf("sqlstore: queue store is not configured")
	}

	var rows []struct {
		Status string `bun:"status"`
		Total  int    `bun:"total"`
	}
	err := s.db.NewSelect().
		Model((*queueItemRecord)(nil)).
		ColumnExpr("?TableAlias.status AS status").
		ColumnExpr("COUNT(*) AS total").
		GroupExpr("?TableAlias.status").
		Scan(ctx, &rows)
	if err != nil {
		return core.QueueCounts{}, err
	}

	counts := core.QueueCounts{}
	for _, row := range rows {
		switch core.QueueItemStatus(row.Status) {
		case core.QueueStatusPending:
			counts.Pending = row.Total
		case core.QueueStatusProcessing:
			counts.Processing = row.Total
		case core.QueueStatusSent:
			counts.Sent = row.Total
		case core.QueueStatusFailed:
			counts.Failed = row.Total
		}
	}
	return counts, nil
}
