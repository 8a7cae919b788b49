package sqlstore

import (
	"time"

	"github.com/goliatone/go-relay/core"
	"github.com/uptrace/bun"
)

type notificationRecord struct {
	bun.BaseModel `bun:"table:relay_notifications,alias:rn"`

	ID          string    `bun:"id,pk"`
	TenantID    string    `bun:"tenant_id,notnull"`
	EndpointID  string    `bun:"endpoint_id,notnull"`
	ContentType string    `bun:"content_type,notnull"`
	RawBody     []byte    `bun:"raw_body,notnull"`
	ReceivedAt  time.Time `bun:"received_at,nullzero,notnull"`
	CreatedAt   time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func (r *notificationRecord) toDomain() core.Notification {
	if r == nil {
		return core.Notification{}
	}
	return core.Notification{
		ID:          r.ID,
		TenantID:    r.TenantID,
		EndpointID:  r.EndpointID,
		ContentType: core.ContentType(r.ContentType),
		RawBody:     append([]byte(nil), r.RawBody...),
		ReceivedAt:  r.ReceivedAt,
	}
}

type integrationRecord struct {
	bun.BaseModel `bun:"table:relay_integrations,alias:ri"`

	ID             string    `bun:"id,pk"`
	TenantID       string    `bun:"tenant_id,notnull"`
	EndpointID     string    `bun:"endpoint_id,notnull"`
	Platform       string    `bun:"platform,notnull"`
	WebhookURL     string    `bun:"webhook_url,notnull"`
	Enabled        bool      `bun:"enabled,notnull"`
	FilterConfigID string    `bun:"filter_config_id"`
	CreatedAt      time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func (r *integrationRecord) toDomain() core.Integration {
	if r == nil {
		return core.Integration{}
	}
	return core.Integration{
		ID:             r.ID,
		TenantID:       r.TenantID,
		EndpointID:     r.EndpointID,
		Platform:       core.Platform(r.Platform),
		WebhookURL:     r.WebhookURL,
		Enabled:        r.Enabled,
		FilterConfigID: r.FilterConfigID,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

type filterConfigRecord struct {
	bun.BaseModel `bun:"table:relay_filter_configs,alias:rfc"`

	ID             string    `bun:"id,pk"`
	Name           string    `bun:"name,notnull"`
	IncludedFields []string  `bun:"included_fields,type:jsonb,notnull"`
	ExcludedFields []string  `bun:"excluded_fields,type:jsonb,notnull"`
	CreatedAt      time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func (r *filterConfigRecord) toDomain() core.FieldFilterConfig {
	if r == nil {
		return core.FieldFilterConfig{}
	}
	return core.FieldFilterConfig{
		ID:             r.ID,
		Name:           r.Name,
		IncludedFields: append([]string(nil), r.IncludedFields...),
		ExcludedFields: append([]string(nil), r.ExcludedFields...),
	}
}

type queueItemRecord struct {
	bun.BaseModel `bun:"table:relay_queue_items,alias:rqi"`

	ID             string     `bun:"id,pk"`
	NotificationID string     `bun:"notification_id,notnull"`
	IntegrationID  string     `bun:"integration_id,notnull"`
	WebhookURL     string     `bun:"webhook_url,notnull"`
	Platform       string     `bun:"platform,notnull"`
	Payload        []byte     `bun:"payload,notnull"`
	Status         string     `bun:"status,notnull"`
	RetryCount     int        `bun:"retry_count,notnull"`
	LastAttemptAt  *time.Time `bun:"last_attempt_at,nullzero"`
	NextRetryAt    *time.Time `bun:"next_retry_at,nullzero"`
	LastError      string     `bun:"last_error"`
	CreatedAt      time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt      time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

func (r *queueItemRecord) toDomain() core.QueueItem {
	if r == nil {
		return core.QueueItem{}
	}
	item := core.QueueItem{
		ID:             r.ID,
		NotificationID: r.NotificationID,
		IntegrationID:  r.IntegrationID,
		WebhookURL:     r.WebhookURL,
		Platform:       core.Platform(r.Platform),
		Payload:        append([]byte(nil), r.Payload...),
		Status:         core.QueueItemStatus(r.Status),
		RetryCount:     r.RetryCount,
		CreatedAt:      r.CreatedAt,
		LastError:      r.LastError,
	}
	if r.LastAttemptAt != nil {
		attemptAt := *r.LastAttemptAt
		item.LastAttemptAt = &attemptAt
	}
	if r.NextRetryAt != nil {
		retryAt := *r.NextRetryAt
		item.NextRetryAt = &retryAt
	}
	return item
}

type settingRecord struct {
	bun.BaseModel `bun:"table:relay_settings,alias:rs"`

	Key       string    `bun:"key,pk"`
	Value     string    `bun:"value,notnull"`
	UpdatedAt time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
