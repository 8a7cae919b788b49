package core

import (
	"fmt"
	"strings"
	"time"
)

type ContentType string

const (
	ContentTypeJSON ContentType = "json"
	ContentTypeXML  ContentType = "xml"
)

func ParseContentType(value string) (ContentType, error) {
	switch strings.TrimSpace(strings.ToLower(value)) {
	case "json", "application/json", "text/json":
		return ContentTypeJSON, nil
	case "xml", "application/xml", "text/xml":
		return ContentTypeXML, nil
	default:
		return "", fmt.Errorf("core: unsupported content type %q", value)
	}
}

type Platform string

const (
	PlatformSlack   Platform = "slack"
	PlatformDiscord Platform = "discord"
	PlatformTeams   Platform = "teams"
	PlatformWebhook Platform = "webhook"
)

func (p Platform) Valid() bool {
	switch p {
	case PlatformSlack, PlatformDiscord, PlatformTeams, PlatformWebhook:
		return true
	default:
		return false
	}
}

type QueueItemStatus string

const (
	QueueStatusPending    QueueItemStatus = "pending"
	QueueStatusProcessing QueueItemStatus = "processing"
	QueueStatusSent       QueueItemStatus = "sent"
	QueueStatusFailed     QueueItemStatus = "failed"
)

func (s QueueItemStatus) Terminal() bool {
	return s == QueueStatusSent || s == QueueStatusFailed
}

// Notification is the immutable record of one inbound event. It is created
// once at ingest and kept for audit; delivery works from QueueItem snapshots,
// never from the notification itself.
type Notification struct {
	ID          string
	TenantID    string
	EndpointID  string
	ContentType ContentType
	RawBody     []byte
	ReceivedAt  time.Time
}

// Integration is one configured outbound destination. The relay reads these;
// configuration management owns their lifecycle.
type Integration struct {
	ID             string
	TenantID       string
	EndpointID     string
	Platform       Platform
	WebhookURL     string
	Enabled        bool
	FilterConfigID string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// FieldFilterConfig is a named include/exclude rule set. Queue items capture
// the filtered payload at enqueue time, so later edits never touch in-flight
// deliveries.
type FieldFilterConfig struct {
	ID             string
	Name           string
	IncludedFields []string
	ExcludedFields []string
}

func (c FieldFilterConfig) Empty() bool {
	return len(c.IncludedFields) == 0 && len(c.ExcludedFields) == 0
}

// QueueItem is one (notification, integration) delivery attempt record. The
// webhook URL and platform are captured by value at enqueue time; integration
// edits after that point do not affect the item. Items are never deleted,
// only transitioned to a terminal status.
type QueueItem struct {
	ID             string
	NotificationID string
	IntegrationID  string
	WebhookURL     string
	Platform       Platform
	Payload        []byte
	Status         QueueItemStatus
	RetryCount     int
	CreatedAt      time.Time
	LastAttemptAt  *time.Time
	NextRetryAt    *time.Time
	LastError      string
}

type OutcomeKind string

const (
	OutcomeSuccess   OutcomeKind = "success"
	OutcomeRetryable OutcomeKind = "retryable"
	OutcomeTerminal  OutcomeKind = "terminal"
)

// Outcome classifies one delivery attempt. RetryAfter is populated only for
// 429 responses that carried a usable Retry-After header.
type Outcome struct {
	Kind       OutcomeKind
	StatusCode int
	Reason     string
	RetryAfter *time.Duration
	Latency    time.Duration
}

type IngestRequest struct {
	TenantID    string
	EndpointID  string
	ContentType string
	RawBody     []byte
	RemoteAddr  string
	Credentials map[string]string
}

// IntegrationSkip records one integration whose fan-out did not produce a
// pending queue item, with the reason. Skips never abort the fan-out for
// sibling integrations.
type IntegrationSkip struct {
	IntegrationID string
	Reason        string
}

type IngestResult struct {
	NotificationID string
	Enqueued       int
	FailedItems    int
	Skipped        []IntegrationSkip
}

// CycleSummary reports one processing pass.
type CycleSummary struct {
	Claimed int
	Sent    int
	Retried int
	Failed  int
}

type QueueCounts struct {
	Pending    int
	Processing int
	Sent       int
	Failed     int
}

// SettingQueueProcessingEnabled gates the processor. It is re-read on every
// cycle so an operator can halt or resume delivery without a restart.
const SettingQueueProcessingEnabled = "queue_processing_enabled"
