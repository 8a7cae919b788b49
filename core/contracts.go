package core

import (
	"context"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

// NotificationStore persists inbound events. Records are write-once.
type NotificationStore interface {
	Create(ctx context.Context, input CreateNotificationInput) (Notification, error)
	Get(ctx context.Context, id string) (Notification, error)
}

type CreateNotificationInput struct {
	TenantID    string
	EndpointID  string
	ContentType ContentType
	RawBody     []byte
	ReceivedAt  time.Time
}

// IntegrationStore resolves outbound destinations. Read-only to the relay;
// configuration management owns writes.
type IntegrationStore interface {
	Get(ctx context.Context, id string) (Integration, error)
	ListEnabledByEndpoint(ctx context.Context, tenantID string, endpointID string) ([]Integration, error)
}

type FilterConfigStore interface {
	Get(ctx context.Context, id string) (FieldFilterConfig, error)
}

// QueueStore is the durable delivery ledger. Claim operations must be atomic
// conditional writes: a pending item moves to processing exactly once no
// matter how many workers race for it. Terminal rows are never deleted and
// never transition again.
type QueueStore interface {
	Enqueue(ctx context.Context, input EnqueueInput) (QueueItem, error)
	// Claim attempts the pending -> processing transition for a single item.
	// The boolean reports whether this caller won the claim; losing the race
	// is not an error.
	Claim(ctx context.Context, id string, now time.Time) (QueueItem, bool, error)
	// ClaimDue atomically claims up to limit due pending items, oldest first.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]QueueItem, error)
	MarkSent(ctx context.Context, id string, at time.Time) error
	// MarkRetry returns the item to pending, increments retryCount and
	// schedules the next attempt.
	MarkRetry(ctx context.Context, id string, cause error, nextRetryAt time.Time) error
	MarkFailed(ctx context.Context, id string, cause error) error
	// ReleaseStale returns items stuck in processing since before the cutoff
	// back to pending without touching retryCount.
	ReleaseStale(ctx context.Context, cutoff time.Time) (int, error)
	Get(ctx context.Context, id string) (QueueItem, error)
	List(ctx context.Context, filter QueueFilter) ([]QueueItem, error)
	Counts(ctx context.Context) (QueueCounts, error)
}

type EnqueueInput struct {
	NotificationID string
	IntegrationID  string
	WebhookURL     string
	Platform       Platform
	Payload        []byte
	// InitialStatus defaults to pending. Extraction failures enqueue the
	// item directly as failed; a malformed document will not parse
	// differently on retry.
	InitialStatus QueueItemStatus
	LastError     string
	CreatedAt     time.Time
}

type QueueFilter struct {
	Status        QueueItemStatus
	IntegrationID string
	Limit         int
}

type SettingStore interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string) error
}

// AccessAuthorizer is the external permission collaborator consulted before
// a notification is accepted.
type AccessAuthorizer interface {
	IsAuthorized(ctx context.Context, tenantID string, endpointID string, credentials map[string]string) (bool, string, error)
}

// IPBlocklist is the external IP access collaborator. Entries may be
// permanent or time-bounded; the relay only asks the yes/no question.
type IPBlocklist interface {
	IsBlocked(ctx context.Context, address string) (bool, error)
}

// FilterEngine walks a structured document and applies include/exclude path
// rules. Filter returns a document of the same shape as the input, pruned.
type FilterEngine interface {
	Extract(body []byte, contentType ContentType) (map[string]string, error)
	Filter(body []byte, contentType ContentType, config FieldFilterConfig) ([]byte, error)
}

// PlatformSender formats and delivers one payload, classifying the result.
// It never returns a Go error for delivery failures; the Outcome carries
// the classification.
type PlatformSender interface {
	Send(ctx context.Context, platform Platform, url string, payload []byte) Outcome
}

type StoreProvider interface {
	NotificationStore() NotificationStore
	IntegrationStore() IntegrationStore
	FilterConfigStore() FilterConfigStore
	QueueStore() QueueStore
	SettingStore() SettingStore
}

type RepositoryStoreFactory interface {
	BuildStores(persistenceClient any) (StoreProvider, error)
}

// Job contracts mirror the go-job queue surface so the relay can schedule
// processing cycles without importing go-job from core. The gojob adapter
// maps between the two.

type JobExecutionMessage struct {
	JobID          string
	ScriptPath     string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobNackOptions struct {
	Delay      time.Duration
	Requeue    bool
	DeadLetter bool
	Reason     string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

type JobDelivery interface {
	Message() *JobExecutionMessage
	Ack(ctx context.Context) error
	Nack(ctx context.Context, opts JobNackOptions) error
}

type JobDequeuer interface {
	Dequeue(ctx context.Context) (JobDelivery, error)
}

type JobWorkerEvent struct {
	Message   *JobExecutionMessage
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

type JobWorkerHook interface {
	OnStart(ctx context.Context, event JobWorkerEvent)
	OnSuccess(ctx context.Context, event JobWorkerEvent)
	OnFailure(ctx context.Context, event JobWorkerEvent)
	OnRetry(ctx context.Context, event JobWorkerEvent)
}
