package relay

import "github.com/goliatone/go-relay/core"

type Config = core.Config

type QueueConfig = core.QueueConfig

type Option = core.Option

type ServiceDependencies = core.ServiceDependencies

type IngestRequest = core.IngestRequest
type IngestResult = core.IngestResult
type CycleSummary = core.CycleSummary
type QueueItem = core.QueueItem
type QueueFilter = core.QueueFilter
type QueueCounts = core.QueueCounts
type Notification = core.Notification
type Integration = core.Integration
type FieldFilterConfig = core.FieldFilterConfig
type Outcome = core.Outcome
type Platform = core.Platform
type ContentType = core.ContentType

var (
	WithLogger            = core.WithLogger
	WithLoggerProvider    = core.WithLoggerProvider
	WithMetricsRecorder   = core.WithMetricsRecorder
	WithErrorFactory      = core.WithErrorFactory
	WithErrorMapper       = core.WithErrorMapper
	WithPersistenceClient = core.WithPersistenceClient
	WithRepositoryFactory = core.WithRepositoryFactory
	WithConfigProvider    = core.WithConfigProvider
	WithOptionsResolver   = core.WithOptionsResolver
	WithFilterEngine      = core.WithFilterEngine
	WithPlatformSender    = core.WithPlatformSender
	WithAccessAuthorizer  = core.WithAccessAuthorizer
	WithIPBlocklist       = core.WithIPBlocklist
	WithNotificationStore = core.WithNotificationStore
	WithIntegrationStore  = core.WithIntegrationStore
	WithFilterConfigStore = core.WithFilterConfigStore
	WithQueueStore        = core.WithQueueStore
	WithSettingStore      = core.WithSettingStore
)

func DefaultConfig() Config {
	return core.DefaultConfig()
}
