package relay

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/goliatone/go-relay/core"
	"github.com/goliatone/go-relay/filter"
	"github.com/goliatone/go-relay/ingest"
	"github.com/goliatone/go-relay/platforms"
	"github.com/goliatone/go-relay/queue"
)

// Service is the assembled relay: the ingest gateway, the queue processor
// and the queue inspection surface behind one facade. Construction resolves
// configuration and stores through the option set; the filter engine and
// platform sender default to the built-in implementations.
type Service struct {
	config    core.Config
	deps      core.ServiceDependencies
	gateway   *ingest.Gateway
	processor *queue.Processor
}

func NewService(cfg core.Config, opts ...core.Option) (*Service, error) {
	deps, finalConfig, err := core.ResolveDependencies(cfg, opts...)
	if err != nil {
		return nil, err
	}

	if deps.FilterEngine == nil {
		deps.FilterEngine = filter.NewEngine()
	}
	if deps.PlatformSender == nil {
		deps.PlatformSender = platforms.NewRegistry(
			platforms.WithLogger(deps.Logger),
		)
	}

	service := &Service{config: finalConfig, deps: deps}

	if deps.NotificationStore != nil && deps.IntegrationStore != nil &&
		deps.FilterConfigStore != nil && deps.QueueStore != nil {
		gatewayOptions := []ingest.GatewayOption{
			ingest.WithLogger(deps.Logger),
			ingest.WithMetrics(deps.MetricsRecorder),
		}
		if deps.Authorizer != nil {
			gatewayOptions = append(gatewayOptions, ingest.WithAuthorizer(deps.Authorizer))
		}
		if deps.Blocklist != nil {
			gatewayOptions = append(gatewayOptions, ingest.WithBlocklist(deps.Blocklist))
		}
		if deps.Now != nil {
			gatewayOptions = append(gatewayOptions, ingest.WithClock(deps.Now))
		}
		gateway, err := ingest.NewGateway(
			deps.NotificationStore,
			deps.IntegrationStore,
			deps.FilterConfigStore,
			deps.QueueStore,
			deps.FilterEngine,
			gatewayOptions...,
		)
		if err != nil {
			return nil, err
		}
		service.gateway = gateway
	}

	if deps.QueueStore != nil {
		processorOptions := []queue.ProcessorOption{
			queue.WithLogger(deps.Logger),
			queue.WithMetrics(deps.MetricsRecorder),
		}
		if deps.Now != nil {
			processorOptions = append(processorOptions, queue.WithClock(deps.Now))
		}
		processor, err := queue.NewProcessor(
			deps.QueueStore,
			deps.PlatformSender,
			deps.SettingStore,
			finalConfig.Queue,
			processorOptions...,
		)
		if err != nil {
			return nil, err
		}
		service.processor = processor
	}

	return service, nil
}

func Setup(cfg core.Config, opts ...core.Option) (*Service, error) {
	return NewService(cfg, opts...)
}

func (s *Service) Config() core.Config {
	if s == nil {
		return core.Config{}
	}
	return s.config
}

func (s *Service) Dependencies() core.ServiceDependencies {
	if s == nil {
		return core.ServiceDependencies{}
	}
	return s.deps
}

// Ingest accepts one inbound event and fans it out to the endpoint's
// enabled integrations.
func (s *Service) Ingest(ctx context.Context, request core.IngestRequest) (result core.IngestResult, err error) {
	startedAt := s.nowUTC()
	fields := map[string]any{
		"tenant_id":   request.TenantID,
		"endpoint_id": request.EndpointID,
	}
	defer func() {
		s.observeOperation(ctx, startedAt, "ingest", err, fields)
	}()

	if s == nil || s.gateway == nil {
		err = s.mapError(fmt.Errorf("relay: ingest gateway is not configured"))
		return core.IngestResult{}, err
	}
	result, err = s.gateway.Ingest(ctx, request)
	if err != nil {
		err = s.mapError(err)
		return core.IngestResult{}, err
	}
	fields["notification_id"] = result.NotificationID
	fields["enqueued"] = result.Enqueued
	return result, nil
}

// ProcessQueueOnce drains up to batchSize due items, bypassing the
// processing gate. Zero means the configured batch size.
func (s *Service) ProcessQueueOnce(ctx context.Context, batchSize int) (summary core.CycleSummary, err error) {
	startedAt := s.nowUTC()
	fields := map[string]any{"batch_size": batchSize}
	defer func() {
		s.observeOperation(ctx, startedAt, "process_queue", err, fields)
	}()

	if s == nil || s.processor == nil {
		err = s.mapError(fmt.Errorf("relay: queue processor is not configured"))
		return core.CycleSummary{}, err
	}
	summary, err = s.processor.RunOnce(ctx, batchSize)
	if err != nil {
		err = s.mapError(err)
		return core.CycleSummary{}, err
	}
	fields["claimed"] = summary.Claimed
	fields["sent"] = summary.Sent
	fields["retried"] = summary.Retried
	fields["failed"] = summary.Failed
	return summary, nil
}

// ProcessQueueCycle runs one full cycle: gate check, stale claim recovery,
// one batch.
func (s *Service) ProcessQueueCycle(ctx context.Context) (core.CycleSummary, error) {
	if s == nil || s.processor == nil {
		return core.CycleSummary{}, s.mapError(fmt.Errorf("relay: queue processor is not configured"))
	}
	summary, err := s.processor.RunCycle(ctx)
	if err != nil {
		return core.CycleSummary{}, s.mapError(err)
	}
	return summary, nil
}

// RunProcessor polls until the context is cancelled.
func (s *Service) RunProcessor(ctx context.Context) error {
	if s == nil || s.processor == nil {
		return s.mapError(fmt.Errorf("relay: queue processor is not configured"))
	}
	return s.processor.Run(ctx)
}

// ExtractFields enumerates the leaf paths of a document, the same view the
// filter rules operate on. Useful for building filter configs against a
// sample payload.
func (s *Service) ExtractFields(body []byte, contentType string) (map[string]string, error) {
	if s == nil || s.deps.FilterEngine == nil {
		return nil, s.mapError(fmt.Errorf("relay: filter engine is not configured"))
	}
	parsed, err := core.ParseContentType(contentType)
	if err != nil {
		return nil, s.mapError(err)
	}
	fields, err := s.deps.FilterEngine.Extract(body, parsed)
	if err != nil {
		return nil, s.mapError(err)
	}
	return fields, nil
}

func (s *Service) QueueItem(ctx context.Context, id string) (core.QueueItem, error) {
	if s == nil || s.deps.QueueStore == nil {
		return core.QueueItem{}, s.mapError(fmt.Errorf("relay: queue store is not configured"))
	}
	item, err := s.deps.QueueStore.Get(ctx, id)
	if err != nil {
		return core.QueueItem{}, s.mapError(err)
	}
	return item, nil
}

func (s *Service) ListQueueItems(ctx context.Context, filter core.QueueFilter) ([]core.QueueItem, error) {
	if s == nil || s.deps.QueueStore == nil {
		return nil, s.mapError(fmt.Errorf("relay: queue store is not configured"))
	}
	items, err := s.deps.QueueStore.List(ctx, filter)
	if err != nil {
		return nil, s.mapError(err)
	}
	return items, nil
}

func (s *Service) QueueCounts(ctx context.Context) (core.QueueCounts, error) {
	if s == nil || s.deps.QueueStore == nil {
		return core.QueueCounts{}, s.mapError(fmt.Errorf("relay: queue store is not configured"))
	}
	counts, err := s.deps.QueueStore.Counts(ctx)
	if err != nil {
		return core.QueueCounts{}, s.mapError(err)
	}
	return counts, nil
}

// ReleaseStaleClaims returns items stuck in processing past the configured
// claim lease back to pending.
func (s *Service) ReleaseStaleClaims(ctx context.Context) (int, error) {
	if s == nil || s.deps.QueueStore == nil {
		return 0, s.mapError(fmt.Errorf("relay: queue store is not configured"))
	}
	cutoff := s.nowUTC().Add(-s.config.Queue.ClaimLease())
	released, err := s.deps.QueueStore.ReleaseStale(ctx, cutoff)
	if err != nil {
		return 0, s.mapError(err)
	}
	if released > 0 {
		s.logInfo(ctx, "released stale queue claims", map[string]any{"released": released})
	}
	return released, nil
}

// SetQueueProcessing toggles the processing gate. The processor re-reads it
// each cycle, so the change takes effect on the next poll.
func (s *Service) SetQueueProcessing(ctx context.Context, enabled bool) error {
	if s == nil || s.deps.SettingStore == nil {
		return s.mapError(fmt.Errorf("relay: setting store is not configured"))
	}
	if err := s.deps.SettingStore.Set(ctx, core.SettingQueueProcessingEnabled, strconv.FormatBool(enabled)); err != nil {
		return s.mapError(err)
	}
	s.logInfo(ctx, "queue processing gate updated", map[string]any{"enabled": enabled})
	return nil
}

func (s *Service) QueueProcessingEnabled(ctx context.Context) (bool, error) {
	if s == nil || s.deps.SettingStore == nil {
		return true, nil
	}
	value, found, err := s.deps.SettingStore.Get(ctx, core.SettingQueueProcessingEnabled)
	if err != nil {
		return false, s.mapError(err)
	}
	if !found {
		return true, nil
	}
	enabled, parseErr := strconv.ParseBool(value)
	if parseErr != nil {
		return true, nil
	}
	return enabled, nil
}

func (s *Service) mapError(err error) error {
	if err == nil {
		return nil
	}
	if s == nil || s.deps.ErrorMapper == nil {
		return err
	}
	mapped := s.deps.ErrorMapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (s *Service) nowUTC() time.Time {
	if s != nil && s.deps.Now != nil {
		return s.deps.Now()
	}
	return time.Now().UTC()
}
