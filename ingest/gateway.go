package ingest

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/goliatone/go-relay/core"
	"github.com/goliatone/go-relay/filter"
)

// Gateway accepts inbound events and fans them out to every enabled
// integration on the receiving endpoint. Each accepted event creates one
// immutable notification and up to one queue item per integration; the
// payload is filtered once here and snapshotted onto the item, so later
// filter edits never alter in-flight deliveries.
type Gateway struct {
	notifications core.NotificationStore
	integrations  core.IntegrationStore
	filterConfigs core.FilterConfigStore
	queue         core.QueueStore
	engine        core.FilterEngine
	authorizer    core.AccessAuthorizer
	blocklist     core.IPBlocklist
	logger        core.Logger
	metrics       core.MetricsRecorder
	now           func() time.Time
}

type GatewayOption func(*Gateway)

func WithAuthorizer(authorizer core.AccessAuthorizer) GatewayOption {
	return func(g *Gateway) {
		g.authorizer = authorizer
	}
}

func WithBlocklist(blocklist core.IPBlocklist) GatewayOption {
	return func(g *Gateway) {
		g.blocklist = blocklist
	}
}

func WithLogger(logger core.Logger) GatewayOption {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

func WithMetrics(recorder core.MetricsRecorder) GatewayOption {
	return func(g *Gateway) {
		if recorder != nil {
			g.metrics = recorder
		}
	}
}

func WithClock(now func() time.Time) GatewayOption {
	return func(g *Gateway) {
		if now != nil {
			g.now = now
		}
	}
}

func NewGateway(
	notifications core.NotificationStore,
	integrations core.IntegrationStore,
	filterConfigs core.FilterConfigStore,
	queue core.QueueStore,
	engine core.FilterEngine,
	options ...GatewayOption,
) (*Gateway, error) {
	if notifications == nil || integrations == nil || filterConfigs == nil || queue == nil {
		return nil, fmt.Errorf("ingest: gateway requires notification, integration, filter config and queue stores")
	}
	if engine == nil {
		return nil, fmt.Errorf("ingest: gateway requires a filter engine")
	}
	gateway := &Gateway{
		notifications: notifications,
		integrations:  integrations,
		filterConfigs: filterConfigs,
		queue:         queue,
		engine:        engine,
		metrics:       core.NopMetricsRecorder{},
		now: func() time.Time {
			return time.Now().UTC()
		},
	}
	for _, option := range options {
		option(gateway)
	}
	return gateway, nil
}

// Ingest validates and accepts one inbound event. Rejections return an
// error without creating any record; per-integration problems during the
// fan-out never abort sibling integrations and are reported as skips or
// failed items in the result.
func (g *Gateway) Ingest(ctx context.Context, request core.IngestRequest) (core.IngestResult, error) {
	if g == nil {
		return core.IngestResult{}, ingestInternal(nil, "ingest: gateway is nil", nil)
	}

	tenantID := strings.TrimSpace(request.TenantID)
	endpointID := strings.TrimSpace(request.EndpointID)
	if tenantID == "" {
		return core.IngestResult{}, ingestBadInput("ingest: tenant id is required", nil)
	}
	if endpointID == "" {
		return core.IngestResult{}, ingestBadInput("ingest: endpoint id is required", nil)
	}
	if len(request.RawBody) == 0 {
		return core.IngestResult{}, ingestBadInput("ingest: request body is empty", nil)
	}
	contentType, err := core.ParseContentType(request.ContentType)
	if err != nil {
		return core.IngestResult{}, ingestBadInput(err.Error(), map[string]any{
			"content_type": request.ContentType,
		})
	}

	if err := g.checkAccess(ctx, tenantID, endpointID, request); err != nil {
		return core.IngestResult{}, err
	}

	notification, err := g.notifications.Create(ctx, core.CreateNotificationInput{
		TenantID:    tenantID,
		EndpointID:  endpointID,
		ContentType: contentType,
		RawBody:     request.RawBody,
		ReceivedAt:  g.now(),
	})
	if err != nil {
		return core.IngestResult{}, ingestInternal(err, "ingest: create notification", nil)
	}

	integrations, err := g.integrations.ListEnabledByEndpoint(ctx, tenantID, endpointID)
	if err != nil {
		return core.IngestResult{}, ingestInternal(err, "ingest: list integrations", map[string]any{
			"notification_id": notification.ID,
		})
	}

	result := core.IngestResult{NotificationID: notification.ID}
	for _, integration := range integrations {
		g.fanOut(ctx, notification, integration, contentType, &result)
	}

	g.metrics.IncCounter(ctx, "relay.ingest.accepted", 1, map[string]string{"endpoint": endpointID})
	g.metrics.IncCounter(ctx, "relay.ingest.enqueued", int64(result.Enqueued), map[string]string{"endpoint": endpointID})
	g.logInfo("notification accepted",
		"notification_id", notification.ID,
		"tenant_id", tenantID,
		"endpoint_id", endpointID,
		"enqueued", result.Enqueued,
		"failed_items", result.FailedItems,
		"skipped", len(result.Skipped),
	)
	return result, nil
}

func (g *Gateway) checkAccess(ctx context.Context, tenantID string, endpointID string, request core.IngestRequest) error {
	if g.blocklist != nil {
		address := remoteIP(request.RemoteAddr)
		if address != "" {
			blocked, err := g.blocklist.IsBlocked(ctx, address)
			if err != nil {
				return ingestInternal(err, "ingest: ip access check", nil)
			}
			if blocked {
				return ingestAccessDenied("ingest: source address is blocked", map[string]any{
					"remote_addr": address,
				})
			}
		}
	}
	if g.authorizer != nil {
		allowed, reason, err := g.authorizer.IsAuthorized(ctx, tenantID, endpointID, request.Credentials)
		if err != nil {
			return ingestInternal(err, "ingest: authorization check", nil)
		}
		if !allowed {
			if strings.TrimSpace(reason) == "" {
				reason = "not authorized"
			}
			return ingestAccessDenied("ingest: "+reason, map[string]any{
				"tenant_id":   tenantID,
				"endpoint_id": endpointID,
			})
		}
	}
	return nil
}

// fanOut resolves the integration's filter, snapshots the filtered payload
// and enqueues one item. A missing filter config skips the integration; a
// document that fails extraction enqueues the item directly as failed so
// the attempt is on the ledger without burning retries on bytes that will
// never parse.
func (g *Gateway) fanOut(ctx context.Context, notification core.Notification, integration core.Integration, contentType core.ContentType, result *core.IngestResult) {
	config := core.FieldFilterConfig{}
	if strings.TrimSpace(integration.FilterConfigID) != "" {
		resolved, err := g.filterConfigs.Get(ctx, integration.FilterConfigID)
		if err != nil {
			result.Skipped = append(result.Skipped, core.IntegrationSkip{
				IntegrationID: integration.ID,
				Reason:        fmt.Sprintf("filter config %q unavailable: %v", integration.FilterConfigID, err),
			})
			g.logError("integration skipped", err, "integration_id", integration.ID)
			return
		}
		config = resolved
	}

	payload, err := g.engine.Filter(notification.RawBody, contentType, config)
	if err != nil {
		if filter.IsExtractionError(err) {
			if _, enqueueErr := g.queue.Enqueue(ctx, core.EnqueueInput{
				NotificationID: notification.ID,
				IntegrationID:  integration.ID,
				WebhookURL:     integration.WebhookURL,
				Platform:       integration.Platform,
				Payload:        notification.RawBody,
				InitialStatus:  core.QueueStatusFailed,
				LastError:      err.Error(),
				CreatedAt:      g.now(),
			}); enqueueErr != nil {
				result.Skipped = append(result.Skipped, core.IntegrationSkip{
					IntegrationID: integration.ID,
					Reason:        fmt.Sprintf("enqueue failed item: %v", enqueueErr),
				})
				return
			}
			result.FailedItems++
			g.logError("document extraction failed", err, "integration_id", integration.ID)
			return
		}
		result.Skipped = append(result.Skipped, core.IntegrationSkip{
			IntegrationID: integration.ID,
			Reason:        fmt.Sprintf("filter payload: %v", err),
		})
		g.logError("integration skipped", err, "integration_id", integration.ID)
		return
	}

	if _, err := g.queue.Enqueue(ctx, core.EnqueueInput{
		NotificationID: notification.ID,
		IntegrationID:  integration.ID,
		WebhookURL:     integration.WebhookURL,
		Platform:       integration.Platform,
		Payload:        payload,
		CreatedAt:      g.now(),
	}); err != nil {
		result.Skipped = append(result.Skipped, core.IntegrationSkip{
			IntegrationID: integration.ID,
			Reason:        fmt.Sprintf("enqueue: %v", err),
		})
		g.logError("integration skipped", err, "integration_id", integration.ID)
		return
	}
	result.Enqueued++
}

func remoteIP(remoteAddr string) string {
	remoteAddr = strings.TrimSpace(remoteAddr)
	if remoteAddr == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(remoteAddr); err == nil {
		return host
	}
	return remoteAddr
}

func (g *Gateway) logInfo(message string, args ...any) {
	if g.logger != nil {
		g.logger.Info(message, args...)
	}
}

func (g *Gateway) logError(message string, err error, args ...any) {
	if g.logger != nil {
		g.logger.Error(message, append(args, "error", err.Error())...)
	}
}
