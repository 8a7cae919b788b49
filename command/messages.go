package command

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-relay/core"
)

const (
	TypeRelayNotification  = "relay.command.notification.relay"
	TypeProcessQueue       = "relay.command.queue.process"
	TypeReleaseStaleClaims = "relay.command.queue.release_stale"
	TypeSetQueueProcessing = "relay.command.queue.set_processing"
)

type RelayNotificationMessage struct {
	Request core.IngestRequest
}

func (RelayNotificationMessage) Type() string { return TypeRelayNotification }

func (m RelayNotificationMessage) Validate() error {
	if strings.TrimSpace(m.Request.TenantID) == "" {
		return fmt.Errorf("command: tenant id is required")
	}
	if strings.TrimSpace(m.Request.EndpointID) == "" {
		return fmt.Errorf("command: endpoint id is required")
	}
	if strings.TrimSpace(m.Request.ContentType) == "" {
		return fmt.Errorf("command: content type is required")
	}
	if len(m.Request.RawBody) == 0 {
		return fmt.Errorf("command: raw body is required")
	}
	return nil
}

type ProcessQueueMessage struct {
	// BatchSize 0 uses the configured default.
	BatchSize int
}

func (ProcessQueueMessage) Type() string { return TypeProcessQueue }

func (m ProcessQueueMessage) Validate() error {
	if m.BatchSize < 0 {
		return fmt.Errorf("command: batch size cannot be negative")
	}
	return nil
}

type ReleaseStaleClaimsMessage struct{}

func (ReleaseStaleClaimsMessage) Type() string { return TypeReleaseStaleClaims }

func (ReleaseStaleClaimsMessage) Validate() error { return nil }

type SetQueueProcessingMessage struct {
	Enabled bool
}

func (SetQueueProcessingMessage) Type() string { return TypeSetQueueProcessing }

func (SetQueueProcessingMessage) Validate() error { return nil }
