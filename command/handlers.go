package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-relay/core"
)

// MutatingService is the slice of the relay facade the commands drive.
type MutatingService interface {
	Ingest(ctx context.Context, req core.IngestRequest) (core.IngestResult, error)
	ProcessQueueOnce(ctx context.Context, batchSize int) (core.CycleSummary, error)
	ReleaseStaleClaims(ctx context.Context) (int, error)
	SetQueueProcessing(ctx context.Context, enabled bool) error
}

type RelayNotificationCommand struct {
	service MutatingService
}

func NewRelayNotificationCommand(service MutatingService) *RelayNotificationCommand {
	return &RelayNotificationCommand{service: service}
}

func (c *RelayNotificationCommand) Execute(ctx context.Context, msg RelayNotificationMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: ingest service is required")
	}
	out, err := c.service.Ingest(ctx, msg.Request)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ProcessQueueCommand struct {
	service MutatingService
}

func NewProcessQueueCommand(service MutatingService) *ProcessQueueCommand {
	return &ProcessQueueCommand{service: service}
}

func (c *ProcessQueueCommand) Execute(ctx context.Context, msg ProcessQueueMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: queue service is required")
	}
	out, err := c.service.ProcessQueueOnce(ctx, msg.BatchSize)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type ReleaseStaleClaimsCommand struct {
	service MutatingService
}

func NewReleaseStaleClaimsCommand(service MutatingService) *ReleaseStaleClaimsCommand {
	return &ReleaseStaleClaimsCommand{service: service}
}

func (c *ReleaseStaleClaimsCommand) Execute(ctx context.Context, _ ReleaseStaleClaimsMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: queue service is required")
	}
	out, err := c.service.ReleaseStaleClaims(ctx)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type SetQueueProcessingCommand struct {
	service MutatingService
}

func NewSetQueueProcessingCommand(service MutatingService) *SetQueueProcessingCommand {
	return &SetQueueProcessingCommand{service: service}
}

func (c *SetQueueProcessingCommand) Execute(ctx context.Context, msg SetQueueProcessingMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: queue service is required")
	}
	return c.service.SetQueueProcessing(ctx, msg.Enabled)
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
