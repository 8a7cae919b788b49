package gojob

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-relay/core"
)

// QueueService is the slice of the relay facade the consumer drives.
type QueueService interface {
	ProcessQueueOnce(ctx context.Context, batchSize int) (core.CycleSummary, error)
	ReleaseStaleClaims(ctx context.Context) (int, error)
}

// Consumer dispatches dequeued relay job executions to the service. A
// scheduler enqueues ProcessQueue and ReleaseStale messages on whatever
// cadence the deployment wants; the consumer acks on success and nacks with
// a requeue delay on failure.
type Consumer struct {
	dequeuer  core.JobDequeuer
	service   QueueService
	nackDelay time.Duration
}

func NewConsumer(dequeuer core.JobDequeuer, service QueueService) (*Consumer, error) {
	if dequeuer == nil {
		return nil, fmt.Errorf("gojob: dequeuer is required")
	}
	if service == nil {
		return nil, fmt.Errorf("gojob: queue service is required")
	}
	return &Consumer{
		dequeuer:  dequeuer,
		service:   service,
		nackDelay: 30 * time.Second,
	}, nil
}

// ConsumeOne pulls a single delivery and executes it. Unknown job ids are
// dead-lettered so a bad schedule cannot spin forever.
func (c *Consumer) ConsumeOne(ctx context.Context) error {
	if c == nil || c.dequeuer == nil {
		return fmt.Errorf("gojob: consumer is not configured")
	}

	delivery, err := c.dequeuer.Dequeue(ctx)
	if err != nil {
		return err
	}
	if delivery == nil {
		return nil
	}

	msg := delivery.Message()
	if msg == nil {
		return delivery.Nack(ctx, core.JobNackOptions{
			DeadLetter: true,
			Reason:     "empty execution message",
		})
	}

	switch msg.JobID {
	case JobIDProcessQueue:
		_, err = c.service.ProcessQueueOnce(ctx, BatchSizeFromMessage(msg))
	case JobIDReleaseStale:
		_, err = c.service.ReleaseStaleClaims(ctx)
	default:
		return delivery.Nack(ctx, core.JobNackOptions{
			DeadLetter: true,
			Reason:     fmt.Sprintf("unknown job id %q", msg.JobID),
		})
	}

	if err != nil {
		return delivery.Nack(ctx, core.JobNackOptions{
			Delay:   c.nackDelay,
			Requeue: true,
			Reason:  err.Error(),
		})
	}
	return delivery.Ack(ctx)
}
