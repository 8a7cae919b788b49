package sqlstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-relay/core"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type NotificationStore struct {
	db   *bun.DB
	repo repository.Repository[*notificationRecord]
}

func (s *NotificationStore) Create(ctx context.Context, in core.CreateNotificationInput) (core.Notification, error) {
	if s == nil || s.repo == nil {
		return core.Notification{}, fmt.Errorf("sqlstore: notification store is not configured")
	}
	tenantID := strings.TrimSpace(in.TenantID)
	endpointID := strings.TrimSpace(in.EndpointID)
	if tenantID == "" {
		return core.Notification{}, fmt.Errorf("sqlstore: tenant id is required")
	}
	if endpointID == "" {
		return core.Notification{}, fmt.Errorf("sqlstore: endpoint id is required")
	}
	if len(in.RawBody) == 0 {
		return core.Notification{}, fmt.Errorf("sqlstore: raw body is required")
	}

	receivedAt := in.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now().UTC()
	}
	record := &notificationRecord{
		ID:          uuid.NewString(),
		TenantID:    tenantID,
		EndpointID:  endpointID,
		ContentType: string(in.ContentType),
		RawBody:     append([]byte(nil), in.RawBody...),
		ReceivedAt:  receivedAt.UTC(),
		CreatedAt:   time.Now().UTC(),
	}

	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return core.Notification{}, err
	}
	return created.toDomain(), nil
}

func (s *NotificationStore) Get(ctx context.Context, id string) (core.Notification, error) {
	if s == nil || s.repo == nil {
		return core.Notification{}, fmt.Errorf("sqlstore: notification store is not configured")
	}
	record, err := s.repo.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return core.Notification{}, err
	}
	return record.toDomain(), nil
}
