package sqlstore

import (
	"context"
	"fmt"
	"strings"

	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-relay/core"
	"github.com/uptrace/bun"
)

type FilterConfigStore struct {
	db   *bun.DB
	repo repository.Repository[*filterConfigRecord]
}

func (s *FilterConfigStore) Get(ctx context.Context, id string) (core.FieldFilterConfig, error) {
	if s == nil || s.repo == nil {
		return core.FieldFilterConfig{}, fmt.Errorf("sqlstore: filter config store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return core.FieldFilterConfig{}, fmt.Errorf("sqlstore: filter config id is required")
	}
	record, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return core.FieldFilterConfig{}, err
	}
	return record.toDomain(), nil
}
