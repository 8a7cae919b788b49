package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/goliatone/go-relay/core"
)

const integrationCacheKeyPrefix = "go-relay::integrations::v1"

// CachedIntegrationStore fronts integration reads with a cache. The hot
// path is the per-ingest ListEnabledByEndpoint lookup, which is identical
// for every event on the same endpoint.
type CachedIntegrationStore struct {
	base  core.IntegrationStore
	cache repositorycache.CacheService
}

func NewCachedIntegrationStore(
	base core.IntegrationStore,
	cacheService repositorycache.CacheService,
) (*CachedIntegrationStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base integration store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: integration cache service is required")
	}
	return &CachedIntegrationStore{base: base, cache: cacheService}, nil
}

// IntegrationCacheKey is the deterministic key contract for single
// integration reads: go-relay::integrations::v1::id::<id>.
func IntegrationCacheKey(id string) (string, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("sqlstore: integration id is required")
	}
	return strings.Join([]string{integrationCacheKeyPrefix, "id", url.PathEscape(id)}, "::"), nil
}

// EndpointIntegrationsCacheKey is the key contract for endpoint listings:
// go-relay::integrations::v1::endpoint::<tenant>::<endpoint>.
func EndpointIntegrationsCacheKey(tenantID string, endpointID string) (string, error) {
	tenantID = strings.TrimSpace(tenantID)
	endpointID = strings.TrimSpace(endpointID)
	if tenantID == "" || endpointID == "" {
		return "", fmt.Errorf("sqlstore: tenant id and endpoint id are required")
	}
	return strings.Join([]string{
		integrationCacheKeyPrefix,
		"endpoint",
		url.PathEscape(tenantID),
		url.PathEscape(endpointID),
	}, "::"), nil
}

func (s *CachedIntegrationStore) Get(ctx context.Context, id string) (core.Integration, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Integration{}, fmt.Errorf("sqlstore: cached integration store is not configured")
	}
	cacheKey, err := IntegrationCacheKey(id)
	if err != nil {
		return core.Integration{}, err
	}
	return repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.Integration, error) {
		return s.base.Get(ctx, strings.TrimSpace(id))
	})
}

func (s *CachedIntegrationStore) ListEnabledByEndpoint(ctx context.Context, tenantID string, endpointID string) ([]core.Integration, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return nil, fmt.Errorf("sqlstore: cached integration store is not configured")
	}
	cacheKey, err := EndpointIntegrationsCacheKey(tenantID, endpointID)
	if err != nil {
		return nil, err
	}
	integrations, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) ([]core.Integration, error) {
		return s.base.ListEnabledByEndpoint(ctx, strings.TrimSpace(tenantID), strings.TrimSpace(endpointID))
	})
	if err != nil {
		return nil, err
	}
	return append([]core.Integration(nil), integrations...), nil
}

// Invalidate drops the cached entries for one integration and its endpoint
// listing. Call it after configuration changes.
func (s *CachedIntegrationStore) Invalidate(ctx context.Context, integration core.Integration) error {
	if s == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached integration store is not configured")
	}
	if key, err := IntegrationCacheKey(integration.ID); err == nil {
		if deleteErr := s.cache.Delete(ctx, key); deleteErr != nil {
			return deleteErr
		}
	}
	if key, err := EndpointIntegrationsCacheKey(integration.TenantID, integration.EndpointID); err == nil {
		if deleteErr := s.cache.Delete(ctx, key); deleteErr != nil {
			return deleteErr
		}
	}
	return nil
}

var _ core.IntegrationStore = (*CachedIntegrationStore)(nil)
