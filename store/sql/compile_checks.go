package sqlstore

import "github.com/goliatone/go-relay/core"

var (
	_ core.NotificationStore      = (*NotificationStore)(nil)
	_ core.IntegrationStore       = (*IntegrationStore)(nil)
	_ core.IntegrationStore       = (*CachedIntegrationStore)(nil)
	_ core.FilterConfigStore      = (*FilterConfigStore)(nil)
	_ core.QueueStore             = (*QueueStore)(nil)
	_ core.SettingStore           = (*SettingStore)(nil)
	_ core.StoreProvider          = (*RepositoryFactory)(nil)
	_ core.RepositoryStoreFactory = (*RepositoryFactory)(nil)
)
