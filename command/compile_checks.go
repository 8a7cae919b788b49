package command

import gocmd "github.com/goliatone/go-command"

var (
	_ gocmd.Commander[RelayNotificationMessage]  = (*RelayNotificationCommand)(nil)
	_ gocmd.Commander[ProcessQueueMessage]       = (*ProcessQueueCommand)(nil)
	_ gocmd.Commander[ReleaseStaleClaimsMessage] = (*ReleaseStaleClaimsCommand)(nil)
	_ gocmd.Commander[SetQueueProcessingMessage] = (*SetQueueProcessingCommand)(nil)
)
