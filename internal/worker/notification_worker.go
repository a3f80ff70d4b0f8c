package worker

import (
	"go.uber.org/zap"

	"github.com/spec-kit/support-desk/internal/events"
	"github.com/spec-kit/support-desk/internal/realtime"
	"github.com/spec-kit/support-desk/internal/service"
)

// Subscribers bundles the background consumers of domain events. Nil
// members are skipped.
type Subscribers struct {
	Notifications *service.NotificationService
	Forwarder     *realtime.Forwarder
}

// StartEventWorkers registers every configured subscriber on dispatcher.
func StartEventWorkers(dispatcher events.Dispatcher, subs Subscribers, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if subs.Notifications != nil {
		subs.Notifications.RegisterHandlers()
		logger.Info("notification worker started")
	}
	if subs.Forwarder != nil {
		subs.Forwarder.Register(dispatcher)
		logger.Info("realtime forwarder started")
	}
}
