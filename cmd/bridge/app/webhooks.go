package app

import (
	"context"

	"github.com/zohobridge/mcp-gateway/pkg/logger"
	"github.com/zohobridge/mcp-gateway/pkg/webhookrouter"
)

// registerWebhookHandlers binds the upstream event types this bridge
// accepts deliveries for. The bridge has no domain store of its own to
// invalidate or notify (the upstream APIs remain the system of record,
// and the response cache tolerates staleness rather than tracking
// write-invalidation) so acceptance here amounts to a durable,
// deduplicated acknowledgement that the event arrived; surfacing it to
// a conversation is outside this process's request-processing scope.
func registerWebhookHandlers(router *webhookrouter.Router) {
	for _, eventType := range []string{"task.created", "task.updated", "task.deleted", "file.uploaded"} {
		router.RegisterHandler(eventType, logWebhookEvent)
	}
}

func logWebhookEvent(_ context.Context, event webhookrouter.Event) error {
	logger.Infow("accepted webhook delivery", "delivery-id", event.DeliveryID, "type", event.Type)
	return nil
}
