package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/gelato_backoffice/config"
	"github.com/mmdatafocus/gelato_backoffice/utils"
	"github.com/mmdatafocus/gelato_backoffice/workflow"
	"github.com/sirupsen/logrus"
)

// PubSubMessage is the push envelope Pub/Sub posts to the endpoint.
type PubSubMessage struct {
	Message struct {
		Data []byte `json:"data,omitempty"`
		ID   string `json:"id"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// pubSubHandler runs a full reconciliation when a receipt of this store is
// verified. A new conference has no ledger rows yet, so a pending-only run
// would not see it.
func (h *Handler) pubSubHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var msg PubSubMessage
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			config.LogError(h.logger, "pubsubHandler.go", "pubSubHandler", "io.ReadAll", nil, err)
			// Malformed request body: ack/drop to avoid infinite retries.
			c.Status(http.StatusNoContent)
			return
		}
		// byte slice unmarshalling handles base64 decoding.
		if err := json.Unmarshal(body, &msg); err != nil {
			config.LogError(h.logger, "pubsubHandler.go", "pubSubHandler", "Unmarshal body", string(body), err)
			c.Status(http.StatusNoContent)
			return
		}
		var m config.ReceiptVerifiedMessage
		if err := json.Unmarshal(msg.Message.Data, &m); err != nil {
			config.LogError(h.logger, "pubsubHandler.go", "pubSubHandler", "Unmarshal pubsub message", string(msg.Message.Data), err)
			c.Status(http.StatusNoContent)
			return
		}
		if m.StoreId != "" && m.StoreId != h.storeId {
			c.Status(http.StatusNoContent)
			return
		}

		correlationId := m.CorrelationId
		if correlationId == "" {
			correlationId = msg.Message.ID
		}
		ctx := utils.SetCorrelationIdInContext(c.Request.Context(), correlationId)
		ctx = utils.SetUserNameInContext(ctx, "System")

		report, err := h.reconciler.Reconcile(ctx, false)
		if errors.Is(err, workflow.ErrRunInProgress) {
			// the running pass may have started before this receipt was stored; let Pub/Sub retry
			c.Status(http.StatusServiceUnavailable)
			return
		}
		if err != nil {
			h.logger.WithFields(logrus.Fields{
				"field":          "pubSubHandler",
				"store_id":       h.storeId,
				"conference_id":  m.ConferenceId,
				"message_id":     msg.Message.ID,
				"correlation_id": correlationId,
			}).Error("pubsub reconciliation failed: " + err.Error())
			// Non-2xx tells Pub/Sub to retry (and potentially route to DLQ).
			c.Status(http.StatusInternalServerError)
			return
		}
		h.remember(report)
		c.Status(http.StatusNoContent)
	}
}
