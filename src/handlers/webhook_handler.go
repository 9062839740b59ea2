// backend/src/handlers/webhook_handler.go
package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"sort"

	"github.com/username/isincheck/backend/src/logger"
	"github.com/username/isincheck/backend/src/utils"
)

const maxWebhookBodyBytes = 1 << 20

type WebhookHandler struct{}

func NewWebhookHandler() *WebhookHandler {
	return &WebhookHandler{}
}

// HandleFinnhubWebhook acknowledges provider callbacks. The provider expects a
// fast 2xx or it retries and eventually disables the webhook, so the response
// goes out before the payload is inspected.
func (h *WebhookHandler) HandleFinnhubWebhook(w http.ResponseWriter, r *http.Request) {
	requestID, _ := RequestIDFromContext(r.Context())

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes))
	if err != nil {
		logger.L.Warn("Failed to read webhook payload", "requestID", requestID, "error", err)
		body = nil
	}

	utils.SendJSON(w, map[string]bool{"received": true}, http.StatusOK)

	go logWebhookPayload(requestID, body)
}

// logWebhookPayload records only the top-level payload keys. Payload values
// may carry subscription data we have no use for and should not persist in logs.
func logWebhookPayload(requestID string, body []byte) {
	if len(body) == 0 {
		logger.L.Info("Webhook received with empty payload", "requestID", requestID)
		return
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		logger.L.Warn("Webhook payload is not a JSON object", "requestID", requestID, "bytes", len(body))
		return
	}

	keys := make([]string, 0, len(payload))
	for key := range payload {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	logger.L.Info("Webhook received", "requestID", requestID, "keys", keys)
}
