package http

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/google/go-github/v75/github"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/drover/pkg/domain/types"
)

// WebhookHandler handles GitHub webhooks
type WebhookHandler struct {
	secret types.Secret
	router EventRouter
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(secret types.Secret, router EventRouter) *WebhookHandler {
	return &WebhookHandler{
		secret: secret,
		router: router,
	}
}

// webhookResponse acknowledges a delivery. RunIDs lists the runs the push
// queued; ignored deliveries return an empty list.
type webhookResponse struct {
	Status string   `json:"status"`
	RunIDs []string `json:"run_ids"`
}

// Handle processes webhook requests
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := ctxlog.From(ctx)

	// Read payload
	body, err := io.ReadAll(r.Body)
	if err != nil {
		logger.Error("Failed to read request body", "error", err)
		writeError(w, goerr.Wrap(err, "failed to read request body"), http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	// Verify signature
	signature := r.Header.Get("X-Hub-Signature-256")
	if !h.verifySignature(body, signature) {
		logger.Warn("Invalid webhook signature")
		writeError(w, goerr.New("invalid signature"), http.StatusUnauthorized)
		return
	}

	// Parse event using GitHub SDK
	eventType := r.Header.Get("X-GitHub-Event")
	payload, err := github.ParseWebHook(eventType, body)
	if err != nil {
		logger.Error("Failed to parse webhook payload", "error", err)
		writeError(w, goerr.Wrap(err, "invalid JSON payload"), http.StatusBadRequest)
		return
	}

	logger.Info("Received webhook delivery",
		"event_type", eventType,
		"delivery_id", r.Header.Get("X-GitHub-Delivery"),
	)

	runs, err := h.router.ProcessEvent(ctx, eventType, payload)
	if err != nil {
		logger.Error("Failed to process webhook event", "error", err)
		writeError(w, err, http.StatusInternalServerError)
		return
	}

	resp := webhookResponse{
		Status: "ignored",
		RunIDs: []string{},
	}
	if len(runs) > 0 {
		resp.Status = "queued"
		for _, run := range runs {
			resp.RunIDs = append(resp.RunIDs, run.ID)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error("Failed to encode webhook response", "error", err)
	}
}

// verifySignature verifies the webhook signature
func (h *WebhookHandler) verifySignature(payload []byte, signature string) bool {
	if signature == "" {
		return false
	}

	// Remove "sha256=" prefix if present
	signature = strings.TrimPrefix(signature, "sha256=")

	// Calculate HMAC-SHA256
	mac := hmac.New(sha256.New, []byte(h.secret.Unmask()))
	mac.Write(payload)
	expectedMAC := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(signature), []byte(expectedMAC))
}
