package http_test

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	controller "github.com/m-mizutani/drover/pkg/controller/http"
	"github.com/m-mizutani/drover/pkg/domain/model"
	"github.com/m-mizutani/drover/pkg/domain/types"
)

// stubRouter is an EventRouter that records deliveries
type stubRouter struct {
	events []string
	runs   []*model.Run
	err    error
}

func (s *stubRouter) ProcessEvent(ctx context.Context, eventType string, payload any) ([]*model.Run, error) {
	s.events = append(s.events, eventType)
	if s.err != nil {
		return nil, s.err
	}
	return s.runs, nil
}

// generateSignature generates HMAC-SHA256 signature for testing
func generateSignature(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

const pushPayload = `{
  "ref": "refs/heads/main",
  "after": "9f2c1d3e8b7a6c5d4e3f2a1b0c9d8e7f6a5b4c3d",
  "deleted": false,
  "repository": {"full_name": "acme/app", "clone_url": "https://github.com/acme/app.git"},
  "pusher": {"name": "octocat"}
}`

func postWebhook(handler *controller.WebhookHandler, eventType string, payload []byte, signature string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/hooks/github/app", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Event", eventType)
	req.Header.Set("X-GitHub-Delivery", "test-delivery")
	if signature != "" {
		req.Header.Set("X-Hub-Signature-256", signature)
	}

	w := httptest.NewRecorder()
	handler.Handle(w, req)
	return w
}

func TestWebhookHandler_SignatureVerification(t *testing.T) {
	secret := "test-secret"
	handler := controller.NewWebhookHandler(types.Secret(secret), &stubRouter{})

	tests := []struct {
		name           string
		payload        string
		signature      string
		wantStatusCode int
	}{
		{
			name:           "Valid signature",
			payload:        pushPayload,
			signature:      generateSignature(secret, []byte(pushPayload)),
			wantStatusCode: http.StatusOK,
		},
		{
			name:           "Invalid signature",
			payload:        pushPayload,
			signature:      "sha256=invalid",
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "Missing signature",
			payload:        pushPayload,
			signature:      "",
			wantStatusCode: http.StatusUnauthorized,
		},
		{
			name:           "Signature over different payload",
			payload:        pushPayload,
			signature:      generateSignature(secret, []byte(`{"tampered":true}`)),
			wantStatusCode: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postWebhook(handler, "push", []byte(tt.payload), tt.signature)
			if w.Code != tt.wantStatusCode {
				t.Errorf("Handle() status = %v, want %v", w.Code, tt.wantStatusCode)
			}
		})
	}
}

func TestWebhookHandler_PushQueuesRuns(t *testing.T) {
	secret := "test-secret"
	router := &stubRouter{
		runs: []*model.Run{{ID: "run-1"}, {ID: "run-2"}},
	}
	handler := controller.NewWebhookHandler(types.Secret(secret), router)

	payload := []byte(pushPayload)
	w := postWebhook(handler, "push", payload, generateSignature(secret, payload))

	if w.Code != http.StatusOK {
		t.Fatalf("Handle() status = %v, want %v", w.Code, http.StatusOK)
	}
	if len(router.events) != 1 || router.events[0] != "push" {
		t.Errorf("routed events = %v, want [push]", router.events)
	}

	var resp struct {
		Status string   `json:"status"`
		RunIDs []string `json:"run_ids"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "queued" {
		t.Errorf("status = %q, want %q", resp.Status, "queued")
	}
	if len(resp.RunIDs) != 2 || resp.RunIDs[0] != "run-1" || resp.RunIDs[1] != "run-2" {
		t.Errorf("run_ids = %v, want [run-1 run-2]", resp.RunIDs)
	}
}

func TestWebhookHandler_IgnoredDelivery(t *testing.T) {
	secret := "test-secret"
	handler := controller.NewWebhookHandler(types.Secret(secret), &stubRouter{})

	payload := []byte(pushPayload)
	w := postWebhook(handler, "push", payload, generateSignature(secret, payload))

	if w.Code != http.StatusOK {
		t.Fatalf("Handle() status = %v, want %v", w.Code, http.StatusOK)
	}

	var resp struct {
		Status string   `json:"status"`
		RunIDs []string `json:"run_ids"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "ignored" {
		t.Errorf("status = %q, want %q", resp.Status, "ignored")
	}
	if len(resp.RunIDs) != 0 {
		t.Errorf("run_ids = %v, want empty", resp.RunIDs)
	}
}

func TestWebhookHandler_RouterError(t *testing.T) {
	secret := "test-secret"
	handler := controller.NewWebhookHandler(types.Secret(secret), &stubRouter{err: errors.New("pipeline down")})

	payload := []byte(pushPayload)
	w := postWebhook(handler, "push", payload, generateSignature(secret, payload))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Handle() status = %v, want %v", w.Code, http.StatusInternalServerError)
	}
}

func TestWebhookHandler_InvalidJSON(t *testing.T) {
	secret := "test-secret"
	handler := controller.NewWebhookHandler(types.Secret(secret), &stubRouter{})

	payload := []byte("{not json")
	w := postWebhook(handler, "push", payload, generateSignature(secret, payload))

	if w.Code != http.StatusBadRequest {
		t.Errorf("Handle() status = %v, want %v", w.Code, http.StatusBadRequest)
	}
}
