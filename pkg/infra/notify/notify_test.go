package notify_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/m-mizutani/gt"

	"github.com/m-mizutani/drover/pkg/domain/model"
	"github.com/m-mizutani/drover/pkg/domain/types"
	"github.com/m-mizutani/drover/pkg/infra/notify"
)

func TestDiscord_Notify(t *testing.T) {
	t.Run("posts content payload", func(t *testing.T) {
		var gotContentType string
		var payload map[string]string

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotContentType = r.Header.Get("Content-Type")
			body, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(body, &payload)
			w.WriteHeader(http.StatusNoContent)
		}))
		defer srv.Close()

		d := notify.NewDiscord(types.Secret(srv.URL))
		err := d.Notify(context.Background(), &model.Notification{
			Text:   "✅ drover: release for acme/app@9f2c1d3 (main) success",
			Status: model.StatusSuccess,
		})

		gt.NoError(t, err)
		gt.Value(t, gotContentType).Equal("application/json")
		gt.Value(t, payload["content"]).Equal("✅ drover: release for acme/app@9f2c1d3 (main) success")
	})

	t.Run("non-2xx response is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "rate limited", http.StatusTooManyRequests)
		}))
		defer srv.Close()

		d := notify.NewDiscord(types.Secret(srv.URL))
		err := d.Notify(context.Background(), &model.Notification{Text: "x"})

		gt.Error(t, err)
		gt.String(t, err.Error()).Contains("rejected")
	})

	t.Run("unreachable webhook is an error", func(t *testing.T) {
		d := notify.NewDiscord(types.Secret("http://127.0.0.1:1/hook"))
		err := d.Notify(context.Background(), &model.Notification{Text: "x"})
		gt.Error(t, err)
	})
}

func TestSlack_Notify(t *testing.T) {
	t.Run("posts colored attachment", func(t *testing.T) {
		var body []byte
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, _ = io.ReadAll(r.Body)
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		s := notify.NewSlack(types.Secret(srv.URL))
		err := s.Notify(context.Background(), &model.Notification{
			Text:   "❌ drover: release for acme/app@9f2c1d3 (main) failure",
			Status: model.StatusFailure,
		})

		gt.NoError(t, err)
		gt.String(t, string(body)).Contains("danger")
		gt.String(t, string(body)).Contains("failure")
	})

	t.Run("failed delivery is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "no_service", http.StatusNotFound)
		}))
		defer srv.Close()

		s := notify.NewSlack(types.Secret(srv.URL))
		err := s.Notify(context.Background(), &model.Notification{Text: "x"})
		gt.Error(t, err)
	})
}
