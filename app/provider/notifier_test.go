package provider

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func tokenServer(t *testing.T, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok-1","token_type":"bearer","expires_in":3600}`))
	}))
}

func TestDeliverUsesCachedBearerToken(t *testing.T) {
	var tokenHits atomic.Int32
	tokens := tokenServer(t, &tokenHits)
	defer tokens.Close()

	var got PaymentNotification
	var auth string
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer hook.Close()

	notifier := NewWebhookNotifier(NotifierConfig{TokenURL: tokens.URL, ClientID: "id", ClientSecret: "secret", Scope: "paysvit-server"})
	code := int32(100)
	n := &PaymentNotification{OrderID: "o-1", IsFinished: true, Code: &code}

	for i := 0; i < 2; i++ {
		if err := notifier.Deliver(context.Background(), hook.URL, n); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if auth != "Bearer tok-1" {
		t.Fatalf("unexpected authorization %q", auth)
	}
	if got.OrderID != "o-1" || got.Code == nil || *got.Code != 100 || !got.IsFinished {
		t.Fatalf("unexpected payload %+v", got)
	}
	if tokenHits.Load() != 1 {
		t.Fatalf("expected token fetched once, got %d", tokenHits.Load())
	}
}

func TestDeliverRejectsUnexpectedStatus(t *testing.T) {
	var tokenHits atomic.Int32
	tokens := tokenServer(t, &tokenHits)
	defer tokens.Close()

	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer hook.Close()

	notifier := NewWebhookNotifier(NotifierConfig{TokenURL: tokens.URL, ClientID: "id", ClientSecret: "secret"})
	err := notifier.Deliver(context.Background(), hook.URL, &PaymentNotification{OrderID: "o-1"})

	var remote *RemoteError
	if !errors.As(err, &remote) || remote.StatusCode != http.StatusAccepted {
		t.Fatalf("expected RemoteError with 202, got %v", err)
	}
}

func TestDeliverTokenFailure(t *testing.T) {
	tokens := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer tokens.Close()

	notifier := NewWebhookNotifier(NotifierConfig{TokenURL: tokens.URL, ClientID: "id", ClientSecret: "bad"})
	if err := notifier.Deliver(context.Background(), "http://127.0.0.1:1/hook", &PaymentNotification{}); err == nil {
		t.Fatal("expected token error")
	}
}

func TestNotificationNullFields(t *testing.T) {
	payload, err := marshalJSON(&PaymentNotification{OrderID: "o-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var decoded map[string]interface{}
	_ = json.Unmarshal(payload, &decoded)
	for _, key := range []string{"code", "message", "paymentTime"} {
		v, ok := decoded[key]
		if !ok || v != nil {
			t.Fatalf("expected %s to be present and null, got %v", key, v)
		}
	}
}
