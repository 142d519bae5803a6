package provider

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestNormalizeDescription(t *testing.T) {
	got := NormalizeDescription("Invoice #12 and #a, tag#3")
	if got != "Invoice №12 and #a, tag#3" {
		t.Fatalf("unexpected description %q", got)
	}
}

func TestCreateActionRequest(t *testing.T) {
	var path string
	var req struct {
		RefParam string                 `json:"refParam"`
		Body     map[string]interface{} `json:"body"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		user, pass, ok := r.BasicAuth()
		if !ok || user != "u" || pass != "p" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &req)
		_, _ = w.Write([]byte(`{"refParam":"x","code":"0","message":"accepted","body":{"actionId":555}}`))
	}))
	defer srv.Close()

	client, err := NewSettlementClient(SettlementConfig{URL: srv.URL + "/api/", BasicUsername: "u", BasicPassword: "p", TerminalID: 42})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := client.CreateAction(context.Background(), &ActionRequest{
		ProcessingID:  "777",
		TransactionID: "tx-1",
		Currency:      "980",
		Amount:        decimal.RequireFromString("12.5"),
		IBAN:          "UA000000000000000000000000000",
		Name:          "Recipient",
		OKPO:          "12345678",
		Description:   "Order #7",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if path != "/api/c2aTermPayment" {
		t.Fatalf("unexpected path %s", path)
	}
	if req.RefParam == "" {
		t.Fatal("expected refParam")
	}
	if req.Body["terminalContractId"] != float64(42) || req.Body["tslId"] != "tx-1" || req.Body["desc"] != "Order №7" {
		t.Fatalf("unexpected body %v", req.Body)
	}
	if req.Body["amount"] != 12.5 {
		t.Fatalf("expected numeric amount, got %#v", req.Body["amount"])
	}
	if result.Code != 0 || result.ActionID == nil || *result.ActionID != 555 || result.Message == nil || *result.Message != "accepted" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestGetActionStatusParsesActionTime(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"refParam":"x","code":0,"body":{"actionStatus":"POSTED","actionTime":"05.03.2026 14:30:00"}}`))
	}))
	defer srv.Close()

	zone := time.FixedZone("EET", 2*60*60)
	client, err := NewSettlementClient(SettlementConfig{URL: srv.URL, Location: zone})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := client.GetActionStatus(context.Background(), 555)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ActionStatus == nil || *result.ActionStatus != "POSTED" {
		t.Fatalf("unexpected status %+v", result)
	}
	want := time.Date(2026, 3, 5, 12, 30, 0, 0, time.UTC)
	if result.ActionTime == nil || !result.ActionTime.Equal(want) {
		t.Fatalf("unexpected action time %v", result.ActionTime)
	}
}

func TestGetActionStatusRejectsBadActionTime(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"code":0,"body":{"actionStatus":"POSTED","actionTime":"31.02.2026 14:30:00"}}`))
	}))
	defer srv.Close()

	client, _ := NewSettlementClient(SettlementConfig{URL: srv.URL})
	if _, err := client.GetActionStatus(context.Background(), 1); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestSettlementErrorCarriesRemoteCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":17,"message":"bad iban"}`))
	}))
	defer srv.Close()

	client, _ := NewSettlementClient(SettlementConfig{URL: srv.URL})
	_, err := client.GetActionStatus(context.Background(), 1)

	var remote *RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("expected RemoteError, got %v", err)
	}
	if remote.Code == nil || *remote.Code != 17 {
		t.Fatalf("expected remote code 17, got %v", remote.Code)
	}
}

func TestSettlementMissingCertificate(t *testing.T) {
	if _, err := NewSettlementClient(SettlementConfig{URL: "http://x", CertificatePath: "/nonexistent/cert.p12"}); err == nil {
		t.Fatal("expected error for missing certificate")
	}
}
