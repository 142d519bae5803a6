package types

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

func validCreateRefundOrderRequest() *CreateRefundOrderRequest {
	return &CreateRefundOrderRequest{
		Id:           testPaymentID,
		Numb:         "R-0001",
		Reason:       "Помилковий платіж",
		PayerName:    "Іван Петренко",
		PayerEdrpou:  "1234567890",
		PayerEmail:   "payer@example.test",
		PaymentDate:  "2026-03-01",
		CourtCode:    "2604",
		Amount:       decimal.RequireFromString("100"),
		AmountAndFee: decimal.RequireFromString("101.5"),
	}
}

func TestNewCreateRefundOrderRequestFromContext(t *testing.T) {
	e := echo.New()
	body := `{"id":" ` + testPaymentID + ` ","numb":" R-1 ","notify_url":"  ","case_numb":" 910/1/26 ","amount":"10","amount_and_fee":10.25}`
	req := httptest.NewRequest(http.MethodPost, "/refund-orders", bytes.NewBufferString(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	ctx := e.NewContext(req, httptest.NewRecorder())

	parsed, err := NewCreateRefundOrderRequestFromContext(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if parsed.Id != testPaymentID || parsed.Numb != "R-1" {
		t.Fatalf("expected trimmed fields, got %+v", parsed)
	}
	if parsed.NotifyUrl != nil {
		t.Fatalf("expected blank notify_url dropped, got %q", *parsed.NotifyUrl)
	}
	if parsed.CaseNumb == nil || *parsed.CaseNumb != "910/1/26" {
		t.Fatalf("unexpected case_numb %v", parsed.CaseNumb)
	}
	if !parsed.AmountAndFee.Equal(decimal.RequireFromString("10.25")) {
		t.Fatalf("unexpected amount_and_fee %s", parsed.AmountAndFee)
	}
}

func TestCreateRefundOrderRequestValidate(t *testing.T) {
	if err := validCreateRefundOrderRequest().Validate(); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}

	badURL := "not a url"
	phone := int64(9999999999999)
	cases := []struct {
		name  string
		field string
		edit  func(r *CreateRefundOrderRequest)
	}{
		{name: "id", field: "id", edit: func(r *CreateRefundOrderRequest) { r.Id = "42" }},
		{name: "numb too long", field: "numb", edit: func(r *CreateRefundOrderRequest) { r.Numb = strings.Repeat("9", 11) }},
		{name: "reason missing", field: "reason", edit: func(r *CreateRefundOrderRequest) { r.Reason = "" }},
		{name: "notify url", field: "notify_url", edit: func(r *CreateRefundOrderRequest) { r.NotifyUrl = &badURL }},
		{name: "phone", field: "payer_phone", edit: func(r *CreateRefundOrderRequest) { r.PayerPhone = &phone }},
		{name: "email", field: "payer_email", edit: func(r *CreateRefundOrderRequest) { r.PayerEmail = "Payer <payer@example.test>" }},
		{name: "payment date", field: "payment_date", edit: func(r *CreateRefundOrderRequest) { r.PaymentDate = "01.03.2026" }},
		{name: "amount", field: "amount", edit: func(r *CreateRefundOrderRequest) { r.Amount = decimal.Zero }},
		{name: "fee below amount", field: "amount_and_fee", edit: func(r *CreateRefundOrderRequest) { r.AmountAndFee = decimal.RequireFromString("99.99") }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := validCreateRefundOrderRequest()
			tc.edit(r)
			err := r.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.field) {
				t.Fatalf("expected %s error, got %v", tc.field, err)
			}
		})
	}
}

func TestChangeRefundOrderStatusRequest(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPut, "/refund-orders/numb/R-1/status", bytes.NewBufferString(`{"status":3,"note":"  ","payment_id":"bad"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	ctx := e.NewContext(req, httptest.NewRecorder())
	ctx.SetParamNames("numb")
	ctx.SetParamValues("R-1")

	parsed, err := NewChangeRefundOrderStatusRequestFromContext(ctx)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if parsed.Numb != "R-1" || parsed.Status != 3 || parsed.Note != nil {
		t.Fatalf("unexpected request: %+v", parsed)
	}
	if err := parsed.Validate(); err == nil {
		t.Fatal("expected payment id validation error")
	}
	parsed.PaymentId = nil
	if err := parsed.Validate(); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}
}
