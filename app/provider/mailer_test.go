package provider

import (
	"context"
	"net/smtp"
	"strings"
	"testing"

	"github.com/jordan-wright/email"
	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-paylink/app/entity"
)

func TestSendRefundPayerEmail(t *testing.T) {
	mailer := NewSMTPMailer(MailerConfig{
		Host:         "smtp.example.com",
		Port:         587,
		Username:     "user",
		Password:     "pass",
		From:         "noreply@example.com",
		CompanyName:  "PaySvit",
		CompanyPhone: "+380000000000",
	})

	var sent *email.Email
	var addr string
	var auth smtp.Auth
	mailer.send = func(e *email.Email, a string, au smtp.Auth) error {
		sent, addr, auth = e, a, au
		return nil
	}

	order := &entity.RefundOrder{ID: "r-1", Numb: "R-0042", PayerName: "Олена", PayerEmail: "payer@example.com", Amount: decimal.RequireFromString("99.9")}
	if err := mailer.SendRefundPayerEmail(context.Background(), order); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if addr != "smtp.example.com:587" || auth == nil {
		t.Fatalf("unexpected smtp target %s auth=%v", addr, auth)
	}
	if sent.Subject != "Повернення коштів" || len(sent.To) != 1 || sent.To[0] != "payer@example.com" {
		t.Fatalf("unexpected envelope %+v", sent)
	}
	body := string(sent.Text)
	for _, want := range []string{"R-0042", "99.90", "PaySvit", "+380000000000", "Олена"} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected body to contain %q, got %q", want, body)
		}
	}
}

func TestSendRefundPayerEmailRequiresHost(t *testing.T) {
	mailer := NewSMTPMailer(MailerConfig{})
	if err := mailer.SendRefundPayerEmail(context.Background(), &entity.RefundOrder{}); err == nil {
		t.Fatal("expected error without smtp host")
	}
}
