package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-paylink/app/entity"
)

func refundOrder(id string) *entity.RefundOrder {
	return &entity.RefundOrder{
		ID:         id,
		Numb:       "R-" + id,
		PayerName:  "Іван Петренко",
		PayerEmail: "payer@example.test",
		Amount:     decimal.RequireFromString("42.10"),
		CreatedAt:  testNow.Add(-time.Hour),
		UpdatedAt:  testNow.Add(-time.Hour),
	}
}

func TestPayerEmailSent(t *testing.T) {
	orders := newFakeRefundOrders(refundOrder("r-1"))
	mailer := &fakeMailer{}
	job := NewPayerEmailJob(orders, mailer, testRetry(), nil, fixedClock, silentLogger())

	if err := job.RunOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(mailer.sent) != 1 || mailer.sent[0] != "r-1" {
		t.Fatalf("unexpected sends: %v", mailer.sent)
	}
	got := orders.get("r-1")
	if !got.IsPayerNotified || got.PayerNotifyAttempts != 1 || got.PayerNotifyRetryAt != nil {
		t.Fatalf("unexpected bookkeeping: %+v", got)
	}
}

func TestPayerEmailFailureSchedulesRetry(t *testing.T) {
	orders := newFakeRefundOrders(refundOrder("r-1"))
	mailer := &fakeMailer{err: errors.New("535 authentication failed")}
	job := NewPayerEmailJob(orders, mailer, testRetry(), nil, fixedClock, silentLogger())

	if err := job.RunOnce(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := orders.get("r-1")
	if got.IsPayerNotified || got.PayerNotifyAttempts != 1 {
		t.Fatalf("unexpected bookkeeping: %+v", got)
	}
	if got.PayerNotifyRetryAt == nil || !got.PayerNotifyRetryAt.Equal(testNow.Add(30*time.Second)) {
		t.Fatalf("expected retry at now+30s, got %v", got.PayerNotifyRetryAt)
	}
	if got.PayerNotifyError == nil || *got.PayerNotifyError != "535 authentication failed" {
		t.Fatalf("unexpected error text: %v", got.PayerNotifyError)
	}
}
