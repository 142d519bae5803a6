package mapper

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-paylink/app/entity"
)

func testPayment() *entity.Payment {
	finish := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	return &entity.Payment{
		ID:           "7f1f9a2e-5d4c-4b9b-9a53-2a3c1f0e8d11",
		OrderID:      "order-1",
		Amount:       decimal.RequireFromString("150.5"),
		Fee:          decimal.NewNullDecimal(decimal.RequireFromString("1.2")),
		Status:       entity.Ptr(entity.GatewaySuccess),
		FinishDate:   &finish,
		IsFinished:   true,
		RefundStatus: entity.RefundNone,
		CreatedAt:    finish.Add(-time.Hour),
		UpdatedAt:    finish,
	}
}

func TestPaymentToDTO(t *testing.T) {
	dto := PaymentToDTO(testPayment())
	if dto.Amount != "150.50" || dto.Fee == nil || *dto.Fee != "1.20" {
		t.Fatalf("unexpected amounts: %s %v", dto.Amount, dto.Fee)
	}
	if dto.Gateway.FinishDate != "2026-03-02T10:00:00Z" {
		t.Fatalf("unexpected finish date: %q", dto.Gateway.FinishDate)
	}
	if dto.Flow != string(entity.FlowSettlement) {
		t.Fatalf("expected settlement flow, got %q", dto.Flow)
	}
	if dto.Refund.Amount != nil {
		t.Fatalf("expected no refund amount, got %v", dto.Refund.Amount)
	}
	if PaymentToDTO(nil) != nil {
		t.Fatal("expected nil for nil payment")
	}
}

func TestPaymentToStruct(t *testing.T) {
	msg, err := PaymentToStruct(testPayment())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fields := msg.GetFields()
	if fields["order_id"].GetStringValue() != "order-1" {
		t.Fatalf("unexpected order_id: %v", fields["order_id"])
	}
	gateway := fields["gateway"].GetStructValue().GetFields()
	if gateway["code"].GetNumberValue() != 100 || !gateway["is_finished"].GetBoolValue() {
		t.Fatalf("unexpected gateway: %v", gateway)
	}
}

func TestRefundOrderToDTO(t *testing.T) {
	created := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	dto := RefundOrderToDTO(&entity.RefundOrder{
		ID:           "r-1",
		Numb:         "R-0001",
		Status:       entity.RefundOrderNew,
		PaymentDate:  "2026-03-01",
		Amount:       decimal.RequireFromString("100"),
		AmountAndFee: decimal.RequireFromString("101.5"),
		CreatedAt:    created,
		UpdatedAt:    created,
	})
	if dto.Amount != "100.00" || dto.AmountAndFee != "101.50" {
		t.Fatalf("unexpected amounts: %s %s", dto.Amount, dto.AmountAndFee)
	}
	if dto.Status != 1 || dto.PaymentDate != "2026-03-01" || dto.CreatedAt != "2026-03-02T10:00:00Z" {
		t.Fatalf("unexpected dto: %+v", dto)
	}
	if RefundOrderToDTO(nil) != nil {
		t.Fatal("expected nil for nil refund order")
	}
}
