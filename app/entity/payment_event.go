package entity

import "time"

const (
	EventGatewayFinished    = "gateway_finished"
	EventGatewayFailed      = "gateway_failed"
	EventSettlementFinished = "settlement_finished"
	EventSettlementFailed   = "settlement_failed"
	EventRefundStarted      = "refund_started"
	EventRefundFailed       = "refund_failed"
	EventRefundFinished     = "refund_finished"
	EventNotified           = "notified"
	EventDetailsChanged     = "details_changed"
)

// PaymentEvent is an append-only audit row written on terminal transitions.
type PaymentEvent struct {
	ID uint64

	PaymentID string
	EventType string

	Status      *int32
	PayloadJSON *string

	CreatedAt time.Time
}
