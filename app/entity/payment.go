package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

type RefundStatus string

const (
	RefundNone     RefundStatus = "none"
	RefundStarted  RefundStatus = "started"
	RefundFinished RefundStatus = "finished"
	RefundFailed   RefundStatus = "failed"
)

// CanTransitionTo enforces none -> started -> {finished, failed}. A request the gateway rejects
// outright moves none -> failed.
func (s RefundStatus) CanTransitionTo(next RefundStatus) bool {
	switch s {
	case RefundNone, "":
		return next == RefundStarted || next == RefundFailed
	case RefundStarted:
		return next == RefundStarted || next == RefundFinished || next == RefundFailed
	default:
		return false
	}
}

func (s RefundStatus) Terminal() bool {
	return s == RefundFinished || s == RefundFailed
}

// Flow names the sub-flow whose loop currently owns a payment.
type Flow string

const (
	FlowNone         Flow = ""
	FlowGateway      Flow = "gateway_status"
	FlowSettlement   Flow = "settlement_status"
	FlowRefund       Flow = "refund_status"
	FlowNotification Flow = "notification"
)

type Recipient struct {
	IBAN     string
	Name     string
	EDRPOU   string
	MFO      string
	BankName string
}

type Payment struct {
	ID            string
	OrderID       string
	SID           string
	TransactionID string

	Currency string
	Amount   decimal.Decimal
	Fee      decimal.NullDecimal

	Recipient   Recipient
	Description string
	NotifyURL   *string

	StartedPay     bool
	DetailsChanged bool

	Status        *int32
	StatusMessage *string
	ProcessingID  *string
	PAN           *string
	FinishDate    *time.Time
	IsExpired     bool
	IsFailed      bool
	IsFinished    bool

	AbsStatus       *int32
	AbsActionID     *int64
	AbsActionStatus *string
	AbsActionTime   *time.Time
	FinishAbsDate   *time.Time
	IsAbsFailed     bool
	IsAbsFinished   bool

	RefundStatus        RefundStatus
	RefundStatusCode    *int32
	RefundStatusMessage *string
	RefundAmount        decimal.NullDecimal

	IsNotified     bool
	NotifyAttempts int32
	NotifyStartAt  *time.Time
	NotifyRetryAt  *time.Time
	NotifyError    *string

	StatusUpdateAttempts int32
	StatusUpdateStartAt  *time.Time
	StatusUpdateRetryAt  *time.Time

	// Each retry clock stamps its own give-up time.
	NotifyAbandonedAt       *time.Time
	StatusUpdateAbandonedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (p *Payment) GatewayTerminal() bool {
	return p.IsFailed || p.IsFinished
}

func (p *Payment) SettlementTerminal() bool {
	return p.IsFailed || p.IsAbsFinished
}

func (p *Payment) RefundTerminal() bool {
	return p.RefundStatus.Terminal()
}

// Done reports whether the payment has an outcome worth telling the merchant about.
func (p *Payment) Done() bool {
	return p.IsFailed || p.IsFinished || p.RefundStatus == RefundFinished
}

func (p *Payment) AwaitingNotification() bool {
	return p.Done() && p.NotifyURL != nil && *p.NotifyURL != "" && !p.IsNotified
}

func (p *Payment) Flow() Flow {
	switch {
	case p.RefundStatus == RefundStarted:
		return FlowRefund
	case !p.GatewayTerminal():
		return FlowGateway
	case p.IsFinished && !p.IsAbsFinished:
		return FlowSettlement
	case p.AwaitingNotification():
		return FlowNotification
	default:
		return FlowNone
	}
}

func (p *Payment) Clone() *Payment {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}
