package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// RefundOrderStatus is the back-office state of a payer's refund order.
type RefundOrderStatus int32

const (
	RefundOrderNew        RefundOrderStatus = 1
	RefundOrderInProgress RefundOrderStatus = 2
	RefundOrderCompleted  RefundOrderStatus = 3
	RefundOrderRejected   RefundOrderStatus = 4
)

func (s RefundOrderStatus) Valid() bool {
	return s >= RefundOrderNew && s <= RefundOrderRejected
}

// RefundOrder is a payer's request to get money back. Its payer e-mail is tracked with its own
// retry bookkeeping.
type RefundOrder struct {
	ID        string
	Numb      string
	PaymentID *string
	NotifyURL *string
	ReturnURL *string
	Reason    string
	Status    RefundOrderStatus
	Note      *string

	PayerName   string
	PayerEDRPOU string
	PayerPhone  *int64
	PayerEmail  string
	PaymentDate string
	CaseNumb    *string
	CourtCode   string

	Amount       decimal.Decimal
	AmountAndFee decimal.Decimal

	IsPayerNotified     bool
	PayerNotifyAttempts int32
	PayerNotifyStartAt  *time.Time
	PayerNotifyRetryAt  *time.Time
	PayerNotifyError    *string

	AbandonedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (o *RefundOrder) Clone() *RefundOrder {
	if o == nil {
		return nil
	}
	c := *o
	return &c
}

type RefundOrderPatch struct {
	Status    Field[RefundOrderStatus]
	Note      Field[*string]
	PaymentID Field[*string]

	IsPayerNotified     Field[bool]
	PayerNotifyAttempts Field[int32]
	PayerNotifyStartAt  Field[*time.Time]
	PayerNotifyRetryAt  Field[*time.Time]
	PayerNotifyError    Field[*string]
	AbandonedAt         Field[*time.Time]
}

func (p *RefundOrderPatch) Empty() bool {
	return *p == RefundOrderPatch{}
}

func (p *RefundOrderPatch) Apply(order *RefundOrder) {
	p.Status.apply(&order.Status)
	p.Note.apply(&order.Note)
	p.PaymentID.apply(&order.PaymentID)

	p.IsPayerNotified.apply(&order.IsPayerNotified)
	p.PayerNotifyAttempts.apply(&order.PayerNotifyAttempts)
	p.PayerNotifyStartAt.apply(&order.PayerNotifyStartAt)
	p.PayerNotifyRetryAt.apply(&order.PayerNotifyRetryAt)
	p.PayerNotifyError.apply(&order.PayerNotifyError)
	p.AbandonedAt.apply(&order.AbandonedAt)
}
