package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentPatch is a partial Payment update. Each job only sets the columns it owns.
type PaymentPatch struct {
	StartedPay     Field[bool]
	DetailsChanged Field[bool]

	RecipientIBAN     Field[string]
	RecipientName     Field[string]
	RecipientEDRPOU   Field[string]
	RecipientMFO      Field[string]
	RecipientBankName Field[string]
	Description       Field[string]

	Status        Field[*int32]
	StatusMessage Field[*string]
	ProcessingID  Field[*string]
	PAN           Field[*string]
	FinishDate    Field[*time.Time]
	IsExpired     Field[bool]
	IsFailed      Field[bool]
	IsFinished    Field[bool]

	AbsStatus       Field[*int32]
	AbsActionID     Field[*int64]
	AbsActionStatus Field[*string]
	AbsActionTime   Field[*time.Time]
	FinishAbsDate   Field[*time.Time]
	IsAbsFailed     Field[bool]
	IsAbsFinished   Field[bool]

	RefundStatus        Field[RefundStatus]
	RefundStatusCode    Field[*int32]
	RefundStatusMessage Field[*string]
	RefundAmount        Field[decimal.NullDecimal]

	IsNotified     Field[bool]
	NotifyAttempts Field[int32]
	NotifyStartAt  Field[*time.Time]
	NotifyRetryAt  Field[*time.Time]
	NotifyError    Field[*string]

	StatusUpdateAttempts Field[int32]
	StatusUpdateStartAt  Field[*time.Time]
	StatusUpdateRetryAt  Field[*time.Time]

	NotifyAbandonedAt       Field[*time.Time]
	StatusUpdateAbandonedAt Field[*time.Time]
}

// ResetNotification re-arms webhook delivery as if the payment was never notified.
func (p *PaymentPatch) ResetNotification() {
	p.IsNotified = Set(false)
	p.NotifyAttempts = Set[int32](0)
	p.NotifyStartAt = Set[*time.Time](nil)
	p.NotifyRetryAt = Set[*time.Time](nil)
	p.NotifyError = Set[*string](nil)
	p.NotifyAbandonedAt = Set[*time.Time](nil)
}

// ResetStatusUpdate clears the polling clock shared by the gateway, settlement and refund loops.
func (p *PaymentPatch) ResetStatusUpdate() {
	p.StatusUpdateAttempts = Set[int32](0)
	p.StatusUpdateStartAt = Set[*time.Time](nil)
	p.StatusUpdateRetryAt = Set[*time.Time](nil)
	p.StatusUpdateAbandonedAt = Set[*time.Time](nil)
}

func (p *PaymentPatch) Empty() bool {
	return *p == PaymentPatch{}
}

func (p *PaymentPatch) Apply(payment *Payment) {
	p.StartedPay.apply(&payment.StartedPay)
	p.DetailsChanged.apply(&payment.DetailsChanged)

	p.RecipientIBAN.apply(&payment.Recipient.IBAN)
	p.RecipientName.apply(&payment.Recipient.Name)
	p.RecipientEDRPOU.apply(&payment.Recipient.EDRPOU)
	p.RecipientMFO.apply(&payment.Recipient.MFO)
	p.RecipientBankName.apply(&payment.Recipient.BankName)
	p.Description.apply(&payment.Description)

	p.Status.apply(&payment.Status)
	p.StatusMessage.apply(&payment.StatusMessage)
	p.ProcessingID.apply(&payment.ProcessingID)
	p.PAN.apply(&payment.PAN)
	p.FinishDate.apply(&payment.FinishDate)
	p.IsExpired.apply(&payment.IsExpired)
	p.IsFailed.apply(&payment.IsFailed)
	p.IsFinished.apply(&payment.IsFinished)

	p.AbsStatus.apply(&payment.AbsStatus)
	p.AbsActionID.apply(&payment.AbsActionID)
	p.AbsActionStatus.apply(&payment.AbsActionStatus)
	p.AbsActionTime.apply(&payment.AbsActionTime)
	p.FinishAbsDate.apply(&payment.FinishAbsDate)
	p.IsAbsFailed.apply(&payment.IsAbsFailed)
	p.IsAbsFinished.apply(&payment.IsAbsFinished)

	p.RefundStatus.apply(&payment.RefundStatus)
	p.RefundStatusCode.apply(&payment.RefundStatusCode)
	p.RefundStatusMessage.apply(&payment.RefundStatusMessage)
	p.RefundAmount.apply(&payment.RefundAmount)

	p.IsNotified.apply(&payment.IsNotified)
	p.NotifyAttempts.apply(&payment.NotifyAttempts)
	p.NotifyStartAt.apply(&payment.NotifyStartAt)
	p.NotifyRetryAt.apply(&payment.NotifyRetryAt)
	p.NotifyError.apply(&payment.NotifyError)

	p.StatusUpdateAttempts.apply(&payment.StatusUpdateAttempts)
	p.StatusUpdateStartAt.apply(&payment.StatusUpdateStartAt)
	p.StatusUpdateRetryAt.apply(&payment.StatusUpdateRetryAt)

	p.NotifyAbandonedAt.apply(&payment.NotifyAbandonedAt)
	p.StatusUpdateAbandonedAt.apply(&payment.StatusUpdateAbandonedAt)
}
