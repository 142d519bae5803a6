package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vibast-solutions/ms-go-paylink/app/entity"
)

var (
	ErrPaymentNotFound = errors.New("payment not found")
	ErrUnknownJobKind  = errors.New("unknown job kind")
)

const paymentColumns = `
	id, order_id, sid, transaction_id, currency, amount, fee,
	recipient_iban, recipient_name, recipient_edrpou, recipient_mfo, recipient_bank_name,
	description, notify_url, started_pay, details_changed,
	status, status_message, processing_id, pan, finish_date, expired, failed, finished,
	abs_status, abs_action_id, abs_action_status, abs_action_time, finish_abs_date, abs_failed, abs_finished,
	refund_status, refund_status_code, refund_status_message, refund_amount,
	notified, notify_attempts, notify_start_at, notify_retry_at, notify_error,
	status_update_attempts, status_update_start_at, status_update_retry_at,
	notify_abandoned_at, status_update_abandoned_at, created_at, updated_at`

type PaymentRepository struct {
	db DBTX
}

func NewPaymentRepository(db DBTX) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) FindByID(ctx context.Context, id string) (*entity.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = ?`

	payment := &entity.Payment{}
	if err := scanPayment(r.db.QueryRowContext(ctx, query, id), payment); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return payment, nil
}

// Update writes only the columns set on patch. updated_at always advances.
func (r *PaymentRepository) Update(ctx context.Context, id string, patch *entity.PaymentPatch, now time.Time) error {
	a := paymentAssignments(patch)
	query, args := a.updateQuery("payments", "id", id, now)

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	exists, err := rowExists(ctx, r.db, "payments", "id", id)
	if err != nil {
		return err
	}
	if !exists {
		return ErrPaymentNotFound
	}
	return nil
}

// Apply persists patch and returns the row as stored afterwards.
func (r *PaymentRepository) Apply(ctx context.Context, id string, patch *entity.PaymentPatch, now time.Time) (*entity.Payment, error) {
	if err := r.Update(ctx, id, patch, now); err != nil {
		return nil, err
	}
	payment, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, ErrPaymentNotFound
	}
	return payment, nil
}

func (r *PaymentRepository) ListDue(ctx context.Context, kind entity.JobKind, q DueQuery) ([]*entity.Payment, error) {
	where, args, err := paymentDueCondition(kind, q)
	if err != nil {
		return nil, err
	}

	query := `SELECT ` + paymentColumns + ` FROM payments WHERE ` + where + ` ORDER BY updated_at ASC LIMIT ?`
	args = append(args, q.Limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]*entity.Payment, 0)
	for rows.Next() {
		item := &entity.Payment{}
		if err := scanPayment(rows, item); err != nil {
			return nil, err
		}
		payments = append(payments, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return payments, nil
}

// MarkAbandoned stamps the give-up time of kind's clock on payments still pending for kind whose
// clock started before cutoff.
func (r *PaymentRepository) MarkAbandoned(ctx context.Context, kind entity.JobKind, cutoff, now time.Time) (int64, error) {
	pending, clock, err := paymentPendingCondition(kind)
	if err != nil {
		return 0, err
	}

	query := fmt.Sprintf(
		"UPDATE payments SET %s_abandoned_at = ? WHERE %s AND %s_abandoned_at IS NULL AND %s_start_at IS NOT NULL AND %s_start_at < ?",
		clock, pending, clock, clock, clock,
	)
	result, err := r.db.ExecContext(ctx, query, now, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// paymentPendingCondition returns the non-terminal filter for kind and the prefix of its retry clock columns.
func paymentPendingCondition(kind entity.JobKind) (string, string, error) {
	switch kind {
	case entity.JobGatewayStatus:
		return "failed = 0 AND finished = 0", "status_update", nil
	case entity.JobSettlementStatus:
		return "finished = 1 AND abs_finished = 0", "status_update", nil
	case entity.JobRefundStatus:
		return "refund_status = 'started'", "status_update", nil
	case entity.JobNotification:
		return "(failed = 1 OR finished = 1 OR refund_status = 'finished') AND notify_url IS NOT NULL AND notify_url <> '' AND notified = 0", "notify", nil
	default:
		return "", "", fmt.Errorf("%w: %s", ErrUnknownJobKind, kind)
	}
}

func paymentDueCondition(kind entity.JobKind, q DueQuery) (string, []interface{}, error) {
	pending, clock, err := paymentPendingCondition(kind)
	if err != nil {
		return "", nil, err
	}
	where, args := withRetryDue(pending, clock, q)
	return where, args, nil
}

func withRetryDue(pending, clock string, q DueQuery) (string, []interface{}) {
	where := fmt.Sprintf("%s AND (%s_retry_at IS NULL OR %s_retry_at <= ?)", pending, clock, clock)
	args := []interface{}{q.Now}
	if !q.GiveUpCutoff.IsZero() {
		where += fmt.Sprintf(" AND (%s_start_at IS NULL OR %s_start_at >= ?)", clock, clock)
		args = append(args, q.GiveUpCutoff)
	}
	return where, args
}

func paymentAssignments(p *entity.PaymentPatch) *assignments {
	a := &assignments{}
	setField(a, "started_pay", p.StartedPay)
	setField(a, "details_changed", p.DetailsChanged)
	setField(a, "recipient_iban", p.RecipientIBAN)
	setField(a, "recipient_name", p.RecipientName)
	setField(a, "recipient_edrpou", p.RecipientEDRPOU)
	setField(a, "recipient_mfo", p.RecipientMFO)
	setField(a, "recipient_bank_name", p.RecipientBankName)
	setField(a, "description", p.Description)
	setField(a, "status", p.Status)
	setField(a, "status_message", p.StatusMessage)
	setField(a, "processing_id", p.ProcessingID)
	setField(a, "pan", p.PAN)
	setField(a, "finish_date", p.FinishDate)
	setField(a, "expired", p.IsExpired)
	setField(a, "failed", p.IsFailed)
	setField(a, "finished", p.IsFinished)
	setField(a, "abs_status", p.AbsStatus)
	setField(a, "abs_action_id", p.AbsActionID)
	setField(a, "abs_action_status", p.AbsActionStatus)
	setField(a, "abs_action_time", p.AbsActionTime)
	setField(a, "finish_abs_date", p.FinishAbsDate)
	setField(a, "abs_failed", p.IsAbsFailed)
	setField(a, "abs_finished", p.IsAbsFinished)
	setField(a, "refund_status", p.RefundStatus)
	setField(a, "refund_status_code", p.RefundStatusCode)
	setField(a, "refund_status_message", p.RefundStatusMessage)
	setField(a, "refund_amount", p.RefundAmount)
	setField(a, "notified", p.IsNotified)
	setField(a, "notify_attempts", p.NotifyAttempts)
	setField(a, "notify_start_at", p.NotifyStartAt)
	setField(a, "notify_retry_at", p.NotifyRetryAt)
	setField(a, "notify_error", p.NotifyError)
	setField(a, "status_update_attempts", p.StatusUpdateAttempts)
	setField(a, "status_update_start_at", p.StatusUpdateStartAt)
	setField(a, "status_update_retry_at", p.StatusUpdateRetryAt)
	setField(a, "notify_abandoned_at", p.NotifyAbandonedAt)
	setField(a, "status_update_abandoned_at", p.StatusUpdateAbandonedAt)
	return a
}

func scanPayment(scan rowScanner, payment *entity.Payment) error {
	var notifyURL sql.NullString
	var status, absStatus, refundStatusCode sql.NullInt32
	var statusMessage, processingID, pan, absActionStatus, refundStatusMessage, notifyError sql.NullString
	var absActionID sql.NullInt64
	var finishDate, absActionTime, finishAbsDate sql.NullTime
	var notifyStartAt, notifyRetryAt, statusUpdateStartAt, statusUpdateRetryAt sql.NullTime
	var notifyAbandonedAt, statusUpdateAbandonedAt sql.NullTime
	var refundStatus string

	err := scan.Scan(
		&payment.ID,
		&payment.OrderID,
		&payment.SID,
		&payment.TransactionID,
		&payment.Currency,
		&payment.Amount,
		&payment.Fee,
		&payment.Recipient.IBAN,
		&payment.Recipient.Name,
		&payment.Recipient.EDRPOU,
		&payment.Recipient.MFO,
		&payment.Recipient.BankName,
		&payment.Description,
		&notifyURL,
		&payment.StartedPay,
		&payment.DetailsChanged,
		&status,
		&statusMessage,
		&processingID,
		&pan,
		&finishDate,
		&payment.IsExpired,
		&payment.IsFailed,
		&payment.IsFinished,
		&absStatus,
		&absActionID,
		&absActionStatus,
		&absActionTime,
		&finishAbsDate,
		&payment.IsAbsFailed,
		&payment.IsAbsFinished,
		&refundStatus,
		&refundStatusCode,
		&refundStatusMessage,
		&payment.RefundAmount,
		&payment.IsNotified,
		&payment.NotifyAttempts,
		&notifyStartAt,
		&notifyRetryAt,
		&notifyError,
		&payment.StatusUpdateAttempts,
		&statusUpdateStartAt,
		&statusUpdateRetryAt,
		&notifyAbandonedAt,
		&statusUpdateAbandonedAt,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		return err
	}

	payment.NotifyURL = stringPtrFromNull(notifyURL)
	payment.Status = int32PtrFromNull(status)
	payment.StatusMessage = stringPtrFromNull(statusMessage)
	payment.ProcessingID = stringPtrFromNull(processingID)
	payment.PAN = stringPtrFromNull(pan)
	payment.FinishDate = timePtrFromNull(finishDate)
	payment.AbsStatus = int32PtrFromNull(absStatus)
	payment.AbsActionID = int64PtrFromNull(absActionID)
	payment.AbsActionStatus = stringPtrFromNull(absActionStatus)
	payment.AbsActionTime = timePtrFromNull(absActionTime)
	payment.FinishAbsDate = timePtrFromNull(finishAbsDate)
	payment.RefundStatus = entity.RefundStatus(refundStatus)
	payment.RefundStatusCode = int32PtrFromNull(refundStatusCode)
	payment.RefundStatusMessage = stringPtrFromNull(refundStatusMessage)
	payment.NotifyStartAt = timePtrFromNull(notifyStartAt)
	payment.NotifyRetryAt = timePtrFromNull(notifyRetryAt)
	payment.NotifyError = stringPtrFromNull(notifyError)
	payment.StatusUpdateStartAt = timePtrFromNull(statusUpdateStartAt)
	payment.StatusUpdateRetryAt = timePtrFromNull(statusUpdateRetryAt)
	payment.NotifyAbandonedAt = timePtrFromNull(notifyAbandonedAt)
	payment.StatusUpdateAbandonedAt = timePtrFromNull(statusUpdateAbandonedAt)

	return nil
}
