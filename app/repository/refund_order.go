package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/vibast-solutions/ms-go-paylink/app/entity"
)

var (
	ErrRefundOrderNotFound      = errors.New("refund order not found")
	ErrRefundOrderAlreadyExists = errors.New("refund order already exists")
)

const (
	refundOrderColumns = `
	id, numb, payment_id, notify_url, return_url, reason, status, note,
	payer_name, payer_edrpou, payer_phone, payer_email, payment_date, case_numb, court_code,
	amount, amount_and_fee,
	payer_notified, payer_notify_attempts, payer_notify_start_at, payer_notify_retry_at, payer_notify_error,
	abandoned_at, created_at, updated_at`

	refundOrderPending = "payer_notified = 0"
	refundOrderClock   = "payer_notify"
)

type RefundOrderRepository struct {
	db DBTX
}

func NewRefundOrderRepository(db DBTX) *RefundOrderRepository {
	return &RefundOrderRepository{db: db}
}

func (r *RefundOrderRepository) Create(ctx context.Context, order *entity.RefundOrder) error {
	query := `
		INSERT INTO refund_orders (` + refundOrderColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		order.ID,
		order.Numb,
		nullableStringValue(order.PaymentID),
		nullableStringValue(order.NotifyURL),
		nullableStringValue(order.ReturnURL),
		order.Reason,
		int32(order.Status),
		nullableStringValue(order.Note),
		order.PayerName,
		order.PayerEDRPOU,
		nullableInt64Value(order.PayerPhone),
		order.PayerEmail,
		order.PaymentDate,
		nullableStringValue(order.CaseNumb),
		order.CourtCode,
		order.Amount.String(),
		order.AmountAndFee.String(),
		order.IsPayerNotified,
		order.PayerNotifyAttempts,
		nullableTimeValue(order.PayerNotifyStartAt),
		nullableTimeValue(order.PayerNotifyRetryAt),
		nullableStringValue(order.PayerNotifyError),
		nullableTimeValue(order.AbandonedAt),
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrRefundOrderAlreadyExists
		}
		return err
	}
	return nil
}

func (r *RefundOrderRepository) FindByID(ctx context.Context, id string) (*entity.RefundOrder, error) {
	query := `SELECT ` + refundOrderColumns + ` FROM refund_orders WHERE id = ?`

	order := &entity.RefundOrder{}
	if err := scanRefundOrder(r.db.QueryRowContext(ctx, query, id), order); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return order, nil
}

func (r *RefundOrderRepository) FindByNumb(ctx context.Context, numb string) (*entity.RefundOrder, error) {
	query := `SELECT ` + refundOrderColumns + ` FROM refund_orders WHERE numb = ?`

	order := &entity.RefundOrder{}
	if err := scanRefundOrder(r.db.QueryRowContext(ctx, query, numb), order); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return order, nil
}

func (r *RefundOrderRepository) Update(ctx context.Context, id string, patch *entity.RefundOrderPatch, now time.Time) error {
	a := refundOrderAssignments(patch)
	query, args := a.updateQuery("refund_orders", "id", id, now)

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

	exists, err := rowExists(ctx, r.db, "refund_orders", "id", id)
	if err != nil {
		return err
	}
	if !exists {
		return ErrRefundOrderNotFound
	}
	return nil
}

func (r *RefundOrderRepository) Apply(ctx context.Context, id string, patch *entity.RefundOrderPatch, now time.Time) (*entity.RefundOrder, error) {
	if err := r.Update(ctx, id, patch, now); err != nil {
		return nil, err
	}
	order, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrRefundOrderNotFound
	}
	return order, nil
}

func (r *RefundOrderRepository) ListDue(ctx context.Context, q DueQuery) ([]*entity.RefundOrder, error) {
	where, args := withRetryDue(refundOrderPending, refundOrderClock, q)
	query := `SELECT ` + refundOrderColumns + ` FROM refund_orders WHERE ` + where + ` ORDER BY updated_at ASC LIMIT ?`
	args = append(args, q.Limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := make([]*entity.RefundOrder, 0)
	for rows.Next() {
		item := &entity.RefundOrder{}
		if err := scanRefundOrder(rows, item); err != nil {
			return nil, err
		}
		orders = append(orders, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return orders, nil
}

func (r *RefundOrderRepository) MarkAbandoned(ctx context.Context, cutoff, now time.Time) (int64, error) {
	query := `
		UPDATE refund_orders SET abandoned_at = ?
		WHERE ` + refundOrderPending + `
		  AND abandoned_at IS NULL
		  AND payer_notify_start_at IS NOT NULL
		  AND payer_notify_start_at < ?
	`
	result, err := r.db.ExecContext(ctx, query, now, cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func refundOrderAssignments(p *entity.RefundOrderPatch) *assignments {
	a := &assignments{}
	setField(a, "status", p.Status)
	setField(a, "note", p.Note)
	setField(a, "payment_id", p.PaymentID)
	setField(a, "payer_notified", p.IsPayerNotified)
	setField(a, "payer_notify_attempts", p.PayerNotifyAttempts)
	setField(a, "payer_notify_start_at", p.PayerNotifyStartAt)
	setField(a, "payer_notify_retry_at", p.PayerNotifyRetryAt)
	setField(a, "payer_notify_error", p.PayerNotifyError)
	setField(a, "abandoned_at", p.AbandonedAt)
	return a
}

func scanRefundOrder(scan rowScanner, order *entity.RefundOrder) error {
	var paymentID, notifyURL, returnURL, note, caseNumb, notifyError sql.NullString
	var payerPhone sql.NullInt64
	var status int32
	var paymentDate time.Time
	var startAt, retryAt, abandonedAt sql.NullTime

	err := scan.Scan(
		&order.ID,
		&order.Numb,
		&paymentID,
		&notifyURL,
		&returnURL,
		&order.Reason,
		&status,
		&note,
		&order.PayerName,
		&order.PayerEDRPOU,
		&payerPhone,
		&order.PayerEmail,
		&paymentDate,
		&caseNumb,
		&order.CourtCode,
		&order.Amount,
		&order.AmountAndFee,
		&order.IsPayerNotified,
		&order.PayerNotifyAttempts,
		&startAt,
		&retryAt,
		&notifyError,
		&abandonedAt,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return err
	}

	order.PaymentID = stringPtrFromNull(paymentID)
	order.NotifyURL = stringPtrFromNull(notifyURL)
	order.ReturnURL = stringPtrFromNull(returnURL)
	order.Status = entity.RefundOrderStatus(status)
	order.Note = stringPtrFromNull(note)
	order.PayerPhone = int64PtrFromNull(payerPhone)
	order.PaymentDate = paymentDate.Format(time.DateOnly)
	order.CaseNumb = stringPtrFromNull(caseNumb)
	order.PayerNotifyStartAt = timePtrFromNull(startAt)
	order.PayerNotifyRetryAt = timePtrFromNull(retryAt)
	order.PayerNotifyError = stringPtrFromNull(notifyError)
	order.AbandonedAt = timePtrFromNull(abandonedAt)
	return nil
}
