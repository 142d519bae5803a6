package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-paylink/app/backoff"
	"github.com/vibast-solutions/ms-go-paylink/app/entity"
	"github.com/vibast-solutions/ms-go-paylink/app/factory"
	"github.com/vibast-solutions/ms-go-paylink/app/provider"
	"github.com/vibast-solutions/ms-go-paylink/app/reconcile"
	"github.com/vibast-solutions/ms-go-paylink/app/repository"
	"github.com/vibast-solutions/ms-go-paylink/config"
)

// PayerEmailJob tells payers by e-mail that their refund order was accepted.
type PayerEmailJob struct {
	orders refundOrderStore
	mailer provider.Mailer
	retry  config.RetryConfig
	now    func() time.Time
	loop   *reconcile.Loop[*entity.RefundOrder]
	logger logrus.FieldLogger
}

func NewPayerEmailJob(
	orders refundOrderStore,
	mailer provider.Mailer,
	retry config.RetryConfig,
	observer reconcile.Observer,
	now func() time.Time,
	logger logrus.FieldLogger,
) *PayerEmailJob {
	if logger == nil {
		logger = factory.NewModuleLogger("jobs")
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	logger = logger.WithField("job", string(entity.JobPayerEmail))

	j := &PayerEmailJob{orders: orders, mailer: mailer, retry: retry, now: now, logger: logger}
	j.loop = reconcile.New(reconcile.Config[*entity.RefundOrder]{
		Name:        string(entity.JobPayerEmail),
		Concurrency: retry.Concurrency,
		Fetch:       j.fetchDue,
		Process:     j.process,
		Key:         func(o *entity.RefundOrder) string { return o.ID },
		AfterRun:    j.markAbandoned,
		Logger:      logger,
		Observer:    observer,
	})
	return j
}

func (j *PayerEmailJob) Name() string {
	return string(entity.JobPayerEmail)
}

func (j *PayerEmailJob) Interval() time.Duration {
	return j.retry.MinInterval
}

func (j *PayerEmailJob) RunOnce(ctx context.Context) error {
	return j.loop.RunOnce(ctx)
}

// ProcessOne sends the payer e-mail for order now, unless a batch run is already sending it.
func (j *PayerEmailJob) ProcessOne(ctx context.Context, order *entity.RefundOrder) (bool, error) {
	return j.loop.ProcessOne(ctx, order)
}

func (j *PayerEmailJob) fetchDue(ctx context.Context, limit int) ([]*entity.RefundOrder, error) {
	now := j.now()
	q := repository.DueQuery{Now: now, Limit: limit}
	if cutoff, ok := backoff.GiveUpCutoff(now, j.retry.GiveUpAfterDays); ok {
		q.GiveUpCutoff = cutoff
	}
	return j.orders.ListDue(ctx, q)
}

func (j *PayerEmailJob) markAbandoned(ctx context.Context) error {
	now := j.now()
	cutoff, ok := backoff.GiveUpCutoff(now, j.retry.GiveUpAfterDays)
	if !ok {
		return nil
	}
	n, err := j.orders.MarkAbandoned(ctx, cutoff, now)
	if err != nil {
		return err
	}
	if n > 0 {
		j.logger.WithField("count", n).Warn("refund_orders_abandoned")
	}
	return nil
}

func (j *PayerEmailJob) process(ctx context.Context, order *entity.RefundOrder) error {
	// order may be a stale copy sent before a concurrent caller released it.
	current, err := j.orders.FindByID(ctx, order.ID)
	if err != nil {
		return err
	}
	if current == nil {
		return ErrRefundOrderNotFound
	}
	if current.IsPayerNotified {
		return nil
	}
	order = current

	now := j.now()

	var patch entity.RefundOrderPatch
	patch.PayerNotifyAttempts = entity.Set(order.PayerNotifyAttempts + 1)
	if order.PayerNotifyStartAt == nil {
		patch.PayerNotifyStartAt = entity.Set(entity.Ptr(now))
	}

	sendErr := j.mailer.SendRefundPayerEmail(ctx, order)
	if sendErr != nil {
		retryAt := backoff.NextRetryAt(now, order.PayerNotifyAttempts, j.retry.MinInterval, j.retry.MaxInterval)
		patch.PayerNotifyRetryAt = entity.Set(&retryAt)
		patch.PayerNotifyError = entity.Set(errorText(sendErr))
		if _, err := j.orders.Apply(ctx, order.ID, &patch, now); err != nil {
			return errors.Join(sendErr, mapStoreErr(err))
		}
		return sendErr
	}

	patch.IsPayerNotified = entity.Set(true)
	patch.PayerNotifyRetryAt = entity.Set[*time.Time](nil)
	patch.PayerNotifyError = entity.Set[*string](nil)
	if _, err := j.orders.Apply(ctx, order.ID, &patch, now); err != nil {
		return mapStoreErr(err)
	}
	j.logger.WithField("refund_order_id", order.ID).Info("payer_email_sent")
	return nil
}
