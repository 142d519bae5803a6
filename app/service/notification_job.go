package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/vibast-solutions/ms-go-paylink/app/backoff"
	"github.com/vibast-solutions/ms-go-paylink/app/entity"
	"github.com/vibast-solutions/ms-go-paylink/app/provider"
	"github.com/vibast-solutions/ms-go-paylink/config"
)

const paymentTimeLayout = "2006-01-02T15:04:05.999"

type notifyRequest struct {
	ctx       context.Context
	paymentID string
	done      chan error
}

// NotificationJob delivers the merchant webhook for every payment with an outcome.
//
// Besides its own timer-driven runs it serves immediate delivery requests from the status jobs,
// so a merchant hears about a terminal result without waiting for the next tick.
type NotificationJob struct {
	*paymentJob
	notifier provider.Notifier
	location *time.Location

	requests chan notifyRequest
	mu       sync.Mutex
	quit     chan struct{}
}

func NewNotificationJob(deps Deps, cfg config.NotificationConfig, notifier provider.Notifier, location *time.Location) *NotificationJob {
	if location == nil {
		location = time.UTC
	}
	j := &NotificationJob{
		notifier: notifier,
		location: location,
		requests: make(chan notifyRequest),
	}
	j.paymentJob = newPaymentJob(entity.JobNotification, deps, cfg.RetryConfig, j.process)
	return j
}

// Serve handles Notify requests until ctx is done. In-progress deliveries finish before it returns.
func (j *NotificationJob) Serve(ctx context.Context) error {
	quit, err := j.begin()
	if err != nil {
		return err
	}
	j.serve(ctx, quit)
	return nil
}

// Start is Serve in the background. Notify is accepted as soon as Start returns; wait blocks
// until ctx is done and in-progress deliveries have finished.
func (j *NotificationJob) Start(ctx context.Context) (wait func(), err error) {
	quit, err := j.begin()
	if err != nil {
		return nil, err
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		j.serve(ctx, quit)
	}()
	return func() { <-done }, nil
}

func (j *NotificationJob) begin() (chan struct{}, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.quit != nil {
		return nil, ErrAlreadyServing
	}
	j.quit = make(chan struct{})
	return j.quit, nil
}

func (j *NotificationJob) serve(ctx context.Context, quit chan struct{}) {
	var wg sync.WaitGroup
	defer func() {
		j.mu.Lock()
		close(quit)
		j.quit = nil
		j.mu.Unlock()
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case req := <-j.requests:
			wg.Add(1)
			go func() {
				defer wg.Done()
				req.done <- j.handle(req.ctx, req.paymentID)
			}()
		}
	}
}

// Notify delivers the webhook for paymentID now and waits for the attempt to finish. A payment
// that is not awaiting delivery, or is already being delivered, returns nil.
func (j *NotificationJob) Notify(ctx context.Context, paymentID string) error {
	j.mu.Lock()
	quit := j.quit
	j.mu.Unlock()
	if quit == nil {
		return ErrNotificationNotServing
	}

	req := notifyRequest{ctx: ctx, paymentID: paymentID, done: make(chan error, 1)}
	select {
	case j.requests <- req:
	case <-quit:
		return ErrNotificationNotServing
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (j *NotificationJob) handle(ctx context.Context, paymentID string) error {
	payment, err := j.Payments.FindByID(ctx, paymentID)
	if err != nil {
		return err
	}
	if payment == nil {
		return ErrPaymentNotFound
	}
	if !payment.AwaitingNotification() {
		return nil
	}
	_, err = j.ProcessOne(ctx, payment)
	return err
}

func (j *NotificationJob) process(ctx context.Context, payment *entity.Payment) error {
	now := j.now()

	var patch entity.PaymentPatch
	patch.NotifyAttempts = entity.Set(payment.NotifyAttempts + 1)
	if payment.NotifyStartAt == nil {
		patch.NotifyStartAt = entity.Set(entity.Ptr(now))
	}

	deliverErr := j.notifier.Deliver(ctx, *payment.NotifyURL, j.Notification(payment))
	if deliverErr != nil {
		retryAt := backoff.NextRetryAt(now, payment.NotifyAttempts, j.retry.MinInterval, j.retry.MaxInterval)
		patch.NotifyRetryAt = entity.Set(&retryAt)
		patch.NotifyError = entity.Set(errorText(deliverErr))
		if _, err := j.Payments.Apply(ctx, payment.ID, &patch, now); err != nil {
			return errors.Join(deliverErr, mapStoreErr(err))
		}
		return deliverErr
	}

	patch.IsNotified = entity.Set(true)
	patch.NotifyRetryAt = entity.Set[*time.Time](nil)
	patch.NotifyError = entity.Set[*string](nil)
	updated, err := j.Payments.Apply(ctx, payment.ID, &patch, now)
	if err != nil {
		return mapStoreErr(err)
	}

	j.publish(updated)
	j.recordEvent(ctx, updated, entity.EventNotified)
	j.logger.WithField("payment_id", payment.ID).Info("payment_notified")
	return nil
}

// Notification builds the webhook body for payment.
func (j *NotificationJob) Notification(payment *entity.Payment) *provider.PaymentNotification {
	var paymentTime *string
	if payment.FinishDate != nil {
		v := payment.FinishDate.In(j.location).Format(paymentTimeLayout)
		paymentTime = &v
	}

	return &provider.PaymentNotification{
		OrderID:        payment.OrderID,
		IsExpired:      payment.IsExpired,
		IsFailed:       payment.IsFailed,
		IsFinished:     payment.IsFinished,
		IsSep:          payment.IsAbsFailed || payment.IsAbsFinished,
		Code:           NotificationCode(payment),
		Message:        payment.StatusMessage,
		PaymentTime:    paymentTime,
		DetailsChanged: payment.DetailsChanged,
		Details: provider.NotificationDetails{
			Description: payment.Description,
			Recipient: provider.NotificationRecipient{
				IBAN:     payment.Recipient.IBAN,
				Name:     payment.Recipient.Name,
				EDRPOU:   payment.Recipient.EDRPOU,
				MFO:      payment.Recipient.MFO,
				BankName: payment.Recipient.BankName,
			},
		},
	}
}

// NotificationCode is the status a merchant sees. Refund progress overrides the gateway code
// unless the session expired without any code.
func NotificationCode(payment *entity.Payment) *int32 {
	code := payment.Status
	if payment.IsAbsFinished {
		code = entity.Ptr(entity.NotifyFinishedAbs)
	}

	switch {
	case code == nil && payment.IsExpired:
		if payment.StartedPay {
			return entity.Ptr(entity.NotifyStartedPay)
		}
		return entity.Ptr(entity.GatewaySessionExpired)
	case payment.RefundStatus == entity.RefundStarted:
		return entity.Ptr(entity.NotifyStartedRefund)
	case payment.RefundStatus == entity.RefundFinished:
		return entity.Ptr(entity.NotifyFinishedRefund)
	}
	if code == nil {
		return nil
	}
	return entity.Ptr(*code)
}
