package service

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-paylink/app/entity"
	"github.com/vibast-solutions/ms-go-paylink/app/provider"
	"github.com/vibast-solutions/ms-go-paylink/config"
)

// RefundStatusJob watches started refunds until the gateway reports the reversal.
type RefundStatusJob struct {
	*paymentJob
	gateway        provider.Gateway
	notifyOnRefund bool
}

func NewRefundStatusJob(deps Deps, retry config.RetryConfig, gateway provider.Gateway, notifyOnRefund bool) *RefundStatusJob {
	j := &RefundStatusJob{gateway: gateway, notifyOnRefund: notifyOnRefund}
	j.paymentJob = newPaymentJob(entity.JobRefundStatus, deps, retry, j.process)
	return j
}

func (j *RefundStatusJob) process(ctx context.Context, payment *entity.Payment) error {
	callErr := j.updateRefundStatus(ctx, payment)

	updated, err := j.finish(ctx, callErr, payment.ID, (*entity.Payment).RefundTerminal)
	if updated == nil || !updated.RefundTerminal() {
		return err
	}

	j.publish(updated)
	if updated.RefundStatus == entity.RefundFinished {
		j.recordEvent(ctx, updated, entity.EventRefundFinished)
	} else {
		j.recordEvent(ctx, updated, entity.EventRefundFailed)
	}
	return err
}

func (j *RefundStatusJob) updateRefundStatus(ctx context.Context, payment *entity.Payment) error {
	state, err := j.gateway.GetTransactionState(ctx, payment.SID)
	if err != nil {
		return j.storeFailure(ctx, payment.ID, err, nil)
	}

	last := state.LastOperation()
	if last == nil || !last.IsReversed() {
		return nil
	}
	if !payment.RefundStatus.CanTransitionTo(entity.RefundFinished) {
		return nil
	}
	amount, err := last.ReversedAmount()
	if err != nil {
		return j.storeFailure(ctx, payment.ID, err, nil)
	}

	var patch entity.PaymentPatch
	patch.RefundStatus = entity.Set(entity.RefundFinished)
	patch.RefundAmount = entity.Set(amount)
	if j.notifyOnRefund {
		patch.ResetNotification()
	}

	now := j.now()
	if _, err := j.Payments.Apply(ctx, payment.ID, &patch, now); err != nil {
		return mapStoreErr(err)
	}
	j.logger.WithFields(logrus.Fields{
		"payment_id": payment.ID,
		"amount":     amount.Decimal.String(),
	}).Info("refund_finished")
	return nil
}
