package service

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-paylink/app/entity"
	"github.com/vibast-solutions/ms-go-paylink/app/provider"
	"github.com/vibast-solutions/ms-go-paylink/config"
)

// SettlementStatusJob posts finished card payments to the settlement processor and follows the
// resulting action until it is accepted or rejected.
type SettlementStatusJob struct {
	*paymentJob
	settlement    provider.Settlement
	notifications NotificationTrigger
}

func NewSettlementStatusJob(deps Deps, retry config.RetryConfig, settlement provider.Settlement, notifications NotificationTrigger) *SettlementStatusJob {
	j := &SettlementStatusJob{settlement: settlement, notifications: notifications}
	j.paymentJob = newPaymentJob(entity.JobSettlementStatus, deps, retry, j.process)
	return j
}

func (j *SettlementStatusJob) process(ctx context.Context, payment *entity.Payment) error {
	var callErr error
	if payment.AbsActionID == nil {
		callErr = j.createAction(ctx, payment)
	} else {
		callErr = j.checkAction(ctx, payment)
	}

	updated, err := j.finish(ctx, callErr, payment.ID, (*entity.Payment).SettlementTerminal)
	if updated == nil || !updated.SettlementTerminal() {
		return err
	}

	j.publish(updated)
	if updated.IsAbsFailed {
		j.recordEvent(ctx, updated, entity.EventSettlementFailed)
	} else {
		j.recordEvent(ctx, updated, entity.EventSettlementFinished)
	}
	if updated.NotifyURL != nil && *updated.NotifyURL != "" && j.notifications != nil {
		if notifyErr := j.notifications.Notify(ctx, updated.ID); notifyErr != nil {
			j.logger.WithError(notifyErr).WithField("payment_id", updated.ID).Warn("notification_trigger_failed")
		}
	}
	return err
}

func (j *SettlementStatusJob) createAction(ctx context.Context, payment *entity.Payment) error {
	req := &provider.ActionRequest{
		TransactionID: payment.TransactionID,
		Currency:      payment.Currency,
		Amount:        payment.Amount,
		IBAN:          payment.Recipient.IBAN,
		Name:          payment.Recipient.Name,
		OKPO:          payment.Recipient.EDRPOU,
		Description:   payment.Description,
	}
	if payment.ProcessingID != nil {
		req.ProcessingID = *payment.ProcessingID
	}

	result, err := j.settlement.CreateAction(ctx, req)
	if err != nil {
		var patch entity.PaymentPatch
		var remote *provider.RemoteError
		if errors.As(err, &remote) && remote.Code != nil && *remote.Code != entity.SettlementSuccess {
			patch.AbsStatus = entity.Set(entity.Ptr(*remote.Code))
		}
		return j.storeFailure(ctx, payment.ID, err, &patch)
	}

	now := j.now()
	failed := result.Code != entity.SettlementSuccess

	var patch entity.PaymentPatch
	patch.IsAbsFailed = entity.Set(failed)
	patch.IsAbsFinished = entity.Set(false)
	patch.IsFailed = entity.Set(failed)
	patch.IsFinished = entity.Set(!failed)
	patch.AbsStatus = entity.Set(entity.Ptr(result.Code))
	patch.AbsActionID = entity.Set(result.ActionID)
	patch.StatusMessage = entity.Set(result.Message)
	patch.FinishAbsDate = entity.Set(&now)
	if failed {
		patch.ResetNotification()
	}

	if _, err := j.Payments.Apply(ctx, payment.ID, &patch, now); err != nil {
		return mapStoreErr(err)
	}
	j.logger.WithFields(logrus.Fields{
		"payment_id": payment.ID,
		"code":       result.Code,
		"action_id":  derefInt64(result.ActionID),
	}).Info("settlement_action_created")
	return nil
}

func (j *SettlementStatusJob) checkAction(ctx context.Context, payment *entity.Payment) error {
	result, err := j.settlement.GetActionStatus(ctx, *payment.AbsActionID)
	if err != nil {
		return j.storeFailure(ctx, payment.ID, err, nil)
	}

	now := j.now()
	status := ""
	if result.ActionStatus != nil {
		status = *result.ActionStatus
	}
	finished := entity.SettlementActionFinished(status)
	failed := result.Code != entity.SettlementSuccess ||
		(status != "" && !entity.SettlementActionPending(status) && !finished)

	var patch entity.PaymentPatch
	patch.IsAbsFailed = entity.Set(failed)
	patch.IsAbsFinished = entity.Set(finished && !failed)
	patch.IsFailed = entity.Set(failed)
	patch.IsFinished = entity.Set(!failed)
	patch.AbsActionStatus = entity.Set(result.ActionStatus)
	patch.AbsActionTime = entity.Set(result.ActionTime)
	patch.StatusMessage = entity.Set(result.Message)
	patch.FinishAbsDate = entity.Set(&now)
	if failed || finished {
		patch.ResetNotification()
	}

	if _, err := j.Payments.Apply(ctx, payment.ID, &patch, now); err != nil {
		return mapStoreErr(err)
	}
	j.logger.WithFields(logrus.Fields{
		"payment_id":    payment.ID,
		"code":          result.Code,
		"action_status": status,
		"finished":      finished,
		"failed":        failed,
	}).Info("settlement_status_updated")
	return nil
}

func derefInt64(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
