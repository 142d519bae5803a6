package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-paylink/app/entity"
	"github.com/vibast-solutions/ms-go-paylink/app/provider"
	"github.com/vibast-solutions/ms-go-paylink/config"
)

// NotificationTrigger asks for an immediate webhook attempt and waits for it to finish.
type NotificationTrigger interface {
	Notify(ctx context.Context, paymentID string) error
}

type GatewayStatusJob struct {
	*paymentJob
	gateway           provider.Gateway
	panErrors         panErrorStore
	notifications     NotificationTrigger
	sessionExpiration time.Duration
}

func NewGatewayStatusJob(
	deps Deps,
	retry config.RetryConfig,
	sessionExpiration time.Duration,
	gateway provider.Gateway,
	panErrors panErrorStore,
	notifications NotificationTrigger,
) *GatewayStatusJob {
	j := &GatewayStatusJob{
		gateway:           gateway,
		panErrors:         panErrors,
		notifications:     notifications,
		sessionExpiration: sessionExpiration,
	}
	j.paymentJob = newPaymentJob(entity.JobGatewayStatus, deps, retry, j.process)
	return j
}

func (j *GatewayStatusJob) process(ctx context.Context, payment *entity.Payment) error {
	callErr := j.updateGatewayStatus(ctx, payment)

	updated, err := j.finish(ctx, callErr, payment.ID, (*entity.Payment).GatewayTerminal)
	if updated == nil || !updated.GatewayTerminal() {
		return err
	}

	j.publish(updated)
	if updated.IsFinished {
		j.recordEvent(ctx, updated, entity.EventGatewayFinished)
	} else {
		j.recordEvent(ctx, updated, entity.EventGatewayFailed)
	}
	if updated.NotifyURL != nil && *updated.NotifyURL != "" && j.notifications != nil {
		if notifyErr := j.notifications.Notify(ctx, updated.ID); notifyErr != nil {
			j.logger.WithError(notifyErr).WithField("payment_id", updated.ID).Warn("notification_trigger_failed")
		}
	}
	return err
}

func (j *GatewayStatusJob) updateGatewayStatus(ctx context.Context, payment *entity.Payment) error {
	state, err := j.gateway.GetTransactionState(ctx, payment.SID)
	if err != nil {
		return j.storeFailure(ctx, payment.ID, err, nil)
	}
	code, err := state.Code()
	if err != nil {
		return j.storeFailure(ctx, payment.ID, err, nil)
	}

	now := j.now()
	finished := entity.GatewayFinished(code)
	pending := entity.GatewayPending(code)
	expired := pending && now.After(payment.CreatedAt.Add(j.sessionExpiration))
	failed := (!finished && !pending) || expired

	var processingID, pan *string
	if last := state.LastOperation(); last != nil {
		processingID = nonEmpty(last.TwoRespCode)
		if len(last.PAN) > 6 {
			pan = nonEmpty(last.PAN[:6])
		} else {
			pan = nonEmpty(last.PAN)
		}
	}

	var patch entity.PaymentPatch
	patch.Status = entity.Set(code)
	patch.IsFinished = entity.Set(finished)
	patch.IsExpired = entity.Set(expired)
	patch.IsFailed = entity.Set(failed)
	patch.ProcessingID = entity.Set(processingID)
	patch.FinishDate = entity.Set(&now)
	patch.StatusMessage = entity.Set(state.ResultDesc)
	patch.PAN = entity.Set(pan)

	if _, err := j.Payments.Apply(ctx, payment.ID, &patch, now); err != nil {
		return mapStoreErr(err)
	}

	j.logger.WithFields(logrus.Fields{
		"payment_id": payment.ID,
		"status":     derefInt32(code),
		"finished":   finished,
		"failed":     failed,
		"expired":    expired,
	}).Info("gateway_status_updated")

	if pan != nil && entity.GatewayRecordsPAN(code) && j.panErrors != nil {
		return j.panErrors.Upsert(ctx, &entity.PanError{
			PAN:       *pan,
			Status:    *code,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	return nil
}

func derefInt32(v *int32) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
