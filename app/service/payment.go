package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-paylink/app/entity"
	"github.com/vibast-solutions/ms-go-paylink/app/factory"
	"github.com/vibast-solutions/ms-go-paylink/app/hub"
	"github.com/vibast-solutions/ms-go-paylink/app/provider"
	"github.com/vibast-solutions/ms-go-paylink/config"
)

type TriggerResult string

const (
	TriggerRan         TriggerResult = "ran"
	TriggerInFlight    TriggerResult = "in_flight"
	TriggerNothingToDo TriggerResult = "nothing_to_do"
)

// Jobs are the payment loops PaymentService can run a single payment through.
type Jobs struct {
	Gateway      *GatewayStatusJob
	Settlement   *SettlementStatusJob
	Refund       *RefundStatusJob
	Notification *NotificationJob
}

func (j Jobs) forFlow(flow entity.Flow) *paymentJob {
	switch flow {
	case entity.FlowGateway:
		if j.Gateway != nil {
			return j.Gateway.paymentJob
		}
	case entity.FlowSettlement:
		if j.Settlement != nil {
			return j.Settlement.paymentJob
		}
	case entity.FlowRefund:
		if j.Refund != nil {
			return j.Refund.paymentJob
		}
	case entity.FlowNotification:
		if j.Notification != nil {
			return j.Notification.paymentJob
		}
	}
	return nil
}

type PaymentService struct {
	Deps
	gateway      provider.Gateway
	notification config.NotificationConfig
	jobs         Jobs
	logger       logrus.FieldLogger
}

func NewPaymentService(deps Deps, gateway provider.Gateway, notification config.NotificationConfig, jobs Jobs) *PaymentService {
	logger := deps.Logger
	if logger == nil {
		logger = factory.NewModuleLogger("payment_service")
	}
	deps.Logger = logger
	return &PaymentService{
		Deps:         deps,
		gateway:      gateway,
		notification: notification,
		jobs:         jobs,
		logger:       logger,
	}
}

func (s *PaymentService) GetPayment(ctx context.Context, id string) (*entity.Payment, error) {
	if id == "" {
		return nil, ErrInvalidRequest
	}
	payment, err := s.Payments.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, ErrPaymentNotFound
	}
	return payment, nil
}

func (s *PaymentService) StartPayment(ctx context.Context, id string) (*entity.Payment, error) {
	if id == "" {
		return nil, ErrInvalidRequest
	}
	var patch entity.PaymentPatch
	patch.StartedPay = entity.Set(true)
	payment, err := s.Payments.Apply(ctx, id, &patch, s.now())
	if err != nil {
		return nil, mapStoreErr(err)
	}
	s.publish(payment)
	return payment, nil
}

// RefundPayment asks the gateway to reverse the payment. The refund loop takes over once the
// gateway accepts.
func (s *PaymentService) RefundPayment(ctx context.Context, id string) (*entity.Payment, error) {
	payment, err := s.GetPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	switch payment.RefundStatus {
	case entity.RefundStarted:
		return nil, ErrRefundAlreadyStarted
	case entity.RefundFinished:
		return nil, ErrAlreadyRefunded
	case entity.RefundFailed:
		return nil, ErrRefundNotAllowed
	}

	result, err := s.gateway.CreateRefund(ctx, payment.SID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	now := s.now()
	var patch entity.PaymentPatch
	patch.RefundStatusCode = entity.Set(result.Code())
	patch.RefundStatusMessage = entity.Set(result.ResultDesc)

	if !result.Accepted() {
		patch.RefundStatus = entity.Set(entity.RefundFailed)
		updated, err := s.Payments.Apply(ctx, payment.ID, &patch, now)
		if err != nil {
			return nil, mapStoreErr(err)
		}
		s.publish(updated)
		s.recordEvent(ctx, updated, entity.EventRefundFailed)
		s.logger.WithField("payment_id", payment.ID).Warn("refund_rejected")
		return updated, ErrRefundRejected
	}

	patch.RefundStatus = entity.Set(entity.RefundStarted)
	if s.notification.OnPaymentRefund {
		patch.ResetNotification()
	}
	updated, err := s.Payments.Apply(ctx, payment.ID, &patch, now)
	if err != nil {
		return nil, mapStoreErr(err)
	}
	s.publish(updated)
	s.recordEvent(ctx, updated, entity.EventRefundStarted)
	s.logger.WithField("payment_id", payment.ID).Info("refund_started")
	return updated, nil
}

// DetailsChange replaces the recipient and/or the description of a settled payment.
type DetailsChange struct {
	Recipient   *entity.Recipient
	Description string
}

// ChangeDetails reopens settlement with the new details, so the processor gets a fresh action.
func (s *PaymentService) ChangeDetails(ctx context.Context, id string, change DetailsChange) (*entity.Payment, error) {
	payment, err := s.GetPayment(ctx, id)
	if err != nil {
		return nil, err
	}
	if !payment.IsAbsFinished {
		return nil, ErrPaymentNotSettled
	}
	switch payment.RefundStatus {
	case entity.RefundStarted:
		return nil, ErrRefundAlreadyStarted
	case entity.RefundFinished:
		return nil, ErrAlreadyRefunded
	}
	if change.Recipient == nil && change.Description == "" {
		return payment, nil
	}

	var patch entity.PaymentPatch
	patch.Status = entity.Set(entity.Ptr(entity.GatewaySuccess))
	patch.AbsStatus = entity.Set[*int32](nil)
	patch.AbsActionID = entity.Set[*int64](nil)
	patch.AbsActionStatus = entity.Set[*string](nil)
	patch.StatusMessage = entity.Set[*string](nil)
	patch.FinishAbsDate = entity.Set[*time.Time](nil)
	patch.IsAbsFinished = entity.Set(false)
	patch.IsAbsFailed = entity.Set(false)
	patch.DetailsChanged = entity.Set(true)
	if s.notification.OnPaymentChange {
		patch.ResetNotification()
	}
	if r := change.Recipient; r != nil {
		patch.RecipientIBAN = entity.Set(r.IBAN)
		patch.RecipientName = entity.Set(r.Name)
		patch.RecipientEDRPOU = entity.Set(r.EDRPOU)
		patch.RecipientMFO = entity.Set(r.MFO)
		patch.RecipientBankName = entity.Set(r.BankName)
	}
	if change.Description != "" {
		patch.Description = entity.Set(change.Description)
	}

	updated, err := s.Payments.Apply(ctx, payment.ID, &patch, s.now())
	if err != nil {
		return nil, mapStoreErr(err)
	}
	s.publish(updated)
	s.recordEvent(ctx, updated, entity.EventDetailsChanged)
	s.logger.WithField("payment_id", payment.ID).Info("payment_details_changed")
	return updated, nil
}

// TriggerNow runs the payment through the loop that owns its current sub-flow, right away.
func (s *PaymentService) TriggerNow(ctx context.Context, id string) (TriggerResult, *entity.Payment, error) {
	payment, err := s.GetPayment(ctx, id)
	if err != nil {
		return "", nil, err
	}
	job := s.jobs.forFlow(payment.Flow())
	if job == nil {
		return TriggerNothingToDo, payment, nil
	}

	ran, runErr := job.ProcessOne(ctx, payment)
	if !ran {
		return TriggerInFlight, payment, nil
	}

	current, err := s.Payments.FindByID(ctx, id)
	if err != nil {
		return TriggerRan, payment, err
	}
	if current == nil {
		current = payment
	}
	if runErr != nil {
		s.logger.WithError(runErr).WithFields(logrus.Fields{
			"payment_id": id,
			"job":        job.Name(),
		}).Warn("trigger_item_failed")
	}
	return TriggerRan, current, nil
}

// Subscribe returns a live feed of payment snapshots. Callers must Unsubscribe.
func (s *PaymentService) Subscribe(id string) (*hub.Subscription[*entity.Payment], error) {
	if s.Hub == nil {
		return nil, ErrInvalidRequest
	}
	return s.Hub.Subscribe(id), nil
}

func (s *PaymentService) Unsubscribe(sub *hub.Subscription[*entity.Payment]) {
	if s.Hub == nil || sub == nil {
		return
	}
	s.Hub.Unsubscribe(sub)
}
