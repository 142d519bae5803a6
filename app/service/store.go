package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-paylink/app/entity"
	"github.com/vibast-solutions/ms-go-paylink/app/hub"
	"github.com/vibast-solutions/ms-go-paylink/app/reconcile"
	"github.com/vibast-solutions/ms-go-paylink/app/repository"
)

const maxErrorLength = 1024

type paymentStore interface {
	FindByID(ctx context.Context, id string) (*entity.Payment, error)
	Apply(ctx context.Context, id string, patch *entity.PaymentPatch, now time.Time) (*entity.Payment, error)
	ListDue(ctx context.Context, kind entity.JobKind, q repository.DueQuery) ([]*entity.Payment, error)
	MarkAbandoned(ctx context.Context, kind entity.JobKind, cutoff, now time.Time) (int64, error)
}

type refundOrderStore interface {
	FindByID(ctx context.Context, id string) (*entity.RefundOrder, error)
	Apply(ctx context.Context, id string, patch *entity.RefundOrderPatch, now time.Time) (*entity.RefundOrder, error)
	ListDue(ctx context.Context, q repository.DueQuery) ([]*entity.RefundOrder, error)
	MarkAbandoned(ctx context.Context, cutoff, now time.Time) (int64, error)
}

type panErrorStore interface {
	Upsert(ctx context.Context, panError *entity.PanError) error
}

type eventStore interface {
	Create(ctx context.Context, event *entity.PaymentEvent) error
}

type PaymentHub = hub.Hub[*entity.Payment]

// Deps are the collaborators shared by every payment job.
type Deps struct {
	Payments paymentStore
	Events   eventStore
	Hub      *PaymentHub
	Observer reconcile.Observer
	Now      func() time.Time
	Logger   logrus.FieldLogger
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now().UTC()
}

func (d Deps) publish(payment *entity.Payment) {
	if d.Hub == nil || payment == nil {
		return
	}
	d.Hub.Publish(payment.ID, payment.Clone())
}

// recordEvent appends an audit row. A failure is logged and never fails the caller.
func (d Deps) recordEvent(ctx context.Context, payment *entity.Payment, eventType string) {
	if d.Events == nil || payment == nil {
		return
	}
	err := d.Events.Create(ctx, &entity.PaymentEvent{
		PaymentID: payment.ID,
		EventType: eventType,
		Status:    payment.Status,
		CreatedAt: d.now(),
	})
	if err != nil && d.Logger != nil {
		d.Logger.WithError(err).WithField("payment_id", payment.ID).Warn("payment_event_failed")
	}
}

func mapStoreErr(err error) error {
	if errors.Is(err, repository.ErrPaymentNotFound) {
		return ErrPaymentNotFound
	}
	if errors.Is(err, repository.ErrRefundOrderNotFound) {
		return ErrRefundOrderNotFound
	}
	return err
}

func errorText(err error) *string {
	if err == nil {
		return nil
	}
	text := truncate(err.Error(), maxErrorLength)
	return &text
}

func truncate(value string, max int) string {
	if max <= 0 || len(value) <= max {
		return value
	}
	runes := []rune(value)
	if len(runes) <= max {
		return value
	}
	return string(runes[:max])
}

func nonEmpty(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
