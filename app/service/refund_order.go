package service

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-paylink/app/entity"
	"github.com/vibast-solutions/ms-go-paylink/app/factory"
	"github.com/vibast-solutions/ms-go-paylink/app/repository"
)

type refundOrderRepository interface {
	refundOrderStore
	Create(ctx context.Context, order *entity.RefundOrder) error
	FindByNumb(ctx context.Context, numb string) (*entity.RefundOrder, error)
}

type paymentFinder interface {
	FindByID(ctx context.Context, id string) (*entity.Payment, error)
}

// NewRefundOrder is a payer's refund request as accepted from the API.
type NewRefundOrder struct {
	ID           string
	Numb         string
	NotifyURL    *string
	ReturnURL    *string
	Reason       string
	PayerName    string
	PayerEDRPOU  string
	PayerPhone   *int64
	PayerEmail   string
	PaymentDate  string
	CaseNumb     *string
	CourtCode    string
	Amount       decimal.Decimal
	AmountAndFee decimal.Decimal
}

// RefundOrderStatusChange moves a refund order through back-office review. A PaymentID links the
// order to the payment being refunded.
type RefundOrderStatusChange struct {
	Status    entity.RefundOrderStatus
	Note      *string
	PaymentID *string
}

type RefundOrderService struct {
	orders     refundOrderRepository
	payments   paymentFinder
	payerEmail *PayerEmailJob
	now        func() time.Time
	logger     logrus.FieldLogger
}

func NewRefundOrderService(
	orders refundOrderRepository,
	payments paymentFinder,
	payerEmail *PayerEmailJob,
	now func() time.Time,
	logger logrus.FieldLogger,
) *RefundOrderService {
	if logger == nil {
		logger = factory.NewModuleLogger("refund_order_service")
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &RefundOrderService{
		orders:     orders,
		payments:   payments,
		payerEmail: payerEmail,
		now:        now,
		logger:     logger,
	}
}

// CreateRefundOrder stores the order and e-mails the payer straight away. A failed e-mail does
// not fail the request; the payer-email loop retries it.
func (s *RefundOrderService) CreateRefundOrder(ctx context.Context, in NewRefundOrder) (*entity.RefundOrder, error) {
	now := s.now()
	order := &entity.RefundOrder{
		ID:           in.ID,
		Numb:         in.Numb,
		NotifyURL:    in.NotifyURL,
		ReturnURL:    in.ReturnURL,
		Reason:       in.Reason,
		Status:       entity.RefundOrderNew,
		PayerName:    in.PayerName,
		PayerEDRPOU:  in.PayerEDRPOU,
		PayerPhone:   in.PayerPhone,
		PayerEmail:   in.PayerEmail,
		PaymentDate:  in.PaymentDate,
		CaseNumb:     in.CaseNumb,
		CourtCode:    in.CourtCode,
		Amount:       in.Amount,
		AmountAndFee: in.AmountAndFee,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.orders.Create(ctx, order); err != nil {
		if errors.Is(err, repository.ErrRefundOrderAlreadyExists) {
			return nil, ErrRefundOrderExists
		}
		return nil, err
	}
	s.logger.WithField("refund_order_id", order.ID).Info("refund_order_created")

	if s.payerEmail != nil {
		if _, err := s.payerEmail.ProcessOne(ctx, order); err != nil {
			s.logger.WithError(err).WithField("refund_order_id", order.ID).Warn("payer_email_deferred")
		}
	}

	current, err := s.orders.FindByID(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrRefundOrderNotFound
	}
	return current, nil
}

func (s *RefundOrderService) GetRefundOrder(ctx context.Context, id string) (*entity.RefundOrder, error) {
	if id == "" {
		return nil, ErrInvalidRequest
	}
	order, err := s.orders.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrRefundOrderNotFound
	}
	return order, nil
}

func (s *RefundOrderService) GetRefundOrderByNumb(ctx context.Context, numb string) (*entity.RefundOrder, error) {
	if numb == "" {
		return nil, ErrInvalidRequest
	}
	order, err := s.orders.FindByNumb(ctx, numb)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrRefundOrderNotFound
	}
	return order, nil
}

func (s *RefundOrderService) ChangeRefundOrderStatus(ctx context.Context, numb string, change RefundOrderStatusChange) (*entity.RefundOrder, error) {
	if !change.Status.Valid() {
		return nil, ErrInvalidRequest
	}
	order, err := s.GetRefundOrderByNumb(ctx, numb)
	if err != nil {
		return nil, err
	}

	var patch entity.RefundOrderPatch
	patch.Status = entity.Set(change.Status)
	if change.Note != nil {
		patch.Note = entity.Set(change.Note)
	}
	if change.PaymentID != nil {
		payment, err := s.payments.FindByID(ctx, *change.PaymentID)
		if err != nil {
			return nil, err
		}
		if payment == nil {
			return nil, ErrRefundOrderPaymentUnknown
		}
		patch.PaymentID = entity.Set(change.PaymentID)
	}

	updated, err := s.orders.Apply(ctx, order.ID, &patch, s.now())
	if err != nil {
		return nil, mapStoreErr(err)
	}
	s.logger.WithFields(logrus.Fields{
		"refund_order_id": order.ID,
		"status":          int32(change.Status),
	}).Info("refund_order_status_changed")
	return updated, nil
}
