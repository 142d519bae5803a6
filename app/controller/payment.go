package controller

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-paylink/app/entity"
	"github.com/vibast-solutions/ms-go-paylink/app/factory"
	"github.com/vibast-solutions/ms-go-paylink/app/mapper"
	"github.com/vibast-solutions/ms-go-paylink/app/service"
	"github.com/vibast-solutions/ms-go-paylink/app/types"
)

const defaultSSEExpiration = 10 * time.Minute

type PaymentController struct {
	paymentService *service.PaymentService
	sseExpiration  time.Duration
	sseOpen        atomic.Int64
	logger         logrus.FieldLogger
}

func NewPaymentController(paymentService *service.PaymentService, sseExpiration time.Duration) *PaymentController {
	if sseExpiration <= 0 {
		sseExpiration = defaultSSEExpiration
	}
	return &PaymentController{
		paymentService: paymentService,
		sseExpiration:  sseExpiration,
		logger:         factory.NewModuleLogger("payments-controller"),
	}
}

func (c *PaymentController) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &types.HealthResponse{Status: "ok"})
}

func (c *PaymentController) GetPayment(ctx echo.Context) error {
	req := types.NewPaymentIDRequestFromContext(ctx)
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.paymentService.GetPayment(ctx.Request().Context(), req.GetId())
	if err != nil {
		return c.writeServiceError(ctx, err, "Get payment failed")
	}

	return ctx.JSON(http.StatusOK, &types.PaymentEnvelopeResponse{Payment: mapper.PaymentToDTO(item)})
}

func (c *PaymentController) StartPayment(ctx echo.Context) error {
	req := types.NewPaymentIDRequestFromContext(ctx)
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.paymentService.StartPayment(ctx.Request().Context(), req.GetId())
	if err != nil {
		return c.writeServiceError(ctx, err, "Start payment failed")
	}

	return ctx.JSON(http.StatusOK, &types.PaymentEnvelopeResponse{Payment: mapper.PaymentToDTO(item)})
}

func (c *PaymentController) RefundPayment(ctx echo.Context) error {
	req := types.NewPaymentIDRequestFromContext(ctx)
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.paymentService.RefundPayment(ctx.Request().Context(), req.GetId())
	if err != nil {
		return c.writeServiceError(ctx, err, "Refund payment failed")
	}

	return ctx.JSON(http.StatusOK, &types.PaymentEnvelopeResponse{Payment: mapper.PaymentToDTO(item)})
}

func (c *PaymentController) ChangeDetails(ctx echo.Context) error {
	req, err := types.NewChangeDetailsRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	change := service.DetailsChange{Description: req.Description}
	if r := req.Recipient; r != nil {
		change.Recipient = &entity.Recipient{IBAN: r.Iban, Name: r.Name, EDRPOU: r.Edrpou, MFO: r.Mfo, BankName: r.BankName}
	}

	item, err := c.paymentService.ChangeDetails(ctx.Request().Context(), req.Id, change)
	if err != nil {
		return c.writeServiceError(ctx, err, "Change payment details failed")
	}

	return ctx.JSON(http.StatusOK, &types.PaymentEnvelopeResponse{Payment: mapper.PaymentToDTO(item)})
}

// ReconcilePayment runs the payment through its current loop now: 202 when it ran, 409 when it
// was already being processed and 200 when no loop owns it.
func (c *PaymentController) ReconcilePayment(ctx echo.Context) error {
	req := types.NewPaymentIDRequestFromContext(ctx)
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	result, item, err := c.paymentService.TriggerNow(ctx.Request().Context(), req.GetId())
	if err != nil {
		return c.writeServiceError(ctx, err, "Reconcile payment failed")
	}

	code := http.StatusOK
	switch result {
	case service.TriggerRan:
		code = http.StatusAccepted
	case service.TriggerInFlight:
		code = http.StatusConflict
	}
	return ctx.JSON(code, &types.TriggerPaymentResponse{Result: string(result), Payment: mapper.PaymentToDTO(item)})
}

// StreamPayment writes payment snapshots as server-sent events until the client leaves, the
// stream expires or the hub shuts down.
func (c *PaymentController) StreamPayment(ctx echo.Context) error {
	req := types.NewPaymentIDRequestFromContext(ctx)
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}
	if _, err := c.paymentService.GetPayment(ctx.Request().Context(), req.GetId()); err != nil {
		return c.writeServiceError(ctx, err, "Stream payment failed")
	}

	sub, err := c.paymentService.Subscribe(req.GetId())
	if err != nil {
		return c.writeServiceError(ctx, err, "Stream payment failed")
	}
	defer c.paymentService.Unsubscribe(sub)

	l := factory.LoggerWithContext(c.logger, ctx).WithField("payment_id", req.GetId())
	l.WithField("count", c.sseOpen.Add(1)).Info("sse_opened")
	defer func() { l.WithField("count", c.sseOpen.Add(-1)).Info("sse_closed") }()

	w := ctx.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set(echo.HeaderCacheControl, "no-cache")
	w.Header().Set(echo.HeaderConnection, "keep-alive")
	w.WriteHeader(http.StatusOK)
	w.Flush()

	expire := time.NewTimer(c.sseExpiration)
	defer expire.Stop()

	for {
		select {
		case <-ctx.Request().Context().Done():
			return nil
		case <-expire.C:
			return nil
		case snap, ok := <-sub.C():
			if !ok {
				return nil
			}
			data, err := json.Marshal(mapper.PaymentToDTO(snap))
			if err != nil {
				l.WithError(err).Warn("sse_encode_failed")
				continue
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
				return nil
			}
			w.Flush()
		}
	}
}

func (c *PaymentController) writeServiceError(ctx echo.Context, err error, logMessage string) error {
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrPaymentNotFound):
		return c.writeError(ctx, http.StatusNotFound, "payment not found")
	case errors.Is(err, service.ErrRefundAlreadyStarted),
		errors.Is(err, service.ErrAlreadyRefunded),
		errors.Is(err, service.ErrRefundNotAllowed),
		errors.Is(err, service.ErrPaymentNotSettled):
		return c.writeError(ctx, http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrRefundRejected), errors.Is(err, service.ErrGatewayUnavailable):
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Warn(logMessage)
		return c.writeError(ctx, http.StatusBadGateway, err.Error())
	default:
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error(logMessage)
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}
}

func (c *PaymentController) writeError(ctx echo.Context, statusCode int, message string) error {
	return ctx.JSON(statusCode, &types.ErrorResponse{Error: message})
}
