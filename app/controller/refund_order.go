package controller

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-paylink/app/entity"
	"github.com/vibast-solutions/ms-go-paylink/app/factory"
	"github.com/vibast-solutions/ms-go-paylink/app/mapper"
	"github.com/vibast-solutions/ms-go-paylink/app/service"
	"github.com/vibast-solutions/ms-go-paylink/app/types"
)

type RefundOrderController struct {
	refundOrderService *service.RefundOrderService
	logger             logrus.FieldLogger
}

func NewRefundOrderController(refundOrderService *service.RefundOrderService) *RefundOrderController {
	return &RefundOrderController{
		refundOrderService: refundOrderService,
		logger:             factory.NewModuleLogger("refund-orders-controller"),
	}
}

func (c *RefundOrderController) CreateRefundOrder(ctx echo.Context) error {
	req, err := types.NewCreateRefundOrderRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.refundOrderService.CreateRefundOrder(ctx.Request().Context(), service.NewRefundOrder{
		ID:           req.Id,
		Numb:         req.Numb,
		NotifyURL:    req.NotifyUrl,
		ReturnURL:    req.ReturnUrl,
		Reason:       req.Reason,
		PayerName:    req.PayerName,
		PayerEDRPOU:  req.PayerEdrpou,
		PayerPhone:   req.PayerPhone,
		PayerEmail:   req.PayerEmail,
		PaymentDate:  req.PaymentDate,
		CaseNumb:     req.CaseNumb,
		CourtCode:    req.CourtCode,
		Amount:       req.Amount,
		AmountAndFee: req.AmountAndFee,
	})
	if err != nil {
		return c.writeServiceError(ctx, err, "Create refund order failed")
	}

	return ctx.JSON(http.StatusCreated, &types.RefundOrderEnvelopeResponse{RefundOrder: mapper.RefundOrderToDTO(item)})
}

func (c *RefundOrderController) GetRefundOrder(ctx echo.Context) error {
	req := types.NewRefundOrderIDRequestFromContext(ctx)
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.refundOrderService.GetRefundOrder(ctx.Request().Context(), req.Id)
	if err != nil {
		return c.writeServiceError(ctx, err, "Get refund order failed")
	}

	return ctx.JSON(http.StatusOK, &types.RefundOrderEnvelopeResponse{RefundOrder: mapper.RefundOrderToDTO(item)})
}

func (c *RefundOrderController) GetRefundOrderByNumb(ctx echo.Context) error {
	req := types.NewRefundOrderNumbRequestFromContext(ctx)
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.refundOrderService.GetRefundOrderByNumb(ctx.Request().Context(), req.Numb)
	if err != nil {
		return c.writeServiceError(ctx, err, "Get refund order failed")
	}

	return ctx.JSON(http.StatusOK, &types.RefundOrderEnvelopeResponse{RefundOrder: mapper.RefundOrderToDTO(item)})
}

func (c *RefundOrderController) ChangeRefundOrderStatus(ctx echo.Context) error {
	req, err := types.NewChangeRefundOrderStatusRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	item, err := c.refundOrderService.ChangeRefundOrderStatus(ctx.Request().Context(), req.Numb, service.RefundOrderStatusChange{
		Status:    entity.RefundOrderStatus(req.Status),
		Note:      req.Note,
		PaymentID: req.PaymentId,
	})
	if err != nil {
		return c.writeServiceError(ctx, err, "Change refund order status failed")
	}

	return ctx.JSON(http.StatusOK, &types.RefundOrderEnvelopeResponse{RefundOrder: mapper.RefundOrderToDTO(item)})
}

func (c *RefundOrderController) writeServiceError(ctx echo.Context, err error, logMessage string) error {
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrRefundOrderNotFound):
		return c.writeError(ctx, http.StatusNotFound, "refund order not found")
	case errors.Is(err, service.ErrRefundOrderExists):
		return c.writeError(ctx, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrRefundOrderPaymentUnknown):
		return c.writeError(ctx, http.StatusUnprocessableEntity, err.Error())
	default:
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error(logMessage)
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}
}

func (c *RefundOrderController) writeError(ctx echo.Context, statusCode int, message string) error {
	return ctx.JSON(statusCode, &types.ErrorResponse{Error: message})
}
