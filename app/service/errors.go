package service

import "errors"

var (
	ErrInvalidRequest            = errors.New("invalid request")
	ErrPaymentNotFound           = errors.New("payment not found")
	ErrRefundOrderNotFound       = errors.New("refund order not found")
	ErrRefundOrderExists         = errors.New("refund order already exists")
	ErrRefundOrderPaymentUnknown = errors.New("payment for refund order not found")
	ErrRefundAlreadyStarted      = errors.New("refund already started")
	ErrAlreadyRefunded           = errors.New("payment already refunded")
	ErrRefundNotAllowed          = errors.New("refund is not allowed after a failed refund")
	ErrRefundRejected            = errors.New("refund rejected by gateway")
	ErrPaymentNotSettled         = errors.New("payment is not settled")
	ErrGatewayUnavailable        = errors.New("gateway unavailable")
	ErrNotificationNotServing    = errors.New("notification job is not serving")
	ErrAlreadyServing            = errors.New("notification job is already serving")
)
