package types

import (
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

const maxPayerPhone = 999999999999

type RefundOrder struct {
	Id           string  `json:"id"`
	Numb         string  `json:"numb"`
	PaymentId    *string `json:"payment_id"`
	NotifyUrl    *string `json:"notify_url"`
	ReturnUrl    *string `json:"return_url"`
	Reason       string  `json:"reason"`
	Status       int32   `json:"status"`
	Note         *string `json:"note"`
	PayerName    string  `json:"payer_name"`
	PayerEdrpou  string  `json:"payer_edrpou"`
	PayerPhone   *int64  `json:"payer_phone"`
	PayerEmail   string  `json:"payer_email"`
	PaymentDate  string  `json:"payment_date"`
	CaseNumb     *string `json:"case_numb"`
	CourtCode    string  `json:"court_code"`
	Amount       string  `json:"amount"`
	AmountAndFee string  `json:"amount_and_fee"`
	IsNotified   bool    `json:"is_payer_notified"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
}

type RefundOrderEnvelopeResponse struct {
	RefundOrder *RefundOrder `json:"refund_order"`
}

type CreateRefundOrderRequest struct {
	Id           string          `json:"id"`
	Numb         string          `json:"numb"`
	NotifyUrl    *string         `json:"notify_url"`
	ReturnUrl    *string         `json:"return_url"`
	Reason       string          `json:"reason"`
	PayerName    string          `json:"payer_name"`
	PayerEdrpou  string          `json:"payer_edrpou"`
	PayerPhone   *int64          `json:"payer_phone"`
	PayerEmail   string          `json:"payer_email"`
	PaymentDate  string          `json:"payment_date"`
	CaseNumb     *string         `json:"case_numb"`
	CourtCode    string          `json:"court_code"`
	Amount       decimal.Decimal `json:"amount"`
	AmountAndFee decimal.Decimal `json:"amount_and_fee"`
}

func NewCreateRefundOrderRequestFromContext(ctx echo.Context) (*CreateRefundOrderRequest, error) {
	var body CreateRefundOrderRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.Id = strings.TrimSpace(body.Id)
	body.Numb = strings.TrimSpace(body.Numb)
	body.Reason = strings.TrimSpace(body.Reason)
	body.PayerName = strings.TrimSpace(body.PayerName)
	body.PayerEdrpou = strings.TrimSpace(body.PayerEdrpou)
	body.PayerEmail = strings.TrimSpace(body.PayerEmail)
	body.PaymentDate = strings.TrimSpace(body.PaymentDate)
	body.CourtCode = strings.TrimSpace(body.CourtCode)
	body.NotifyUrl = trimOptional(body.NotifyUrl)
	body.ReturnUrl = trimOptional(body.ReturnUrl)
	body.CaseNumb = trimOptional(body.CaseNumb)
	return &body, nil
}

func (r *CreateRefundOrderRequest) Validate() error {
	if _, err := uuid.Parse(r.Id); err != nil {
		return errors.New("invalid refund order id")
	}
	if err := requireLength("numb", r.Numb, 1, 10); err != nil {
		return err
	}
	if err := requireLength("reason", r.Reason, 1, 200); err != nil {
		return err
	}
	if err := requireLength("payer_name", r.PayerName, 1, 100); err != nil {
		return err
	}
	if err := requireLength("payer_edrpou", r.PayerEdrpou, 1, 10); err != nil {
		return err
	}
	if err := requireLength("court_code", r.CourtCode, 1, 25); err != nil {
		return err
	}
	if r.CaseNumb != nil {
		if err := requireLength("case_numb", *r.CaseNumb, 1, 70); err != nil {
			return err
		}
	}
	if err := optionalURL("notify_url", r.NotifyUrl); err != nil {
		return err
	}
	if err := optionalURL("return_url", r.ReturnUrl); err != nil {
		return err
	}
	if r.PayerPhone != nil && (*r.PayerPhone < 0 || *r.PayerPhone > maxPayerPhone) {
		return errors.New("payer_phone is out of range")
	}
	if utf8.RuneCountInString(r.PayerEmail) > 100 {
		return errors.New("payer_email must be at most 100 characters")
	}
	if addr, err := mail.ParseAddress(r.PayerEmail); err != nil || addr.Address != r.PayerEmail {
		return errors.New("payer_email is invalid")
	}
	if _, err := time.Parse(time.DateOnly, r.PaymentDate); err != nil {
		return errors.New("payment_date must be YYYY-MM-DD")
	}
	if !r.Amount.IsPositive() {
		return errors.New("amount must be positive")
	}
	if r.AmountAndFee.LessThan(r.Amount) {
		return errors.New("amount_and_fee must not be less than amount")
	}
	return nil
}

type RefundOrderIDRequest struct {
	Id string `json:"id"`
}

func NewRefundOrderIDRequestFromContext(ctx echo.Context) *RefundOrderIDRequest {
	return &RefundOrderIDRequest{Id: strings.TrimSpace(ctx.Param("id"))}
}

func (r *RefundOrderIDRequest) Validate() error {
	if _, err := uuid.Parse(r.Id); err != nil {
		return errors.New("invalid refund order id")
	}
	return nil
}

type RefundOrderNumbRequest struct {
	Numb string `json:"numb"`
}

func NewRefundOrderNumbRequestFromContext(ctx echo.Context) *RefundOrderNumbRequest {
	return &RefundOrderNumbRequest{Numb: strings.TrimSpace(ctx.Param("numb"))}
}

func (r *RefundOrderNumbRequest) Validate() error {
	return requireLength("numb", r.Numb, 1, 10)
}

type ChangeRefundOrderStatusRequest struct {
	Numb      string  `json:"-"`
	Status    int32   `json:"status"`
	Note      *string `json:"note"`
	PaymentId *string `json:"payment_id"`
}

func NewChangeRefundOrderStatusRequestFromContext(ctx echo.Context) (*ChangeRefundOrderStatusRequest, error) {
	var body ChangeRefundOrderStatusRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}
	body.Numb = strings.TrimSpace(ctx.Param("numb"))
	body.Note = trimOptional(body.Note)
	body.PaymentId = trimOptional(body.PaymentId)
	return &body, nil
}

func (r *ChangeRefundOrderStatusRequest) Validate() error {
	if err := requireLength("numb", r.Numb, 1, 10); err != nil {
		return err
	}
	if r.Note != nil {
		if err := requireLength("note", *r.Note, 1, 250); err != nil {
			return err
		}
	}
	if r.PaymentId != nil {
		if _, err := uuid.Parse(*r.PaymentId); err != nil {
			return errors.New("invalid payment id")
		}
	}
	return nil
}

func requireLength(field, value string, min, max int) error {
	n := utf8.RuneCountInString(value)
	if n < min {
		return fmt.Errorf("%s is required", field)
	}
	if n > max {
		return fmt.Errorf("%s must be at most %d characters", field, max)
	}
	return nil
}

func optionalURL(field string, value *string) error {
	if value == nil {
		return nil
	}
	if err := requireLength(field, *value, 1, 200); err != nil {
		return err
	}
	u, err := url.ParseRequestURI(*value)
	if err != nil || u.Host == "" {
		return fmt.Errorf("%s is invalid", field)
	}
	return nil
}

func trimOptional(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
