package types

import (
	"errors"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"google.golang.org/protobuf/types/known/structpb"
)

const maxDescriptionLength = 1000

type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status string `json:"status"`
}

type Recipient struct {
	Iban     string `json:"iban"`
	Name     string `json:"name"`
	Edrpou   string `json:"edrpou"`
	Mfo      string `json:"mfo"`
	BankName string `json:"bank_name"`
}

type GatewayStatus struct {
	Code         *int32  `json:"code"`
	Message      *string `json:"message"`
	ProcessingId *string `json:"processing_id"`
	Pan          *string `json:"pan"`
	FinishDate   string  `json:"finish_date,omitempty"`
	IsExpired    bool    `json:"is_expired"`
	IsFailed     bool    `json:"is_failed"`
	IsFinished   bool    `json:"is_finished"`
}

type SettlementStatus struct {
	Status       *int32  `json:"status"`
	ActionId     *int64  `json:"action_id"`
	ActionStatus *string `json:"action_status"`
	ActionTime   string  `json:"action_time,omitempty"`
	FinishDate   string  `json:"finish_date,omitempty"`
	IsFailed     bool    `json:"is_failed"`
	IsFinished   bool    `json:"is_finished"`
}

type RefundStatus struct {
	Status        string  `json:"status"`
	StatusCode    *int32  `json:"status_code"`
	StatusMessage *string `json:"status_message"`
	Amount        *string `json:"amount"`
}

type NotificationStatus struct {
	IsNotified  bool    `json:"is_notified"`
	Attempts    int32   `json:"attempts"`
	RetryAt     string  `json:"retry_at,omitempty"`
	Error       *string `json:"error"`
	AbandonedAt string  `json:"abandoned_at,omitempty"`
}

type Payment struct {
	Id             string             `json:"id"`
	OrderId        string             `json:"order_id"`
	Sid            string             `json:"sid"`
	TransactionId  string             `json:"transaction_id"`
	Currency       string             `json:"currency"`
	Amount         string             `json:"amount"`
	Fee            *string            `json:"fee"`
	Recipient      Recipient          `json:"recipient"`
	Description    string             `json:"description"`
	NotifyUrl      *string            `json:"notify_url"`
	StartedPay     bool               `json:"started_pay"`
	DetailsChanged bool               `json:"details_changed"`
	Flow           string             `json:"flow"`
	Gateway        GatewayStatus      `json:"gateway"`
	Settlement     SettlementStatus   `json:"settlement"`
	Refund         RefundStatus       `json:"refund"`
	Notification   NotificationStatus `json:"notification"`
	AbandonedAt    string             `json:"abandoned_at,omitempty"`
	CreatedAt      string             `json:"created_at"`
	UpdatedAt      string             `json:"updated_at"`
}

type PaymentEnvelopeResponse struct {
	Payment *Payment `json:"payment"`
}

type TriggerPaymentResponse struct {
	Result  string   `json:"result"`
	Payment *Payment `json:"payment"`
}

type PaymentIDRequest struct {
	Id string `json:"id"`
}

func NewPaymentIDRequestFromContext(ctx echo.Context) *PaymentIDRequest {
	return &PaymentIDRequest{Id: strings.TrimSpace(ctx.Param("id"))}
}

// NewPaymentIDRequestFromStruct reads the "id" field of a gRPC request message.
func NewPaymentIDRequestFromStruct(msg *structpb.Struct) *PaymentIDRequest {
	req := &PaymentIDRequest{}
	if msg == nil {
		return req
	}
	if v, ok := msg.GetFields()["id"]; ok {
		req.Id = strings.TrimSpace(v.GetStringValue())
	}
	return req
}

func (r *PaymentIDRequest) GetId() string {
	if r == nil {
		return ""
	}
	return r.Id
}

func (r *PaymentIDRequest) Validate() error {
	if _, err := uuid.Parse(r.GetId()); err != nil {
		return errors.New("invalid payment id")
	}
	return nil
}

type ChangeDetailsRequest struct {
	Id          string     `json:"-"`
	Description string     `json:"description"`
	Recipient   *Recipient `json:"recipient"`
}

func NewChangeDetailsRequestFromContext(ctx echo.Context) (*ChangeDetailsRequest, error) {
	var body ChangeDetailsRequest
	if err := ctx.Bind(&body); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	body.Id = strings.TrimSpace(ctx.Param("id"))
	body.Description = strings.TrimSpace(body.Description)
	if r := body.Recipient; r != nil {
		r.Iban = strings.TrimSpace(r.Iban)
		r.Name = strings.TrimSpace(r.Name)
		r.Edrpou = strings.TrimSpace(r.Edrpou)
		r.Mfo = strings.TrimSpace(r.Mfo)
		r.BankName = strings.TrimSpace(r.BankName)
	}
	return &body, nil
}

func (r *ChangeDetailsRequest) Validate() error {
	if _, err := uuid.Parse(r.Id); err != nil {
		return errors.New("invalid payment id")
	}
	if len([]rune(r.Description)) > maxDescriptionLength {
		return errors.New("description must be at most 1000 characters")
	}
	if rc := r.Recipient; rc != nil {
		switch {
		case rc.Iban == "":
			return errors.New("recipient.iban is required")
		case rc.Name == "":
			return errors.New("recipient.name is required")
		case rc.Edrpou == "":
			return errors.New("recipient.edrpou is required")
		case rc.Mfo == "":
			return errors.New("recipient.mfo is required")
		case rc.BankName == "":
			return errors.New("recipient.bank_name is required")
		}
	}
	return nil
}
