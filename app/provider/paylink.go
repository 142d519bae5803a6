package provider

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-paylink/app/factory"
)

const refundAccepted = "100"

type PayLinkConfig struct {
	URL         string
	SignKey     string
	HTTPTimeout time.Duration
}

type Operation struct {
	PAN         string      `json:"PAN"`
	TwoRespCode string      `json:"TWO_RESPCODE"`
	Reversed    looseString `json:"REVERSED"`
	RevAmount   looseString `json:"REV_AMOUNT"`
}

func (o *Operation) IsReversed() bool {
	return strings.TrimSpace(string(o.Reversed)) == "1"
}

func (o *Operation) ReversedAmount() (decimal.NullDecimal, error) {
	raw := strings.TrimSpace(string(o.RevAmount))
	if raw == "" {
		return decimal.NullDecimal{}, nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("unexpected REV_AMOUNT %q", raw)
	}
	return decimal.NewNullDecimal(v), nil
}

type TransactionState struct {
	ResultCode looseString `json:"resultCode"`
	ResultDesc *string     `json:"resultDesc"`
	SID        string      `json:"sid"`
	Operations []Operation `json:"oper_data"`
}

// Code returns the numeric result code, or nil when the gateway sent none.
func (s *TransactionState) Code() (*int32, error) {
	raw := strings.TrimSpace(string(s.ResultCode))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("unexpected result code %q", raw)
	}
	code := int32(v)
	return &code, nil
}

func (s *TransactionState) LastOperation() *Operation {
	if len(s.Operations) == 0 {
		return nil
	}
	return &s.Operations[len(s.Operations)-1]
}

type RefundResult struct {
	ResultCode looseString `json:"resultCode"`
	ResultDesc *string     `json:"resultDesc"`
}

func (r *RefundResult) Accepted() bool {
	return strings.TrimSpace(string(r.ResultCode)) == refundAccepted
}

// Code returns the numeric result code, or nil when it is missing or not a number.
func (r *RefundResult) Code() *int32 {
	v, err := strconv.ParseInt(strings.TrimSpace(string(r.ResultCode)), 10, 32)
	if err != nil {
		return nil
	}
	code := int32(v)
	return &code
}

type PayLinkClient struct {
	cfg    PayLinkConfig
	client *http.Client
	logger logrus.FieldLogger
}

func NewPayLinkClient(cfg PayLinkConfig) *PayLinkClient {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &PayLinkClient{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: factory.NewModuleLogger("paylink_client"),
	}
}

type transactionStateRequest struct {
	SID  string `json:"sid"`
	Type string `json:"type"`
	Sign string `json:"sign,omitempty"`
}

type refundRequest struct {
	Type string `json:"type"`
	SID  string `json:"sid"`
	Sign string `json:"sign,omitempty"`
}

func (c *PayLinkClient) GetTransactionState(ctx context.Context, sid string) (*TransactionState, error) {
	req := &transactionStateRequest{SID: sid, Type: "getTranState"}
	sign, err := c.sign(req)
	if err != nil {
		return nil, err
	}
	req.Sign = sign

	c.logger.WithField("sid", sid).Debug("paylink_get_transaction_state")
	body, err := c.post(ctx, req)
	if err != nil {
		return nil, err
	}

	state := &TransactionState{}
	if err := json.Unmarshal(body, state); err != nil {
		return nil, fmt.Errorf("decode transaction state: %w", err)
	}
	return state, nil
}

func (c *PayLinkClient) CreateRefund(ctx context.Context, sid string) (*RefundResult, error) {
	req := &refundRequest{Type: "refund", SID: sid}
	sign, err := c.sign(req)
	if err != nil {
		return nil, err
	}
	req.Sign = sign

	c.logger.WithField("sid", sid).Info("paylink_create_refund")
	body, err := c.post(ctx, req)
	if err != nil {
		return nil, err
	}

	result := &RefundResult{}
	if err := json.Unmarshal(body, result); err != nil {
		return nil, fmt.Errorf("decode refund result: %w", err)
	}
	return result, nil
}

func (c *PayLinkClient) sign(v interface{}) (string, error) {
	if strings.TrimSpace(c.cfg.SignKey) == "" {
		return "", errors.New("paylink sign key is not configured")
	}
	payload, err := marshalJSON(v)
	if err != nil {
		return "", err
	}
	return Sign(c.cfg.SignKey, payload), nil
}

func (c *PayLinkClient) post(ctx context.Context, v interface{}) ([]byte, error) {
	if strings.TrimSpace(c.cfg.URL) == "" {
		return nil, errors.New("paylink url is not configured")
	}
	payload, err := marshalJSON(v)
	if err != nil {
		return nil, err
	}
	return postJSON(ctx, c.client, c.cfg.URL, payload, nil, onlyOK)
}

// Sign computes base64(HMAC-SHA1(key, key + base64(payload) + key)) with "/" escaped in payload.
func Sign(key string, payload []byte) string {
	escaped := strings.ReplaceAll(string(payload), "/", `\/`)
	encoded := base64.StdEncoding.EncodeToString([]byte(escaped))

	mac := hmac.New(sha1.New, []byte(key))
	_, _ = mac.Write([]byte(key + encoded + key))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}
