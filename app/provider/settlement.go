package provider

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"net/http"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-paylink/app/factory"
	"golang.org/x/crypto/pkcs12"
)

const actionTimeLayout = "02.01.2006 15:04:05"

var descriptionNumberSign = regexp.MustCompile(` #(\d)`)

type SettlementConfig struct {
	URL                 string
	BasicUsername       string
	BasicPassword       string
	CertificatePath     string
	CertificatePassword string
	TerminalID          int64
	InsecureSkipVerify  bool
	HTTPTimeout         time.Duration
	Location            *time.Location
}

type ActionRequest struct {
	ProcessingID  string
	TransactionID string
	Currency      string
	Amount        decimal.Decimal
	IBAN          string
	Name          string
	OKPO          string
	Description   string
}

type ActionResult struct {
	Code     int32
	Message  *string
	ActionID *int64
}

type ActionStatusResult struct {
	Code         int32
	Message      *string
	ActionStatus *string
	ActionTime   *time.Time
}

type SettlementClient struct {
	cfg      SettlementConfig
	client   *http.Client
	location *time.Location
	logger   logrus.FieldLogger
}

func NewSettlementClient(cfg SettlementConfig) (*SettlementClient, error) {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	location := cfg.Location
	if location == nil {
		location = time.UTC
	}

	tlsConfig := &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify}
	if strings.TrimSpace(cfg.CertificatePath) != "" {
		pfx, err := os.ReadFile(cfg.CertificatePath)
		if err != nil {
			return nil, fmt.Errorf("read settlement certificate: %w", err)
		}
		cert, err := certificateFromPKCS12(pfx, cfg.CertificatePassword)
		if err != nil {
			return nil, err
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = tlsConfig

	return &SettlementClient{
		cfg:      cfg,
		client:   &http.Client{Timeout: timeout, Transport: transport},
		location: location,
		logger:   factory.NewModuleLogger("settlement_client"),
	}, nil
}

func certificateFromPKCS12(pfx []byte, password string) (tls.Certificate, error) {
	blocks, err := pkcs12.ToPEM(pfx, password)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("decode settlement certificate: %w", err)
	}
	var pemData []byte
	for _, block := range blocks {
		pemData = append(pemData, pem.EncodeToMemory(block)...)
	}
	cert, err := tls.X509KeyPair(pemData, pemData)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("load settlement certificate: %w", err)
	}
	return cert, nil
}

type actionEnvelope struct {
	RefParam string      `json:"refParam"`
	Body     interface{} `json:"body"`
}

type createActionBody struct {
	TerminalContractID int64       `json:"terminalContractId"`
	ProcessingID       string      `json:"processingId,omitempty"`
	TslID              string      `json:"tslId"`
	CurrencyCode       string      `json:"currencyCode"`
	Amount             json.Number `json:"amount"`
	IBAN               string      `json:"iban"`
	Name               string      `json:"name"`
	OKPO               string      `json:"okpo"`
	Desc               string      `json:"desc"`
}

type checkActionBody struct {
	ActID int64 `json:"actId"`
}

func (c *SettlementClient) CreateAction(ctx context.Context, req *ActionRequest) (*ActionResult, error) {
	refParam := uuid.NewString()
	envelope := &actionEnvelope{
		RefParam: refParam,
		Body: &createActionBody{
			TerminalContractID: c.cfg.TerminalID,
			ProcessingID:       req.ProcessingID,
			TslID:              req.TransactionID,
			CurrencyCode:       req.Currency,
			Amount:             json.Number(req.Amount.StringFixed(2)),
			IBAN:               req.IBAN,
			Name:               req.Name,
			OKPO:               req.OKPO,
			Desc:               NormalizeDescription(req.Description),
		},
	}

	c.logger.WithFields(logrus.Fields{"ref_param": refParam, "processing_id": req.ProcessingID}).Info("settlement_create_action")
	body, err := c.post(ctx, "c2aTermPayment", envelope)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Code    looseInt `json:"code"`
		Message *string  `json:"message"`
		Body    *struct {
			ActionID *int64 `json:"actionId"`
		} `json:"body"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode settlement create response: %w", err)
	}

	result := &ActionResult{Code: int32(resp.Code), Message: resp.Message}
	if resp.Body != nil {
		result.ActionID = resp.Body.ActionID
	}
	return result, nil
}

func (c *SettlementClient) GetActionStatus(ctx context.Context, actionID int64) (*ActionStatusResult, error) {
	refParam := uuid.NewString()
	envelope := &actionEnvelope{RefParam: refParam, Body: &checkActionBody{ActID: actionID}}

	c.logger.WithFields(logrus.Fields{"ref_param": refParam, "action_id": actionID}).Debug("settlement_check_action")
	body, err := c.post(ctx, "c2aTermCheck", envelope)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Code    looseInt `json:"code"`
		Message *string  `json:"message"`
		Body    *struct {
			ActionStatus *string `json:"actionStatus"`
			ActionTime   string  `json:"actionTime"`
		} `json:"body"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode settlement status response: %w", err)
	}

	result := &ActionStatusResult{Code: int32(resp.Code), Message: resp.Message}
	if resp.Body != nil {
		result.ActionStatus = resp.Body.ActionStatus
		if raw := strings.TrimSpace(resp.Body.ActionTime); raw != "" {
			at, err := time.ParseInLocation(actionTimeLayout, raw, c.location)
			if err != nil {
				return nil, fmt.Errorf("cannot parse value of actionTime: %s", raw)
			}
			result.ActionTime = &at
		}
	}
	return result, nil
}

func (c *SettlementClient) post(ctx context.Context, path string, v interface{}) ([]byte, error) {
	if strings.TrimSpace(c.cfg.URL) == "" {
		return nil, errors.New("settlement url is not configured")
	}
	payload, err := marshalJSON(v)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("Authorization", "Basic "+basicAuth(c.cfg.BasicUsername, c.cfg.BasicPassword))
	return postJSON(ctx, c.client, joinURL(c.cfg.URL, path), payload, header, onlyOK)
}

// NormalizeDescription replaces " #<digit>" with " №<digit>", which the processor requires.
func NormalizeDescription(desc string) string {
	return descriptionNumberSign.ReplaceAllString(desc, " №$1")
}

func joinURL(base, path string) string {
	return strings.TrimRight(strings.TrimSpace(base), "/") + "/" + strings.TrimLeft(path, "/")
}

func basicAuth(username, password string) string {
	return base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
}
