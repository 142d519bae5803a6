package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-paylink/app/factory"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

type NotifierConfig struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scope        string
	HTTPTimeout  time.Duration
}

type NotificationRecipient struct {
	IBAN     string `json:"iban"`
	Name     string `json:"name"`
	EDRPOU   string `json:"edrpou"`
	MFO      string `json:"mfo"`
	BankName string `json:"bankName"`
}

type NotificationDetails struct {
	Description string                `json:"description"`
	Recipient   NotificationRecipient `json:"recipient"`
}

type PaymentNotification struct {
	OrderID        string              `json:"orderId"`
	IsExpired      bool                `json:"isExpired"`
	IsFailed       bool                `json:"isFailed"`
	IsFinished     bool                `json:"isFinished"`
	IsSep          bool                `json:"isSep"`
	Code           *int32              `json:"code"`
	Message        *string             `json:"message"`
	PaymentTime    *string             `json:"paymentTime"`
	DetailsChanged bool                `json:"detailsChanged"`
	Details        NotificationDetails `json:"details"`
}

type WebhookNotifier struct {
	tokens oauth2.TokenSource
	client *http.Client
	logger logrus.FieldLogger
}

// NewWebhookNotifier fetches client-credentials tokens lazily and reuses them until they expire.
func NewWebhookNotifier(cfg NotifierConfig) *WebhookNotifier {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := &http.Client{Timeout: timeout}

	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.TokenURL,
	}
	if scope := strings.TrimSpace(cfg.Scope); scope != "" {
		cc.Scopes = []string{scope}
	}
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, client)

	return &WebhookNotifier{
		tokens: cc.TokenSource(tokenCtx),
		client: client,
		logger: factory.NewModuleLogger("webhook_notifier"),
	}
}

func (n *WebhookNotifier) Deliver(ctx context.Context, url string, notification *PaymentNotification) error {
	if strings.TrimSpace(url) == "" {
		return errors.New("notify url is empty")
	}

	token, err := n.tokens.Token()
	if err != nil {
		return fmt.Errorf("obtain notification token: %w", err)
	}

	payload, err := marshalJSON(notification)
	if err != nil {
		return err
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token.AccessToken)

	n.logger.WithFields(logrus.Fields{"url": url, "order_id": notification.OrderID}).Info("webhook_send")
	if _, err := postJSON(ctx, n.client, url, payload, header, webhookAccepted); err != nil {
		return err
	}
	return nil
}

func webhookAccepted(code int) bool {
	return code == http.StatusOK || code == http.StatusCreated || code == http.StatusNoContent
}
