package provider

import (
	"context"
	"fmt"

	"github.com/vibast-solutions/ms-go-paylink/app/entity"
)

// Gateway is the card-session side of a payment.
type Gateway interface {
	GetTransactionState(ctx context.Context, sid string) (*TransactionState, error)
	CreateRefund(ctx context.Context, sid string) (*RefundResult, error)
}

// Settlement posts the transfer to the recipient and tracks its action.
type Settlement interface {
	CreateAction(ctx context.Context, req *ActionRequest) (*ActionResult, error)
	GetActionStatus(ctx context.Context, actionID int64) (*ActionStatusResult, error)
}

type Notifier interface {
	Deliver(ctx context.Context, url string, notification *PaymentNotification) error
}

type Mailer interface {
	SendRefundPayerEmail(ctx context.Context, order *entity.RefundOrder) error
}

var (
	_ Gateway    = (*PayLinkClient)(nil)
	_ Settlement = (*SettlementClient)(nil)
	_ Notifier   = (*WebhookNotifier)(nil)
	_ Mailer     = (*SMTPMailer)(nil)
)

// RemoteError is a response the remote side did not accept.
type RemoteError struct {
	Method     string
	URL        string
	StatusCode int
	Status     string
	Body       string
	// Code is the remote "code" field, when the body carried a non-zero one.
	Code *int32
}

func (e *RemoteError) Error() string {
	data := "null"
	if e.Body != "" {
		data = e.Body
	}
	return fmt.Sprintf("%s %s. Status: %s. Data: %s", e.Method, e.URL, e.Status, data)
}
