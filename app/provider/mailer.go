package provider

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/google/uuid"
	"github.com/jordan-wright/email"
	"github.com/vibast-solutions/ms-go-paylink/app/entity"
)

const refundPayerSubject = "Повернення коштів"

type MailerConfig struct {
	Host         string
	Port         int
	Username     string
	Password     string
	From         string
	CompanyName  string
	CompanyPhone string
}

type SMTPMailer struct {
	cfg  MailerConfig
	send func(e *email.Email, addr string, auth smtp.Auth) error
}

func NewSMTPMailer(cfg MailerConfig) *SMTPMailer {
	return &SMTPMailer{
		cfg: cfg,
		send: func(e *email.Email, addr string, auth smtp.Auth) error {
			return e.Send(addr, auth)
		},
	}
}

func (m *SMTPMailer) SendRefundPayerEmail(ctx context.Context, order *entity.RefundOrder) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(m.cfg.Host) == "" {
		return fmt.Errorf("smtp host is not configured")
	}

	e := m.RefundPayerEmail(order)
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	return m.send(e, addr, auth)
}

func (m *SMTPMailer) RefundPayerEmail(order *entity.RefundOrder) *email.Email {
	e := email.NewEmail()
	e.From = m.cfg.From
	e.To = []string{order.PayerEmail}
	e.Subject = refundPayerSubject
	e.Text = []byte(refundPayerBody(order, m.cfg.CompanyName, m.cfg.CompanyPhone))
	e.Headers.Set("Message-Id", fmt.Sprintf("<%s@%s>", uuid.NewString(), m.cfg.Host))
	return e
}

func refundPayerBody(order *entity.RefundOrder, companyName, companyPhone string) string {
	var b strings.Builder
	if name := strings.TrimSpace(order.PayerName); name != "" {
		fmt.Fprintf(&b, "Шановний(а) %s!\n\n", name)
	} else {
		b.WriteString("Шановний клієнте!\n\n")
	}
	fmt.Fprintf(&b, "Кошти за заявкою на повернення № %s на суму %s повернуто на вашу картку.\n", order.Numb, order.Amount.StringFixed(2))
	b.WriteString("Зарахування може тривати до кількох банківських днів.\n\n")
	fmt.Fprintf(&b, "З питань звертайтеся: %s, тел. %s\n", companyName, companyPhone)
	return b.String()
}
