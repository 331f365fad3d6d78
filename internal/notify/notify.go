// Package notify sends affiliate payout status emails.
package notify

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"github.com/attaboy/payouts/internal/domain"
	"github.com/google/uuid"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/shopspring/decimal"
)

// PayoutNotice carries what an affiliate email needs to render.
type PayoutNotice struct {
	PayoutID       uuid.UUID
	AffiliateName  string
	AffiliateEmail string
	Amount         decimal.Decimal
	Method         domain.PayoutMethod
	Reference      string
	FailureReason  string
	At             time.Time
}

// Notifier delivers payout status emails. Callers treat errors as non-fatal.
type Notifier interface {
	PayoutProcessing(ctx context.Context, n PayoutNotice) error
	PayoutSucceeded(ctx context.Context, n PayoutNotice) error
	PayoutFailed(ctx context.Context, n PayoutNotice) error
}

type mailSender interface {
	Send(email *mail.SGMailV3) (*rest.Response, error)
}

// SendGridNotifier sends notices through the SendGrid v3 API.
type SendGridNotifier struct {
	client    mailSender
	fromEmail string
	fromName  string
	sandbox   bool
	logger    *slog.Logger
}

// NewSendGridNotifier creates a notifier. Sandbox mode makes SendGrid validate
// the message without delivering it.
func NewSendGridNotifier(apiKey, fromEmail, fromName string, sandbox bool, logger *slog.Logger) *SendGridNotifier {
	return &SendGridNotifier{
		client:    sendgrid.NewSendClient(apiKey),
		fromEmail: fromEmail,
		fromName:  fromName,
		sandbox:   sandbox,
		logger:    logger,
	}
}

// New returns a SendGrid notifier when an API key is configured and a no-op
// notifier otherwise.
func New(apiKey, fromEmail, fromName string, sandbox bool, logger *slog.Logger) Notifier {
	if apiKey == "" {
		logger.Info("sendgrid api key not set, payout emails disabled")
		return NoopNotifier{}
	}
	return NewSendGridNotifier(apiKey, fromEmail, fromName, sandbox, logger)
}

func (s *SendGridNotifier) PayoutProcessing(ctx context.Context, n PayoutNotice) error {
	return s.send(ctx, "processing", n, renderProcessing(n))
}

func (s *SendGridNotifier) PayoutSucceeded(ctx context.Context, n PayoutNotice) error {
	return s.send(ctx, "succeeded", n, renderSucceeded(n))
}

func (s *SendGridNotifier) PayoutFailed(ctx context.Context, n PayoutNotice) error {
	return s.send(ctx, "failed", n, renderFailed(n))
}

func (s *SendGridNotifier) send(ctx context.Context, kind string, n PayoutNotice, m message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if n.AffiliateEmail == "" {
		return fmt.Errorf("payout %s: affiliate has no email address", n.PayoutID)
	}

	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail(n.AffiliateName, n.AffiliateEmail)
	msg := mail.NewSingleEmail(from, m.subject, to, m.text, m.html)
	msg.AddCategories("affiliate-payout-" + kind)
	if s.sandbox {
		ms := mail.NewMailSettings()
		ms.SetSandboxMode(mail.NewSetting(true))
		msg.MailSettings = ms
	}

	resp, err := s.client.Send(msg)
	if err != nil {
		return fmt.Errorf("send payout %s email: %w", kind, err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("send payout %s email: sendgrid status %d: %s", kind, resp.StatusCode, resp.Body)
	}
	s.logger.Info("payout email sent", "kind", kind, "payout_id", n.PayoutID)
	return nil
}

// NoopNotifier drops every notice.
type NoopNotifier struct{}

func (NoopNotifier) PayoutProcessing(context.Context, PayoutNotice) error { return nil }
func (NoopNotifier) PayoutSucceeded(context.Context, PayoutNotice) error  { return nil }
func (NoopNotifier) PayoutFailed(context.Context, PayoutNotice) error     { return nil }

// MethodLabel is the display name of a payout method.
func MethodLabel(m domain.PayoutMethod) string {
	switch m {
	case domain.PayoutMethodGCash:
		return "GCash"
	case domain.PayoutMethodBankTransfer:
		return "Bank Transfer"
	default:
		return string(m)
	}
}

// FormatAmount renders a peso amount with thousands separators, e.g. ₱12,345.60.
func FormatAmount(d decimal.Decimal) string {
	s := d.Abs().StringFixed(2)
	whole, frac, _ := strings.Cut(s, ".")
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	sign := ""
	if d.IsNegative() {
		sign = "-"
	}
	return sign + "₱" + b.String() + "." + frac
}

func escape(s string) string { return html.EscapeString(s) }
