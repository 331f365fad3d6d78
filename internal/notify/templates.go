package notify

import (
	"fmt"
	"time"
)

type message struct {
	subject string
	text    string
	html    string
}

const dateLayout = "January 2, 2006"

const emailHTML = `<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
  <div style="max-width: 600px; margin: 0 auto; padding: 24px;">
    <h2 style="color: %s;">%s</h2>
    <p>Hi %s,</p>
    <p>%s</p>
    <table style="border-collapse: collapse; margin: 16px 0;">
      <tr><td style="padding: 4px 12px 4px 0;"><strong>Amount</strong></td><td>%s</td></tr>
      <tr><td style="padding: 4px 12px 4px 0;"><strong>Method</strong></td><td>%s</td></tr>
      <tr><td style="padding: 4px 12px 4px 0;"><strong>Reference</strong></td><td>%s</td></tr>
      <tr><td style="padding: 4px 12px 4px 0;"><strong>Date</strong></td><td>%s</td></tr>
    </table>
    <p>%s</p>
  </div>
</body>
</html>`

func formatDate(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.Format(dateLayout)
}

func render(n PayoutNotice, subject, color, heading, lead, closing string) message {
	amount := FormatAmount(n.Amount)
	method := MethodLabel(n.Method)
	date := formatDate(n.At)

	text := fmt.Sprintf("Hi %s,\n\n%s\n\nAmount: %s\nMethod: %s\nReference: %s\nDate: %s\n\n%s\n",
		n.AffiliateName, lead, amount, method, n.Reference, date, closing)
	body := fmt.Sprintf(emailHTML, color, escape(heading), escape(n.AffiliateName), escape(lead),
		amount, method, escape(n.Reference), date, escape(closing))
	return message{subject: subject, text: text, html: body}
}

func renderProcessing(n PayoutNotice) message {
	return render(n,
		"Your affiliate payout is on its way",
		"#2563eb", "Payout processing",
		"We have sent your affiliate payout to our payment partner. It usually arrives within one business day.",
		"We will email you again once the transfer completes.")
}

func renderSucceeded(n PayoutNotice) message {
	return render(n,
		"Your affiliate payout has been completed",
		"#16a34a", "Payout completed",
		"Your affiliate payout has been delivered.",
		"Thank you for being part of our affiliate program.")
}

func renderFailed(n PayoutNotice) message {
	reason := n.FailureReason
	if reason == "" {
		reason = "Unknown error"
	}
	return render(n,
		"Action needed: your affiliate payout could not be completed",
		"#dc2626", "Payout failed",
		"We could not complete your affiliate payout. Reason: "+reason,
		"Please check your payout details in your affiliate dashboard. Our team will retry once they are updated.")
}
