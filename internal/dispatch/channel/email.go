package channel

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/matcornic/hermes/v2"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Email delivers alert notifications as HTML mail via SendGrid, rendered
// through Hermes for consistent styling. The SendGrid client is built
// once in NewEmail and reused by every Send on that Email; the dispatcher
// builds a new Email, and so a new client, for each alert it dispatches.
type Email struct {
	fromEmail string
	fromName  string
	toEmail   string
	hermes    hermes.Hermes
	client    *sendgrid.Client
}

// NewEmail builds an Email channel. toEmail is the recipient — this
// control plane sends every alert to the owning user's account email.
func NewEmail(apiKey, fromEmail, fromName, toEmail string) *Email {
	return &Email{
		fromEmail: fromEmail,
		fromName:  fromName,
		toEmail:   toEmail,
		hermes: hermes.Hermes{
			Theme: new(hermes.Default),
			Product: hermes.Product{
				Name:      "monitorplane",
				Copyright: "© monitorplane. All rights reserved.",
			},
		},
		client: sendgrid.NewSendClient(apiKey),
	}
}

func (e *Email) Name() string { return "email" }

// Send renders n as an Hermes email containing rule title, monitor name,
// color-coded severity, the UTC trigger time, the latest trigger_data
// value, and the human-readable condition string, then posts it through
// the SendGrid v3 mail API with a 30 s timeout. Any 2xx response is
// treated as delivered, even though SendGrid may still bounce it
// downstream later.
func (e *Email) Send(ctx context.Context, n Notification) error {
	dictionary := []hermes.Entry{
		{Key: "Monitor", Value: n.MonitorName},
		{Key: "Severity", Value: fmt.Sprintf("%s (%s)", n.Severity, SeverityColor(n.Severity))},
		{Key: "Triggered at (UTC)", Value: n.TriggeredAt.UTC().Format("2006-01-02 15:04:05 MST")},
		{Key: "Condition", Value: n.Condition},
	}
	if n.HasLatestValue {
		dictionary = append(dictionary, hermes.Entry{Key: "Latest value", Value: strconv.FormatFloat(n.LatestValue, 'f', -1, 64)})
	}

	body := hermes.Email{
		Body: hermes.Body{
			Title: fmt.Sprintf("[%s] %s", n.Severity, n.RuleTitle),
			Intros: []string{
				n.Message,
			},
			Dictionary: dictionary,
		},
	}

	html, err := e.hermes.GenerateHTML(body)
	if err != nil {
		return fmt.Errorf("channel/email: rendering html: %w", err)
	}
	text, err := e.hermes.GeneratePlainText(body)
	if err != nil {
		return fmt.Errorf("channel/email: rendering plain text: %w", err)
	}

	from := mail.NewEmail(e.fromName, e.fromEmail)
	to := mail.NewEmail("", e.toEmail)
	subject := fmt.Sprintf("[%s] %s", n.Severity, n.RuleTitle)

	message := mail.NewV3Mail()
	message.SetFrom(from)
	message.Subject = subject
	message.AddContent(mail.NewContent("text/plain", text))
	message.AddContent(mail.NewContent("text/html", html))

	personalization := mail.NewPersonalization()
	personalization.AddTos(to)
	message.AddPersonalizations(personalization)

	sendCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	resp, err := e.client.SendWithContext(sendCtx, message)
	if err != nil {
		return fmt.Errorf("channel/email: sending: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("channel/email: sendgrid returned status %d", resp.StatusCode)
	}
	return nil
}
