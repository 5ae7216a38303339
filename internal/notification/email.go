package notification

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"time"

	"github.com/qzhari/envmon-server/internal/protocol"
	"github.com/qzhari/envmon-server/pkg/config"
)

// EmailNotifier sends email notifications for relay transitions
type EmailNotifier struct {
	config *config.SMTPConfig
}

// NewEmailNotifier creates a new email notifier
func NewEmailNotifier(cfg *config.SMTPConfig) *EmailNotifier {
	return &EmailNotifier{config: cfg}
}

// SendRelayNotification sends an email for a relay event
func (e *EmailNotifier) SendRelayNotification(event *protocol.RelayEvent) error {
	var subject string
	var body string
	var err error

	switch event.Type {
	case protocol.RelayTypeOn:
		subject = "Relay switched ON - threshold exceeded"
		body, err = e.renderRelayOnTemplate(event)
	case protocol.RelayTypeOff:
		subject = "Relay switched OFF - readings back to normal"
		body, err = e.renderRelayOffTemplate(event)
	default:
		return fmt.Errorf("unknown event type: %s", event.Type)
	}

	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}

	return e.sendEmail(subject, body)
}

func (e *EmailNotifier) renderRelayOnTemplate(event *protocol.RelayEvent) (string, error) {
	tmpl := `
Relay Switched ON
=================

{{.Message}}

Readings at the time of the transition:
  Temperature: {{printf "%.2f" .Temperature}}
  Humidity:    {{printf "%.2f" .Humidity}}
  CO2:         {{printf "%.2f" .CO2}}

Occurred at: {{.OccurredAt}}
Event ID: {{.EventID}}

The relay stays on until all readings drop back below their thresholds or an
operator takes manual control.

---
Environment Monitoring Notification System
`

	t, err := template.New("relay_on").Parse(tmpl)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, event); err != nil {
		return "", err
	}

	return buf.String(), nil
}

func (e *EmailNotifier) renderRelayOffTemplate(event *protocol.RelayEvent) (string, error) {
	tmpl := `
Relay Switched OFF
==================

{{.Message}}

Readings at the time of the transition:
  Temperature: {{printf "%.2f" .Temperature}}
  Humidity:    {{printf "%.2f" .Humidity}}
  CO2:         {{printf "%.2f" .CO2}}

Occurred at: {{.OccurredAt}}
Event ID: {{.EventID}}

---
Environment Monitoring Notification System
`

	t, err := template.New("relay_off").Parse(tmpl)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, event); err != nil {
		return "", err
	}

	return buf.String(), nil
}

func (e *EmailNotifier) sendEmail(subject, body string) error {
	// Skip sending if SMTP is not configured
	if e.config.Username == "" || e.config.Password == "" {
		fmt.Printf("SMTP not configured, skipping email:\nSubject: %s\n%s\n", subject, body)
		return nil
	}

	message := fmt.Sprintf("From: %s\r\n", e.config.From)
	message += fmt.Sprintf("To: %s\r\n", e.config.To)
	message += fmt.Sprintf("Subject: %s\r\n", subject)
	message += fmt.Sprintf("Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	message += "\r\n"
	message += body

	auth := smtp.PlainAuth("", e.config.Username, e.config.Password, e.config.Host)

	addr := fmt.Sprintf("%s:%d", e.config.Host, e.config.Port)
	err := smtp.SendMail(addr, auth, e.config.From, []string{e.config.To}, []byte(message))
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}

	fmt.Printf("Email sent successfully: %s\n", subject)
	return nil
}
