// Package mail delivers transactional email through Resend, or to the log when no key is configured.
package mail

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"log"
	"time"

	"github.com/resend/resend-go/v2"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// ResetCodeSubject is the subject line of one-time-code emails.
const ResetCodeSubject = "Your Password Reset Code - Mindful Heaven"

type Message struct {
	To      string
	Subject string
	HTML    string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

type Resend struct {
	client *resend.Client
	from   string
}

func NewResend(apiKey, from string) *Resend {
	return &Resend{client: resend.NewClient(apiKey), from: from}
}

func (m *Resend) Send(ctx context.Context, msg Message) error {
	_, err := m.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    m.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
	})
	if err != nil {
		return fmt.Errorf("resend: %w", err)
	}
	return nil
}

// Log records that a message would have been sent. Bodies are not logged.
type Log struct {
	Logger *log.Logger
}

func (m Log) Send(_ context.Context, msg Message) error {
	m.Logger.Printf("mail to %s: %q (delivery disabled)", msg.To, msg.Subject)
	return nil
}

// ResetCode renders the one-time-code email.
func ResetCode(to, code string, ttl time.Duration) (Message, error) {
	var buf bytes.Buffer
	err := templates.ExecuteTemplate(&buf, "reset_code.html", struct {
		Code    string
		Minutes int
	}{code, int(ttl.Minutes())})
	if err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: ResetCodeSubject, HTML: buf.String()}, nil
}
