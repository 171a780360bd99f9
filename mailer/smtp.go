package mailer

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/receivables_backend/config"
	"github.com/google/uuid"
)

// SMTPSender delivers drafted emails over SMTP with STARTTLS.
// Implements escalation.EmailSender.
type SMTPSender struct {
	settings config.SMTPSettings
}

func NewSMTPSender(settings config.SMTPSettings) (*SMTPSender, error) {
	if strings.TrimSpace(settings.Host) == "" {
		return nil, errors.New("smtp host is empty")
	}
	if strings.TrimSpace(settings.FromEmail) == "" {
		return nil, errors.New("smtp from address is empty")
	}
	return &SMTPSender{settings: settings}, nil
}

func (s *SMTPSender) addr() string {
	return fmt.Sprintf("%s:%d", s.settings.Host, s.settings.Port)
}

// Send delivers one email and returns the generated message id.
func (s *SMTPSender) Send(ctx context.Context, to string, subject string, body string) (string, error) {
	if strings.TrimSpace(to) == "" {
		return "", errors.New("recipient address is empty")
	}

	messageId := fmt.Sprintf("<%s@%s>", uuid.New().String(), s.settings.Host)

	from := s.settings.FromEmail
	fromHeader := from
	if s.settings.FromName != "" {
		fromHeader = fmt.Sprintf("%s <%s>", s.settings.FromName, from)
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", fromHeader)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	fmt.Fprintf(&msg, "Message-ID: %s\r\n", messageId)
	fmt.Fprintf(&msg, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	var auth smtp.Auth
	if s.settings.Username != "" {
		auth = smtp.PlainAuth("", s.settings.Username, s.settings.Password, s.settings.Host)
	}

	// net/smtp has no context support; honor cancellation via a goroutine
	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(s.addr(), auth, from, []string{to}, []byte(msg.String()))
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case err := <-done:
		if err != nil {
			return "", err
		}
		return messageId, nil
	}
}
