package email

import (
	"fmt"
	"net/smtp"
	"strings"
	"time"
)

// SMTPServerConfig holds all the necessary configuration for connecting to an SMTP server.
type SMTPServerConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Sender   string // The "From" email address
}

// sendFunc matches smtp.SendMail.
type sendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailService provides a method for sending emails.
type EmailService struct {
	config SMTPServerConfig
	auth   smtp.Auth
	send   sendFunc
}

// NewEmailService creates a new service for sending emails. Relays
// without a username are used unauthenticated.
func NewEmailService(config SMTPServerConfig) *EmailService {
	svc := &EmailService{config: config, send: smtp.SendMail}
	if config.Username != "" {
		svc.auth = smtp.PlainAuth("", config.Username, config.Password, config.Host)
	}
	return svc
}

// SendWelcomeEmail greets a newly registered user and points them at the
// dashboard.
func (s *EmailService) SendWelcomeEmail(recipientEmail, name, frontendURL string) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	subject := "Welcome to the Sports Stats dashboard"

	link := strings.TrimRight(frontendURL, "/")
	if link == "" {
		link = "the dashboard"
	} else {
		link += "/login"
	}

	body := fmt.Sprintf(
		"Hi %s,\n\nYour account is ready. Sign in at %s to browse players, teams and league statistics.\n\nThe Sports Stats Team",
		name,
		link,
	)

	message := buildMessage(s.config.Sender, recipientEmail, subject, body)

	if err := s.send(addr, s.auth, s.config.Sender, []string{recipientEmail}, message); err != nil {
		return fmt.Errorf("send welcome email to %s: %w", recipientEmail, err)
	}
	return nil
}

// buildMessage renders a plain-text RFC 5322 message with CRLF line endings.
func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	headers := [][2]string{
		{"From", from},
		{"To", to},
		{"Subject", subject},
		{"Date", time.Now().UTC().Format(time.RFC1123Z)},
		{"MIME-Version", "1.0"},
		{"Content-Type", "text/plain; charset=UTF-8"},
	}
	for _, h := range headers {
		b.WriteString(h[0] + ": " + h[1] + "\r\n")
	}
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	b.WriteString("\r\n")
	return []byte(b.String())
}
