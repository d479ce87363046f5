package notify

import (
	"fmt"
	"html"
	"strings"

	"gopkg.in/gomail.v2"

	"smartcrm/internal/models"
)

type EmailService interface {
	SendWelcomeEmail(to, fullName, username string) error
	SendDigestEmail(to, fullName string, items []models.FollowUp) error
}

type emailService struct {
	send func(m ...*gomail.Message) error
	from string
}

// NewEmailService returns nil when smtpHost is empty; callers treat nil as disabled.
func NewEmailService(smtpHost string, smtpPort int, smtpUser, smtpPassword, fromEmail string) EmailService {
	if smtpHost == "" {
		return nil
	}
	dialer := gomail.NewDialer(smtpHost, smtpPort, smtpUser, smtpPassword)
	return &emailService{
		send: dialer.DialAndSend,
		from: fromEmail,
	}
}

func (s *emailService) SendWelcomeEmail(to, fullName, username string) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", "Welcome to SmartCRM")

	body := fmt.Sprintf(`
		<h2>Welcome to SmartCRM, %s!</h2>
		<p>An account has been created for you.</p>
		<p>Your username is <strong>%s</strong>. Please change your password after the first login.</p>
		<p>Best regards,<br>The SmartCRM Team</p>
	`, html.EscapeString(fullName), html.EscapeString(username))

	m.SetBody("text/html", body)

	if err := s.send(m); err != nil {
		return fmt.Errorf("failed to send welcome email: %w", err)
	}
	return nil
}

func (s *emailService) SendDigestEmail(to, fullName string, items []models.FollowUp) error {
	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", to)
	m.SetHeader("Subject", fmt.Sprintf("Follow-ups due today (%d)", len(items)))

	var rows strings.Builder
	for _, it := range items {
		fmt.Fprintf(&rows, "<tr><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>",
			html.EscapeString(it.LeadID), html.EscapeString(it.CompanyName),
			html.EscapeString(it.CustomerName), html.EscapeString(it.Status))
	}
	body := fmt.Sprintf(`
		<h3>Hello %s,</h3>
		<p>The following leads have a follow-up scheduled for today:</p>
		<table border="1" cellpadding="4" cellspacing="0">
			<tr><th>Lead</th><th>Company</th><th>Customer</th><th>Status</th></tr>
			%s
		</table>
	`, html.EscapeString(fullName), rows.String())

	m.SetBody("text/html", body)

	if err := s.send(m); err != nil {
		return fmt.Errorf("failed to send digest email: %w", err)
	}
	return nil
}
