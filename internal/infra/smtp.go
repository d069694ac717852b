package infra

import (
	"fmt"
	"net/smtp"

	"numera/internal/config"

	"github.com/jordan-wright/email"
)

// Mailer wraps SMTP configuration for sending operator alerts.
type Mailer struct {
	host     string
	port     int
	user     string
	password string
	addr     string
	alertTo  string
}

func NewMailer(cfg *config.Config) *Mailer {
	return &Mailer{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		user:     cfg.SMTPUser,
		password: cfg.SMTPPassword,
		addr:     fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort),
		alertTo:  cfg.AlertEmail,
	}
}

// SendAlert delivers an operator alert to the configured address.
func (m *Mailer) SendAlert(subject, body string) error {
	e := email.NewEmail()
	e.From = m.user
	e.To = []string{m.alertTo}
	e.Subject = subject
	e.Text = []byte(body)

	auth := smtp.PlainAuth("", m.user, m.password, m.host)
	return e.Send(m.addr, auth)
}
