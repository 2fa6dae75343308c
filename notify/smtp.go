package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/Kevin-Teran/acuaponia-sub001/errors"
)

// SMTPConfig configures the outbound mail relay.
type SMTPConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	From     string `json:"from"`
}

// SMTPMailer delivers mail through a single relay using PLAIN auth when
// credentials are configured.
type SMTPMailer struct {
	cfg SMTPConfig
}

// NewSMTPMailer validates the relay configuration.
func NewSMTPMailer(cfg SMTPConfig) (*SMTPMailer, error) {
	if cfg.Host == "" || cfg.From == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "SMTPMailer", "NewSMTPMailer", "validate config")
	}
	if cfg.Port <= 0 {
		cfg.Port = 587
	}
	return &SMTPMailer{cfg: cfg}, nil
}

// Send delivers one message. The context deadline is not plumbed into
// net/smtp; the relay connection inherits the platform dial timeout.
func (m *SMTPMailer) Send(_ context.Context, to, subject, body string) error {
	addr := fmt.Sprintf("%s:%d", m.cfg.Host, m.cfg.Port)

	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", m.cfg.From)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	msg.WriteString(body)

	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{to}, []byte(msg.String())); err != nil {
		return errors.WrapTransient(err, "SMTPMailer", "Send", "deliver mail")
	}
	return nil
}
