// Package mailer is the fire-and-forget email collaborator. Delivery failures
// are logged and dropped; they never roll back the core mutation that
// triggered the send.
package mailer

import (
	"fmt"
	"net/smtp"

	"go.uber.org/zap"

	"github.com/Mohamed-Elfar/LEDGERLY/pkg/config"
)

// Mailer delivers OTP and notification mail over SMTP. With no host
// configured it degrades to logging the send.
type Mailer struct {
	cfg config.SMTPConfig
	log *zap.Logger
}

func New(cfg config.SMTPConfig, log *zap.Logger) *Mailer {
	return &Mailer{cfg: cfg, log: log}
}

// Send dispatches the message in the background and returns immediately.
func (m *Mailer) Send(to, subject, body string) {
	if to == "" {
		return
	}
	if m.cfg.Host == "" {
		m.log.Debug("mail delivery disabled, dropping message",
			zap.String("to", to),
			zap.String("subject", subject))
		return
	}

	go func() {
		msg := []byte(fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s\r\n",
			m.cfg.From, to, subject, body))
		addr := m.cfg.Host + ":" + m.cfg.Port

		var auth smtp.Auth
		if m.cfg.Username != "" {
			auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
		}
		if err := smtp.SendMail(addr, auth, m.cfg.From, []string{to}, msg); err != nil {
			m.log.Error("mail delivery failed",
				zap.String("to", to),
				zap.String("subject", subject),
				zap.Error(err))
			return
		}
		m.log.Info("mail delivered",
			zap.String("to", to),
			zap.String("subject", subject))
	}()
}
