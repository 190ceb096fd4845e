package mail

import (
	"fmt"
	"log"
	"net/smtp"
)

// SMTPConfig carries the outbound mail settings.
type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
}

// SMTPMailer delivers passcodes over plain SMTP. Delivery failure is reported
// as false; the caller decides what to surface to the end user.
type SMTPMailer struct {
	cfg SMTPConfig
}

func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	return &SMTPMailer{cfg: cfg}
}

func (m *SMTPMailer) SendCode(email, code string) bool {
	body := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: Your survey access code\r\n\r\nYour one-time code is %s. It expires in 10 minutes.\r\n", m.cfg.From, email, code)
	addr := m.cfg.Host + ":" + m.cfg.Port
	var auth smtp.Auth
	if m.cfg.Username != "" {
		auth = smtp.PlainAuth("", m.cfg.Username, m.cfg.Password, m.cfg.Host)
	}
	if err := smtp.SendMail(addr, auth, m.cfg.From, []string{email}, []byte(body)); err != nil {
		log.Printf("mail: send code to %s failed: %v", email, err)
		return false
	}
	return true
}

// LogMailer writes codes to the process log instead of sending mail. For
// local development only.
type LogMailer struct{}

func (LogMailer) SendCode(email, code string) bool {
	log.Printf("mail (dev): code for %s is %s", email, code)
	return true
}
