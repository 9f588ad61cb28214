// Package mail delivers plain-text messages over SMTP.
package mail

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	gomail "github.com/wneessen/go-mail"
)

var ErrNoCredentials = errors.New("mail: missing SMTP credentials")

const dialTimeout = 15 * time.Second

type Message struct {
	FromName string
	To       []string
	Subject  string
	Text     string
}

type Config struct {
	Host     string
	Port     int
	User     string
	Password string
}

type sendFunc func(ctx context.Context, msg *gomail.Msg) error

// SMTPMailer sends through an authenticated SMTP relay, Gmail by default.
type SMTPMailer struct {
	cfg  Config
	send sendFunc
}

func NewSMTPMailer(cfg Config) *SMTPMailer {
	m := &SMTPMailer{cfg: cfg}
	m.send = m.dialAndSend
	return m
}

// Ready reports whether credentials are configured.
func (m *SMTPMailer) Ready() bool {
	return m.cfg.User != "" && m.cfg.Password != ""
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if !m.Ready() {
		return ErrNoCredentials
	}
	if len(msg.To) == 0 {
		return errors.New("mail: no recipients")
	}
	gm, err := build(m.cfg.User, msg)
	if err != nil {
		return fmt.Errorf("mail: %w", err)
	}
	addr := net.JoinHostPort(m.cfg.Host, strconv.Itoa(m.cfg.Port))
	if err := m.send(ctx, gm); err != nil {
		return fmt.Errorf("mail: send via %s: %w", addr, err)
	}
	return nil
}

// dialAndSend uses STARTTLS with PLAIN auth, or implicit TLS on port 465.
func (m *SMTPMailer) dialAndSend(ctx context.Context, gm *gomail.Msg) error {
	opts := []gomail.Option{
		gomail.WithPort(m.cfg.Port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(m.cfg.User),
		gomail.WithPassword(m.cfg.Password),
		gomail.WithTLSPolicy(gomail.TLSMandatory),
		gomail.WithTimeout(dialTimeout),
	}
	if m.cfg.Port == 465 {
		opts = append(opts, gomail.WithSSL())
	}
	c, err := gomail.NewClient(m.cfg.Host, opts...)
	if err != nil {
		return err
	}
	return c.DialAndSendWithContext(ctx, gm)
}

// build turns msg into a MIME message. Header values are RFC 2047 encoded
// by go-mail; line breaks in the subject are flattened first.
func build(from string, msg Message) (*gomail.Msg, error) {
	gm := gomail.NewMsg()
	if msg.FromName != "" {
		if err := gm.FromFormat(msg.FromName, from); err != nil {
			return nil, err
		}
	} else if err := gm.From(from); err != nil {
		return nil, err
	}
	if err := gm.To(msg.To...); err != nil {
		return nil, err
	}
	gm.Subject(headerSafe(msg.Subject))
	gm.SetDate()
	gm.SetMessageID()
	gm.SetBodyString(gomail.TypeTextPlain, msg.Text)
	return gm, nil
}

func headerSafe(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}
