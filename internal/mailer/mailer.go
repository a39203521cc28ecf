package mailer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"github.com/jordan-wright/email"
	"github.com/sony/gobreaker/v2"

	"storefront/internal/services"
)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type sendFunc func(e *email.Email, addr string, auth smtp.Auth) error

// SMTPMailer sends plain-text mail through an SMTP relay. Repeated relay
// failures open the breaker and later sends fail fast until it half-opens.
type SMTPMailer struct {
	cfg     Config
	addr    string
	auth    smtp.Auth
	breaker *gobreaker.CircuitBreaker[struct{}]
	send    sendFunc
}

func NewSMTPMailer(cfg Config) *SMTPMailer {
	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}

	breaker := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "smtp",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("[MAIL] [INFO] breaker %s: %s -> %s", name, from, to)
		},
	})

	return &SMTPMailer{
		cfg:     cfg,
		addr:    net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		auth:    auth,
		breaker: breaker,
		send:    func(e *email.Email, addr string, a smtp.Auth) error { return e.Send(addr, a) },
	}
}

func (m *SMTPMailer) Send(ctx context.Context, msg services.Mail) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e := email.NewEmail()
	e.From = m.cfg.From
	e.To = []string{msg.To}
	e.Subject = msg.Subject
	e.Text = []byte(msg.Body)

	_, err := m.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, m.send(e, m.addr, m.auth)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("smtp relay unavailable: %w", err)
	}
	if err != nil {
		return fmt.Errorf("send mail to %s: %w", msg.To, err)
	}
	log.Printf("[MAIL] [INFO] sent %q to %s", msg.Subject, msg.To)
	return nil
}

// LogMailer writes messages to the log instead of sending them. Used when no
// SMTP relay is configured.
type LogMailer struct{}

func (LogMailer) Send(_ context.Context, msg services.Mail) error {
	log.Printf("[MAIL] [DEBUG] to=%s subject=%q body=%q", msg.To, msg.Subject, msg.Body)
	return nil
}
