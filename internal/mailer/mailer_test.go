package mailer

import (
	"context"
	"errors"
	"net/smtp"
	"testing"

	"github.com/jordan-wright/email"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/services"
)

func testMailer(send sendFunc) *SMTPMailer {
	m := NewSMTPMailer(Config{Host: "smtp.example.com", Port: 587, From: "shop@example.com"})
	m.send = send
	return m
}

func TestSMTPMailerBuildsMessage(t *testing.T) {
	var got *email.Email
	var gotAddr string
	m := testMailer(func(e *email.Email, addr string, _ smtp.Auth) error {
		got = e
		gotAddr = addr
		return nil
	})

	err := m.Send(context.Background(), services.Mail{To: "a@example.com", Subject: "Code", Body: "123456"})
	require.NoError(t, err)
	assert.Equal(t, "smtp.example.com:587", gotAddr)
	assert.Equal(t, "shop@example.com", got.From)
	assert.Equal(t, []string{"a@example.com"}, got.To)
	assert.Equal(t, "Code", got.Subject)
	assert.Equal(t, "123456", string(got.Text))
}

func TestSMTPMailerOpensBreakerAfterFailures(t *testing.T) {
	calls := 0
	m := testMailer(func(*email.Email, string, smtp.Auth) error {
		calls++
		return errors.New("connection refused")
	})

	msg := services.Mail{To: "a@example.com", Subject: "s", Body: "b"}
	for i := 0; i < 3; i++ {
		require.Error(t, m.Send(context.Background(), msg))
	}

	err := m.Send(context.Background(), msg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp relay unavailable")
	assert.Equal(t, 3, calls)
}

func TestSMTPMailerHonoursCancelledContext(t *testing.T) {
	m := testMailer(func(*email.Email, string, smtp.Auth) error {
		t.Fatal("send should not be called")
		return nil
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := m.Send(ctx, services.Mail{To: "a@example.com"})
	assert.ErrorIs(t, err, context.Canceled)
}
