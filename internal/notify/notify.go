// Package notify sends customer notifications after an order commits.
package notify

import (
	"context"
	"crypto/tls"
	"fmt"

	"techcart/internal/config"
	"techcart/internal/domain"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// Notifier tells the customer about a placed order
type Notifier interface {
	OrderPlaced(ctx context.Context, order *domain.Order) error
}

// New returns the SMTP notifier when SMTP is configured, a no-op otherwise
func New(cfg config.SMTPConfig, logger *zap.Logger) Notifier {
	if !cfg.Enabled() {
		logger.Info("SMTP not configured, order e-mails disabled")
		return Noop{}
	}
	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	dialer.TLSConfig = &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12}
	return NewMailer(dialer, cfg.Sender, logger)
}

// Noop discards notifications
type Noop struct{}

func (Noop) OrderPlaced(context.Context, *domain.Order) error { return nil }

// Sender delivers composed messages; *gomail.Dialer satisfies it
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

// Mailer e-mails order confirmations
type Mailer struct {
	sender Sender
	from   string
	logger *zap.Logger
}

// NewMailer creates a Mailer sending from the given address
func NewMailer(sender Sender, from string, logger *zap.Logger) *Mailer {
	return &Mailer{sender: sender, from: from, logger: logger}
}

func (m *Mailer) OrderPlaced(ctx context.Context, order *domain.Order) error {
	if order.Customer.Email == "" {
		return fmt.Errorf("order %s has no customer e-mail", order.ID)
	}

	text, err := RenderReceipt(order)
	if err != nil {
		return err
	}
	html, err := renderHTML(order)
	if err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", order.Customer.Email)
	msg.SetHeader("Subject", "Your TechCart order "+order.ID.String())
	msg.SetBody("text/html", html)
	msg.AddAlternative("text/plain", text)

	done := make(chan error, 1)
	go func() {
		done <- m.sender.DialAndSend(msg)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("email sending cancelled or timed out: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send email: %w", err)
		}
	}

	m.logger.Info("Order confirmation sent",
		zap.String("order_id", order.ID.String()),
		zap.String("to", order.Customer.Email),
	)
	return nil
}
