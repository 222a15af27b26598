package smtp

import (
	"context"
	"fmt"
	"time"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/user/pricewatch/internal/repository"
)

const (
	portSMTPS    = 465
	portStartTLS = 587
	dialTimeout  = 20 * time.Second
)

// Settings are the SMTP transport and the fixed sender/receiver pair.
type Settings struct {
	Host     string
	Port     int
	Sender   string
	Password string
	Receiver string
}

// MailNotifier delivers notifications over authenticated SMTP. Port 465 uses
// implicit TLS, any other port requires STARTTLS.
type MailNotifier struct {
	settings Settings
	logger   *zap.Logger
}

func NewMailNotifier(settings Settings, logger *zap.Logger) *MailNotifier {
	return &MailNotifier{settings: settings, logger: logger}
}

func (n *MailNotifier) Send(ctx context.Context, subject, body string) error {
	msg, err := buildMessage(n.settings.Sender, n.settings.Receiver, subject, body)
	if err != nil {
		return repository.DeliveryError{Err: err}
	}

	client, err := mail.NewClient(n.settings.Host, n.clientOptions()...)
	if err != nil {
		return repository.DeliveryError{Err: fmt.Errorf("create smtp client: %w", err)}
	}
	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return repository.DeliveryError{Err: fmt.Errorf("send to %s: %w", n.settings.Receiver, err)}
	}

	n.logger.Info("notification sent", zap.String("subject", subject), zap.String("receiver", n.settings.Receiver))
	return nil
}

func (n *MailNotifier) clientOptions() []mail.Option {
	opts := []mail.Option{
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(n.settings.Sender),
		mail.WithPassword(n.settings.Password),
		mail.WithTimeout(dialTimeout),
	}
	port := n.settings.Port
	if port == 0 {
		port = portSMTPS
	}
	if port == portSMTPS {
		opts = append(opts, mail.WithSSL())
	} else {
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	}
	return append(opts, mail.WithPort(port))
}

func buildMessage(from, to, subject, body string) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("invalid sender %q: %w", from, err)
	}
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("invalid receiver %q: %w", to, err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextPlain, body)
	return msg, nil
}

// LogNotifier writes notifications to the log instead of sending them. It is
// used when no SMTP credentials are configured.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(ctx context.Context, subject, body string) error {
	n.logger.Info("notification (email disabled)", zap.String("subject", subject), zap.String("body", body))
	return nil
}
