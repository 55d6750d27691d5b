// Package alert delivers notification stage output to people outside the
// system, currently by email.
package alert

import (
	"context"
	"fmt"
	"strings"

	"github.com/nikoksr/notify"
	"github.com/nikoksr/notify/service/mail"

	"github.com/kilianp07/wildguard/core/logger"
)

// Config configures outbound alerts.
type Config struct {
	SMTPHost   string   `json:"smtp_host"`
	SMTPPort   int      `json:"smtp_port"`
	Username   string   `json:"username"`
	Password   string   `json:"password"`
	From       string   `json:"from"`
	Recipients []string `json:"recipients"`
}

// Enabled reports whether enough is configured to send mail.
func (c Config) Enabled() bool { return c.SMTPHost != "" && len(c.Recipients) > 0 }

// Validate checks an enabled configuration.
func (c Config) Validate() error {
	if !c.Enabled() {
		return nil
	}
	if c.From == "" && c.Username == "" {
		return fmt.Errorf("alert: from address required")
	}
	for _, r := range c.Recipients {
		if !strings.Contains(r, "@") {
			return fmt.Errorf("alert: invalid recipient %q", r)
		}
	}
	return nil
}

// Mailer implements stage.Announcer.
type Mailer struct {
	services func() []notify.Notifier
	log      logger.Logger
}

// NewMailer returns a Mailer sending to the configured recipients.
func NewMailer(cfg Config, log logger.Logger) (*Mailer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.SMTPPort == 0 {
		cfg.SMTPPort = 587
	}
	from := cfg.From
	if from == "" {
		from = cfg.Username
	}
	build := func() []notify.Notifier {
		// notify's mail service accumulates receivers, so build one per send.
		svc := mail.New(from, fmt.Sprintf("%s:%d", cfg.SMTPHost, cfg.SMTPPort))
		if cfg.Username != "" {
			svc.AuthenticateSMTP("", cfg.Username, cfg.Password, cfg.SMTPHost)
		}
		svc.AddReceivers(cfg.Recipients...)
		return []notify.Notifier{svc}
	}
	return newMailer(build, log), nil
}

func newMailer(services func() []notify.Notifier, log logger.Logger) *Mailer {
	return &Mailer{services: services, log: logger.OrNop(log)}
}

// Announce sends subject and body to every recipient.
func (m *Mailer) Announce(ctx context.Context, subject, body string) error {
	n := notify.New()
	n.UseServices(m.services()...)
	if err := n.Send(ctx, subject, body); err != nil {
		return fmt.Errorf("alert: send %q: %w", subject, err)
	}
	m.log.Infof("alert sent: %s", subject)
	return nil
}
