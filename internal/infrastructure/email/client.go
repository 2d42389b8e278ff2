// Package email provides the notifier for transactional emails.
package email

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mikahq/mika-go/internal/infrastructure/email/templates"
	"github.com/mikahq/mika-go/internal/infrastructure/observability/logging"
	"github.com/mikahq/mika-go/internal/infrastructure/observability/metrics"
	"github.com/mikahq/mika-go/pkg/config"
	"github.com/resendlabs/resend-go"
	gobreaker "github.com/sony/gobreaker/v2"
)

// NewLeadNotice describes a freshly created lead.
type NewLeadNotice struct {
	To            string
	WorkspaceName string
	LeadID        string
	Email         string
	Name          string
	Source        string
	Medium        string
	Campaign      string
	CapturedVia   string
	CapturedAt    time.Time
}

// Notifier defines the interface for sending notifications, allowing for mock implementations in tests.
type Notifier interface {
	NotifyNewLead(ctx context.Context, notice NewLeadNotice) error
}

// SendFunc delivers one prepared email.
type SendFunc func(req *resend.SendEmailRequest) error

// ResendNotifier is the concrete Notifier using the Resend API behind a
// circuit breaker, so a failing provider is not hammered on every capture.
type ResendNotifier struct {
	send      SendFunc
	breaker   *gobreaker.CircuitBreaker[struct{}]
	fromEmail string
	fromName  string
	logger    *logging.ChanneledLogger
}

// NewService returns the Resend notifier when RESEND_API_KEY is configured and
// a no-op notifier otherwise.
func NewService(logger *logging.ChanneledLogger) Notifier {
	if config.ResendAPIKey == "" {
		logger.Notify().Info("RESEND_API_KEY not set, new-lead notifications disabled")
		return NoopNotifier{}
	}
	client := resend.NewClient(config.ResendAPIKey)
	send := func(req *resend.SendEmailRequest) error {
		_, err := client.Emails.Send(req)
		return err
	}
	return NewResendNotifier(send, config.NotifyFromEmail, config.NotifyFromName,
		uint32(config.NotifyBreakerThreshold), config.NotifyBreakerTimeout, logger)
}

// NewResendNotifier builds a notifier around send. The breaker opens after
// threshold consecutive failures and half-opens after timeout.
func NewResendNotifier(send SendFunc, fromEmail, fromName string, threshold uint32, timeout time.Duration, logger *logging.ChanneledLogger) *ResendNotifier {
	if threshold == 0 {
		threshold = 5
	}
	settings := gobreaker.Settings{
		Name:        "resend",
		MaxRequests: 1,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Notify().Warn("Notifier circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	}
	return &ResendNotifier{
		send:      send,
		breaker:   gobreaker.NewCircuitBreaker[struct{}](settings),
		fromEmail: fromEmail,
		fromName:  fromName,
		logger:    logger,
	}
}

// NotifyNewLead composes and sends the new-lead email.
func (n *ResendNotifier) NotifyNewLead(ctx context.Context, notice NewLeadNotice) error {
	if notice.To == "" {
		metrics.Notifications.WithLabelValues("skipped").Inc()
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	html, err := templates.RenderNewLead(templates.NewLeadProps{
		WorkspaceName: notice.WorkspaceName,
		LeadID:        notice.LeadID,
		Email:         notice.Email,
		Name:          notice.Name,
		Source:        notice.Source,
		Medium:        notice.Medium,
		Campaign:      notice.Campaign,
		CapturedVia:   notice.CapturedVia,
		CapturedAt:    notice.CapturedAt.UTC().Format(time.RFC1123),
	})
	if err != nil {
		return fmt.Errorf("failed to render new lead email: %w", err)
	}

	params := &resend.SendEmailRequest{
		From:    fmt.Sprintf("%s <%s>", n.fromName, n.fromEmail),
		To:      []string{notice.To},
		Subject: fmt.Sprintf("New lead: %s", notice.Email),
		Html:    html,
	}

	_, err = n.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, n.send(params)
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.Notifications.WithLabelValues("breaker_open").Inc()
		return fmt.Errorf("notifier unavailable: %w", err)
	case err != nil:
		metrics.Notifications.WithLabelValues("failed").Inc()
		return fmt.Errorf("failed to send new lead email via Resend: %w", err)
	}

	metrics.Notifications.WithLabelValues("sent").Inc()
	n.logger.Notify().Info("New lead notification sent", "leadId", notice.LeadID, "to", logging.MaskEmail(notice.To))
	return nil
}

// State reports the breaker state for the health endpoint.
func (n *ResendNotifier) State() string {
	return n.breaker.State().String()
}

// NoopNotifier discards notifications.
type NoopNotifier struct{}

func (NoopNotifier) NotifyNewLead(context.Context, NewLeadNotice) error {
	metrics.Notifications.WithLabelValues("skipped").Inc()
	return nil
}
