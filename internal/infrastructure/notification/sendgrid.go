// Package notification delivers match notifications by email.
package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/alem-hub/mentorship-engine/internal/domain/mentorship"
	"github.com/alem-hub/mentorship-engine/pkg/circuitbreaker"
	"github.com/alem-hub/mentorship-engine/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// SENDGRID NOTIFIER
// ══════════════════════════════════════════════════════════════════════════════

const (
	defaultHost = "https://api.sendgrid.com"
	endpoint    = "/v3/mail/send"
)

// ErrNoRecipient is returned when a participant has no email on file.
var ErrNoRecipient = errors.New("notification: recipient has no email")

// Config configures the SendGrid notifier.
type Config struct {
	APIKey    string
	FromEmail string
	FromName  string

	// BaseURL prefixes links to matches in message bodies.
	BaseURL string

	// Host overrides the SendGrid API host.
	Host string
}

// MailSender sends one prepared message and returns the HTTP status.
type MailSender interface {
	Send(ctx context.Context, m *sgmail.SGMailV3) (status int, err error)
}

// APISender sends through the SendGrid v3 API.
type APISender struct {
	key  string
	host string
}

// NewAPISender creates a sender for the given key.
func NewAPISender(key, host string) *APISender {
	if host == "" {
		host = defaultHost
	}
	return &APISender{key: key, host: host}
}

// Send implements MailSender.
func (s *APISender) Send(ctx context.Context, m *sgmail.SGMailV3) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	req := sendgrid.GetRequest(s.key, endpoint, s.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(m)

	res, err := sendgrid.API(req)
	if err != nil {
		return 0, err
	}
	return res.StatusCode, nil
}

// SendGridNotifier implements mentorship.Notifier.
type SendGridNotifier struct {
	cfg      Config
	from     *sgmail.Email
	sender   MailSender
	contacts mentorship.ContactDirectory
	retrier  *retry.Retrier
	breaker  *circuitbreaker.CircuitBreaker
	logger   *slog.Logger
}

// NewSendGridNotifier creates a notifier. sender may be nil to use the SendGrid API.
func NewSendGridNotifier(cfg Config, sender MailSender, contacts mentorship.ContactDirectory, logger *slog.Logger) *SendGridNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	if sender == nil {
		sender = NewAPISender(cfg.APIKey, cfg.Host)
	}
	logger = logger.With("component", "sendgrid_notifier")

	return &SendGridNotifier{
		cfg:      cfg,
		from:     sgmail.NewEmail(cfg.FromName, cfg.FromEmail),
		sender:   sender,
		contacts: contacts,
		retrier: retry.EmailRetrier(retry.WithOnRetry(func(attempt int, err error, delay time.Duration) {
			logger.Warn("retrying email", "attempt", attempt, "delay", delay, "error", err)
		})),
		breaker: circuitbreaker.SendGridBreaker(func(name string, from, to circuitbreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		}),
		logger: logger,
	}
}

// NotifyMentorOfMatch implements mentorship.Notifier.
func (n *SendGridNotifier) NotifyMentorOfMatch(ctx context.Context, m *mentorship.Match) error {
	to, err := n.contacts.MentorContact(ctx, m.ProgramID, m.MentorID)
	if err != nil {
		return fmt.Errorf("mentor contact: %w", err)
	}

	subject := "You have a new mentee match"
	text := fmt.Sprintf(
		"Hello %s,\n\nA mentee has been matched with you (compatibility %s/100).\n"+
			"Please accept or decline by %s UTC, otherwise the match is declined automatically.\n\n%s\n",
		displayName(to), m.Score, m.AutoRejectAt.UTC().Format("2 Jan 2006 15:04"), n.link(m.ID),
	)
	return n.send(ctx, "mentor_match", subject, text, to)
}

// NotifyMenteeOfAcceptance implements mentorship.Notifier.
func (n *SendGridNotifier) NotifyMenteeOfAcceptance(ctx context.Context, m *mentorship.Match) error {
	to, err := n.contacts.MenteeContact(ctx, m.ProgramID, m.MenteeID)
	if err != nil {
		return fmt.Errorf("mentee contact: %w", err)
	}

	subject := "Your mentor accepted the match"
	text := fmt.Sprintf("Hello %s,\n\nYour mentor has accepted the match. You can now start working together.\n\n%s\n",
		displayName(to), n.link(m.ID))
	return n.send(ctx, "mentee_accepted", subject, text, to)
}

// NotifyCoordinatorsManualMatchingRequired implements mentorship.Notifier.
func (n *SendGridNotifier) NotifyCoordinatorsManualMatchingRequired(ctx context.Context, program mentorship.Program, menteeID string) error {
	if len(program.Coordinators) == 0 {
		n.logger.Warn("program has no coordinators", "program_id", program.ID, "mentee_id", menteeID)
		return nil
	}

	recipients := make([]mentorship.Contact, 0, len(program.Coordinators))
	for _, email := range program.Coordinators {
		recipients = append(recipients, mentorship.Contact{Email: email})
	}

	subject := fmt.Sprintf("Manual matching required: %s", programName(program))
	text := fmt.Sprintf("No eligible mentor is left for mentee %s in %s.\nPlease create a manual match.\n",
		menteeID, programName(program))
	return n.send(ctx, "manual_matching_required", subject, text, recipients...)
}

func (n *SendGridNotifier) send(ctx context.Context, category, subject, text string, to ...mentorship.Contact) error {
	msg, err := n.prepare(category, subject, text, to)
	if err != nil {
		return err
	}

	return n.retrier.Do(ctx, func(ctx context.Context) error {
		return n.breaker.Execute(ctx, func(ctx context.Context) error {
			status, err := n.sender.Send(ctx, msg)
			switch {
			case err != nil:
				return retry.Retryable(err)
			case status >= 200 && status < 300:
				return nil
			case retry.RetryableStatus(status):
				return retry.Retryable(fmt.Errorf("sendgrid: status %d", status))
			default:
				return retry.Permanent(fmt.Errorf("sendgrid: status %d", status))
			}
		})
	})
}

func (n *SendGridNotifier) prepare(category, subject, text string, to []mentorship.Contact) (*sgmail.SGMailV3, error) {
	p := sgmail.NewPersonalization()
	p.Subject = subject
	for _, c := range to {
		if strings.TrimSpace(c.Email) == "" {
			return nil, ErrNoRecipient
		}
		p.AddTos(sgmail.NewEmail(c.Name, c.Email))
	}

	m := sgmail.NewV3Mail()
	m.SetFrom(n.from)
	m.AddPersonalizations(p)
	m.AddCategories(category)
	m.AddContent(sgmail.NewContent("text/plain", text))
	return m, nil
}

func (n *SendGridNotifier) link(matchID string) string {
	if n.cfg.BaseURL == "" {
		return "Match: " + matchID
	}
	return strings.TrimRight(n.cfg.BaseURL, "/") + "/matches/" + matchID
}

func displayName(c mentorship.Contact) string {
	if c.Name != "" {
		return c.Name
	}
	return "there"
}

func programName(p mentorship.Program) string {
	if p.Name != "" {
		return p.Name
	}
	return p.ID
}
