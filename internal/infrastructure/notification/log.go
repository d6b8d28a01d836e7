package notification

import (
	"context"
	"log/slog"

	"github.com/alem-hub/mentorship-engine/internal/domain/mentorship"
)

// LogNotifier writes notifications to the log instead of sending them.
// Used when no SendGrid key is configured.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a new LogNotifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger.With("component", "log_notifier")}
}

// NotifyMentorOfMatch implements mentorship.Notifier.
func (n *LogNotifier) NotifyMentorOfMatch(ctx context.Context, m *mentorship.Match) error {
	n.logger.InfoContext(ctx, "notify mentor of match",
		"match_id", m.ID,
		"program_id", m.ProgramID,
		"mentor_id", m.MentorID,
		"auto_reject_at", m.AutoRejectAt,
	)
	return nil
}

// NotifyMenteeOfAcceptance implements mentorship.Notifier.
func (n *LogNotifier) NotifyMenteeOfAcceptance(ctx context.Context, m *mentorship.Match) error {
	n.logger.InfoContext(ctx, "notify mentee of acceptance",
		"match_id", m.ID,
		"program_id", m.ProgramID,
		"mentee_id", m.MenteeID,
	)
	return nil
}

// NotifyCoordinatorsManualMatchingRequired implements mentorship.Notifier.
func (n *LogNotifier) NotifyCoordinatorsManualMatchingRequired(ctx context.Context, program mentorship.Program, menteeID string) error {
	n.logger.WarnContext(ctx, "manual matching required",
		"program_id", program.ID,
		"mentee_id", menteeID,
		"coordinators", len(program.Coordinators),
	)
	return nil
}
