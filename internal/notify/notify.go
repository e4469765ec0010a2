// Package notify fans lifecycle events out to the staff log channel and to
// opener DMs. Every delivery is best-effort: a failed log post or DM is
// recorded in the process log and swallowed so sibling side effects and the
// primary transition still complete.
package notify

import (
	"log/slog"

	"github.com/nordshop/nsbot/internal/platform"
)

// Sink posts structured lifecycle events.
type Sink struct {
	client platform.Client
	logger *slog.Logger
}

// New creates a sink. logger may be nil.
func New(client platform.Client, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{client: client, logger: logger}
}

// LogEvent posts to a staff log channel. Failures are swallowed.
func (s *Sink) LogEvent(logChannelID string, msg platform.Outbound) {
	if logChannelID == "" {
		s.logger.Warn("no log channel configured, dropping event", "content", msg.Content)
		return
	}
	if _, err := s.client.SendMessage(logChannelID, msg); err != nil {
		s.logger.Error("log channel post failed", "channel", logChannelID, "error", err)
	}
}

// DirectMessage opens a DM with the user and delivers the message.
// Failures (DMs disabled, user left) are swallowed.
func (s *Sink) DirectMessage(userID string, msg platform.Outbound) {
	dmID, err := s.client.OpenDM(userID)
	if err != nil {
		s.logger.Error("dm channel open failed", "user", userID, "error", err)
		return
	}
	if _, err := s.client.SendMessage(dmID, msg); err != nil {
		s.logger.Error("dm send failed", "user", userID, "error", err)
	}
}
