// AngelaMos | 2026
// sender.go

package auth

import (
	"context"
	"log/slog"
)

// Sender delivers magic login links to users.
type Sender interface {
	SendMagicLink(ctx context.Context, email, link string) error
}

// LogSender writes links to the log. It stands in for a mail provider in
// development.
type LogSender struct {
	logger *slog.Logger
}

func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (s *LogSender) SendMagicLink(ctx context.Context, email, link string) error {
	s.logger.InfoContext(ctx, "magic link issued", "email", email, "link", link)
	return nil
}
