// Package notify provides mailbox.Notifier implementations: structured log
// output, JSON webhooks, Telegram messages and a fan-out that delivers to
// several notifiers at once.
package notify

import (
	"context"
	"errors"
	"log/slog"

	"mercator-hq/mailsweep/pkg/mailbox"
)

// LogNotifier writes notifications to the structured log.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a log notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{logger: slog.Default().With("component", "mailbox.notify.log")}
}

// Notify implements mailbox.Notifier.
func (n *LogNotifier) Notify(ctx context.Context, severity mailbox.Severity, subject, body string) error {
	level := slog.LevelInfo
	switch severity {
	case mailbox.SeverityWarning:
		level = slog.LevelWarn
	case mailbox.SeverityCritical:
		level = slog.LevelError
	}
	n.logger.Log(ctx, level, subject, "severity", string(severity), "body", body)
	return nil
}

// Multi delivers every notification to all of its notifiers. A failing
// notifier does not stop delivery to the others.
type Multi []mailbox.Notifier

// Notify implements mailbox.Notifier. The returned error joins every
// delivery failure.
func (m Multi) Notify(ctx context.Context, severity mailbox.Severity, subject, body string) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, severity, subject, body); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
