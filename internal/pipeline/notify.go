package pipeline

import (
	"log/slog"
	"time"
)

// Notifier surfaces pipeline events to the user.
type Notifier interface {
	// Alert reports a failed load. The previous data is still shown.
	Alert(message string, err error)
	// Notify shows a transient message for d.
	Notify(message string, d time.Duration)
}

// LogNotifier writes notifications to a logger.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Alert(message string, err error) {
	n.logger.Error(message, "error", err)
}

func (n *LogNotifier) Notify(message string, d time.Duration) {
	n.logger.Info(message, "display_for", d)
}
