package notify

import (
	"context"
	"log/slog"

	"github.com/roach88/registrar/internal/model"
)

// LogNotifier writes alerts as warnings to a logger.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier creates a LogNotifier. A nil logger uses slog.Default().
func NewLogNotifier(l *slog.Logger) *LogNotifier {
	if l == nil {
		l = slog.Default()
	}
	return &LogNotifier{logger: l}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(ctx context.Context, alert model.RiskAlert) error {
	n.logger.WarnContext(ctx, "academic risk",
		"student", alert.StudentCode,
		"student_id", alert.StudentID,
		"gpa", alert.GPA.String(),
		"level", alert.Level,
		"seq", alert.EventSeq)
	return nil
}
