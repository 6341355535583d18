package handler

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aws/aws-lambda-go/events"

	"message-sweeper/internal/usecase"
)

// Sweeper is the expiration sweep invoked on every scheduled tick.
type Sweeper interface {
	Sweep(ctx context.Context) (usecase.SweepResult, error)
}

// Handler receives scheduled events and runs one sweep per event.
type Handler struct {
	sweeper Sweeper
	logger  *slog.Logger
}

func NewHandler(s Sweeper, logger *slog.Logger) (*Handler, error) {
	if s == nil {
		return nil, errors.New("handler: sweeper must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{sweeper: s, logger: logger}, nil
}

// Handle runs one sweep. The event carries no input; a returned error marks
// the invocation as failed so the platform can report or retry it. The sweep
// logs its own outcome under run_id; this line ties that run to the event.
func (h *Handler) Handle(ctx context.Context, event events.CloudWatchEvent) error {
	res, err := h.sweeper.Sweep(ctx)
	h.logger.Info("scheduled sweep", "event_id", event.ID, "scheduled_at", event.Time, "run_id", res.RunID)
	return err
}
