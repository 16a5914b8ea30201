package audit

import (
	"context"
	"log/slog"
)

// Worker drains audit events from a channel and hands them to a publisher.
// It decouples emission from the request path: handlers send into the inbox
// and never wait on Kafka or storage.
type Worker struct {
	publisher Publisher
	inbox     <-chan Event
	logger    *slog.Logger
}

func NewWorker(publisher Publisher, inbox <-chan Event, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{publisher: publisher, inbox: inbox, logger: logger}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.publisher.Emit(ctx, event); err != nil {
				w.logger.ErrorContext(ctx, "audit event dropped",
					slog.String("action", string(event.Action)),
					slog.String("error", err.Error()))
			}
		}
	}
}
