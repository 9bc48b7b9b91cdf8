package notify

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/noah-isme/policy-docs-api/pkg/jobs"
)

// QueueNotifier delivers events on an in-process worker pool.
type QueueNotifier struct {
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewQueueNotifier builds the pool around dispatcher.
func NewQueueNotifier(dispatcher *Dispatcher, cfg jobs.QueueConfig) *QueueNotifier {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	n := &QueueNotifier{logger: logger}
	n.queue = jobs.NewQueue("notifications", func(ctx context.Context, job jobs.Job) error {
		event, ok := job.Payload.(Event)
		if !ok {
			n.logger.Error("unexpected notification payload", zap.String("job_id", job.ID))
			return nil
		}
		return dispatcher.Dispatch(ctx, event)
	}, cfg)
	return n
}

// Start launches the workers.
func (n *QueueNotifier) Start(ctx context.Context) {
	n.queue.Start(ctx)
}

// Stop drains buffered events.
func (n *QueueNotifier) Stop() {
	n.queue.Stop()
}

// Notify implements Notifier.
func (n *QueueNotifier) Notify(_ context.Context, event Event) error {
	if err := n.queue.Enqueue(jobs.Job{ID: event.ID, Type: event.Kind, Payload: event}); err != nil {
		return fmt.Errorf("enqueue notification: %w", err)
	}
	return nil
}
