package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	// TaskType is the asynq task type carrying an Event.
	TaskType = "notify:event"
	// QueueDefault is the asynq queue notifications are placed on.
	QueueDefault = "default"
)

type taskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// AsynqNotifier hands events to Redis for cmd/notify-worker.
type AsynqNotifier struct {
	client   taskEnqueuer
	maxRetry int
}

// NewAsynqNotifier constructs the notifier around an asynq client.
func NewAsynqNotifier(client taskEnqueuer, maxRetry int) *AsynqNotifier {
	return &AsynqNotifier{client: client, maxRetry: maxRetry}
}

// NewTask encodes an event as an asynq task.
func NewTask(event Event) (*asynq.Task, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskType, data), nil
}

// Notify implements Notifier.
func (n *AsynqNotifier) Notify(ctx context.Context, event Event) error {
	task, err := NewTask(event)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	opts := []asynq.Option{asynq.Queue(QueueDefault), asynq.MaxRetry(n.maxRetry)}
	if event.ID != "" {
		opts = append(opts, asynq.TaskID(event.ID))
	}
	if _, err := n.client.EnqueueContext(ctx, task, opts...); err != nil {
		return fmt.Errorf("enqueue notification task: %w", err)
	}
	return nil
}

// NewServeMux registers the dispatcher for TaskType. observer may be nil.
func NewServeMux(d *Dispatcher, observer ResultObserver) *asynq.ServeMux {
	mux := asynq.NewServeMux()
	if observer != nil {
		mux.Use(observeTasks(observer))
	}
	mux.HandleFunc(TaskType, d.ProcessTask)
	return mux
}

func observeTasks(observer ResultObserver) asynq.MiddlewareFunc {
	return func(next asynq.Handler) asynq.Handler {
		return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
			err := next.ProcessTask(ctx, t)
			var head struct {
				Kind string `json:"kind"`
			}
			_ = json.Unmarshal(t.Payload(), &head)
			if head.Kind == "" {
				head.Kind = t.Type()
			}
			retried, _ := asynq.GetRetryCount(ctx)
			maxRetry, _ := asynq.GetMaxRetry(ctx)
			final := errors.Is(err, asynq.SkipRetry) || retried >= maxRetry
			observer.RecordNotification(head.Kind, Outcome(err, final))
			return err
		})
	}
}
