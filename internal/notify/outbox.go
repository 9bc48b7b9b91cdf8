package notify

import (
	"context"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/noah-isme/policy-docs-api/pkg/cache"
	"github.com/noah-isme/policy-docs-api/pkg/config"
	"github.com/noah-isme/policy-docs-api/pkg/jobs"
)

// Delivery outcomes reported to a ResultObserver.
const (
	OutcomeDelivered = "delivered"
	OutcomeRetry     = "retry"
	OutcomeFailed    = "failed"
)

// ResultObserver counts delivery outcomes per event kind.
type ResultObserver interface {
	RecordNotification(kind, outcome string)
}

// Outcome maps a handler result to its label.
func Outcome(err error, final bool) string {
	switch {
	case err == nil:
		return OutcomeDelivered
	case final:
		return OutcomeFailed
	default:
		return OutcomeRetry
	}
}

// RedisOpt builds asynq connection options from the shared Redis settings.
func RedisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{Addr: cache.Addr(cfg), Password: cfg.Password, DB: cfg.DB}
}

// NewOutbox selects the notifier named by cfg.Driver. The memory driver delivers
// through dispatcher on local workers; the asynq driver only enqueues and leaves
// delivery to the notify worker. The returned func releases the outbox.
func NewOutbox(ctx context.Context, cfg config.NotifyConfig, redis config.RedisConfig, dispatcher *Dispatcher,
	observer ResultObserver, logger *zap.Logger) (Notifier, func(), error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Driver {
	case config.NotifyDriverAsynq:
		client := asynq.NewClient(RedisOpt(redis))
		closeFn := func() {
			if err := client.Close(); err != nil {
				logger.Warn("asynq client close", zap.Error(err))
			}
		}
		return NewAsynqNotifier(client, cfg.MaxRetries), closeFn, nil
	case config.NotifyDriverMemory, "":
		if dispatcher == nil {
			return nil, nil, fmt.Errorf("memory outbox requires a dispatcher")
		}
		queue := NewQueueNotifier(dispatcher, jobs.QueueConfig{
			Workers:    cfg.Workers,
			MaxRetries: cfg.MaxRetries,
			RetryDelay: cfg.RetryDelay,
			Logger:     logger,
			OnResult: func(job jobs.Job, err error, final bool) {
				if observer != nil {
					observer.RecordNotification(job.Type, Outcome(err, final))
				}
			},
		})
		queue.Start(ctx)
		return queue, queue.Stop, nil
	default:
		return nil, nil, fmt.Errorf("unknown notify driver %q", cfg.Driver)
	}
}
