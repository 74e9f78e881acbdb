package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/minelance/minelance-backend/pkg/db/models"
	"github.com/minelance/minelance-backend/pkg/enums"
	"github.com/minelance/minelance-backend/pkg/logger"
	"github.com/minelance/minelance-backend/pkg/metrics"
	"github.com/minelance/minelance-backend/pkg/redis"
)

const defaultDeliveryTimeout = 5 * time.Second

// Notice is a single notification addressed to one user.
type Notice struct {
	UserID  uuid.UUID
	Type    enums.NotificationType
	Title   string
	Message string
	Link    *string
}

// Emitter stores notices and fans them out to live listeners. Delivery runs
// in the background and never reports failure to the caller; failures are
// logged and counted.
type Emitter struct {
	repo      Repository
	publisher redis.Publisher
	logg      *logger.Logger
	metrics   *metrics.WorkflowMetrics
	timeout   time.Duration
	wg        sync.WaitGroup
}

// EmitterOption customizes an Emitter.
type EmitterOption func(*Emitter)

// WithPublisher enables live fan-out over pub/sub.
func WithPublisher(p redis.Publisher) EmitterOption {
	return func(e *Emitter) { e.publisher = p }
}

func WithMetrics(m *metrics.WorkflowMetrics) EmitterOption {
	return func(e *Emitter) { e.metrics = m }
}

func WithDeliveryTimeout(d time.Duration) EmitterOption {
	return func(e *Emitter) {
		if d > 0 {
			e.timeout = d
		}
	}
}

func NewEmitter(repo Repository, logg *logger.Logger, opts ...EmitterOption) (*Emitter, error) {
	if repo == nil {
		return nil, errRepoRequired
	}
	if logg == nil {
		logg = logger.Nop()
	}
	e := &Emitter{repo: repo, logg: logg, timeout: defaultDeliveryTimeout}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Notify schedules delivery of n and returns immediately.
func (e *Emitter) Notify(ctx context.Context, n Notice) {
	if e == nil {
		return
	}
	if n.UserID == uuid.Nil {
		e.logg.Warn(ctx, "notification.skipped_missing_user")
		return
	}

	// Request cancellation must not drop the notice; logger fields carry over.
	base := context.WithoutCancel(ctx)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				e.metrics.IncNotificationFailure("panic")
				e.logg.Error(base, "notification.delivery_panicked", fmt.Errorf("panic: %v", rec))
			}
		}()
		dctx, cancel := context.WithTimeout(base, e.timeout)
		defer cancel()
		e.deliver(dctx, n)
	}()
}

// Wait blocks until every scheduled delivery has finished.
func (e *Emitter) Wait() {
	if e == nil {
		return
	}
	e.wg.Wait()
}

func (e *Emitter) deliver(ctx context.Context, n Notice) {
	ctx = e.logg.WithFields(ctx, map[string]any{
		"notification_type": string(n.Type),
		"recipient_id":      n.UserID.String(),
	})

	row := &models.Notification{
		UserID:  n.UserID,
		Type:    n.Type,
		Title:   n.Title,
		Message: n.Message,
		Link:    n.Link,
	}
	if err := e.repo.Create(ctx, row); err != nil {
		e.metrics.IncNotificationFailure("store")
		e.logg.Error(ctx, "notification.store_failed", err)
		return
	}

	if e.publisher == nil {
		return
	}
	payload, err := json.Marshal(row)
	if err != nil {
		e.metrics.IncNotificationFailure("publish")
		e.logg.Error(ctx, "notification.encode_failed", err)
		return
	}
	if err := e.publisher.Publish(ctx, e.publisher.NotificationChannel(n.UserID.String()), payload); err != nil {
		e.metrics.IncNotificationFailure("publish")
		ctx = e.logg.WithField(ctx, "error", err.Error())
		e.logg.Warn(ctx, "notification.publish_failed")
	}
}
