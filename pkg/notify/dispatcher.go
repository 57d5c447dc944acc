package notify

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-kit/kit/log"
	"golang.org/x/time/rate"

	"github.com/deploybot/deploybot/pkg/metrics"
)

// Notifier delivers a single event.
type Notifier interface {
	Notify(ctx context.Context, e Event) error
}

// Dispatcher takes events from publishers without ever making them
// wait, and delivers them one at a time, at most once each.
type Dispatcher struct {
	queue    *Queue
	notifier Notifier
	limiter  *rate.Limiter
	logger   log.Logger
	healthy  int32
}

// NewDispatcher starts the queue; call Loop to start delivering. A
// nil limiter means no pacing.
func NewDispatcher(notifier Notifier, limiter *rate.Limiter, logger log.Logger, stop <-chan struct{}, wg *sync.WaitGroup) *Dispatcher {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return &Dispatcher{
		queue:    NewQueue(stop, wg),
		notifier: notifier,
		limiter:  limiter,
		logger:   logger,
		healthy:  1,
	}
}

// Publish queues an event for delivery. It fails only if the
// dispatcher has stopped, after which it reports itself unhealthy.
func (d *Dispatcher) Publish(e Event) error {
	if err := d.queue.Enqueue(e); err != nil {
		atomic.StoreInt32(&d.healthy, 0)
		d.logger.Log("event", "notify_publish_exception", "jobID", e.JobID, "subject", e.Subject, "err", err)
		return err
	}
	queueLength.Set(float64(d.queue.Len()))
	return nil
}

// Health is an error once events can no longer be published or
// delivered.
func (d *Dispatcher) Health() error {
	if atomic.LoadInt32(&d.healthy) == 0 {
		return fmt.Errorf("notification dispatcher is stopped")
	}
	return nil
}

// Loop delivers events until stop is closed. Failed deliveries are
// logged and counted, and not retried.
func (d *Dispatcher) Loop(stop <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()
	defer atomic.StoreInt32(&d.healthy, 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	d.logger.Log("event", "notify_loop_starting")
	for {
		select {
		case <-stop:
			d.logger.Log("event", "notify_loop_stopping", "undelivered", d.queue.Len())
			return
		case e := <-d.queue.Ready():
			queueLength.Set(float64(d.queue.Len()))
			d.deliver(ctx, e)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, e Event) {
	begin := time.Now()
	err := d.limiter.Wait(ctx)
	if err == nil {
		err = d.notifier.Notify(ctx, e)
	}
	success := fmt.Sprint(err == nil)
	deliveries.With(metrics.LabelState, string(e.State), metrics.LabelSuccess, success).Add(1)
	deliveryDuration.With(metrics.LabelSuccess, success).Observe(time.Since(begin).Seconds())
	if err != nil {
		d.logger.Log("event", "notify_delivery_exception", "jobID", e.JobID, "subject", e.Subject, "err", err)
		return
	}
	d.logger.Log("event", "notify_delivery_ok", "jobID", e.JobID, "subject", e.Subject)
}
