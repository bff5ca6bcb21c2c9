// Package display fans accepted notifications out to toast sinks: the
// console always, Telegram when configured.
package display

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"alert-stream/internal/models"
)

// Sink renders one toast. Implementations must be safe for concurrent use
// by the dispatcher workers.
type Sink interface {
	Name() string
	ShowToast(ctx context.Context, message string, level models.Level, ttl time.Duration) error
}

// toast is one queued display task.
type toast struct {
	message string
	level   models.Level
	ttl     time.Duration
}

// Dispatcher queues toasts and delivers them to every sink from a small
// worker pool. The queue is bounded; when full, new toasts are dropped with
// an error log rather than blocking the stream path.
type Dispatcher struct {
	sinks   []Sink
	tasks   chan toast
	workers int
	ctx     context.Context
	cancel  context.CancelFunc
	wg      *sync.WaitGroup
	logger  *logrus.Logger
}

// NewDispatcher builds a Dispatcher over sinks.
func NewDispatcher(sinks []Sink, queueSize, maxWorkers int, logger *logrus.Logger) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		sinks:   sinks,
		tasks:   make(chan toast, queueSize),
		workers: maxWorkers,
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger,
	}
}

// Start launches the worker pool.
func (d *Dispatcher) Start(wg *sync.WaitGroup) {
	d.wg = wg
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
}

// Stop cancels the workers; toasts still queued are abandoned.
func (d *Dispatcher) Stop() {
	d.cancel()
}

// ShowToast queues a toast for delivery, dropping it when the queue is full.
func (d *Dispatcher) ShowToast(message string, level models.Level, ttl time.Duration) {
	select {
	case d.tasks <- toast{message: message, level: level, ttl: ttl}:
	default:
		d.logger.Errorf("Display queue full, dropping toast: %q", message)
	}
}

// worker delivers queued toasts until the dispatcher is stopped.
func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()
	for {
		select {
		case <-d.ctx.Done():
			d.logger.Infof("Display worker %d stopped", id)
			return
		case t := <-d.tasks:
			d.deliver(t)
		}
	}
}

func (d *Dispatcher) deliver(t toast) {
	for _, sink := range d.sinks {
		if err := sink.ShowToast(d.ctx, t.message, t.level, t.ttl); err != nil {
			d.logger.Errorf("Toast via %s failed: %v", sink.Name(), err)
		}
	}
}
