package notifications

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

type DispatcherConfig struct {
	Workers     int
	Buffer      int
	SendTimeout time.Duration
}

// Dispatcher delivers events on background workers so a slow or failing
// notifier never delays, or undoes, the moderation decision that produced
// the event.
type Dispatcher struct {
	notifier Notifier
	logger   *zap.SugaredLogger
	timeout  time.Duration

	queue     chan ModerationResult
	wg        sync.WaitGroup
	closeOnce sync.Once
	mu        sync.RWMutex
	closed    bool
}

func NewDispatcher(n Notifier, logger *zap.SugaredLogger, cfg DispatcherConfig) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 256
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}

	d := &Dispatcher{
		notifier: n,
		logger:   logger,
		timeout:  cfg.SendTimeout,
		queue:    make(chan ModerationResult, cfg.Buffer),
	}
	for i := 0; i < cfg.Workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
	return d
}

// Publish never blocks. When the buffer is full the event is dropped.
func (d *Dispatcher) Publish(ev ModerationResult) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.logger.Warnw("notification dropped after shutdown", "review_id", ev.ReviewID, "status", ev.Status)
		return
	}
	select {
	case d.queue <- ev:
	default:
		d.logger.Warnw("notification queue full, dropping event", "review_id", ev.ReviewID, "status", ev.Status)
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for ev := range d.queue {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		if err := d.notifier.Notify(ctx, ev); err != nil {
			d.logger.Warnw("failed to deliver moderation notification",
				"review_id", ev.ReviewID, "author_id", ev.AuthorID, "status", ev.Status, "error", err)
		}
		cancel()
	}
}

// Close stops accepting events and waits for queued ones to be delivered or
// for ctx to expire.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.queue)
		d.mu.Unlock()
	})

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
