package batching

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"transponster/internal/logging"
	"transponster/internal/services"
)

const (
	defaultRetention = 24 * time.Hour
	maxSweepInterval = time.Minute
	inboxSize        = 16
)

// Option configures a Batcher.
type Option func(*Batcher)

// WithRetention controls how long the IDs of flushed files keep absorbing
// duplicate notifications. Zero forgets them at flush time.
func WithRetention(d time.Duration) Option {
	return func(b *Batcher) {
		if d >= 0 {
			b.retention = d
		}
	}
}

// WithLogger sets the component logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Batcher) {
		if logger != nil {
			b.logger = logger
		}
	}
}

type submission struct {
	event UploadEvent
	reply chan bool
}

// Batcher debounces upload events per Key.
type Batcher struct {
	window    time.Duration
	retention time.Duration
	action    Action
	logger    *slog.Logger
	now       func() time.Time

	submit   chan submission
	retire   chan *collector
	pending  chan chan int
	stopping chan struct{}
	done     chan struct{}

	ctx      context.Context
	cancel   context.CancelFunc
	started  atomic.Bool
	stopOnce sync.Once
	flushes  sync.WaitGroup
}

// New creates a Batcher that calls action once per batch, window after the
// last new event for that batch's key.
func New(window time.Duration, action Action, opts ...Option) *Batcher {
	b := &Batcher{
		window:    window,
		retention: defaultRetention,
		action:    action,
		logger:    logging.NewNop(),
		now:       time.Now,
		submit:    make(chan submission),
		retire:    make(chan *collector),
		pending:   make(chan chan int),
		stopping:  make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Start launches the dispatcher. Actions receive a context derived from ctx.
func (b *Batcher) Start(ctx context.Context) error {
	if b.action == nil {
		return fmt.Errorf("batching: action is required")
	}
	if b.window <= 0 {
		return fmt.Errorf("batching: window must be positive, got %s", b.window)
	}
	if !b.started.CompareAndSwap(false, true) {
		return fmt.Errorf("batching: already started")
	}
	b.ctx, b.cancel = context.WithCancel(ctx)
	go b.run()
	return nil
}

// Submit offers an event. It returns false when the event was absorbed as a
// duplicate, is invalid, or the batcher is not running.
func (b *Batcher) Submit(event UploadEvent) bool {
	if !b.started.Load() || strings.TrimSpace(event.FileID) == "" || strings.TrimSpace(event.ChannelID) == "" {
		return false
	}
	if event.ReceivedAt.IsZero() {
		event.ReceivedAt = b.now()
	}
	req := submission{event: event, reply: make(chan bool, 1)}
	select {
	case b.submit <- req:
	case <-b.done:
		return false
	}
	select {
	case accepted := <-req.reply:
		return accepted
	case <-b.done:
		return false
	}
}

// Pending returns the number of batches still collecting.
func (b *Batcher) Pending() int {
	if !b.started.Load() {
		return 0
	}
	reply := make(chan int, 1)
	select {
	case b.pending <- reply:
	case <-b.done:
		return 0
	}
	select {
	case n := <-reply:
		return n
	case <-b.done:
		return 0
	}
}

// Stop flushes batches that are still collecting under a cancelled context,
// cancels running actions and waits for all of them to return.
func (b *Batcher) Stop() {
	if !b.started.Load() {
		return
	}
	b.stopOnce.Do(func() {
		close(b.stopping)
		<-b.done
		b.cancel()
		b.flushes.Wait()
	})
}

func (b *Batcher) run() {
	defer close(b.done)

	collectors := make(map[Key]*collector)
	claimed := make(map[string]time.Time)

	sweepEvery := b.retention
	if sweepEvery <= 0 || sweepEvery > maxSweepInterval {
		sweepEvery = maxSweepInterval
	}
	sweep := time.NewTicker(sweepEvery)
	defer sweep.Stop()

	unlink := func(c *collector) {
		if collectors[c.key] == c {
			delete(collectors, c.key)
		}
		flushedAt := b.now()
		for _, id := range c.ids {
			if b.retention > 0 {
				claimed[id] = flushedAt
			} else {
				delete(claimed, id)
			}
		}
		close(c.inbox)
	}

	for {
		select {
		case req := <-b.submit:
			ev := req.event
			if _, dup := claimed[ev.FileID]; dup {
				b.logger.Debug("duplicate upload event ignored",
					logging.String(logging.FieldFileID, ev.FileID),
					logging.String(logging.FieldBatchKey, ev.Key().String()),
				)
				req.reply <- false
				continue
			}
			claimed[ev.FileID] = time.Time{}

			key := ev.Key()
			if c, ok := collectors[key]; ok && b.forward(c, ev, unlink) {
				req.reply <- true
				continue
			}
			c := newCollector(key, ev)
			collectors[key] = c
			b.flushes.Add(1)
			go c.run(b)
			b.logger.Debug("batch opened",
				logging.String(logging.FieldBatchKey, key.String()),
				logging.String(logging.FieldFileID, ev.FileID),
			)
			req.reply <- true

		case c := <-b.retire:
			unlink(c)

		case reply := <-b.pending:
			reply <- len(collectors)

		case <-sweep.C:
			cutoff := b.now().Add(-b.retention)
			for id, at := range claimed {
				if !at.IsZero() && at.Before(cutoff) {
					delete(claimed, id)
				}
			}

		case <-b.stopping:
			b.shutdownCollectors(collectors)
			return
		case <-b.ctx.Done():
			b.shutdownCollectors(collectors)
			return
		}
	}
}

// forward hands ev to an open collector. It returns false when the collector
// retired before accepting, in which case the caller opens a new batch.
func (b *Batcher) forward(c *collector, ev UploadEvent, unlink func(*collector)) bool {
	for {
		select {
		case c.inbox <- ev:
			c.ids = append(c.ids, ev.FileID)
			return true
		case retired := <-b.retire:
			unlink(retired)
			if retired == c {
				return false
			}
		}
	}
}

// shutdownCollectors cancels the action context first so early flushes
// report an interruption instead of starting real work.
func (b *Batcher) shutdownCollectors(collectors map[Key]*collector) {
	b.cancel()
	for key, c := range collectors {
		logging.WarnWithContext(b.logger, "flushing batch early on shutdown", "batch_interrupted",
			logging.String(logging.FieldBatchKey, key.String()),
			logging.Int("files", len(c.ids)),
			logging.String(logging.FieldErrorHint, "ask the uploader to share the files again"),
			logging.String(logging.FieldImpact, "files in this batch are reported as interrupted"),
		)
		c.abort()
	}
}

func (b *Batcher) flush(batch Batch) {
	ctx := services.WithBatchKey(b.ctx, batch.Key.String())
	logger := logging.WithContext(ctx, b.logger)
	defer func() {
		if r := recover(); r != nil {
			logging.ErrorWithContext(logger, "batch action panicked", "batch_action_panic",
				logging.String("panic", fmt.Sprint(r)),
			)
		}
	}()

	logger.Info("batch flushed",
		logging.Int("files", len(batch.Events)),
		logging.Duration("collected_for", batch.FlushedAt.Sub(batch.FirstSeen)),
	)
	if err := b.action(ctx, batch); err != nil {
		logging.ErrorWithContext(logger, "batch action failed", "batch_action_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "per-file outcomes were reported in the thread"),
		)
	}
}
