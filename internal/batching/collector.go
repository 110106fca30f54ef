package batching

import "time"

// collector is the per-key state machine: collecting until its timer fires
// and the dispatcher closes its inbox, then flushing, then done.
type collector struct {
	key       Key
	inbox     chan UploadEvent
	aborted   chan struct{}
	ids       []string
	first     UploadEvent
	firstSeen time.Time
}

func newCollector(key Key, first UploadEvent) *collector {
	return &collector{
		key:       key,
		inbox:     make(chan UploadEvent, inboxSize),
		aborted:   make(chan struct{}),
		ids:       []string{first.FileID},
		first:     first,
		firstSeen: first.ReceivedAt,
	}
}

// abort is called by the dispatcher on shutdown instead of unlink. The
// collector flushes what it has under the already-cancelled context.
func (c *collector) abort() {
	close(c.aborted)
}

// drain takes events forwarded before abort. The dispatcher has stopped by
// then, so nothing else arrives.
func (c *collector) drain(events []UploadEvent) []UploadEvent {
	for {
		select {
		case ev := <-c.inbox:
			events = append(events, ev)
		default:
			return events
		}
	}
}

func (c *collector) batch(events []UploadEvent, at time.Time) Batch {
	return Batch{Key: c.key, Events: events, FirstSeen: c.firstSeen, FlushedAt: at}
}

func (c *collector) run(b *Batcher) {
	defer b.flushes.Done()

	events := []UploadEvent{c.first}
	timer := time.NewTimer(b.window)
	defer timer.Stop()

	for {
		select {
		case ev := <-c.inbox:
			events = append(events, ev)
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(b.window)
		case <-timer.C:
			select {
			case b.retire <- c:
				// Anything forwarded before the dispatcher unlinked us still
				// belongs to this batch.
				for ev := range c.inbox {
					events = append(events, ev)
				}
			case <-c.aborted:
				events = c.drain(events)
			}
			b.flush(c.batch(events, b.now()))
			return
		case <-c.aborted:
			b.flush(c.batch(c.drain(events), b.now()))
			return
		}
	}
}
