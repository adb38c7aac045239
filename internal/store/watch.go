package store

import (
	"context"
	"sync"
)

// Emitter publishes a snapshot to the subscriber. An undelivered snapshot is
// replaced, so a slow consumer only ever sees the latest state. It must only
// be called from the goroutine running the producer.
type Emitter func(Snapshot)

// Watch runs produce in its own goroutine and exposes its snapshots as a
// channel. The channel is closed when produce returns. The returned
// CancelFunc cancels produce's context and waits for it to exit.
func Watch(ctx context.Context, produce func(ctx context.Context, emit Emitter)) (<-chan Snapshot, CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	ch := make(chan Snapshot, 1)
	done := make(chan struct{})

	emit := func(s Snapshot) {
		if ctx.Err() != nil {
			return
		}
		select {
		case <-ch:
		default:
		}
		ch <- s
	}

	go func() {
		defer close(done)
		defer close(ch)
		produce(ctx, emit)
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
	return ch, stop
}
