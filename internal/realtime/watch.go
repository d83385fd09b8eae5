package realtime

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Watch delivers load's result to onUpdate once immediately and again after
// every signal on topic, until ctx is done or the returned cancel func is
// called. Callbacks run on a single goroutine, so they never overlap.
//
// The subscription is registered before the first load, so a change that
// lands between the initial read and the subscription is not lost. Load
// errors are logged and skipped; the next signal retries.
func Watch[T any](ctx context.Context, b *Broker, topic string, load func(context.Context) (T, error), onUpdate func(T)) (cancel func()) {
	ctx, stop := context.WithCancel(ctx)
	notify, unsubscribe := b.Subscribe(topic)

	go func() {
		defer unsubscribe()
		for {
			snap, err := load(ctx)
			switch {
			case ctx.Err() != nil:
				return
			case err != nil:
				log.Warn().Err(err).Str("topic", topic).Msg("live view reload failed")
			default:
				onUpdate(snap)
			}

			select {
			case <-ctx.Done():
				return
			case <-notify:
			}
		}
	}()

	return stop
}
