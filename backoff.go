package flagdeck

import (
	"context"
	"time"
)

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 30 * time.Second
	backoffJitter  = time.Second
)

// backoff spaces out stream reconnect attempts. Each failed attempt
// doubles the delay up to maxBackoff; a successful connection resets
// it.
type backoff struct {
	current time.Duration
}

func newBackoff() *backoff {
	return &backoff{current: initialBackoff}
}

// next returns the delay before the following attempt, smeared with up
// to backoffJitter so clients reconnecting after a server restart do
// not arrive in lockstep.
func (b *backoff) next() time.Duration {
	d := b.current + time.Duration(time.Now().UnixNano())%backoffJitter

	if b.current < maxBackoff {
		b.current *= 2
	}

	return d
}

func (b *backoff) reset() {
	b.current = initialBackoff
}

// wait sleeps for the next delay, or returns early when ctx is done.
func (b *backoff) wait(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(b.next()):
	}
}
