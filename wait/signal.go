package wait

import (
	"context"
	"os"
	"os/signal"
	"time"
)

// ForSignal blocks until any of the given OS signals is delivered, the timeout elapses, or ctx is
// canceled. It returns true if a signal arrived first and false if the timeout elapsed first;
// canceling ctx surfaces as a *CanceledError. Signal delivery to other handlers is restored once
// the wait resolves.
func ForSignal(ctx context.Context, timeout time.Duration, sigs ...os.Signal) (bool, error) {
	var (
		delivery = make(chan os.Signal, 1)
		quit     = make(chan struct{})
	)

	subscribe := func(h Handler) error {
		signal.Notify(delivery, sigs...)
		go func() {
			select {
			case <-delivery:
				h()
			case <-quit:
			}
		}()
		return nil
	}
	unsubscribe := func(Handler) {
		signal.Stop(delivery)
		close(quit)
	}

	return ForEvent(ctx, subscribe, unsubscribe, timeout)
}
