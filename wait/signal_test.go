package wait

import (
	"context"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// raiseAfter sends the given signal to the current process after a delay.
func raiseAfter(t *testing.T, delay time.Duration, sig syscall.Signal) {
	t.Helper()
	time.AfterFunc(delay, func() {
		if err := syscall.Kill(os.Getpid(), sig); err != nil {
			t.Logf("failed raising %s: %s", sig, err)
		}
	})
}

func TestForSignalFired(t *testing.T) {
	t.Parallel()

	raiseAfter(t, 50*time.Millisecond, syscall.SIGUSR1)

	ok, err := ForSignal(context.Background(), 2*time.Second, syscall.SIGUSR1)

	require.NoError(t, err)
	require.True(t, ok)
}

func TestForSignalTimedOut(t *testing.T) {
	t.Parallel()

	ok, err := ForSignal(context.Background(), 100*time.Millisecond, syscall.SIGUSR2)

	require.NoError(t, err)
	require.False(t, ok)
}

func TestForSignalCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(30*time.Millisecond, cancel)

	_, err := ForSignal(ctx, 1*time.Second, syscall.SIGHUP)

	var canceled *CanceledError
	require.ErrorAs(t, err, &canceled)
	require.ErrorIs(t, err, context.Canceled)
}
