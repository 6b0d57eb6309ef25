package runner

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoopTicksRepeatedlyUntilStopped(t *testing.T) {
	var count atomic.Int32
	var l *Loop
	l = New(1000, func() error {
		if count.Add(1) >= 5 {
			l.Stop()
		}
		return nil
	}, nil)

	err := l.Run(context.Background())
	require.NoError(t, err)
	require.GreaterOrEqual(t, count.Load(), int32(5))
}

func TestLoopStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	l := New(1000, func() error { return nil }, nil)

	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	err := l.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestLoopPropagatesTickError(t *testing.T) {
	boom := errors.New("boom")
	l := New(1000, func() error { return boom }, nil)

	err := l.Run(context.Background())
	require.ErrorIs(t, err, boom)
}

func TestRunPairedCancelsBothOnOneError(t *testing.T) {
	boom := errors.New("boom")
	failing := New(1000, func() error { return boom }, nil)

	var otherTicks atomic.Int32
	other := New(1000, func() error {
		otherTicks.Add(1)
		return nil
	}, nil)

	err := RunPaired(context.Background(), failing, other)
	require.ErrorIs(t, err, boom)
}
