package ipcmutex

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLockAndExecuteRuns(t *testing.T) {
	m, err := New("test-basic", t.TempDir(), nil)
	require.NoError(t, err)

	ran := false
	ok := m.LockAndExecute(time.Second, func() {
		ran = true
	})
	require.True(t, ok)
	require.True(t, ran)
}

func TestLockExcludesConcurrentAccess(t *testing.T) {
	dir := t.TempDir()
	m1, err := New("test-excl", dir, nil)
	require.NoError(t, err)
	m2, err := New("test-excl", dir, nil)
	require.NoError(t, err)

	var counter int32
	var wg sync.WaitGroup
	const n = 20

	work := func(m *Mutex) {
		defer wg.Done()
		m.LockAndExecute(time.Second, func() {
			v := atomic.AddInt32(&counter, 1)
			time.Sleep(time.Millisecond)
			require.Equal(t, int32(1), v)
			atomic.AddInt32(&counter, -1)
		})
	}

	for i := 0; i < n; i++ {
		wg.Add(2)
		go work(m1)
		go work(m2)
	}
	wg.Wait()
}

func TestLockTimesOut(t *testing.T) {
	dir := t.TempDir()
	m1, err := New("test-timeout", dir, nil)
	require.NoError(t, err)
	m2, err := New("test-timeout", dir, nil)
	require.NoError(t, err)

	held := make(chan struct{})
	release := make(chan struct{})
	go func() {
		m1.LockAndExecute(time.Second, func() {
			close(held)
			<-release
		})
	}()
	<-held
	defer close(release)

	ok := m2.LockAndExecute(20*time.Millisecond, func() {
		t.Fatal("should not have acquired lock")
	})
	require.False(t, ok)
}

func TestDispose(t *testing.T) {
	m, err := New("test-dispose", t.TempDir(), nil)
	require.NoError(t, err)
	require.NoError(t, m.Dispose())
}
