// Package ipcmutex implements the named cross-process mutex that guards
// every transport stream's changelog. On POSIX platforms there is no
// equivalent of the Windows named-mutex API without cgo, so acquisition is
// implemented with an advisory file lock on a per-name path in a
// well-known temporary directory, polled at 1ms intervals until acquired
// or the deadline passes — the same approach the teacher uses for its own
// file-backed shared-memory regions, generalized from mmap-region locking
// to a dedicated lock file.
package ipcmutex

import (
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/xrpa-io/xrpa-go/xrpaerrs"
)

// pollInterval is how often a timed lock acquisition attempt is retried.
const pollInterval = time.Millisecond

// Mutex is a named mutex usable both across processes (via an advisory
// file lock) and within a single process (via an embedded sync.Mutex that
// is polled with TryLock until the timeout). The in-process lock is not
// reentrant: a nested LockAndExecute on the same Mutex from inside f waits
// out its timeout and returns false.
type Mutex struct {
	name string
	path string
	log  *zap.SugaredLogger

	local sync.Mutex // same-process fallback / serializes flock attempts from this process

	mu   sync.Mutex
	file *os.File // non-nil while this process holds the file lock
}

// New returns a Mutex named name. The lock file lives under dir (typically
// the OS temp dir or the same directory as the transport's shared-memory
// region); dir is created if it does not already exist.
func New(name, dir string, log *zap.SugaredLogger) (*Mutex, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, xrpaerrs.Mutex.Wrap(err)
	}
	return &Mutex{
		name: name,
		path: filepath.Join(dir, name+".lock"),
		log:  log.With("mutex", name),
	}, nil
}

// LockAndExecute runs f with the mutex held, acquired within timeout.
// It returns false without running f if the deadline passes first.
// The lock is released on every exit path from f, including a panic: the
// panic is recovered, the lock released, and the panic re-raised, mirroring
// the crash-safe release the spec requires on both platforms.
func (m *Mutex) LockAndExecute(timeout time.Duration, f func()) bool {
	if !m.tryLock(timeout) {
		return false
	}
	defer m.unlock()

	defer func() {
		if r := recover(); r != nil {
			m.log.Errorw("panic while holding mutex, releasing and re-raising", "panic", r)
			panic(r)
		}
	}()
	f()
	return true
}

func (m *Mutex) tryLock(timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)

	// Serialize this process's own attempts first; flock alone would let two
	// goroutines in the same process both "acquire" distinct fds.
	for {
		if m.local.TryLock() {
			break
		}
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(pollInterval)
	}

	for {
		f, err := os.OpenFile(m.path, os.O_CREATE|os.O_RDWR, 0o644)
		if err != nil {
			m.local.Unlock()
			m.log.Warnw("failed to open lock file", "path", m.path, "error", err)
			return false
		}
		err = syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB)
		if err == nil {
			m.mu.Lock()
			m.file = f
			m.mu.Unlock()
			return true
		}
		f.Close()
		if time.Now().After(deadline) {
			m.local.Unlock()
			return false
		}
		time.Sleep(pollInterval)
	}
}

func (m *Mutex) unlock() {
	m.mu.Lock()
	f := m.file
	m.file = nil
	m.mu.Unlock()

	if f != nil {
		syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
		f.Close()
	}
	m.local.Unlock()
}

// Dispose removes the backing lock file. Safe to call even if the mutex is
// currently held by another process; it only unlinks the directory entry,
// which does not disturb processes that already hold an open fd to it.
func (m *Mutex) Dispose() error {
	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		return xrpaerrs.Mutex.Wrap(err)
	}
	return nil
}
