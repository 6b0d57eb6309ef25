// Package transport implements the single-writer/multi-reader shared
// memory transport stream: the named region, its header, the changelog
// ring buffer, and the accessor/iterator pair readers and writers use to
// exchange change events under a cross-process mutex.
package transport

import (
	"time"

	"go.uber.org/zap"

	"github.com/xrpa-io/xrpa-go/ipcmutex"
	"github.com/xrpa-io/xrpa-go/xrpaerrs"
	"github.com/xrpa-io/xrpa-go/xrpamem"
	"github.com/xrpa-io/xrpa-go/xrpatypes"
)

const (
	initTimeout       = 5 * time.Second
	heartbeatInterval = time.Second
	expireWindow      = 20 * time.Second
)

// DefaultTransactTimeout is the 1ms transact timeout the reconciler uses
// for both tick_inbound and tick_outbound.
const DefaultTransactTimeout = time.Millisecond

// Stream is the interface the reconciler drives: a single-writer,
// multi-reader named region carrying a changelog of change events.
type Stream interface {
	// Transact locks the stream, builds a StreamAccessor, runs fn, updates
	// the last-write timestamp, then unlocks. Returns false if the lock
	// could not be acquired within timeout.
	Transact(timeout time.Duration, fn func(*StreamAccessor)) bool

	// NeedsHeartbeat is a lock-free check of whether this stream has gone
	// too long without a write and should emit an empty transaction so
	// readers do not expire it.
	NeedsHeartbeat() bool

	// Heartbeat emits a no-op transaction if NeedsHeartbeat is true.
	Heartbeat(timeout time.Duration) bool

	// CreateIterator returns a fresh iterator over this stream's changelog.
	CreateIterator() *StreamIterator

	// Close releases any OS resources (mmap, lock file) held by the
	// stream. Heap-backed streams just drop their buffer.
	Close() error
}

// MemoryStream is a Stream backed by a byte slice: either a heap buffer
// (same-process use) or an mmap'd shared-memory region (cross-process
// use), selected by which constructor built it.
type MemoryStream struct {
	name    string
	config  xrpatypes.TransportConfig
	mutex   *ipcmutex.Mutex
	mem     []byte
	log     *zap.SugaredLogger
	closeFn func() error
}

var _ Stream = (*MemoryStream)(nil)

// NewHeapStream creates a same-process transport stream backed by a plain
// heap buffer. The buffer is always freshly initialized since nothing else
// could have created it first.
func NewHeapStream(name string, config xrpatypes.TransportConfig, log *zap.SugaredLogger) (*MemoryStream, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	mutex, err := ipcmutex.New(name, heapMutexDir(), log)
	if err != nil {
		return nil, err
	}
	s := &MemoryStream{
		name:   name,
		config: config,
		mutex:  mutex,
		mem:    make([]byte, MemSize(config)),
		log:    log.With("stream", name),
	}
	if err := s.initializeMemory(true); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MemoryStream) initializeMemory(didCreate bool) error {
	if didCreate {
		return s.initializeMemoryOnCreate()
	}

	h := newHeader(s.mem)

	if h.BaseTimestamp() == 0 {
		// another peer may be mid-init; wait on the mutex then recheck
		s.mutex.LockAndExecute(initTimeout, func() {})
		if h.BaseTimestamp() == 0 {
			return s.initializeMemoryOnCreate()
		}
	}

	version := DetectHeaderVersion(s.mem)
	if version < Version {
		if version == legacyVersion {
			s.log.Infow("transport header is the legacy pre-heartbeat layout, reinitializing",
				"version", version, "legacy_header_bytes", LegacyHeaderByteCount)
		} else {
			s.log.Infow("transport header version too old, reinitializing", "version", version)
		}
		return s.initializeMemoryOnCreate()
	}

	if h.LastUpdateAgeMicroseconds(nowMicros()) > uint64(expireWindow.Microseconds()) {
		s.log.Infow("transport region expired, reinitializing")
		return s.initializeMemoryOnCreate()
	}

	if version != Version {
		return xrpaerrs.VersionMismatch
	}

	if !h.SchemaHash().Equal(s.config.SchemaHash) {
		return xrpaerrs.SchemaMismatch
	}

	return nil
}

func (s *MemoryStream) initializeMemoryOnCreate() error {
	ok := s.mutex.LockAndExecute(initTimeout, func() {
		newHeader(s.mem).Initialize(s.config, nowMicros())
	})
	if !ok {
		return xrpaerrs.Transport.New("timed out acquiring lock during transport init")
	}
	return nil
}

// Transact implements Stream.
func (s *MemoryStream) Transact(timeout time.Duration, fn func(*StreamAccessor)) bool {
	if s.mem == nil {
		return false
	}
	return s.mutex.LockAndExecute(timeout, func() {
		h := newHeader(s.mem)
		changelog := h.Changelog()
		baseTimestamp := h.BaseTimestamp()

		accessor := newStreamAccessor(baseTimestamp, func(numBytes int32) xrpamem.Accessor {
			ev, id := changelog.Push(numBytes)
			if !ev.IsNull() {
				h.SetLastChangelogID(id)
			}
			return ev
		}, changelog)

		fn(accessor)
		h.SetLastUpdateTimestamp(nowMicros())
	})
}

// NeedsHeartbeat implements Stream.
func (s *MemoryStream) NeedsHeartbeat() bool {
	if s.mem == nil {
		return false
	}
	h := newHeader(s.mem)
	return h.LastUpdateAgeMicroseconds(nowMicros()) > uint64(heartbeatInterval.Microseconds())
}

// Heartbeat implements Stream.
func (s *MemoryStream) Heartbeat(timeout time.Duration) bool {
	if !s.NeedsHeartbeat() {
		return true
	}
	return s.Transact(timeout, func(*StreamAccessor) {})
}

// CreateIterator implements Stream.
func (s *MemoryStream) CreateIterator() *StreamIterator {
	return newStreamIterator(s)
}

// Close implements Stream.
func (s *MemoryStream) Close() error {
	if s.closeFn != nil {
		return s.closeFn()
	}
	s.mem = nil
	return nil
}
