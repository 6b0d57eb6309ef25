package transport

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"

	"github.com/xrpa-io/xrpa-go/ipcmutex"
	"github.com/xrpa-io/xrpa-go/xrpaerrs"
	"github.com/xrpa-io/xrpa-go/xrpatypes"
)

func heapMutexDir() string {
	return filepath.Join(os.TempDir(), "xrpa-go", "locks")
}

// RegionName builds the shared-memory object name for a transport stream,
// embedding the transport version and a 32-bit prefix of the schema hash
// so peers with a mismatched version or schema open disjoint regions
// instead of aliasing each other's memory.
func RegionName(baseName string, config xrpatypes.TransportConfig) string {
	prefix := uint32(config.SchemaHash[0])
	return fmt.Sprintf("%s_v%x_%x", baseName, Version, prefix)
}

// NewSharedMemoryStream creates or opens a named shared-memory transport
// stream backed by a regular file under dir, mmap'd with MAP_SHARED so
// every process that opens the same path sees the same bytes. dir plays
// the role /dev/shm plays in the teacher's own shared-memory feeder code;
// passing the real /dev/shm makes this a true cross-process region on
// Linux.
func NewSharedMemoryStream(baseName, dir string, config xrpatypes.TransportConfig, log *zap.SugaredLogger) (*MemoryStream, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	name := RegionName(baseName, config)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, xrpaerrs.Transport.Wrap(err)
	}
	path := filepath.Join(dir, name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, xrpaerrs.Transport.Wrap(err)
	}
	defer f.Close()

	memSize := int64(MemSize(config))

	fi, err := f.Stat()
	if err != nil {
		return nil, xrpaerrs.Transport.Wrap(err)
	}
	didCreate := fi.Size() == 0
	if fi.Size() < memSize {
		if err := f.Truncate(memSize); err != nil {
			return nil, xrpaerrs.Transport.Wrap(err)
		}
	}

	mem, err := syscall.Mmap(int(f.Fd()), 0, int(memSize), syscall.PROT_READ|syscall.PROT_WRITE, syscall.MAP_SHARED)
	if err != nil {
		return nil, xrpaerrs.Transport.Wrap(err)
	}

	mutexDir := filepath.Join(dir, ".locks")
	mutex, err := ipcmutex.New(name, mutexDir, log)
	if err != nil {
		syscall.Munmap(mem)
		return nil, err
	}

	s := &MemoryStream{
		name:   name,
		config: config,
		mutex:  mutex,
		mem:    mem,
		log:    log.With("stream", name, "path", path),
		closeFn: func() error {
			return syscall.Munmap(mem)
		},
	}

	if err := s.initializeMemory(didCreate); err != nil {
		syscall.Munmap(mem)
		return nil, err
	}

	return s, nil
}
