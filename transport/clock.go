package transport

import "time"

// nowMicros returns the current wall-clock time in microseconds, the unit
// the region header's timestamps are measured in.
func nowMicros() uint64 {
	return uint64(time.Now().UnixMicro())
}
