// Package xrpaerrs declares the error-class taxonomy; the transport and
// ipcmutex packages wrap and return these errors.
package xrpaerrs

import "github.com/zeebo/errs"

// Transport covers everything that can go wrong mapping, initializing or
// tearing down a transport stream's backing memory.
var Transport = errs.Class("xrpatransport")

// SchemaMismatch is returned when a connecting stream's schema hash does not
// match the hash baked into the config. It is unrecoverable for the stream
// instance that raises it.
var SchemaMismatch = Transport.New("schema hash mismatch")

// VersionMismatch is returned when an existing, unexpired region carries a
// header version newer than the one this binary writes. Older versions,
// including the legacy pre-heartbeat layout, are reinitialized instead.
var VersionMismatch = Transport.New("transport header version mismatch")

// Mutex covers cross-process mutex errors: creating the lock directory and
// removing the lock file.
var Mutex = errs.Class("xrpaipcmutex")

// LockTimeout names the failure of acquiring the mutex before the deadline.
// LockAndExecute does not return it; it reports a timeout by returning
// false, and callers retry on the next tick rather than treat it as fatal.
var LockTimeout = Mutex.New("lock acquisition timed out")

// Reconciler covers object-collection and changelog reconciliation errors.
var Reconciler = errs.Class("xrpareconciler")

// Signal covers signal ring buffer and packetization errors.
var Signal = errs.Class("xrpasignal")

// Config covers configuration loading errors.
var Config = errs.Class("xrpaconfig")
