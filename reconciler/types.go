// Package reconciler drives the inbound/outbound change reconciliation loop
// on top of a transport stream: decoding change events into collection
// callbacks on the way in, and serializing dirty objects into change events
// on the way out.
package reconciler

import (
	"github.com/xrpa-io/xrpa-go/transport"
	"github.com/xrpa-io/xrpa-go/xrpamem"
	"github.com/xrpa-io/xrpa-go/xrpatypes"
)

// Reconciled is the minimum interface every object stored in an
// ObjectCollection must implement. It embeds comparable because collections
// and indexes track object identity by value (objects are expected to be
// pointer types, as in the C++ runtime's shared_ptr<T> slots).
type Reconciled interface {
	comparable
	GetXrpaID() xrpatypes.ObjectUuid
}

// LocalObject is implemented by objects owned by this process. WriteDSChanges
// is called once per outbound tick for every object notified dirty since the
// last tick, and decides for itself whether to emit a CreateObject or an
// UpdateObject event (or nothing, if it has nothing new to say).
type LocalObject interface {
	Reconciled
	WriteDSChanges(w *ChangeWriter)
}

// InboundUpdater is implemented by remotely-owned objects that want to apply
// incoming field data. Called once on creation (with every inbound field
// considered changed) and again on every subsequent UpdateObject event whose
// fieldsChanged mask intersects the collection's inbound field mask.
type InboundUpdater interface {
	ProcessInboundUpdate(data xrpamem.Accessor, fieldsChanged uint64)
}

// MessageHandler is implemented by objects that want to receive messages
// addressed to them.
type MessageHandler interface {
	ProcessMessage(fieldID int32, timestampUs uint64, data xrpamem.Accessor)
}

// Ticker is implemented by objects that want a callback on every outbound
// tick, regardless of whether they are dirty.
type Ticker interface {
	TickXrpa()
}

// DeleteHandler is implemented by objects that need to release resources
// when a remotely-owned collection tears them down: on a DeleteObject event
// from the remote peer, during a full reconcile, or on Shutdown.
// RemoveObject on a locally-owned collection does not call it.
type DeleteHandler interface {
	HandleXrpaDelete()
}

// CreationTimestamper is implemented by local objects that participate in
// full updates; XrpaCreationTimestamp returns 0 if the object has nothing to
// contribute yet.
type CreationTimestamper interface {
	XrpaCreationTimestamp() uint64
}

// FullUpdateEntry names one object to re-send in creation-timestamp order
// during a full update.
type FullUpdateEntry struct {
	ObjectID     xrpatypes.ObjectUuid
	CollectionID int32
	Timestamp    uint64
}

// Collection is the interface DataStoreReconciler drives; ObjectCollection[T]
// is the only implementation.
type Collection interface {
	CollectionID() int32
	isLocalOwned() bool
	tick()
	writeChanges(sa *transport.StreamAccessor, id xrpatypes.ObjectUuid)
	prepFullUpdate(entries *[]FullUpdateEntry)
	processCreate(id xrpatypes.ObjectUuid, data xrpamem.Accessor)
	processUpdate(id xrpatypes.ObjectUuid, data xrpamem.Accessor, fieldsChanged uint64) bool
	processDelete(id xrpatypes.ObjectUuid)
	processUpsert(id xrpatypes.ObjectUuid, data xrpamem.Accessor)
	processMessage(id xrpatypes.ObjectUuid, fieldID int32, timestampUs uint64, data xrpamem.Accessor)
	processFullReconcile(reconciledIDs map[xrpatypes.ObjectUuid]struct{})
	processShutdown()
}
