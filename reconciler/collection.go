package reconciler

import (
	"go.uber.org/zap"

	"github.com/xrpa-io/xrpa-go/transport"
	"github.com/xrpa-io/xrpa-go/xrpamem"
	"github.com/xrpa-io/xrpa-go/xrpatypes"
)

// CreateDelegate builds a remotely-owned object from its first CreateObject
// or full-update payload. It is the Go equivalent of the generated
// createDelegate lambda the C++ runtime is handed per collection.
type CreateDelegate[T Reconciled] func(id xrpatypes.ObjectUuid, data xrpamem.Accessor, collection *ObjectCollection[T]) T

// Index receives create/update/delete notifications for every object whose
// changed fields intersect the owning collection's indexed field mask. A
// single ObjectCollection may feed more than one Index (e.g. one per indexed
// field).
type Index[T Reconciled] interface {
	OnCreate(obj T)
	OnUpdate(obj T)
	OnDelete(obj T)
}

// ObjectCollection is the generic stand-in for the code generator's
// per-dataset collection classes: a typed map of xrpa-id to object, plus the
// inbound/outbound wiring the reconciler drives it through. Exactly one of
// isLocalOwned or createDelegate applies, selected by which constructor built
// it.
type ObjectCollection[T Reconciled] struct {
	reconciler       *DataStoreReconciler
	collectionID     int32
	inboundFieldMask uint64
	indexedFieldMask uint64
	isLocalOwnedFlag bool
	createDelegate   CreateDelegate[T]
	objects          map[xrpatypes.ObjectUuid]T
	indexes          []Index[T]
	log              *zap.SugaredLogger
}

// NewRemoteCollection creates a collection of objects owned by the remote
// peer: objects are instantiated by createDelegate in response to
// CreateObject/FullUpdate events and torn down on DeleteObject or full
// reconcile.
func NewRemoteCollection[T Reconciled](r *DataStoreReconciler, collectionID int32, inboundFieldMask, indexedFieldMask uint64, createDelegate CreateDelegate[T]) *ObjectCollection[T] {
	c := newCollection[T](r, collectionID, inboundFieldMask, indexedFieldMask, false)
	c.createDelegate = createDelegate
	return c
}

// NewLocalCollection creates a collection of objects owned by this process:
// objects are added with AddObject and removed with RemoveObject, and their
// WriteDSChanges method drives what goes out on the wire.
func NewLocalCollection[T Reconciled](r *DataStoreReconciler, collectionID int32, outboundFieldMask, indexedFieldMask uint64) *ObjectCollection[T] {
	return newCollection[T](r, collectionID, outboundFieldMask, indexedFieldMask, true)
}

func newCollection[T Reconciled](r *DataStoreReconciler, collectionID int32, fieldMask, indexedFieldMask uint64, isLocalOwned bool) *ObjectCollection[T] {
	log := r.log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	c := &ObjectCollection[T]{
		reconciler:       r,
		collectionID:     collectionID,
		inboundFieldMask: fieldMask,
		indexedFieldMask: indexedFieldMask,
		isLocalOwnedFlag: isLocalOwned,
		objects:          map[xrpatypes.ObjectUuid]T{},
		log:              log.With("collection_id", collectionID),
	}
	r.registerCollection(c)
	return c
}

// AddIndex registers idx to receive create/update/delete notifications for
// this collection's objects.
func (c *ObjectCollection[T]) AddIndex(idx Index[T]) {
	c.indexes = append(c.indexes, idx)
}

// CollectionID implements Collection.
func (c *ObjectCollection[T]) CollectionID() int32 { return c.collectionID }

func (c *ObjectCollection[T]) isLocalOwned() bool { return c.isLocalOwnedFlag }

// GetObject returns the object with the given id, or the zero value and
// false if no such object exists.
func (c *ObjectCollection[T]) GetObject(id xrpatypes.ObjectUuid) (T, bool) {
	obj, ok := c.objects[id]
	return obj, ok
}

// Len returns the number of objects currently in the collection.
func (c *ObjectCollection[T]) Len() int { return len(c.objects) }

// ForEach calls f once per object currently in the collection. f must not
// add or remove objects from the collection.
func (c *ObjectCollection[T]) ForEach(f func(T)) {
	for _, obj := range c.objects {
		f(obj)
	}
}

// AddObject adds a locally-owned object to the collection and queues it for
// its first outbound write. No-op on a remotely-owned collection.
func (c *ObjectCollection[T]) AddObject(obj T) {
	if !c.isLocalOwnedFlag {
		return
	}
	id := obj.GetXrpaID()
	c.objects[id] = obj
	if c.indexedFieldMask != 0 {
		c.notifyIndexesCreate(obj)
	}
	c.reconciler.NotifyObjectNeedsWrite(id, c.collectionID)
}

// RemoveObject removes a locally-owned object from the collection and queues
// a DeleteObject event for it. No-op on a remotely-owned collection.
func (c *ObjectCollection[T]) RemoveObject(id xrpatypes.ObjectUuid) {
	if !c.isLocalOwnedFlag {
		return
	}
	obj, ok := c.objects[id]
	if !ok {
		return
	}
	if c.indexedFieldMask != 0 {
		c.notifyIndexesDelete(obj)
	}
	delete(c.objects, id)
	c.reconciler.NotifyObjectNeedsWrite(id, c.collectionID)
}

// SendMessage allocates space for an outbound message addressed to id and
// queues it for the next outbound tick.
func (c *ObjectCollection[T]) SendMessage(id xrpatypes.ObjectUuid, fieldID, numBytes int32) xrpamem.Accessor {
	return c.reconciler.SendMessage(id, c.collectionID, fieldID, numBytes)
}

func (c *ObjectCollection[T]) tick() {
	for _, obj := range c.objects {
		if t, ok := any(obj).(Ticker); ok {
			t.TickXrpa()
		}
	}
}

func (c *ObjectCollection[T]) writeChanges(sa *transport.StreamAccessor, id xrpatypes.ObjectUuid) {
	obj, ok := c.objects[id]
	if !ok {
		if c.isLocalOwnedFlag {
			writeDeleteEvent(sa, c.collectionID, id)
		}
		return
	}
	if lo, ok := any(obj).(LocalObject); ok {
		lo.WriteDSChanges(&ChangeWriter{sa: sa, collectionID: c.collectionID, objectID: id})
	}
}

func (c *ObjectCollection[T]) prepFullUpdate(entries *[]FullUpdateEntry) {
	if !c.isLocalOwnedFlag {
		return
	}
	for id, obj := range c.objects {
		ts := uint64(0)
		if ct, ok := any(obj).(CreationTimestamper); ok {
			ts = ct.XrpaCreationTimestamp()
		}
		if ts > 0 {
			*entries = append(*entries, FullUpdateEntry{ObjectID: id, CollectionID: c.collectionID, Timestamp: ts})
		}
	}
}

func (c *ObjectCollection[T]) processCreate(id xrpatypes.ObjectUuid, data xrpamem.Accessor) {
	if c.isLocalOwnedFlag || c.createDelegate == nil {
		return
	}

	obj := c.safeCreate(id, data)
	var zero T
	if obj == zero {
		return
	}

	c.objects[id] = obj
	c.applyInboundUpdate(obj, data, c.inboundFieldMask)

	if c.indexedFieldMask != 0 {
		c.notifyIndexesCreate(obj)
	}
}

func (c *ObjectCollection[T]) safeCreate(id xrpatypes.ObjectUuid, data xrpamem.Accessor) (obj T) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Errorw("panic in create delegate", "panic", r)
		}
	}()
	return c.createDelegate(id, data, c)
}

func (c *ObjectCollection[T]) processDelete(id xrpatypes.ObjectUuid) {
	if c.isLocalOwnedFlag {
		return
	}
	obj, ok := c.objects[id]
	if !ok {
		return
	}
	c.teardown(obj)
	delete(c.objects, id)
}

func (c *ObjectCollection[T]) teardown(obj T) {
	if c.indexedFieldMask != 0 {
		c.notifyIndexesDelete(obj)
	}
	if d, ok := any(obj).(DeleteHandler); ok {
		c.safeCall(d.HandleXrpaDelete)
	}
}

func (c *ObjectCollection[T]) processUpsert(id xrpatypes.ObjectUuid, data xrpamem.Accessor) {
	if !c.processUpdateInternal(id, data, c.inboundFieldMask, true) {
		c.processCreate(id, data)
	}
}

func (c *ObjectCollection[T]) processFullReconcile(reconciledIDs map[xrpatypes.ObjectUuid]struct{}) {
	if c.isLocalOwnedFlag {
		return
	}
	for id, obj := range c.objects {
		if _, ok := reconciledIDs[id]; !ok {
			c.teardown(obj)
			delete(c.objects, id)
		}
	}
}

func (c *ObjectCollection[T]) processShutdown() {
	if c.isLocalOwnedFlag {
		return
	}
	for id, obj := range c.objects {
		c.teardown(obj)
		delete(c.objects, id)
	}
}

func (c *ObjectCollection[T]) processUpdate(id xrpatypes.ObjectUuid, data xrpamem.Accessor, fieldsChanged uint64) bool {
	return c.processUpdateInternal(id, data, fieldsChanged, true)
}

func (c *ObjectCollection[T]) processUpdateInternal(id xrpatypes.ObjectUuid, data xrpamem.Accessor, fieldsChanged uint64, notify bool) bool {
	fieldsChanged &= c.inboundFieldMask
	if fieldsChanged == 0 {
		return false
	}
	obj, ok := c.objects[id]
	if !ok {
		return false
	}

	c.applyInboundUpdate(obj, data, fieldsChanged)

	if notify && c.indexedFieldMask&fieldsChanged != 0 {
		c.notifyIndexesUpdate(obj)
	}
	return true
}

func (c *ObjectCollection[T]) applyInboundUpdate(obj T, data xrpamem.Accessor, fieldsChanged uint64) {
	if u, ok := any(obj).(InboundUpdater); ok {
		c.safeCall(func() { u.ProcessInboundUpdate(data, fieldsChanged) })
	}
}

func (c *ObjectCollection[T]) processMessage(id xrpatypes.ObjectUuid, fieldID int32, timestampUs uint64, data xrpamem.Accessor) {
	obj, ok := c.objects[id]
	if !ok {
		return
	}
	if m, ok := any(obj).(MessageHandler); ok {
		c.safeCall(func() { m.ProcessMessage(fieldID, timestampUs, data) })
	}
}

func (c *ObjectCollection[T]) safeCall(f func()) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Errorw("panic in object delegate, dropping this call", "panic", r)
		}
	}()
	f()
}

func (c *ObjectCollection[T]) notifyIndexesCreate(obj T) {
	for _, idx := range c.indexes {
		idx.OnCreate(obj)
	}
}

func (c *ObjectCollection[T]) notifyIndexesUpdate(obj T) {
	for _, idx := range c.indexes {
		idx.OnUpdate(obj)
	}
}

func (c *ObjectCollection[T]) notifyIndexesDelete(obj T) {
	for _, idx := range c.indexes {
		idx.OnDelete(obj)
	}
}

var _ Collection = (*ObjectCollection[Reconciled])(nil)
