package reconciler

import (
	"github.com/xrpa-io/xrpa-go/transport"
	"github.com/xrpa-io/xrpa-go/xrpamem"
	"github.com/xrpa-io/xrpa-go/xrpatypes"
)

// ChangeWriter is handed to a LocalObject's WriteDSChanges so it can emit
// exactly the change event it needs without knowing about the transport
// wire format.
type ChangeWriter struct {
	sa           *transport.StreamAccessor
	collectionID int32
	objectID     xrpatypes.ObjectUuid
}

// WriteCreate emits a CreateObject event carrying the object's full state.
// fill writes payloadSize bytes of object-defined field data.
func (w *ChangeWriter) WriteCreate(payloadSize int32, fill func(xrpamem.Accessor)) {
	mem := w.sa.WriteChangeEvent(transport.ChangeCreateObject, transport.CollectionEventHeaderSize, payloadSize, 0)
	if mem.IsNull() {
		return
	}
	ev := transport.NewCollectionEventAccessor(mem)
	ev.SetObjectID(w.objectID)
	ev.SetCollectionID(w.collectionID)
	if fill != nil {
		fill(ev.Data())
	}
}

// WriteUpdate emits an UpdateObject event carrying only the fields named by
// fieldsChanged. fill writes payloadSize bytes of object-defined field data,
// laid out however the object's own field numbering dictates.
func (w *ChangeWriter) WriteUpdate(fieldsChanged uint64, payloadSize int32, fill func(xrpamem.Accessor)) {
	if fieldsChanged == 0 {
		return
	}
	mem := w.sa.WriteChangeEvent(transport.ChangeUpdateObject, transport.UpdateEventHeaderSize, payloadSize, 0)
	if mem.IsNull() {
		return
	}
	ev := transport.NewUpdateEventAccessor(mem)
	ev.SetObjectID(w.objectID)
	ev.SetCollectionID(w.collectionID)
	ev.SetFieldsChanged(fieldsChanged)
	if fill != nil {
		fill(ev.Data())
	}
}

// WriteDelete emits a DeleteObject event for this object. Objects rarely
// need to call this themselves, since removing an object from its
// collection already queues the equivalent event.
func (w *ChangeWriter) WriteDelete() {
	mem := w.sa.WriteChangeEvent(transport.ChangeDeleteObject, transport.CollectionEventHeaderSize, 0, 0)
	if mem.IsNull() {
		return
	}
	ev := transport.NewCollectionEventAccessor(mem)
	ev.SetObjectID(w.objectID)
	ev.SetCollectionID(w.collectionID)
}

func writeDeleteEvent(sa *transport.StreamAccessor, collectionID int32, objectID xrpatypes.ObjectUuid) {
	(&ChangeWriter{sa: sa, collectionID: collectionID, objectID: objectID}).WriteDelete()
}
