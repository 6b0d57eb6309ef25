package transport

import (
	"github.com/xrpa-io/xrpa-go/xrpamem"
	"github.com/xrpa-io/xrpa-go/xrpatypes"
)

// ChangeType enumerates the kinds of changelog entries a transport stream
// carries, per the wire format in the region layout.
type ChangeType int32

const (
	ChangeRequestFullUpdate ChangeType = 0
	ChangeFullUpdate        ChangeType = 1
	ChangeShutdown          ChangeType = 2
	ChangeCreateObject      ChangeType = 3
	ChangeDeleteObject      ChangeType = 4
	ChangeUpdateObject      ChangeType = 5
	ChangeMessage           ChangeType = 6
)

func (c ChangeType) String() string {
	switch c {
	case ChangeRequestFullUpdate:
		return "RequestFullUpdate"
	case ChangeFullUpdate:
		return "FullUpdate"
	case ChangeShutdown:
		return "Shutdown"
	case ChangeCreateObject:
		return "CreateObject"
	case ChangeDeleteObject:
		return "DeleteObject"
	case ChangeUpdateObject:
		return "UpdateObject"
	case ChangeMessage:
		return "Message"
	default:
		return "Unknown"
	}
}

// ChangeEventHeaderSize is the size of the base event header: change_type
// and a ms timestamp offset from the stream's base_timestamp.
const ChangeEventHeaderSize = int32(8)

// ChangeEventAccessor views the base fields common to every changelog
// entry: every other accessor type below embeds this one.
type ChangeEventAccessor struct {
	xrpamem.Accessor
}

// NewChangeEventAccessor wraps a raw memory window as a base change event.
func NewChangeEventAccessor(a xrpamem.Accessor) ChangeEventAccessor {
	return ChangeEventAccessor{Accessor: a}
}

func (c ChangeEventAccessor) ChangeType() ChangeType {
	return ChangeType(xrpamem.ReadValue[int32](c.Accessor, 0))
}

func (c ChangeEventAccessor) SetChangeType(t ChangeType) {
	xrpamem.WriteValue(c.Accessor, int32(t), 0)
}

// TimestampOffsetMs returns the event's timestamp as a ms offset from the
// stream's base_timestamp_us.
func (c ChangeEventAccessor) TimestampOffsetMs() int32 {
	return xrpamem.ReadValue[int32](c.Accessor, 4)
}

func (c ChangeEventAccessor) SetTimestampOffsetMs(v int32) {
	xrpamem.WriteValue(c.Accessor, v, 4)
}

// CollectionEventHeaderSize is the size of the header shared by every
// object-lifecycle event: the base header plus an object id and collection
// id.
const CollectionEventHeaderSize = ChangeEventHeaderSize + 16 + 4

// CollectionEventAccessor views CreateObject/DeleteObject/UpdateObject/
// Message events, all of which carry an object id and collection id.
type CollectionEventAccessor struct {
	ChangeEventAccessor
}

func NewCollectionEventAccessor(a xrpamem.Accessor) CollectionEventAccessor {
	return CollectionEventAccessor{ChangeEventAccessor: NewChangeEventAccessor(a)}
}

func (c CollectionEventAccessor) ObjectID() xrpatypes.ObjectUuid {
	return xrpatypes.ReadObjectUuid(c.RawBytes(ChangeEventHeaderSize, 16))
}

func (c CollectionEventAccessor) SetObjectID(id xrpatypes.ObjectUuid) {
	xrpatypes.WriteObjectUuid(c.RawBytes(ChangeEventHeaderSize, 16), id)
}

func (c CollectionEventAccessor) CollectionID() int32 {
	return xrpamem.ReadValue[int32](c.Accessor, ChangeEventHeaderSize+16)
}

func (c CollectionEventAccessor) SetCollectionID(id int32) {
	xrpamem.WriteValue(c.Accessor, id, ChangeEventHeaderSize+16)
}

// Data returns the accessor's payload window, for CreateObject/DeleteObject
// events whose payload follows directly after the collection header.
func (c CollectionEventAccessor) Data() xrpamem.Accessor {
	return c.Slice(CollectionEventHeaderSize, -1)
}

// UpdateEventHeaderSize is the header size for an UpdateObject event.
const UpdateEventHeaderSize = CollectionEventHeaderSize + 8

// UpdateEventAccessor views an UpdateObject event: the collection header
// plus a 64-bit changed-fields mask.
type UpdateEventAccessor struct {
	CollectionEventAccessor
}

func NewUpdateEventAccessor(a xrpamem.Accessor) UpdateEventAccessor {
	return UpdateEventAccessor{CollectionEventAccessor: NewCollectionEventAccessor(a)}
}

func (u UpdateEventAccessor) FieldsChanged() uint64 {
	return xrpamem.ReadValue[uint64](u.Accessor, CollectionEventHeaderSize)
}

func (u UpdateEventAccessor) SetFieldsChanged(v uint64) {
	xrpamem.WriteValue(u.Accessor, v, CollectionEventHeaderSize)
}

func (u UpdateEventAccessor) Data() xrpamem.Accessor {
	return u.Slice(UpdateEventHeaderSize, -1)
}

// MessageEventHeaderSize is the header size for a Message event: the
// collection header plus a 4-byte field id, which puts the payload that
// follows at byte 32, 8-byte aligned.
const MessageEventHeaderSize = CollectionEventHeaderSize + 4

// MessageEventAccessor views a Message event: the collection header plus
// a field id identifying which message-typed field this is.
type MessageEventAccessor struct {
	CollectionEventAccessor
}

func NewMessageEventAccessor(a xrpamem.Accessor) MessageEventAccessor {
	return MessageEventAccessor{CollectionEventAccessor: NewCollectionEventAccessor(a)}
}

func (m MessageEventAccessor) FieldID() int32 {
	return xrpamem.ReadValue[int32](m.Accessor, CollectionEventHeaderSize)
}

func (m MessageEventAccessor) SetFieldID(v int32) {
	xrpamem.WriteValue(m.Accessor, v, CollectionEventHeaderSize)
}

func (m MessageEventAccessor) Data() xrpamem.Accessor {
	return m.Slice(MessageEventHeaderSize, -1)
}
