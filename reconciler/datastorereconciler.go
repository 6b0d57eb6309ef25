package reconciler

import (
	"time"

	"go.uber.org/zap"

	"github.com/xrpa-io/xrpa-go/transport"
	"github.com/xrpa-io/xrpa-go/xrpamem"
	"github.com/xrpa-io/xrpa-go/xrpatypes"
)

const defaultMessageLifetime = 5 * time.Second

// outboundMessage holds a fully pre-built Message change event (header and
// payload already assembled in the message arena) awaiting flush by
// WritePrefilledChangeEvent, which only needs to fix up the timestamp.
type outboundMessage struct {
	objectID xrpatypes.ObjectUuid
	event    xrpamem.Accessor
}

type pendingWrite struct {
	objectID     xrpatypes.ObjectUuid
	collectionID int32
}

// Config tunes a DataStoreReconciler beyond its transport pair.
type Config struct {
	// MessageArenaBytes bounds how many bytes of pre-built outbound message
	// events (header plus payload) can be buffered between outbound ticks.
	// SendMessage panics if this is exceeded, matching the C++ runtime's
	// assert.
	MessageArenaBytes int32

	// MessageLifetime caps how old a message can be (relative to the
	// receiving tick) before it is silently dropped instead of delivered.
	// Defaults to 5 seconds.
	MessageLifetime time.Duration
}

// DataStoreReconciler owns the inbound and outbound transport streams for
// one dataset and drives every registered collection's change reconciliation
// on each tick.
type DataStoreReconciler struct {
	inbound  transport.Stream
	outbound transport.Stream
	log      *zap.SugaredLogger

	messageArena    []byte
	messageArenaPos int32
	messageLifetime time.Duration
	outboundMsgs    []outboundMessage

	collections map[int32]Collection

	pendingWrites               []pendingWrite
	pendingOutboundFullUpdate   bool
	requestInboundFullUpdate    bool
	waitingForInboundFullUpdate bool

	inboundIterator *transport.StreamIterator
}

// New creates a reconciler over the given inbound/outbound transport
// streams. Either may be nil for a write-only or read-only dataset.
func New(inbound, outbound transport.Stream, cfg Config, log *zap.SugaredLogger) *DataStoreReconciler {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	lifetime := cfg.MessageLifetime
	if lifetime == 0 {
		lifetime = defaultMessageLifetime
	}

	r := &DataStoreReconciler{
		inbound:         inbound,
		outbound:        outbound,
		log:             log,
		messageArena:    make([]byte, cfg.MessageArenaBytes),
		messageLifetime: lifetime,
		collections:     map[int32]Collection{},
	}
	if inbound != nil {
		r.inboundIterator = inbound.CreateIterator()
	}
	return r
}

func (r *DataStoreReconciler) registerCollection(c Collection) {
	r.collections[c.CollectionID()] = c
}

// NotifyObjectNeedsWrite queues id for its next outbound write, deduplicating
// against the most recently queued entry the way the C++ runtime does (a
// burst of writes to the same object between ticks collapses to one).
func (r *DataStoreReconciler) NotifyObjectNeedsWrite(id xrpatypes.ObjectUuid, collectionID int32) {
	if n := len(r.pendingWrites); n > 0 {
		last := r.pendingWrites[n-1]
		if last.collectionID == collectionID && last.objectID == id {
			return
		}
	}
	r.pendingWrites = append(r.pendingWrites, pendingWrite{objectID: id, collectionID: collectionID})
}

// SendMessage reserves a full Message change event (header plus numBytes of
// payload) in the message arena, addressed to id, and pre-fills its header
// fields immediately so nothing but a timestamp fixup remains at flush time.
// The returned accessor is the payload window only, valid until the next
// outbound flush.
func (r *DataStoreReconciler) SendMessage(id xrpatypes.ObjectUuid, collectionID, fieldID, numBytes int32) xrpamem.Accessor {
	eventSize := transport.MessageEventHeaderSize + numBytes
	if r.messageArenaPos+eventSize > int32(len(r.messageArena)) {
		panic("reconciler: message arena exhausted, increase Config.MessageArenaBytes")
	}
	event := xrpamem.NewAccessor(r.messageArena, r.messageArenaPos, eventSize)
	r.messageArenaPos += eventSize

	ev := transport.NewMessageEventAccessor(event)
	ev.SetChangeType(transport.ChangeMessage)
	ev.SetObjectID(id)
	ev.SetCollectionID(collectionID)
	ev.SetFieldID(fieldID)

	r.outboundMsgs = append(r.outboundMsgs, outboundMessage{objectID: id, event: event})
	return ev.Data()
}

// TickInbound checks for and, if present, reconciles new inbound change
// events. Non-blocking: it only attempts the lock if the lock-free iterator
// check says there is something new to read.
func (r *DataStoreReconciler) TickInbound() {
	if r.inbound == nil {
		return
	}
	if !r.inboundIterator.NeedsProcessing() {
		return
	}
	if ok := r.inbound.Transact(transport.DefaultTransactTimeout, r.reconcileInboundChanges); !ok {
		r.log.Warnw("tick_inbound: timed out acquiring transport lock")
	}
}

// TickOutbound ticks every registered collection, then flushes any pending
// writes, full-update markers, and messages accumulated since the last tick.
func (r *DataStoreReconciler) TickOutbound() {
	if r.outbound == nil {
		return
	}

	for _, c := range r.collections {
		c.tick()
	}

	hasMessages := len(r.outboundMsgs) > 0
	hasChanges := r.requestInboundFullUpdate || r.pendingOutboundFullUpdate || len(r.pendingWrites) > 0
	if !hasChanges && !hasMessages {
		return
	}

	if ok := r.outbound.Transact(transport.DefaultTransactTimeout, r.reconcileOutboundChanges); !ok {
		r.log.Warnw("tick_outbound: timed out acquiring transport lock")
	}
}

// Shutdown emits a Shutdown change event to the outbound stream and detaches
// both transports; further ticks become no-ops.
func (r *DataStoreReconciler) Shutdown() {
	if r.outbound != nil {
		r.outbound.Transact(transport.DefaultTransactTimeout, func(sa *transport.StreamAccessor) {
			sa.WriteChangeEvent(transport.ChangeShutdown, transport.ChangeEventHeaderSize, 0, 0)
		})
	}
	r.inbound = nil
	r.outbound = nil
}

func (r *DataStoreReconciler) reconcileOutboundChanges(sa *transport.StreamAccessor) {
	if r.requestInboundFullUpdate {
		sa.WriteChangeEvent(transport.ChangeRequestFullUpdate, transport.ChangeEventHeaderSize, 0, 0)
		r.requestInboundFullUpdate = false
	}

	if r.pendingOutboundFullUpdate {
		sa.WriteChangeEvent(transport.ChangeFullUpdate, transport.ChangeEventHeaderSize, 0, 0)
		r.pendingOutboundFullUpdate = false
	}

	for _, pw := range r.pendingWrites {
		if c, ok := r.collections[pw.collectionID]; ok {
			c.writeChanges(sa, pw.objectID)
		}
	}
	r.pendingWrites = r.pendingWrites[:0]

	for _, msg := range r.outboundMsgs {
		if sa.WritePrefilledChangeEvent(msg.event).IsNull() {
			r.log.Warnw("dropping outbound message, changelog full", "object_id", msg.objectID.String())
		}
	}
	r.outboundMsgs = r.outboundMsgs[:0]
	r.messageArenaPos = 0
}

// sendFullUpdate re-queues every locally-owned object across every
// collection for a write, ordered by creation timestamp so the peer
// reconstructs the dataset in the order its objects originally appeared.
func (r *DataStoreReconciler) sendFullUpdate() {
	r.pendingOutboundFullUpdate = true

	var entries []FullUpdateEntry
	for _, c := range r.collections {
		c.prepFullUpdate(&entries)
	}
	sortFullUpdateEntries(entries)

	r.pendingWrites = r.pendingWrites[:0]
	for _, e := range entries {
		r.pendingWrites = append(r.pendingWrites, pendingWrite{objectID: e.ObjectID, collectionID: e.CollectionID})
	}
}

func sortFullUpdateEntries(entries []FullUpdateEntry) {
	// insertion sort: full updates are rare and the entry count is bounded
	// by dataset size, so this favors simplicity over asymptotic niceties.
	for i := 1; i < len(entries); i++ {
		for j := i; j > 0 && entries[j].Timestamp < entries[j-1].Timestamp; j-- {
			entries[j], entries[j-1] = entries[j-1], entries[j]
		}
	}
}

func (r *DataStoreReconciler) reconcileInboundChanges(sa *transport.StreamAccessor) {
	changelog := sa.Changelog()

	if r.inboundIterator.HasMissedEntries(changelog) {
		// The changelog evicted entries we had not read yet: ask the peer
		// for a full resync and ignore everything until it arrives.
		r.requestInboundFullUpdate = true
		r.waitingForInboundFullUpdate = true
		return
	}

	nowUs := sa.BaseTimestamp() + uint64(sa.CurrentTimestampMs())*1000
	oldestMessageTimestampUs := nowUs - uint64(r.messageLifetime.Microseconds())
	inFullUpdate := false
	reconciledIDs := map[xrpatypes.ObjectUuid]struct{}{}

	for {
		entryMem := r.inboundIterator.GetNextEntry(changelog)
		if entryMem.IsNull() {
			break
		}

		changeType := transport.NewChangeEventAccessor(entryMem).ChangeType()

		if changeType == transport.ChangeRequestFullUpdate {
			r.sendFullUpdate()
			continue
		}

		if r.waitingForInboundFullUpdate && changeType != transport.ChangeFullUpdate {
			continue
		}

		switch changeType {
		case transport.ChangeFullUpdate:
			r.requestInboundFullUpdate = false
			r.waitingForInboundFullUpdate = false
			inFullUpdate = true

		case transport.ChangeShutdown:
			for _, c := range r.collections {
				c.processShutdown()
			}

		case transport.ChangeCreateObject:
			ev := transport.NewCollectionEventAccessor(entryMem)
			id := ev.ObjectID()
			if c, ok := r.collections[ev.CollectionID()]; ok {
				if inFullUpdate {
					c.processUpsert(id, ev.Data())
					reconciledIDs[id] = struct{}{}
				} else {
					c.processCreate(id, ev.Data())
				}
			}

		case transport.ChangeUpdateObject:
			ev := transport.NewUpdateEventAccessor(entryMem)
			if c, ok := r.collections[ev.CollectionID()]; ok {
				c.processUpdate(ev.ObjectID(), ev.Data(), ev.FieldsChanged())
			}

		case transport.ChangeDeleteObject:
			ev := transport.NewCollectionEventAccessor(entryMem)
			if c, ok := r.collections[ev.CollectionID()]; ok {
				c.processDelete(ev.ObjectID())
			}

		case transport.ChangeMessage:
			ev := transport.NewMessageEventAccessor(entryMem)
			timestampUs := sa.BaseTimestamp() + uint64(ev.TimestampOffsetMs())*1000
			if timestampUs >= oldestMessageTimestampUs {
				if c, ok := r.collections[ev.CollectionID()]; ok {
					c.processMessage(ev.ObjectID(), ev.FieldID(), timestampUs, ev.Data())
				}
			}
		}
	}

	if inFullUpdate {
		for _, c := range r.collections {
			c.processFullReconcile(reconciledIDs)
		}
	}
}
