package reconciler

import "github.com/xrpa-io/xrpa-go/xrpatypes"

// IndexedBinding extends CollectionIndex with bookkeeping for binding
// locally-owned objects to remotely-owned ones that share an index key, such
// as joining a local rendering component to the remote transform object with
// a matching entity id. bind returns true if it accepted the binding; unbind
// releases one previously accepted.
type IndexedBinding[T Reconciled, K comparable, L comparable] struct {
	*CollectionIndex[T, K]
	bind              func(local L, remote T) bool
	unbind            func(local L, remote T)
	localObjects      map[K][]L
	boundLocalObjects map[xrpatypes.ObjectUuid][]L
}

// NewIndexedBinding creates an indexed binding keyed by keyFunc, wiring bind
// and unbind as the per-pair hook.
func NewIndexedBinding[T Reconciled, K comparable, L comparable](keyFunc func(T) K, bind func(local L, remote T) bool, unbind func(local L, remote T)) *IndexedBinding[T, K, L] {
	return &IndexedBinding[T, K, L]{
		CollectionIndex:   NewCollectionIndex[T, K](keyFunc),
		bind:              bind,
		unbind:            unbind,
		localObjects:      map[K][]L{},
		boundLocalObjects: map[xrpatypes.ObjectUuid][]L{},
	}
}

// AddLocalObject registers local under key, binding it immediately to the
// first already-indexed remote object under that key, if any.
func (b *IndexedBinding[T, K, L]) AddLocalObject(key K, local L) {
	b.localObjects[key] = append(b.localObjects[key], local)

	for _, remote := range b.GetIndexedObjects(key) {
		if b.bind(local, remote) {
			id := remote.GetXrpaID()
			b.boundLocalObjects[id] = append(b.boundLocalObjects[id], local)
		}
		break
	}
}

// RemoveLocalObject unregisters local from key and unbinds it from any
// remote object it was bound to under that key.
func (b *IndexedBinding[T, K, L]) RemoveLocalObject(key K, local L) {
	b.localObjects[key] = removeValue(b.localObjects[key], local)
	if len(b.localObjects[key]) == 0 {
		delete(b.localObjects, key)
	}

	for _, remote := range b.GetIndexedObjects(key) {
		id := remote.GetXrpaID()
		bound := false
		for _, l := range b.boundLocalObjects[id] {
			if l == local {
				bound = true
				break
			}
		}
		if !bound {
			continue
		}
		b.unbind(local, remote)
		b.boundLocalObjects[id] = removeValue(b.boundLocalObjects[id], local)
		if len(b.boundLocalObjects[id]) == 0 {
			delete(b.boundLocalObjects, id)
		}
	}
}

// OnCreate implements Index, additionally binding any local objects already
// registered under the new remote object's key.
func (b *IndexedBinding[T, K, L]) OnCreate(remote T) {
	b.CollectionIndex.OnCreate(remote)

	key := b.keyFunc(remote)
	id := remote.GetXrpaID()
	for _, local := range b.localObjects[key] {
		if b.bind(local, remote) {
			b.boundLocalObjects[id] = append(b.boundLocalObjects[id], local)
		}
	}
}

// OnDelete implements Index, additionally unbinding any local objects bound
// to the departing remote object.
func (b *IndexedBinding[T, K, L]) OnDelete(remote T) {
	id := remote.GetXrpaID()
	b.CollectionIndex.OnDelete(remote)

	for _, local := range b.boundLocalObjects[id] {
		b.unbind(local, remote)
	}
	delete(b.boundLocalObjects, id)
}

func removeValue[L comparable](list []L, v L) []L {
	out := list[:0]
	for _, x := range list {
		if x != v {
			out = append(out, x)
		}
	}
	return out
}

var _ Index[Reconciled] = (*IndexedBinding[Reconciled, int, int])(nil)
