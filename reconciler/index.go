package reconciler

import "github.com/xrpa-io/xrpa-go/xrpatypes"

// CollectionIndex maintains a key->objects lookup over a collection,
// recomputing each object's key from keyFunc whenever it is notified of a
// create, update, or delete. Unlike the generated C++ index, which is handed
// the index value directly by per-field accessor code, this keeps the key
// function itself so the Index interface stays uniform across fields.
type CollectionIndex[T Reconciled, K comparable] struct {
	keyFunc func(T) K
	byKey   map[K][]T
	keyOf   map[xrpatypes.ObjectUuid]K
}

// NewCollectionIndex creates an index keyed by keyFunc.
func NewCollectionIndex[T Reconciled, K comparable](keyFunc func(T) K) *CollectionIndex[T, K] {
	return &CollectionIndex[T, K]{
		keyFunc: keyFunc,
		byKey:   map[K][]T{},
		keyOf:   map[xrpatypes.ObjectUuid]K{},
	}
}

// GetIndexedObjects returns the objects currently keyed under key. The
// returned slice must not be mutated by the caller.
func (idx *CollectionIndex[T, K]) GetIndexedObjects(key K) []T {
	return idx.byKey[key]
}

// OnCreate implements Index.
func (idx *CollectionIndex[T, K]) OnCreate(obj T) {
	k := idx.keyFunc(obj)
	idx.keyOf[obj.GetXrpaID()] = k
	idx.byKey[k] = append(idx.byKey[k], obj)
}

// OnUpdate implements Index. A no-op if the object's key has not changed.
func (idx *CollectionIndex[T, K]) OnUpdate(obj T) {
	id := obj.GetXrpaID()
	newKey := idx.keyFunc(obj)
	oldKey, had := idx.keyOf[id]
	if had && oldKey == newKey {
		return
	}
	if had {
		idx.removeFromKey(oldKey, id)
	}
	idx.keyOf[id] = newKey
	idx.byKey[newKey] = append(idx.byKey[newKey], obj)
}

// OnDelete implements Index.
func (idx *CollectionIndex[T, K]) OnDelete(obj T) {
	id := obj.GetXrpaID()
	if k, ok := idx.keyOf[id]; ok {
		idx.removeFromKey(k, id)
		delete(idx.keyOf, id)
	}
}

func (idx *CollectionIndex[T, K]) removeFromKey(k K, id xrpatypes.ObjectUuid) {
	list := idx.byKey[k]
	out := list[:0]
	for _, o := range list {
		if o.GetXrpaID() != id {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		delete(idx.byKey, k)
	} else {
		idx.byKey[k] = out
	}
}

var _ Index[Reconciled] = (*CollectionIndex[Reconciled, int])(nil)
