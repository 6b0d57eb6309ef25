package reconciler_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xrpa-io/xrpa-go/reconciler"
	"github.com/xrpa-io/xrpa-go/xrpatypes"
)

type taggedObj struct {
	id  xrpatypes.ObjectUuid
	tag string
}

func (o *taggedObj) GetXrpaID() xrpatypes.ObjectUuid { return o.id }

func TestCollectionIndexCreateLookupDelete(t *testing.T) {
	idx := reconciler.NewCollectionIndex[*taggedObj, string](func(o *taggedObj) string { return o.tag })

	a := &taggedObj{id: xrpatypes.NewObjectUuid(0, 1), tag: "red"}
	b := &taggedObj{id: xrpatypes.NewObjectUuid(0, 2), tag: "red"}
	c := &taggedObj{id: xrpatypes.NewObjectUuid(0, 3), tag: "blue"}

	idx.OnCreate(a)
	idx.OnCreate(b)
	idx.OnCreate(c)

	require.ElementsMatch(t, []*taggedObj{a, b}, idx.GetIndexedObjects("red"))
	require.Equal(t, []*taggedObj{c}, idx.GetIndexedObjects("blue"))

	idx.OnDelete(a)
	require.Equal(t, []*taggedObj{b}, idx.GetIndexedObjects("red"))

	idx.OnDelete(b)
	require.Empty(t, idx.GetIndexedObjects("red"))
}

func TestCollectionIndexOnUpdateRekeys(t *testing.T) {
	idx := reconciler.NewCollectionIndex[*taggedObj, string](func(o *taggedObj) string { return o.tag })

	a := &taggedObj{id: xrpatypes.NewObjectUuid(0, 1), tag: "red"}
	idx.OnCreate(a)
	require.Len(t, idx.GetIndexedObjects("red"), 1)

	a.tag = "blue"
	idx.OnUpdate(a)

	require.Empty(t, idx.GetIndexedObjects("red"))
	require.Equal(t, []*taggedObj{a}, idx.GetIndexedObjects("blue"))
}

type boundLocal struct {
	name  string
	bound *taggedObj
}

func TestIndexedBindingBindsExistingAndFutureRemotes(t *testing.T) {
	binding := reconciler.NewIndexedBinding[*taggedObj, string, *boundLocal](
		func(o *taggedObj) string { return o.tag },
		func(local *boundLocal, remote *taggedObj) bool {
			local.bound = remote
			return true
		},
		func(local *boundLocal, remote *taggedObj) {
			local.bound = nil
		},
	)

	// remote arrives first, then a local object binds to it
	remote := &taggedObj{id: xrpatypes.NewObjectUuid(0, 1), tag: "left-hand"}
	binding.OnCreate(remote)

	local := &boundLocal{name: "hand-renderer"}
	binding.AddLocalObject("left-hand", local)
	require.Equal(t, remote, local.bound)

	// a second local object binds immediately on registration too
	local2 := &boundLocal{name: "hand-audio"}
	binding.AddLocalObject("left-hand", local2)
	require.Equal(t, remote, local2.bound)

	binding.OnDelete(remote)
	require.Nil(t, local.bound)
	require.Nil(t, local2.bound)
}

func TestIndexedBindingBindsOnLateRemoteArrival(t *testing.T) {
	binding := reconciler.NewIndexedBinding[*taggedObj, string, *boundLocal](
		func(o *taggedObj) string { return o.tag },
		func(local *boundLocal, remote *taggedObj) bool {
			local.bound = remote
			return true
		},
		func(local *boundLocal, remote *taggedObj) {
			local.bound = nil
		},
	)

	local := &boundLocal{name: "hand-renderer"}
	binding.AddLocalObject("right-hand", local)
	require.Nil(t, local.bound)

	remote := &taggedObj{id: xrpatypes.NewObjectUuid(0, 2), tag: "right-hand"}
	binding.OnCreate(remote)
	require.Equal(t, remote, local.bound)

	binding.RemoveLocalObject("right-hand", local)
	require.Nil(t, local.bound)
}
