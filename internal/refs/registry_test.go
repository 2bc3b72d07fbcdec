package refs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bonzini/db4sphinx/internal/docmodel"
)

func TestIDRegistry_RegisterAndLookup(t *testing.T) {
	reg := NewIDRegistry()
	node := docmodel.NewNode(docmodel.KindSection)

	require.NoError(t, reg.Register("intro", "a.xml", node, 3))

	entry, ok := reg.Lookup("intro")
	require.True(t, ok)
	assert.Equal(t, "a.xml", entry.File)
	assert.Same(t, node, entry.Node)

	_, ok = reg.Lookup("missing")
	assert.False(t, ok)
	assert.Equal(t, 1, reg.Len())
}

func TestIDRegistry_DuplicateKeepsFirst(t *testing.T) {
	reg := NewIDRegistry()
	first := docmodel.NewNode(docmodel.KindSection)
	second := docmodel.NewNode(docmodel.KindSection)

	require.NoError(t, reg.Register("x", "a.xml", first, 1))
	err := reg.Register("x", "b.xml", second, 9)
	require.Error(t, err)

	var dup *DuplicateIDError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "x", dup.ID)
	assert.Equal(t, "a.xml", dup.FirstFile)
	assert.Equal(t, "b.xml", dup.File)
	assert.Equal(t, 9, dup.Line)

	entry, _ := reg.Lookup("x")
	assert.Same(t, first, entry.Node)
}

func TestIDRegistry_MergePreservesOrderAndReportsConflicts(t *testing.T) {
	target := NewIDRegistry()
	require.NoError(t, target.Register("a", "one.xml", docmodel.NewNode(docmodel.KindSection), 1))

	other := NewIDRegistry()
	losing := docmodel.NewNode(docmodel.KindSection)
	require.NoError(t, other.Register("b", "two.xml", docmodel.NewNode(docmodel.KindSection), 2))
	require.NoError(t, other.Register("a", "two.xml", losing, 5))

	var conflicts []Entry
	target.Merge(other, func(e Entry, dup *DuplicateIDError) {
		conflicts = append(conflicts, e)
		assert.Equal(t, "one.xml", dup.FirstFile)
	})

	require.Len(t, conflicts, 1)
	assert.Same(t, losing, conflicts[0].Node)

	var order []string
	target.Each(func(e Entry) { order = append(order, e.ID) })
	assert.Equal(t, []string{"a", "b"}, order)

	kept, _ := target.Lookup("a")
	assert.Equal(t, "one.xml", kept.File)
}

func TestIDRegistry_MergeNil(t *testing.T) {
	reg := NewIDRegistry()
	assert.NotPanics(t, func() { reg.Merge(nil, nil) })
}

func TestXrefQueue_DrainOnce(t *testing.T) {
	q := NewXrefQueue()
	q.Add(Pending{TargetID: "a", File: "one.xml"})
	q.Add(Pending{TargetID: "b", File: "two.xml"})
	assert.Equal(t, 2, q.Len())

	items := q.Drain()
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].TargetID)
	assert.Equal(t, "b", items[1].TargetID)

	assert.Nil(t, q.Drain())
	assert.Panics(t, func() { q.Add(Pending{TargetID: "late"}) })
}
