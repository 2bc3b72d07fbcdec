package assembly

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bonzini/db4sphinx/internal/build"
	"github.com/bonzini/db4sphinx/internal/diag"
	"github.com/bonzini/db4sphinx/internal/docmodel"
	"github.com/bonzini/db4sphinx/internal/mapping"
	"github.com/bonzini/db4sphinx/internal/xref"
)

func newTestResolver(dir string, opts ...Option) *Resolver {
	return NewResolver(dir, build.New(mapping.DocBook()), opts...)
}

func TestResolve_SimpleAssembly(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "alpha.xml",
		`<chapter id="ch-alpha"><title>Alpha</title><para>See <xref linkend="ch-gamma"/>.</para></chapter>`)
	writeFile(t, dir, "gamma.xml",
		`<chapter id="ch-gamma"><title>Gamma</title><para>g</para></chapter>`)
	manifest := writeFile(t, dir, "book.xml", `
<assembly id="guide">
  <module href="alpha.xml"/>
  <module href="gamma.xml"/>
</assembly>`)

	res, err := newTestResolver(dir).Resolve(context.Background(), manifest)
	require.NoError(t, err)

	require.Len(t, res.Documents, 2)
	assert.Equal(t, filepath.Join(dir, "alpha.xml"), res.Documents[0].Path)
	assert.Equal(t, "Alpha", res.Documents[0].Title())
	assert.False(t, res.Diags.HasErrors())

	assert.Equal(t, "guide", res.TOC.Title)
	require.Len(t, res.TOC.Children, 2)
	assert.Equal(t, "Alpha", res.TOC.Children[0].Title)
	assert.Equal(t, "Gamma", res.TOC.Children[1].Title)

	// The forward reference was only queued during the build phase.
	assert.Equal(t, 1, res.Queue.Len())
	resolved, unresolved := xref.Resolve(res.Queue, res.Registry, res.Diags)
	assert.Equal(t, 1, resolved)
	assert.Equal(t, 0, unresolved)

	var ref *docmodel.Node
	res.Documents[0].Root.Walk(func(n *docmodel.Node) bool {
		if n.Kind == docmodel.KindCrossReference {
			ref = n
		}
		return true
	})
	require.NotNil(t, ref)
	require.NotNil(t, ref.Target)
	assert.Equal(t, filepath.Join(dir, "gamma.xml"), ref.Target.File)
	assert.Equal(t, "ch-gamma", ref.Target.Node.ID)
}

func TestResolve_MissingTopicDoesNotFailSiblings(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.xml", `<chapter id="a"><title>A</title></chapter>`)
	writeFile(t, dir, "c.xml", `<chapter id="c"><title>C</title></chapter>`)
	manifest := writeFile(t, dir, "book.xml", `
<assembly>
  <module href="a.xml"/>
  <module href="b.xml"/>
  <module href="c.xml"/>
</assembly>`)

	res, err := newTestResolver(dir).Resolve(context.Background(), manifest)
	require.NoError(t, err)

	require.Len(t, res.Documents, 3)
	assert.False(t, res.Documents[0].Broken)
	assert.True(t, res.Documents[1].Broken)
	assert.False(t, res.Documents[2].Broken)

	assert.Equal(t, 1, res.Diags.Count(diag.CodeMissingTopicFile))

	require.Len(t, res.TOC.Children, 3)
	assert.Equal(t, "A", res.TOC.Children[0].Title)
	assert.True(t, res.TOC.Children[1].Broken)
	assert.Equal(t, "", res.TOC.Children[1].Path)
	assert.Equal(t, "b", res.TOC.Children[1].Title)
	assert.Equal(t, "C", res.TOC.Children[2].Title)
}

func TestResolve_MalformedTopicBecomesPlaceholder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "ok.xml", `<chapter id="ok"><title>OK</title></chapter>`)
	writeFile(t, dir, "broken.xml", `<chapter><title>Un`)
	manifest := writeFile(t, dir, "book.xml", `
<assembly>
  <module href="ok.xml"/>
  <module href="broken.xml"/>
</assembly>`)

	res, err := newTestResolver(dir).Resolve(context.Background(), manifest)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Diags.Count(diag.CodeMalformedXML))
	broken := res.Document(filepath.Join(dir, "broken.xml"))
	require.NotNil(t, broken)
	assert.True(t, broken.Broken)
	assert.Equal(t, docmodel.KindBrokenTopic, broken.Root.Children[0].Kind)
}

func TestResolve_DuplicateIDAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "first.xml", `<chapter id="shared"><title>First</title></chapter>`)
	writeFile(t, dir, "second.xml", `<chapter id="shared"><title>Second</title></chapter>`)
	manifest := writeFile(t, dir, "book.xml", `
<assembly>
  <module href="first.xml"/>
  <module href="second.xml"/>
</assembly>`)

	res, err := newTestResolver(dir).Resolve(context.Background(), manifest)
	require.NoError(t, err)

	// Manifest order decides the winner.
	entry, ok := res.Registry.Lookup("shared")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "first.xml"), entry.File)

	assert.Equal(t, 1, res.Diags.Count(diag.CodeDuplicateID))

	loser := res.Document(filepath.Join(dir, "second.xml"))
	sec := loser.Root.Children[0]
	assert.Equal(t, "", sec.ID)
	annotated := false
	sec.Walk(func(n *docmodel.Node) bool {
		if n.Kind == docmodel.KindBrokenTopic {
			annotated = true
		}
		return true
	})
	assert.True(t, annotated)
}

func TestResolve_NestedAssemblySpliced(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "leaf.xml", `<chapter id="leaf"><title>Leaf</title></chapter>`)
	writeFile(t, dir, "inner.xml", `
<assembly id="inner-part">
  <module href="leaf.xml"/>
</assembly>`)
	manifest := writeFile(t, dir, "outer.xml", `
<assembly id="outer">
  <structure href="inner.xml"/>
</assembly>`)

	res, err := newTestResolver(dir).Resolve(context.Background(), manifest)
	require.NoError(t, err)

	require.Len(t, res.TOC.Children, 1)
	part := res.TOC.Children[0]
	assert.Equal(t, "inner-part", part.Title)
	assert.Equal(t, "", part.Path)
	require.Len(t, part.Children, 1)
	assert.Equal(t, "Leaf", part.Children[0].Title)

	require.Len(t, res.Documents, 1)
	assert.Equal(t, filepath.Join(dir, "leaf.xml"), res.Documents[0].Path)
}

func TestResolve_CyclicAssemblies(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "s1.xml", `<assembly id="s1"><structure href="s2.xml"/></assembly>`)
	writeFile(t, dir, "s2.xml", `<assembly id="s2"><structure href="s1.xml"/></assembly>`)

	res, err := newTestResolver(dir).Resolve(context.Background(), filepath.Join(dir, "s1.xml"))
	require.Error(t, err)

	var cyclic *CyclicAssemblyError
	require.True(t, errors.As(err, &cyclic))
	assert.Len(t, cyclic.Chain, 3)

	// The partial result still reports what happened.
	require.NotNil(t, res)
	assert.Equal(t, 1, res.Diags.Count(diag.CodeCyclicAssembly))
}

func TestResolve_MalformedManifestIsFatal(t *testing.T) {
	dir := t.TempDir()
	manifest := writeFile(t, dir, "book.xml", `<assembly><module href=`)

	res, err := newTestResolver(dir).Resolve(context.Background(), manifest)
	require.Error(t, err)

	var malformed *MalformedManifestError
	assert.True(t, errors.As(err, &malformed))
	assert.Equal(t, 1, res.Diags.Count(diag.CodeMalformedManifest))
}

func TestResolve_SharedTopicBuiltOnce(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "common.xml", `<chapter id="common"><title>Common</title></chapter>`)
	manifest := writeFile(t, dir, "book.xml", `
<assembly>
  <module href="common.xml"/>
  <structure>
    <title>Again</title>
    <module href="common.xml"/>
  </structure>
</assembly>`)

	res, err := newTestResolver(dir).Resolve(context.Background(), manifest)
	require.NoError(t, err)

	// One build, two TOC entries.
	assert.Len(t, res.Documents, 1)
	assert.Equal(t, 0, res.Diags.Count(diag.CodeDuplicateID))
	require.Len(t, res.TOC.Children, 2)
	assert.Equal(t, "Common", res.TOC.Children[0].Title)
	assert.Equal(t, "Common", res.TOC.Children[1].Children[0].Title)
}

func TestResolve_CancelledContext(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.xml", `<chapter id="a"><title>A</title></chapter>`)
	manifest := writeFile(t, dir, "book.xml", `<assembly><module href="a.xml"/></assembly>`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestResolver(dir).Resolve(ctx, manifest)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestResolve_ConcurrencyOption(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a", "b", "c", "d"} {
		writeFile(t, dir, name+".xml",
			`<chapter id="ch-`+name+`"><title>`+name+`</title></chapter>`)
	}
	manifest := writeFile(t, dir, "book.xml", `
<assembly>
  <module href="a.xml"/>
  <module href="b.xml"/>
  <module href="c.xml"/>
  <module href="d.xml"/>
</assembly>`)

	res, err := newTestResolver(dir, WithConcurrency(2)).Resolve(context.Background(), manifest)
	require.NoError(t, err)

	// Results come back in manifest order regardless of fan-out.
	require.Len(t, res.Documents, 4)
	for i, name := range []string{"a", "b", "c", "d"} {
		assert.Equal(t, filepath.Join(dir, name+".xml"), res.Documents[i].Path)
	}
	assert.Equal(t, 4, res.Registry.Len())
}
