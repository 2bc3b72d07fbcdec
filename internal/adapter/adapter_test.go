package adapter

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bonzini/db4sphinx/internal/assembly"
	"github.com/bonzini/db4sphinx/internal/build"
	"github.com/bonzini/db4sphinx/internal/diag"
	"github.com/bonzini/db4sphinx/internal/mapping"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestAdapter(dir string) *Adapter {
	resolver := assembly.NewResolver(dir, build.New(mapping.DocBook()))
	return New(resolver)
}

func TestResolveAssembly_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.xml",
		`<chapter id="ch-a"><title>A</title><para><xref linkend="ch-b"/></para></chapter>`)
	writeFile(t, dir, "b.xml",
		`<chapter id="ch-b"><title>B</title><para><xref linkend="nowhere"/></para></chapter>`)
	manifest := writeFile(t, dir, "book.xml", `
<assembly id="guide">
  <module href="a.xml"/>
  <module href="b.xml"/>
</assembly>`)

	a := newTestAdapter(dir)
	run, err := a.ResolveAssembly(context.Background(), manifest)
	require.NoError(t, err)

	assert.NotEmpty(t, run.ID)
	assert.Equal(t, 1, run.Resolved)
	assert.Equal(t, 1, run.Unresolved)

	toc := a.TocTree(manifest)
	require.NotNil(t, toc)
	assert.Equal(t, "guide", toc.Title)

	doc := a.Document(filepath.Join(dir, "a.xml"))
	require.NotNil(t, doc)
	assert.Equal(t, "A", doc.Title())
	assert.Nil(t, a.Document(filepath.Join(dir, "other.xml")))

	ref, ok := a.ResolveXref("ch-b")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "b.xml"), ref.File)

	_, ok = a.ResolveXref("nowhere")
	assert.False(t, ok)

	diags := a.Diagnostics()
	require.Len(t, diags, 1)
	assert.Equal(t, diag.CodeUnresolvedReference, diags[0].Code)
}

func TestResolveAssembly_ReResolutionReplacesRun(t *testing.T) {
	dir := t.TempDir()
	topic := writeFile(t, dir, "a.xml", `<chapter id="a"><title>Old</title></chapter>`)
	manifest := writeFile(t, dir, "book.xml", `<assembly><module href="a.xml"/></assembly>`)

	a := newTestAdapter(dir)
	first, err := a.ResolveAssembly(context.Background(), manifest)
	require.NoError(t, err)
	assert.Equal(t, "Old", a.TocTree(manifest).Children[0].Title)

	require.NoError(t, os.WriteFile(topic,
		[]byte(`<chapter id="a"><title>New</title></chapter>`), 0o644))

	second, err := a.ResolveAssembly(context.Background(), manifest)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	assert.Equal(t, "New", a.TocTree(manifest).Children[0].Title)
	require.Len(t, a.Runs(), 1)
	assert.Same(t, second, a.Runs()[0])
}

func TestResolveAssembly_FatalErrorStillRecorded(t *testing.T) {
	dir := t.TempDir()
	manifest := writeFile(t, dir, "bad.xml", `<notassembly/>`)

	a := newTestAdapter(dir)
	run, err := a.ResolveAssembly(context.Background(), manifest)
	require.Error(t, err)
	require.NotNil(t, run.Result)

	diags := a.Diagnostics()
	require.NotEmpty(t, diags)
	assert.Equal(t, diag.CodeMalformedManifest, diags[0].Code)
}

func TestResolveXref_AcrossAssemblies(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "one.xml", `<chapter id="ch-one"><title>One</title></chapter>`)
	writeFile(t, dir, "two.xml", `<chapter id="ch-two"><title>Two</title></chapter>`)
	m1 := writeFile(t, dir, "m1.xml", `<assembly><module href="one.xml"/></assembly>`)
	m2 := writeFile(t, dir, "m2.xml", `<assembly><module href="two.xml"/></assembly>`)

	a := newTestAdapter(dir)
	_, err := a.ResolveAssembly(context.Background(), m1)
	require.NoError(t, err)
	_, err = a.ResolveAssembly(context.Background(), m2)
	require.NoError(t, err)

	ref, ok := a.ResolveXref("ch-two")
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "two.xml"), ref.File)
	assert.Len(t, a.Runs(), 2)
}
