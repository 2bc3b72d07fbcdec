package daemon

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bonzini/db4sphinx/internal/adapter"
	"github.com/bonzini/db4sphinx/internal/assembly"
	"github.com/bonzini/db4sphinx/internal/build"
	"github.com/bonzini/db4sphinx/internal/config"
	"github.com/bonzini/db4sphinx/internal/mapping"
)

func TestIsRelevant(t *testing.T) {
	cases := []struct {
		name  string
		event fsnotify.Event
		want  bool
	}{
		{"xml write", fsnotify.Event{Name: "a.xml", Op: fsnotify.Write}, true},
		{"xml create", fsnotify.Event{Name: "b.xml", Op: fsnotify.Create}, true},
		{"xml remove", fsnotify.Event{Name: "c.xml", Op: fsnotify.Remove}, true},
		{"uppercase extension", fsnotify.Event{Name: "d.XML", Op: fsnotify.Write}, true},
		{"chmod only", fsnotify.Event{Name: "e.xml", Op: fsnotify.Chmod}, false},
		{"editor temp file", fsnotify.Event{Name: "f.xml~", Op: fsnotify.Write}, false},
		{"unrelated file", fsnotify.Event{Name: "notes.txt", Op: fsnotify.Write}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, isRelevant(tc.event))
		})
	}
}

func TestWatcher_DebouncedTrigger(t *testing.T) {
	dir := t.TempDir()
	triggered := make(chan struct{}, 1)

	w, err := NewWatcher(dir, 30*time.Millisecond, func() {
		select {
		case triggered <- struct{}{}:
		default:
		}
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	// Several rapid writes collapse into one trigger.
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "topic.xml"), []byte("<para/>"), 0o644))
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case <-triggered:
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not trigger after xml change")
	}
}

func TestWatcher_IgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()
	triggered := make(chan struct{}, 1)

	w, err := NewWatcher(dir, 20*time.Millisecond, func() {
		select {
		case triggered <- struct{}{}:
		default:
		}
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	select {
	case <-triggered:
		t.Fatal("trigger fired for non-xml file")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestService_ResolveAll(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.xml"),
		[]byte(`<chapter id="a"><title>A</title></chapter>`), 0o644))
	manifest := filepath.Join(dir, "book.xml")
	require.NoError(t, os.WriteFile(manifest,
		[]byte(`<assembly><module href="a.xml"/></assembly>`), 0o644))

	cfg := &config.Config{BaseDir: dir, Assemblies: []string{manifest}}
	ad := adapter.New(assembly.NewResolver(dir, build.New(mapping.DocBook())))
	svc := NewService(cfg, ad, nil, nil)

	svc.resolveAll(context.Background())

	runs := ad.Runs()
	require.Len(t, runs, 1)
	assert.Equal(t, manifest, runs[0].ManifestPath)
	assert.Equal(t, "A", ad.TocTree(manifest).Children[0].Title)
}
