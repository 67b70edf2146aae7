package workspace

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"berth/internal/api"
	"berth/internal/events"
)

func TestWatcher_PublishesCatalogChanges(t *testing.T) {
	root := t.TempDir()
	reg := NewRegistry(Options{Root: root})

	bus := events.NewBus()
	defer bus.Close()

	got := make(chan api.CatalogChanged, 10)
	events.Subscribe(bus, events.CatalogTopic, events.SubscriberFunc[api.CatalogChanged](
		func(_ context.Context, ev api.CatalogChanged) { got <- ev }))

	w := NewWatcher(reg, bus, 20*time.Millisecond)
	require.NoError(t, w.Start(context.Background()))
	defer func() { _ = w.Stop() }()

	require.NoError(t, os.Mkdir(filepath.Join(root, "svcA"), 0755))
	require.NoError(t, os.Mkdir(filepath.Join(root, "svcB"), 0755))

	select {
	case ev := <-got:
		assert.Contains(t, ev.Reason, "svcA")
	case <-time.After(2 * time.Second):
		t.Fatal("no catalog change published")
	}
}

func TestWatcher_IgnoresFilteredEntries(t *testing.T) {
	root := t.TempDir()
	reg := NewRegistry(Options{Root: root})

	bus := events.NewBus()
	defer bus.Close()

	got := make(chan api.CatalogChanged, 10)
	events.Subscribe(bus, events.CatalogTopic, events.SubscriberFunc[api.CatalogChanged](
		func(_ context.Context, ev api.CatalogChanged) { got <- ev }))

	w := NewWatcher(reg, bus, 10*time.Millisecond)
	require.NoError(t, w.Start(context.Background()))
	defer func() { _ = w.Stop() }()

	require.NoError(t, os.Mkdir(filepath.Join(root, ".hidden"), 0755))
	require.NoError(t, os.Mkdir(filepath.Join(root, "bin"), 0755))
	require.NoError(t, os.Mkdir(filepath.Join(root, "svc"), 0755))
	require.NoError(t, os.Mkdir(filepath.Join(root, "svc", "nested"), 0755))

	select {
	case ev := <-got:
		assert.Equal(t, "workspace changed: svc", ev.Reason)
	case <-time.After(2 * time.Second):
		t.Fatal("no catalog change published")
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	reg := NewRegistry(Options{Root: t.TempDir()})
	bus := events.NewBus()
	defer bus.Close()

	w := NewWatcher(reg, bus, 0)
	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
}

func TestWatcher_IgnoredNamesAreNotAnnounced(t *testing.T) {
	root := t.TempDir()
	reg := NewRegistry(Options{Root: root})

	bus := events.NewBus()
	defer bus.Close()

	got := make(chan api.CatalogChanged, 10)
	events.Subscribe(bus, events.CatalogTopic, events.SubscriberFunc[api.CatalogChanged](
		func(_ context.Context, ev api.CatalogChanged) { got <- ev }))

	w := NewWatcher(reg, bus, 10*time.Millisecond)
	require.NoError(t, w.Start(context.Background()))
	defer func() { _ = w.Stop() }()

	w.Ignore("imported")
	require.NoError(t, os.Mkdir(filepath.Join(root, "imported"), 0755))
	require.NoError(t, os.Remove(filepath.Join(root, "imported")))
	require.NoError(t, os.Mkdir(filepath.Join(root, "imported"), 0755))

	select {
	case ev := <-got:
		t.Fatalf("unexpected catalog change: %s", ev.Reason)
	case <-time.After(200 * time.Millisecond):
	}

	require.NoError(t, os.Mkdir(filepath.Join(root, "manual"), 0755))
	select {
	case ev := <-got:
		assert.Equal(t, "workspace changed: manual", ev.Reason)
	case <-time.After(2 * time.Second):
		t.Fatal("no catalog change published")
	}
}
