package watcher_test

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Hara602/downloadSentry/internal/model"
	"github.com/Hara602/downloadSentry/internal/watcher"
)

type collector struct {
	mu     sync.Mutex
	events []model.DetectionEvent
}

func (c *collector) handle(ev model.DetectionEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
}

func (c *collector) paths() []string {
	events := c.snapshot()
	out := make([]string, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.SourcePath)
	}
	return out
}

func (c *collector) snapshot() []model.DetectionEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.DetectionEvent(nil), c.events...)
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestWatcher_DetectsEachArrival(t *testing.T) {
	dir := t.TempDir()
	c := &collector{}
	w := watcher.New(c.handle, zaptest.NewLogger(t))
	defer w.Close()

	h, err := w.Start(dir)
	require.NoError(t, err)
	assert.Equal(t, dir, h.Root())

	const n = 5
	want := make([]string, 0, n)
	for i := 0; i < n; i++ {
		p := filepath.Join(dir, "file"+string(rune('a'+i))+".bin")
		touch(t, p)
		want = append(want, p)
	}

	require.Eventually(t, func() bool { return c.count() == n }, 2*time.Second, 10*time.Millisecond)
	// 写入只产生 Write, 不应重复计数
	time.Sleep(100 * time.Millisecond)
	assert.ElementsMatch(t, want, c.paths())

	for _, ev := range c.snapshot() {
		assert.NotEmpty(t, ev.ID)
		assert.False(t, ev.Timestamp.IsZero())
	}
}

func TestWatcher_DetectsMoveIn(t *testing.T) {
	dir := t.TempDir()
	outside := filepath.Join(t.TempDir(), "report.pdf")
	touch(t, outside)

	c := &collector{}
	w := watcher.New(c.handle, zaptest.NewLogger(t))
	defer w.Close()
	_, err := w.Start(dir)
	require.NoError(t, err)

	require.NoError(t, os.Rename(outside, filepath.Join(dir, "report.pdf")))

	require.Eventually(t, func() bool { return c.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{filepath.Join(dir, "report.pdf")}, c.paths())
}

func TestWatcher_NonRecursive(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))

	c := &collector{}
	w := watcher.New(c.handle, zaptest.NewLogger(t))
	defer w.Close()
	_, err := w.Start(dir)
	require.NoError(t, err)

	touch(t, filepath.Join(sub, "nested.txt"))
	touch(t, filepath.Join(dir, "top.txt"))

	require.Eventually(t, func() bool { return c.count() >= 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, []string{filepath.Join(dir, "top.txt")}, c.paths())
}

func TestWatcher_CreatesMissingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "Downloads")

	w := watcher.New(func(model.DetectionEvent) {}, zaptest.NewLogger(t))
	defer w.Close()

	_, err := w.Start(dir)
	require.NoError(t, err)
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestWatcher_DirectoryUnavailable(t *testing.T) {
	file := filepath.Join(t.TempDir(), "not-a-dir")
	touch(t, file)

	w := watcher.New(func(model.DetectionEvent) {}, zaptest.NewLogger(t))
	defer w.Close()

	_, err := w.Start(file)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrDirectoryUnavailable)

	_, err = w.Start(filepath.Join(file, "child"))
	assert.ErrorIs(t, err, model.ErrDirectoryUnavailable)
}

func TestWatcher_RestartKeepsOneWatch(t *testing.T) {
	dir := t.TempDir()
	c := &collector{}
	w := watcher.New(c.handle, zaptest.NewLogger(t))
	defer w.Close()

	first, err := w.Start(dir)
	require.NoError(t, err)
	_, err = w.Start(dir)
	require.NoError(t, err)

	// first was released by the second Start; stopping it again is harmless
	w.Stop(first)

	touch(t, filepath.Join(dir, "once.txt"))
	require.Eventually(t, func() bool { return c.count() == 1 }, 2*time.Second, 10*time.Millisecond)
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 1, c.count())
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	c := &collector{}
	w := watcher.New(c.handle, zaptest.NewLogger(t))

	h, err := w.Start(dir)
	require.NoError(t, err)

	w.Stop(h)
	w.Stop(h)
	w.Stop(nil)
	w.Close()

	touch(t, filepath.Join(dir, "late.txt"))
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 0, c.count())
}

func TestWatcher_WarnsWhenRootDisappears(t *testing.T) {
	gone := map[string]func(dir string) error{
		"removed": os.Remove,
		"renamed": func(dir string) error { return os.Rename(dir, dir+"-moved") },
	}
	for name, fn := range gone {
		t.Run(name, func(t *testing.T) {
			dir := filepath.Join(t.TempDir(), "Downloads")
			core, logs := observer.New(zapcore.WarnLevel)
			w := watcher.New((&collector{}).handle, zap.New(core))
			defer w.Close()

			_, err := w.Start(dir)
			require.NoError(t, err)
			require.NoError(t, fn(dir))

			require.Eventually(t, func() bool {
				return logs.FilterMessageSnippet("Watched directory removed").Len() >= 1
			}, 2*time.Second, 10*time.Millisecond)
			entry := logs.FilterMessageSnippet("Watched directory removed").All()[0]
			assert.Equal(t, dir, entry.ContextMap()["path"])
		})
	}
}
