package deck

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deckforge/app/internal/retry"
)

func TestFileDebugSinkWritesArtifact(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "logs")
	sink := NewFileDebugSink(dir)
	when := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	path, err := sink.Record(context.Background(), DebugArtifact{
		Context:  "content_planning",
		Error:    "unexpected end of JSON input",
		Response: `{"broken":`,
		Retry:    retry.DefaultConfig(),
		Time:     when,
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "presentation_debug_content_planning_2026-03-04_05-06-07.txt"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	body := string(data)

	assert.True(t, strings.HasPrefix(body, "=== PRESENTATION DEBUG LOG ===\n"))
	assert.Contains(t, body, "Timestamp: 2026-03-04 05:06:07\n")
	assert.Contains(t, body, "Context: content_planning\n")
	assert.Contains(t, body, "Error: unexpected end of JSON input\n")
	assert.Contains(t, body, "Response Length: 10\n")
	assert.Contains(t, body, `Retry Configuration: {"exponential_backoff":true,"max_retries":3,"retry_delay":2}`)
	assert.Contains(t, body, "=== RAW RESPONSE ===\n{\"broken\":\n=== END RESPONSE ===\n")

	second, err := sink.Record(context.Background(), DebugArtifact{Context: "content_planning", Time: when})
	require.NoError(t, err)
	assert.NotEqual(t, path, second)
	assert.True(t, strings.HasSuffix(second, "_2.txt"))
}

func TestCleanupDebugFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	now := time.Now()

	old := filepath.Join(dir, "presentation_debug_old_2020-01-01_00-00-00.txt")
	fresh := filepath.Join(dir, "presentation_debug_fresh_2026-01-01_00-00-00.txt")
	unrelated := filepath.Join(dir, "notes.txt")
	for _, path := range []string{old, fresh, unrelated} {
		require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	}
	stale := now.Add(-10 * 24 * time.Hour)
	require.NoError(t, os.Chtimes(old, stale, stale))
	require.NoError(t, os.Chtimes(unrelated, stale, stale))

	removed, err := CleanupDebugFiles(dir, 7*24*time.Hour, now)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	assert.NoFileExists(t, old)
	assert.FileExists(t, fresh)
	assert.FileExists(t, unrelated)

	removed, err = CleanupDebugFiles(filepath.Join(dir, "missing"), time.Hour, now)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestStatusObservers(t *testing.T) {
	t.Parallel()

	first, second := &statusLog{}, &statusLog{}
	multi := MultiObserver{first, nil, second}
	notify(context.Background(), multi, PhasePlanning, "hello")

	assert.Equal(t, []Phase{PhasePlanning}, first.phases())
	assert.Equal(t, []Phase{PhasePlanning}, second.phases())

	calls := 0
	ObserverFunc(func(context.Context, Status) { calls++ }).Observe(context.Background(), Status{})
	assert.Equal(t, 1, calls)

	LogObserver{}.Observe(context.Background(), Status{Phase: PhaseFinalizing})
}
