package agent

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	config "github.com/mwantia/imgtag/internal/config/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAgent(t *testing.T, dir string) *ImgTagAgent {
	t.Helper()

	cfg := config.GetServerDefault()
	cfg.ShutdownTimeout = "5s"
	cfg.Log.Level = "ERROR"
	cfg.Log.NoColor = true
	cfg.Metadata.Type = "memory"
	cfg.Library.Directories = []string{dir}
	return NewAgent(&cfg)
}

func startAgent(t *testing.T, agent *ImgTagAgent) context.CancelFunc {
	t.Helper()

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() {
		done <- agent.Serve(ctx)
	}()

	select {
	case <-agent.Ready():
	case err := <-done:
		cancel()
		require.FailNow(t, "agent stopped during startup", "%v", err)
	case <-time.After(5 * time.Second):
		cancel()
		require.FailNow(t, "agent did not become ready")
	}

	return func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			assert.Fail(t, "agent did not shut down")
		}
	}
}

func tracked(t *testing.T, agent *ImgTagAgent, path string) func() bool {
	return func() bool {
		_, err := agent.store.GetImage(t.Context(), path)
		return err == nil
	}
}

func TestAgent_ScansOnStart(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "existing.png")
	require.NoError(t, os.WriteFile(existing, []byte("x"), 0o644))

	agent := newTestAgent(t, dir)
	stop := startAgent(t, agent)
	defer stop()

	assert.True(t, tracked(t, agent, existing)())
}

func TestAgent_FollowsFilesystemEvents(t *testing.T) {
	dir := t.TempDir()
	agent := newTestAgent(t, dir)
	stop := startAgent(t, agent)
	defer stop()

	created := filepath.Join(dir, "created.jpg")
	require.NoError(t, os.WriteFile(created, []byte("x"), 0o644))
	assert.Eventually(t, tracked(t, agent, created), 5*time.Second, 20*time.Millisecond)

	ignored := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(ignored, []byte("x"), 0o644))

	nested := filepath.Join(dir, "nested")
	require.NoError(t, os.Mkdir(nested, 0o755))
	inner := filepath.Join(nested, "inner.webp")
	require.NoError(t, os.WriteFile(inner, []byte("x"), 0o644))
	assert.Eventually(t, tracked(t, agent, inner), 5*time.Second, 20*time.Millisecond)

	require.NoError(t, os.Remove(created))
	assert.Eventually(t, func() bool { return !tracked(t, agent, created)() }, 5*time.Second, 20*time.Millisecond)

	assert.False(t, tracked(t, agent, ignored)())
}

func TestAgent_RejectsUnknownStore(t *testing.T) {
	cfg := config.GetServerDefault()
	cfg.Log.Level = "ERROR"
	cfg.Metadata.Type = "postgres"

	err := NewAgent(&cfg).Serve(t.Context())
	assert.ErrorContains(t, err, "unknown metadata store type")
}

func imageTags(t *testing.T, agent *ImgTagAgent, path string) func() []string {
	return func() []string {
		tags, err := agent.store.GetImageTags(t.Context(), path)
		if err != nil {
			return nil
		}
		return tags
	}
}

func TestAgent_RenameKeepsTags(t *testing.T) {
	dir := t.TempDir()
	before := filepath.Join(dir, "a.png")
	after := filepath.Join(dir, "b.png")
	require.NoError(t, os.WriteFile(before, []byte("x"), 0o644))

	agent := newTestAgent(t, dir)
	stop := startAgent(t, agent)
	defer stop()

	require.NoError(t, agent.library.TagImage(t.Context(), before, "favorite"))
	require.NoError(t, os.Rename(before, after))

	assert.Eventually(t, func() bool {
		tags := imageTags(t, agent, after)()
		return len(tags) == 1 && tags[0] == "favorite"
	}, 5*time.Second, 20*time.Millisecond)

	// The old path must stay gone once the rename window has passed
	time.Sleep(2 * renameWindow)
	assert.False(t, tracked(t, agent, before)())
	assert.Equal(t, []string{"favorite"}, imageTags(t, agent, after)())
}

func TestAgent_RenameDirectoryKeepsTags(t *testing.T) {
	dir := t.TempDir()
	nested := filepath.Join(dir, "nested")
	require.NoError(t, os.Mkdir(nested, 0o755))
	inner := filepath.Join(nested, "c.png")
	require.NoError(t, os.WriteFile(inner, []byte("x"), 0o644))

	agent := newTestAgent(t, dir)
	stop := startAgent(t, agent)
	defer stop()

	require.NoError(t, agent.library.TagImage(t.Context(), inner, "cat"))
	require.NoError(t, os.Rename(nested, filepath.Join(dir, "renamed")))

	moved := filepath.Join(dir, "renamed", "c.png")
	assert.Eventually(t, func() bool {
		tags := imageTags(t, agent, moved)()
		return len(tags) == 1 && tags[0] == "cat"
	}, 5*time.Second, 20*time.Millisecond)

	time.Sleep(2 * renameWindow)
	assert.False(t, tracked(t, agent, inner)())
	assert.True(t, tracked(t, agent, moved)())
}

func TestAgent_RenameOutOfLibraryUntracks(t *testing.T) {
	dir := t.TempDir()
	outside := t.TempDir()
	path := filepath.Join(dir, "a.png")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	agent := newTestAgent(t, dir)
	stop := startAgent(t, agent)
	defer stop()

	require.NoError(t, os.Rename(path, filepath.Join(outside, "a.png")))

	assert.Eventually(t, func() bool { return !tracked(t, agent, path)() }, 5*time.Second, 20*time.Millisecond)
	assert.False(t, tracked(t, agent, filepath.Join(outside, "a.png"))())
}
