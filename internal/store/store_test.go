package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- ReadDocument / WriteDocument ---

type testMatter struct {
	Issue    int      `yaml:"issue"`
	Branch   string   `yaml:"branch"`
	DryRun   bool     `yaml:"dry_run"`
	Warnings []string `yaml:"warnings"`
}

func TestWriteAndReadDocumentWithFrontmatter(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.md")

	in := testMatter{
		Issue:    7,
		Branch:   "fix/issue-7-ai",
		DryRun:   true,
		Warnings: []string{"tests failed"},
	}
	require.NoError(t, WriteDocument(path, in, "# Issue 7\n\nPatch applied.\n"))

	var got testMatter
	body, err := ReadDocument(path, &got)
	require.NoError(t, err)

	assert.Equal(t, in, got)
	assert.Contains(t, body, "# Issue 7")
}

func TestWriteAndReadDocumentWithoutFrontmatter(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "plain.md")

	require.NoError(t, WriteDocument(path, nil, "Just a plain markdown file.\n"))

	var got testMatter
	body, err := ReadDocument(path, &got)
	require.NoError(t, err)

	assert.Zero(t, got)
	assert.Equal(t, "Just a plain markdown file.\n", body)
}

func TestReadDocumentNonExistent(t *testing.T) {
	var got testMatter
	_, err := ReadDocument("/nonexistent/path/file.md", &got)
	assert.Error(t, err)
}

func TestReadDocumentMalformedFrontmatter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.md")
	require.NoError(t, os.WriteFile(path, []byte("---\nissue: [unclosed\n---\n\nbody\n"), 0644))

	var got testMatter
	_, err := ReadDocument(path, &got)
	assert.Error(t, err)
}

func TestWriteDocumentCreatesDirectories(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "dir", "test.md")

	require.NoError(t, WriteDocument(path, testMatter{Branch: "value"}, "body"))

	var got testMatter
	_, err := ReadDocument(path, &got)
	require.NoError(t, err)
	assert.Equal(t, "value", got.Branch)
}

// --- WriteFile ---

func TestWriteFileReplacesAndLeavesNoTemp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "patch.diff")

	require.NoError(t, WriteFile(path, []byte("first"), 0644))
	require.NoError(t, WriteFile(path, []byte("second"), 0644))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), info.Mode().Perm())
}

// --- Exists ---

func TestExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "exists.md")
	require.NoError(t, os.WriteFile(path, []byte("hi"), 0644))

	assert.True(t, Exists(path))
	assert.False(t, Exists(filepath.Join(dir, "missing.md")))
}

// --- WithLock ---

func TestWithLockBasicOperation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "workspace")

	called := false
	err := WithLock(context.Background(), path, 0, func() error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
	assert.FileExists(t, path+".lock")
}

func TestWithLockConcurrentAccess(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "concurrent")

	var counter int64
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := WithLock(context.Background(), path, 10*time.Second, func() error {
				val := atomic.LoadInt64(&counter)
				time.Sleep(time.Millisecond)
				atomic.StoreInt64(&counter, val+1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}

	wg.Wait()
	assert.Equal(t, int64(10), atomic.LoadInt64(&counter))
}

func TestWithLockTimeout(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "timeouttest")

	locked := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = WithLock(context.Background(), path, 10*time.Second, func() error {
			close(locked)
			<-release
			return nil
		})
	}()

	<-locked

	err := WithLock(context.Background(), path, 200*time.Millisecond, func() error {
		t.Error("callback should not have been called")
		return nil
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLocked))

	start := time.Now()
	err = WithLock(context.Background(), path, -1, func() error {
		t.Error("callback should not have been called")
		return nil
	})
	require.ErrorIs(t, err, ErrLocked)
	assert.GreaterOrEqual(t, time.Since(start), DefaultLockTimeout-100*time.Millisecond, "non-positive timeout waits for the default")

	close(release)
	<-done
}

func TestWithLockPropagatesCallbackError(t *testing.T) {
	sentinel := errors.New("boom")
	err := WithLock(context.Background(), filepath.Join(t.TempDir(), "x"), DefaultLockTimeout, func() error {
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)
}
