package downloader

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spookd/sling/internal/testutil"
	"github.com/spookd/sling/internal/transport"
)

// End-to-end coverage over a real HTTP server and the real transport.

type terminalWaiter struct {
	started chan bool // resumed flag
	done    chan error
}

func newTerminalWaiter() *terminalWaiter {
	return &terminalWaiter{
		started: make(chan bool, 1),
		done:    make(chan error, 1),
	}
}

func (w *terminalWaiter) observer() Observer {
	return &ObserverFuncs{
		OnStart: func(_ string, resumed bool) {
			select {
			case w.started <- resumed:
			default:
			}
		},
		OnFinish: func(string) { w.done <- nil },
		OnFail:   func(_ string, err error) { w.done <- err },
	}
}

func (w *terminalWaiter) wait(t *testing.T) error {
	t.Helper()
	select {
	case err := <-w.done:
		return err
	case <-time.After(15 * time.Second):
		t.Fatal("download did not reach a terminal state")
		return nil
	}
}

func TestEndToEndDownload(t *testing.T) {
	fs := testutil.NewFileServer(t,
		testutil.WithFileSize(64*1024),
		testutil.WithRandomData())

	tr := transport.NewHTTP(transport.Config{BufferSize: 8 * 1024})
	m := New(Options{Transport: tr})
	w := newTerminalWaiter()
	m.Subscribe(w.observer())

	dest := filepath.Join(t.TempDir(), "file.bin")
	require.True(t, m.Download(fs.URL(), dest))

	require.NoError(t, w.wait(t))
	assert.False(t, <-w.started)

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, fs.Data(), data)
	assert.Equal(t, int64(1), fs.FullRequests.Load())
}

func TestEndToEndResume(t *testing.T) {
	fs := testutil.NewFileServer(t,
		testutil.WithFileSize(64*1024),
		testutil.WithRandomData())

	dest := filepath.Join(t.TempDir(), "file.bin")
	require.NoError(t, os.WriteFile(dest, fs.Data()[:16*1024], 0o644))

	tr := transport.NewHTTP(transport.Config{BufferSize: 8 * 1024})
	m := New(Options{Transport: tr})
	w := newTerminalWaiter()
	m.Subscribe(w.observer())

	require.True(t, m.Download(fs.URL(), dest))
	require.NoError(t, w.wait(t))
	assert.True(t, <-w.started, "a partial file makes this a resume")

	assert.Equal(t, int64(1), fs.RangeRequests.Load())
	assert.Equal(t, "bytes=16384-", fs.LastRange.Load())

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, fs.Data(), data)
}

func TestEndToEndResumeUnsupported(t *testing.T) {
	fs := testutil.NewFileServer(t,
		testutil.WithFileSize(64*1024),
		testutil.WithRangeSupport(false))

	dest := filepath.Join(t.TempDir(), "file.bin")
	require.NoError(t, os.WriteFile(dest, make([]byte, 16*1024), 0o644))

	tr := transport.NewHTTP(transport.Config{})
	m := New(Options{Transport: tr})
	w := newTerminalWaiter()
	m.Subscribe(w.observer())

	require.True(t, m.Download(fs.URL(), dest))
	err := w.wait(t)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not support resume")

	// The partial file must not have been corrupted by a full-body
	// response.
	fi, statErr := os.Stat(dest)
	require.NoError(t, statErr)
	assert.Equal(t, int64(16*1024), fi.Size())
}

func TestEndToEndTruncatedBody(t *testing.T) {
	fs := testutil.NewFileServer(t,
		testutil.WithFileSize(64*1024),
		testutil.WithFailAfterBytes(8*1024))

	tr := transport.NewHTTP(transport.Config{})
	m := New(Options{Transport: tr})
	w := newTerminalWaiter()
	m.Subscribe(w.observer())

	dest := filepath.Join(t.TempDir(), "file.bin")
	require.True(t, m.Download(fs.URL(), dest))
	assert.Error(t, w.wait(t))
	assert.False(t, m.IsDownloading(fs.URL()))
}
