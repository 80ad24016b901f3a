package cmd

import (
	"fmt"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spookd/sling/internal/downloader"
	"github.com/spookd/sling/internal/testutil"
	"github.com/spookd/sling/internal/transport"
	"github.com/spookd/sling/internal/tui"
)

func TestRunPlainCompletesFastDownloads(t *testing.T) {
	// Tiny files finish almost before Download returns, so the runner's
	// completion accounting must hold up against immediate terminal
	// callbacks.
	fs := testutil.NewFileServer(t, testutil.WithFileSize(1024))
	tr := transport.NewHTTP(transport.Config{})
	mgr := downloader.New(downloader.Options{Transport: tr})

	dir := t.TempDir()
	var jobs []tui.Job
	for i := 0; i < 5; i++ {
		jobs = append(jobs, tui.Job{
			URL:  fmt.Sprintf("%s/f%d.bin", fs.Server.URL, i),
			Dest: filepath.Join(dir, fmt.Sprintf("f%d.bin", i)),
		})
	}
	// One job that cannot start at all; it must not hang the runner.
	jobs = append(jobs, tui.Job{URL: "http://bad url", Dest: filepath.Join(dir, "bad")})

	runPlain(mgr, jobs)

	for i := 0; i < 5; i++ {
		assert.FileExists(t, filepath.Join(dir, fmt.Sprintf("f%d.bin", i)))
	}
	assert.NoFileExists(t, filepath.Join(dir, "bad"))
}

func TestRunPlainReturnsOnFailure(t *testing.T) {
	fs := testutil.NewFileServer(t, testutil.WithHandler(
		func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "gone", http.StatusNotFound)
		}))
	tr := transport.NewHTTP(transport.Config{})
	mgr := downloader.New(downloader.Options{Transport: tr})

	dest := filepath.Join(t.TempDir(), "f.bin")
	runPlain(mgr, []tui.Job{{URL: fs.URL(), Dest: dest}})

	assert.False(t, mgr.IsDownloading(fs.URL()))
}
