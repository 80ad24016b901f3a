package testutil

import (
	"crypto/rand"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// FileServer serves a single synthetic file over HTTP for download
// tests, with optional range support and failure injection.
type FileServer struct {
	Server *httptest.Server

	// Configuration
	FileSize       int64
	SupportsRanges bool
	Filename       string        // Content-Disposition filename, empty to omit
	RandomData     bool          // serve random bytes instead of zeros
	Latency        time.Duration // artificial latency per request
	FailAfterBytes int64         // drop the connection after N bytes (0 = never)
	CustomHandler  http.HandlerFunc

	// Tracking
	RequestCount  atomic.Int64
	RangeRequests atomic.Int64
	FullRequests  atomic.Int64
	LastRange     atomic.Value // string, raw Range header of the last request

	data []byte
}

// FileServerOption configures a FileServer.
type FileServerOption func(*FileServer)

// WithFileSize sets the size of the served file.
func WithFileSize(size int64) FileServerOption {
	return func(s *FileServer) { s.FileSize = size }
}

// WithRangeSupport enables or disables Range request handling.
func WithRangeSupport(enabled bool) FileServerOption {
	return func(s *FileServer) { s.SupportsRanges = enabled }
}

// WithFilename sets the Content-Disposition filename.
func WithFilename(name string) FileServerOption {
	return func(s *FileServer) { s.Filename = name }
}

// WithRandomData serves random bytes instead of zeros.
func WithRandomData() FileServerOption {
	return func(s *FileServer) { s.RandomData = true }
}

// WithLatency adds artificial latency per request.
func WithLatency(d time.Duration) FileServerOption {
	return func(s *FileServer) { s.Latency = d }
}

// WithFailAfterBytes drops the connection after serving n bytes of a
// single response.
func WithFailAfterBytes(n int64) FileServerOption {
	return func(s *FileServer) { s.FailAfterBytes = n }
}

// WithHandler replaces the built-in file handler entirely.
func WithHandler(h http.HandlerFunc) FileServerOption {
	return func(s *FileServer) { s.CustomHandler = h }
}

// NewFileServer starts a file server, skipping the test when no
// listener is available. The server shuts down via t.Cleanup.
func NewFileServer(t *testing.T, opts ...FileServerOption) *FileServer {
	t.Helper()
	s := &FileServer{
		FileSize:       64 * 1024,
		SupportsRanges: true,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.data = make([]byte, s.FileSize)
	if s.RandomData {
		_, _ = rand.Read(s.data)
	}

	s.Server = NewHTTPServerT(t, http.HandlerFunc(s.handle))
	return s
}

// URL returns the served file's URL.
func (s *FileServer) URL() string { return s.Server.URL + "/file.bin" }

// Data returns the full file contents being served.
func (s *FileServer) Data() []byte { return s.data }

func (s *FileServer) handle(w http.ResponseWriter, r *http.Request) {
	if s.CustomHandler != nil {
		s.CustomHandler(w, r)
		return
	}

	s.RequestCount.Add(1)
	s.LastRange.Store(r.Header.Get("Range"))

	if s.Latency > 0 {
		time.Sleep(s.Latency)
	}

	start, end := int64(0), s.FileSize-1
	rangeHeader := r.Header.Get("Range")

	if rangeHeader != "" && s.SupportsRanges {
		s.RangeRequests.Add(1)
		var err error
		start, end, err = parseRange(rangeHeader, s.FileSize)
		if err != nil {
			http.Error(w, "invalid range", http.StatusRequestedRangeNotSatisfiable)
			return
		}
		s.setCommonHeaders(w, end-start+1)
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, s.FileSize))
		w.WriteHeader(http.StatusPartialContent)
	} else {
		s.FullRequests.Add(1)
		s.setCommonHeaders(w, s.FileSize)
		if s.SupportsRanges {
			w.Header().Set("Accept-Ranges", "bytes")
		}
		w.WriteHeader(http.StatusOK)
	}

	// Serve in small chunks so FailAfterBytes can cut mid-body.
	length := end - start + 1
	var written int64
	for written < length {
		if s.FailAfterBytes > 0 && written >= s.FailAfterBytes {
			return // drop the connection
		}
		chunk := int64(8 * 1024)
		if remaining := length - written; remaining < chunk {
			chunk = remaining
		}
		n, err := w.Write(s.data[start+written : start+written+chunk])
		if err != nil {
			return // client disconnected
		}
		written += int64(n)
	}
}

func (s *FileServer) setCommonHeaders(w http.ResponseWriter, length int64) {
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.FormatInt(length, 10))
	if s.Filename != "" {
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, s.Filename))
	}
}

// parseRange handles "bytes=start-" and "bytes=start-end".
func parseRange(header string, fileSize int64) (start, end int64, err error) {
	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return 0, 0, fmt.Errorf("invalid range prefix: %q", header)
	}
	parts := strings.SplitN(spec, "-", 2)
	if len(parts) != 2 || parts[0] == "" {
		return 0, 0, fmt.Errorf("unsupported range format: %q", header)
	}

	start, err = strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, err
	}
	end = fileSize - 1
	if parts[1] != "" {
		end, err = strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return 0, 0, err
		}
	}
	if start < 0 || start > end || end >= fileSize {
		return 0, 0, fmt.Errorf("range out of bounds: %q", header)
	}
	return start, end, nil
}
