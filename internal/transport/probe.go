package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/vfaronov/httpheader"

	"github.com/spookd/sling/internal/utils"
)

const probeTimeout = 30 * time.Second

// ProbeResult carries server metadata gathered before a download
// starts.
type ProbeResult struct {
	FileSize      int64 // total size in bytes, 0 when unknown
	SupportsRange bool
	Filename      string // suggested name, empty when the server offers none
	ContentType   string
}

// Probe sends a one-byte range request to rawurl to learn the file
// size, whether the server honors byte ranges, and the suggested
// filename. A 206 means ranges work and Content-Range holds the full
// size; a 200 means the server ignores ranges.
func (t *HTTPTransport) Probe(ctx context.Context, rawurl string) (*ProbeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawurl, nil)
	if err != nil {
		return nil, fmt.Errorf("probe request for %s: %w", rawurl, err)
	}
	req.Header.Set("Range", "bytes=0-0")
	req.Header.Set("User-Agent", t.cfg.UserAgent)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("probe %s: %w", rawurl, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	result := &ProbeResult{ContentType: resp.Header.Get("Content-Type")}

	switch resp.StatusCode {
	case http.StatusPartialContent:
		result.SupportsRange = true
		result.FileSize = parseCompleteLength(resp.Header.Get("Content-Range"))
	case http.StatusOK:
		if resp.ContentLength > 0 {
			result.FileSize = resp.ContentLength
		}
	default:
		return nil, fmt.Errorf("probe %s: unexpected status code %d", rawurl, resp.StatusCode)
	}

	if _, filename, _ := httpheader.ContentDisposition(resp.Header); filename != "" {
		result.Filename = path.Base(filename)
	}
	if result.Filename == "" {
		result.Filename = utils.FilenameFromURL(rawurl, "")
	}

	utils.Debug("probe %s: size=%d range=%v name=%q",
		rawurl, result.FileSize, result.SupportsRange, result.Filename)

	return result, nil
}

// parseCompleteLength extracts the complete length from a Content-Range
// value such as "bytes 0-0/12345". Returns 0 for "*" or malformed
// input.
func parseCompleteLength(contentRange string) int64 {
	idx := strings.LastIndex(contentRange, "/")
	if idx == -1 {
		return 0
	}
	sizeStr := contentRange[idx+1:]
	if sizeStr == "*" {
		return 0
	}
	size, err := strconv.ParseInt(sizeStr, 10, 64)
	if err != nil || size < 0 {
		return 0
	}
	return size
}
