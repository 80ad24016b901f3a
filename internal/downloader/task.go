package downloader

import (
	"fmt"
	"io"
	"math"
	"os"
	"sync"

	"github.com/gofrs/flock"

	"github.com/spookd/sling/internal/transport"
	"github.com/spookd/sling/internal/utils"
)

// task tracks one in-flight download: the output stream, byte counts,
// and the throughput meter. Mutation is serialized per task, so
// unrelated downloads never block each other.
type task struct {
	url      string
	filePath string
	conn     transport.Connection
	meter    *speedMeter

	mu         sync.Mutex
	totalSize  int64
	downloaded int64
	out        *os.File
	lock       *flock.Flock
	canceled   bool
	closed     bool
}

// newTask locks the destination, opens the output stream (append when
// resuming, truncate otherwise) and starts the meter. The lock keeps a
// second process from appending to the same partial file.
func newTask(url, filePath string, offset int64, conn transport.Connection, meter *speedMeter) (*task, error) {
	lock := flock.New(filePath + ".lock")
	held, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", filePath, err)
	}
	if !held {
		return nil, fmt.Errorf("%s: locked by another process", filePath)
	}

	mode := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if offset > 0 {
		mode = os.O_WRONLY | os.O_CREATE | os.O_APPEND
	}
	out, err := os.OpenFile(filePath, mode, 0o644)
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}

	t := &task{
		url:        url,
		filePath:   filePath,
		conn:       conn,
		meter:      meter,
		downloaded: offset,
		out:        out,
		lock:       lock,
	}
	t.meter.start()
	return t, nil
}

// write appends a chunk to the output stream. Only bytes the sink
// actually accepted count toward downloaded and the meter; a short
// write is an error, not silently dropped bytes.
func (t *task) write(p []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return os.ErrClosed
	}

	n, err := t.out.Write(p)
	if n > 0 {
		t.downloaded += int64(n)
		t.meter.recordWrite(int64(n))
	}
	if err != nil {
		return err
	}
	if n < len(p) {
		return io.ErrShortWrite
	}
	return nil
}

// setTotal records the expected final size once headers arrive. The
// transport reports remaining bytes, so the resume offset is added
// back. Returns whether this download resumed a partial file.
func (t *task) setTotal(contentLength int64) (resumed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if contentLength >= 0 {
		t.totalSize = contentLength + t.downloaded
	}
	return t.downloaded > 0
}

// progress returns a snapshot for observer delivery; ok is false once
// the task has been canceled.
func (t *task) progress() (p Progress, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.canceled {
		return Progress{}, false
	}

	p = Progress{
		URL:            t.url,
		TotalSize:      t.totalSize,
		DownloadedSize: t.downloaded,
		AverageSpeed:   t.meter.Speed(),
	}
	if t.totalSize > 0 {
		p.Percentage = float64(t.downloaded) * 100 / float64(t.totalSize)
	}
	p.TimeRemaining = timeRemaining(t.totalSize, t.downloaded, p.AverageSpeed)
	return p, true
}

func (t *task) isCanceled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.canceled
}

// cancel marks the task canceled and stops its connection. Callbacks
// already holding the task check the flag before notifying anyone.
func (t *task) cancel() {
	t.mu.Lock()
	t.canceled = true
	t.mu.Unlock()
	t.conn.Cancel()
}

// close stops the meter and releases the stream and lock exactly once;
// safe to call multiple times.
func (t *task) close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true

	t.meter.stop()
	if err := t.out.Close(); err != nil {
		utils.Debug("close %s: %v", t.filePath, err)
	}
	if err := t.lock.Unlock(); err != nil {
		utils.Debug("unlock %s: %v", t.filePath, err)
	} else if err := os.Remove(t.lock.Path()); err != nil {
		utils.Debug("remove %s: %v", t.lock.Path(), err)
	}
}

// timeRemaining follows the reporting contract: NaN while the total or
// the speed is unknown, +Inf when the transfer has stalled.
func timeRemaining(total, downloaded, speed int64) float64 {
	switch {
	case total <= 0 || speed == SpeedUnknown:
		return math.NaN()
	case speed == 0:
		return math.Inf(1)
	default:
		return float64(total-downloaded) / float64(speed)
	}
}
