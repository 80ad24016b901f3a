// Package downloader implements the download orchestration core: the
// registry of in-flight downloads, resume via byte-range requests, the
// sliding-window throughput estimate, and observer fan-out.
package downloader

import (
	"os"
	"sync"
	"time"

	"github.com/spookd/sling/internal/transport"
	"github.com/spookd/sling/internal/utils"
)

// Sampler defaults. One sample every quarter second over a five second
// window gives a ring of twenty samples; the published average moves at
// most every five seconds.
const (
	DefaultSamplePeriod      = 250 * time.Millisecond
	DefaultSpeedWindow       = 5 * time.Second
	DefaultRecomputeInterval = 5 * time.Second
)

// Options configures a Manager. Zero durations fall back to the
// defaults above; only Transport is required.
type Options struct {
	Transport transport.Transport

	SamplePeriod      time.Duration
	SpeedWindow       time.Duration
	RecomputeInterval time.Duration
}

// Manager owns the registry of active downloads, keyed by url, and
// fans lifecycle events out to subscribed observers. All methods are
// safe for concurrent use; no lock is ever held across an observer
// callback, so observers may call back into the Manager.
type Manager struct {
	tr   transport.Transport
	opts Options

	mu    sync.Mutex
	tasks map[string]*task

	observers observerList
}

// New creates a Manager. Callers share the instance; there is no
// process-wide singleton.
func New(opts Options) *Manager {
	if opts.SamplePeriod <= 0 {
		opts.SamplePeriod = DefaultSamplePeriod
	}
	if opts.SpeedWindow <= 0 {
		opts.SpeedWindow = DefaultSpeedWindow
	}
	if opts.RecomputeInterval <= 0 {
		opts.RecomputeInterval = DefaultRecomputeInterval
	}
	return &Manager{
		tr:    opts.Transport,
		opts:  opts,
		tasks: make(map[string]*task),
	}
}

// Subscribe registers an observer. Subscribing the same observer twice
// is a no-op.
func (m *Manager) Subscribe(o Observer) { m.observers.add(o) }

// Unsubscribe removes an observer; unknown observers are ignored.
func (m *Manager) Unsubscribe(o Observer) { m.observers.remove(o) }

// IsDownloading reports whether a download for url is active.
func (m *Manager) IsDownloading(url string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.tasks[url]
	return ok
}

// Download starts (or resumes) a download of url into filePath and
// reports whether setup succeeded. Bytes already at filePath become the
// resume offset and only the remainder is requested. The call never
// blocks on network I/O: the transport takes over once setup succeeds
// and everything after that arrives through observer callbacks. At most
// one download per url can be active; a duplicate request returns
// false.
func (m *Manager) Download(url, filePath string) bool {
	m.mu.Lock()
	_, active := m.tasks[url]
	m.mu.Unlock()
	if active {
		utils.Debug("download %s: already active", url)
		return false
	}

	var offset int64
	if fi, err := os.Stat(filePath); err == nil {
		offset = fi.Size()
	}

	conn, err := m.tr.Open(url, offset)
	if err != nil {
		utils.Debug("download %s: %v", url, err)
		return false
	}

	meter := newSpeedMeter(m.opts.SamplePeriod, m.opts.SpeedWindow, m.opts.RecomputeInterval)
	t, err := newTask(url, filePath, offset, conn, meter)
	if err != nil {
		conn.Cancel()
		utils.Debug("download %s: %v", url, err)
		return false
	}

	m.mu.Lock()
	if _, ok := m.tasks[url]; ok {
		// Lost a race with a concurrent Download for the same url.
		m.mu.Unlock()
		t.close()
		conn.Cancel()
		return false
	}
	m.tasks[url] = t
	m.mu.Unlock()

	utils.Debug("download %s -> %s (offset %d)", url, filePath, offset)
	conn.Start(&router{m: m, url: url})
	return true
}

// StopDownloading cancels the download for url, if any. An explicit
// stop is silent: no observer is notified, and callbacks still in
// flight for the url are dropped. Stopping an unknown url is a no-op.
func (m *Manager) StopDownloading(url string) {
	m.mu.Lock()
	t := m.tasks[url]
	delete(m.tasks, url)
	m.mu.Unlock()

	if t == nil {
		return
	}
	utils.Debug("stop %s", url)
	t.cancel()
	t.close()
}

// Shutdown cancels every active download under the same silent contract
// as StopDownloading. Used when the hosting process exits.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	stopped := make([]*task, 0, len(m.tasks))
	for _, t := range m.tasks {
		stopped = append(stopped, t)
	}
	m.tasks = make(map[string]*task)
	m.mu.Unlock()

	for _, t := range stopped {
		t.cancel()
		t.close()
	}
}

func (m *Manager) lookup(url string) *task {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tasks[url]
}

// detach removes and returns the task for url so no later callback can
// reach it. Returns nil when the url is unknown or already stopped.
func (m *Manager) detach(url string) *task {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := m.tasks[url]
	delete(m.tasks, url)
	return t
}

// router maps one transport connection's callbacks onto the task
// registered for its url. Callbacks arriving after the task is gone
// (stopped, failed, finished) find no registry entry and are dropped,
// which is what makes StopDownloading silent.
type router struct {
	m   *Manager
	url string
}

func (r *router) Headers(contentLength int64) {
	t := r.m.lookup(r.url)
	if t == nil {
		return
	}
	resumed := t.setTotal(contentLength)
	if t.isCanceled() {
		return
	}
	r.m.observers.notify(func(o Observer) { o.DownloadDidStart(r.url, resumed) })
}

func (r *router) Data(chunk []byte) {
	t := r.m.lookup(r.url)
	if t == nil {
		return
	}
	if err := t.write(chunk); err != nil {
		// A sink that stops accepting bytes is as terminal as a
		// transport error.
		r.fail(err)
		return
	}
	p, ok := t.progress()
	if !ok {
		return
	}
	r.m.observers.notify(func(o Observer) { o.DownloadDidProgress(p) })
}

func (r *router) Done() {
	t := r.m.detach(r.url)
	if t == nil {
		return
	}
	t.close()
	r.m.observers.notify(func(o Observer) { o.DownloadDidFinish(r.url) })
}

func (r *router) Fail(err error) { r.fail(err) }

func (r *router) fail(err error) {
	t := r.m.detach(r.url)
	if t == nil {
		return
	}
	t.conn.Cancel()
	t.close()
	r.m.observers.notify(func(o Observer) { o.DownloadDidFail(r.url, err) })
}
