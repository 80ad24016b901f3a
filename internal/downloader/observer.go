package downloader

import "sync"

// Progress is a point-in-time snapshot of one download, delivered with
// every DownloadDidProgress callback.
type Progress struct {
	URL            string
	TotalSize      int64   // expected final byte count, 0 until the server reports one
	DownloadedSize int64   // bytes on disk, includes the resume offset
	Percentage     float64 // 0-100, stays 0 while TotalSize is unknown
	AverageSpeed   int64   // bytes per second, SpeedUnknown until the window fills
	TimeRemaining  float64 // seconds; NaN when unknowable, +Inf when stalled
}

// Observer receives download lifecycle callbacks. Observers are
// compared by identity: subscribing the same value twice registers it
// once, and callbacks arrive in subscription order.
type Observer interface {
	DownloadDidStart(url string, resumed bool)
	DownloadDidProgress(p Progress)
	DownloadDidFinish(url string)
	DownloadDidFail(url string, err error)
}

// ObserverFuncs adapts plain functions to the Observer interface. Nil
// fields are skipped.
type ObserverFuncs struct {
	OnStart    func(url string, resumed bool)
	OnProgress func(p Progress)
	OnFinish   func(url string)
	OnFail     func(url string, err error)
}

func (o *ObserverFuncs) DownloadDidStart(url string, resumed bool) {
	if o.OnStart != nil {
		o.OnStart(url, resumed)
	}
}

func (o *ObserverFuncs) DownloadDidProgress(p Progress) {
	if o.OnProgress != nil {
		o.OnProgress(p)
	}
}

func (o *ObserverFuncs) DownloadDidFinish(url string) {
	if o.OnFinish != nil {
		o.OnFinish(url)
	}
}

func (o *ObserverFuncs) DownloadDidFail(url string, err error) {
	if o.OnFail != nil {
		o.OnFail(url, err)
	}
}

// observerList is an ordered set of observers with identity semantics.
type observerList struct {
	mu      sync.Mutex
	members []Observer
}

func (l *observerList) add(o Observer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range l.members {
		if m == o {
			return
		}
	}
	l.members = append(l.members, o)
}

func (l *observerList) remove(o Observer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, m := range l.members {
		if m == o {
			l.members = append(l.members[:i:i], l.members[i+1:]...)
			return
		}
	}
}

// notify invokes fn for a snapshot of the membership taken up front, so
// observers may subscribe or unsubscribe from inside their own
// callbacks without skipping or duplicating delivery to anyone else.
// No lock is held while fn runs.
func (l *observerList) notify(fn func(Observer)) {
	l.mu.Lock()
	snapshot := make([]Observer, len(l.members))
	copy(snapshot, l.members)
	l.mu.Unlock()

	for _, o := range snapshot {
		fn(o)
	}
}
