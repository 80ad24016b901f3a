// Package transport abstracts the HTTP byte stream behind narrow
// connection callbacks so the download core never blocks on network
// I/O.
package transport

// Handler receives a connection's events. For one started connection
// the sequence is: at most one Headers call, any number of Data calls,
// then exactly one of Done or Fail. The chunk passed to Data is only
// valid for the duration of the call.
type Handler interface {
	// Headers reports the remaining content length in bytes, or -1 when
	// the server did not say.
	Headers(contentLength int64)
	Data(chunk []byte)
	Done()
	Fail(err error)
}

// Connection is a single startable transfer.
type Connection interface {
	// Start begins delivering events to h from the transport's own
	// goroutine. Call at most once.
	Start(h Handler)

	// Cancel stops the transfer and suppresses all further events. Safe
	// to call at any time, from any goroutine, more than once.
	Cancel()
}

// Transport creates connections. Open must not perform network I/O;
// failures that need the network surface through Handler.Fail after
// Start.
type Transport interface {
	// Open prepares a request for url. A positive offset asks for a
	// byte range starting there, resuming a partial file.
	Open(url string, offset int64) (Connection, error)
}
