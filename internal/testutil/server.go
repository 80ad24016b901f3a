// Package testutil provides HTTP test servers for download testing.
package testutil

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
)

// NewHTTPServerT starts an httptest server bound to IPv4, skipping the
// test when no tcp4 listener is available (sandboxed environments).
func NewHTTPServerT(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("tcp4 listener unavailable: %v", err)
		return nil
	}

	srv := &httptest.Server{
		Listener: ln,
		Config:   &http.Server{Handler: handler},
	}
	srv.Start()
	t.Cleanup(srv.Close)
	return srv
}
