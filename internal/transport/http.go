package transport

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/net/proxy"

	"github.com/spookd/sling/internal/utils"
)

var defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) " +
	"Chrome/120.0.0.0 Safari/537.36"

// DefaultBufferSize is the per-connection read buffer size.
const DefaultBufferSize = 512 * 1024

// Config tunes the HTTP transport. The zero value works.
type Config struct {
	UserAgent           string
	ProxyURL            string // http(s) or socks5 proxy; empty uses the environment
	SkipTLSVerification bool
	BufferSize          int
}

// HTTPTransport implements Transport on net/http with one shared
// client. Downloads are long-lived, so the client carries no overall
// timeout; cancellation happens per connection.
type HTTPTransport struct {
	client *http.Client
	cfg    Config
}

// NewHTTP builds a transport from cfg. An explicit SOCKS5 or HTTP(S)
// proxy URL wins over the environment.
func NewHTTP(cfg Config) *HTTPTransport {
	tr := &http.Transport{Proxy: http.ProxyFromEnvironment}

	if cfg.ProxyURL != "" {
		if parsed, err := url.Parse(cfg.ProxyURL); err != nil {
			utils.Debug("transport: invalid proxy URL %s: %v", cfg.ProxyURL, err)
		} else if strings.HasPrefix(parsed.Scheme, "socks5") {
			if dialer, dialErr := proxy.SOCKS5("tcp", parsed.Host, nil, proxy.Direct); dialErr != nil {
				utils.Debug("transport: SOCKS5 dialer: %v", dialErr)
			} else {
				tr.Proxy = nil
				tr.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
					return dialer.Dial(network, addr)
				}
			}
		} else {
			tr.Proxy = http.ProxyURL(parsed)
		}
	}

	if cfg.SkipTLSVerification {
		utils.Debug("transport: TLS verification disabled")
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultBufferSize
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}

	return &HTTPTransport{
		client: &http.Client{Timeout: 0, Transport: tr},
		cfg:    cfg,
	}
}

// Open validates the request for rawurl without touching the network.
func (t *HTTPTransport) Open(rawurl string, offset int64) (Connection, error) {
	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawurl, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("request for %s: %w", rawurl, err)
	}
	req.Header.Set("User-Agent", t.cfg.UserAgent)
	if offset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", offset))
	}

	return &httpConn{
		id:     uuid.NewString(),
		client: t.client,
		req:    req,
		cancel: cancel,
		offset: offset,
		buf:    make([]byte, t.cfg.BufferSize),
	}, nil
}

type httpConn struct {
	id       string
	client   *http.Client
	req      *http.Request
	cancel   context.CancelFunc
	offset   int64
	buf      []byte
	canceled atomic.Bool
}

func (c *httpConn) Start(h Handler) {
	go c.run(h)
}

func (c *httpConn) Cancel() {
	c.canceled.Store(true)
	c.cancel()
}

func (c *httpConn) run(h Handler) {
	utils.Debug("conn %s: GET %s (offset %d)", c.id, c.req.URL, c.offset)

	resp, err := c.client.Do(c.req)
	if err != nil {
		c.fail(h, err)
		return
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch {
	case c.offset > 0 && resp.StatusCode == http.StatusPartialContent:
	case c.offset > 0 && resp.StatusCode == http.StatusOK:
		// The server ignored the range request; appending its response
		// to the partial file would corrupt it.
		c.fail(h, fmt.Errorf("%s: server does not support resume", c.req.URL))
		return
	case resp.StatusCode == http.StatusOK:
	default:
		c.fail(h, fmt.Errorf("%s: unexpected status code %d", c.req.URL, resp.StatusCode))
		return
	}

	if c.canceled.Load() {
		return
	}
	h.Headers(resp.ContentLength)

	for {
		n, readErr := resp.Body.Read(c.buf)
		if n > 0 {
			if c.canceled.Load() {
				return
			}
			h.Data(c.buf[:n])
		}
		if readErr == io.EOF {
			if !c.canceled.Load() {
				utils.Debug("conn %s: finished", c.id)
				h.Done()
			}
			return
		}
		if readErr != nil {
			c.fail(h, fmt.Errorf("read error: %w", readErr))
			return
		}
	}
}

func (c *httpConn) fail(h Handler, err error) {
	if c.canceled.Load() {
		return
	}
	utils.Debug("conn %s: %v", c.id, err)
	h.Fail(err)
}
