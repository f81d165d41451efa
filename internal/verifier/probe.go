package verifier

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/btraven00/linkscan/internal/log"
)

// maxRedirects bounds redirect chains; some hosts bounce through several.
const maxRedirects = 10

// drainLimit is how much of a GET body is read so the connection can be reused.
const drainLimit = 4 << 10

// Prober issues one reachability probe and reports the final status code.
// A non-nil error means the transport failed and the code is meaningless.
type Prober interface {
	Probe(ctx context.Context, target string) (int, error)
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context, target string) (int, error)

// Probe calls f.
func (f ProberFunc) Probe(ctx context.Context, target string) (int, error) {
	return f(ctx, target)
}

// HTTPProber probes with HEAD and falls back to GET. Certificates are not
// verified: the question is whether the link answers, not whether it is
// trustworthy.
type HTTPProber struct {
	client    *http.Client
	userAgent string
}

// NewHTTPProber creates a prober whose every request is bounded by timeout.
func NewHTTPProber(timeout time.Duration, userAgent string) *HTTPProber {
	return newHTTPProber(timeout, userAgent, newTransport())
}

func newTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
		TLSClientConfig:       &tls.Config{InsecureSkipVerify: true},
	}
}

func newHTTPProber(timeout time.Duration, userAgent string, transport *http.Transport) *HTTPProber {
	client := &http.Client{
		Timeout:   timeout,
		Transport: log.WrapTransport(transport),
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", len(via))
			}
			// Preserve headers through redirects
			if len(via) > 0 {
				req.Header = via[0].Header.Clone()
			}
			return nil
		},
	}

	return &HTTPProber{
		client:    client,
		userAgent: userAgent,
	}
}

// Probe sends HEAD first. A transport error or a 405/501 answer, meaning the
// server will not serve HEAD, triggers one GET.
func (p *HTTPProber) Probe(ctx context.Context, target string) (int, error) {
	code, err := p.do(ctx, http.MethodHead, target)
	if err == nil && !headRejected(code) {
		return code, nil
	}

	if err != nil {
		log.Debug("HEAD failed, retrying with GET", "url", target, "error", err)
	}

	return p.do(ctx, http.MethodGet, target)
}

func headRejected(code int) bool {
	return code == http.StatusMethodNotAllowed || code == http.StatusNotImplemented
}

func (p *HTTPProber) do(ctx context.Context, method, target string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, http.NoBody)
	if err != nil {
		return 0, err
	}

	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "*/*")

	resp, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if method == http.MethodGet {
		_, _ = io.CopyN(io.Discard, resp.Body, drainLimit)
	}

	return resp.StatusCode, nil
}

// timed runs one probe and measures wall-clock time around it.
func timed(ctx context.Context, p Prober, target string) (int, time.Duration, error) {
	start := time.Now()
	code, err := p.Probe(ctx, target)

	return code, time.Since(start), err
}
