package telegram

import (
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/m3rciful/leihbot/core/telegram/netutil"
)

const (
	dialTimeout     = 5 * time.Second
	keepAlive       = 30 * time.Second
	tlsTimeout      = 5 * time.Second
	idleConnTimeout = 30 * time.Second
	headerTimeout   = 5 * time.Second
	clientTimeout   = 30 * time.Second

	apiRetries = 3
	apiBackoff = 2 * time.Second
)

var errBodyNotReplayable = errors.New("telegram: request body cannot be replayed")

// BuildHTTPClient returns the client telebot talks to the Bot API with.
// Timeouts are stretched by longPoll so getUpdates can hold the connection
// open, and transient network errors are retried.
func BuildHTTPClient(longPoll time.Duration) *http.Client {
	base := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: dialTimeout, KeepAlive: keepAlive}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       idleConnTimeout,
		TLSHandshakeTimeout:   tlsTimeout,
		ResponseHeaderTimeout: headerTimeout + longPoll,
		ExpectContinueTimeout: time.Second,
	}
	return &http.Client{
		Timeout:   clientTimeout + longPoll,
		Transport: &retryTransport{base: base, maxRetries: apiRetries, backoff: apiBackoff},
	}
}

type retryTransport struct {
	base       http.RoundTripper
	maxRetries int
	backoff    time.Duration
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	for attempt := 1; ; attempt++ {
		resp, err := base.RoundTrip(req)
		if err == nil || attempt > t.maxRetries || !netutil.ShouldRetry(err) {
			return resp, err
		}
		if err := wait(req, t.backoff*time.Duration(attempt)); err != nil {
			return nil, err
		}
		next, rerr := rewind(req)
		if rerr != nil {
			return nil, errors.Join(err, rerr)
		}
		req = next
	}
}

// rewind clones req with a fresh body for another attempt.
func rewind(req *http.Request) (*http.Request, error) {
	next := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return next, nil
	}
	if req.GetBody == nil {
		return nil, errBodyNotReplayable
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	next.Body = body
	return next, nil
}

func wait(req *http.Request, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-req.Context().Done():
		return req.Context().Err()
	case <-timer.C:
		return nil
	}
}
