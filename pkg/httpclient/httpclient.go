// pkg/httpclient/httpclient.go

package httpclient

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"time"

	cerr "github.com/cockroachdb/errors"

	"github.com/CodeMonkeyCybersecurity/hermes/pkg/shared"
)

// UserAgent identifies hermes requests in the target's access log.
var UserAgent = "hermes/" + shared.Version

// New returns a client with bounded dial and overall timeouts.
func New(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = shared.DefaultProbeTimeout
	}
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{MinVersion: tls.VersionTLS12},
			DialContext: (&net.Dialer{
				Timeout:   5 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        2,
			IdleConnTimeout:     30 * time.Second,
			TLSHandshakeTimeout: 5 * time.Second,
		},
	}
}

// Response is the part of an HTTP response hermes cares about.
type Response struct {
	StatusCode int
	Status     string
	Elapsed    time.Duration
}

// Get issues a GET and discards the body. Any HTTP status is a successful
// round trip; only transport failures return an error.
func Get(ctx context.Context, client *http.Client, url string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, cerr.Wrapf(err, "build request for %s", url)
	}
	req.Header.Set("User-Agent", UserAgent)

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return nil, cerr.Wrapf(err, "GET %s", url)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	return &Response{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Elapsed:    time.Since(start),
	}, nil
}
