package http

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/cloudstore/rpc/common"
	"github.com/ValentinKolb/cloudstore/rpc/transport"
	"golang.org/x/net/http2"
)

const initialBackoff = 50 * time.Millisecond

// NewHttpClientTransport creates a new HTTP client transport
func NewHttpClientTransport() transport.IRPCClientTransport {
	return &httpClientTransport{ClientMetrics: transport.NewClientMetrics()}
}

type httpClientTransport struct {
	serverURLs []*url.URL
	client     *http.Client
	counter    atomic.Uint32
	retryCount int

	*transport.ClientMetrics
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IRPCClientTransport)
// --------------------------------------------------------------------------

func (t *httpClientTransport) Connect(config common.ClientConfig) error {
	if len(config.Transport.Endpoints) == 0 {
		return fmt.Errorf("no endpoints provided")
	}

	// Parse each server URL
	parsedURLs := make([]*url.URL, len(config.Transport.Endpoints))
	for i, server := range config.Transport.Endpoints {
		parsedURL, err := url.Parse(server)
		if err != nil {
			return err
		}
		if parsedURL.Scheme == "" || parsedURL.Host == "" {
			return fmt.Errorf("invalid endpoint %q, expected http://host:port", server)
		}
		parsedURLs[i] = parsedURL
	}

	timeout := time.Duration(config.TimeoutSecond) * time.Second

	var roundTripper http.RoundTripper
	if config.Transport.HTTP2 {
		// HTTP/2 over cleartext (h2c), the server must be started with HTTP2 enabled
		roundTripper = &http2.Transport{
			AllowHTTP: true,
			DialTLSContext: func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, network, addr)
			},
		}
	} else {
		roundTripper = &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: max(config.Transport.ConnectionsPerEndpoint, 10),
			IdleConnTimeout:     90 * time.Second,
		}
	}

	t.client = &http.Client{
		Transport: roundTripper,
		Timeout:   timeout,
	}
	t.serverURLs = parsedURLs
	t.retryCount = max(config.Transport.RetryCount, 1)

	return nil
}

func (t *httpClientTransport) Send(ctx context.Context, universeID uint64, req []byte) ([]byte, error) {
	if t.client == nil {
		return nil, fmt.Errorf("http transport not initialized")
	}

	start := time.Now()
	defer t.RequestDone(start)

	backoff := initialBackoff
	var lastErr error
	for attempt := range t.retryCount {
		resp, retry, err := t.do(ctx, universeID, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		Logger.Debugf("Request attempt %d/%d failed: %v", attempt+1, t.retryCount, err)

		if !retry || ctx.Err() != nil || attempt == t.retryCount-1 {
			break
		}

		// Exponential backoff with a small random jitter (+-10%)
		t.Retried()
		timer := time.NewTimer(time.Duration(float64(backoff) * (0.9 + 0.2*rand.Float64())))
		select {
		case <-ctx.Done():
			timer.Stop()
			lastErr = ctx.Err()
		case <-timer.C:
		}
		if ctx.Err() != nil {
			break
		}
		backoff *= 2
	}

	t.Failed()
	return nil, fmt.Errorf("failed to send request after %d attempts: %w", t.retryCount, lastErr)
}

func (t *httpClientTransport) Close() error {
	if t.client != nil {
		t.client.CloseIdleConnections()
	}

	t.client = nil
	t.serverURLs = nil

	return nil
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// do sends a single request to the next server (round-robin).
// retry reports whether the request may be repeated.
func (t *httpClientTransport) do(ctx context.Context, universeID uint64, req []byte) (resp []byte, retry bool, err error) {
	idx := t.counter.Add(1) % uint32(len(t.serverURLs))
	requestURL := t.serverURLs[idx].JoinPath(fmt.Sprint(universeID))

	// A new request per attempt, the body reader can only be consumed once
	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, requestURL.String(), bytes.NewReader(req))
	if err != nil {
		return nil, false, err
	}
	httpRequest.Header.Set("Content-Type", "application/octet-stream")

	httpResponse, err := t.client.Do(httpRequest)
	if err != nil {
		return nil, true, err
	}
	defer func() {
		if err := httpResponse.Body.Close(); err != nil {
			Logger.Errorf("Failed to close response body: %v", err)
		}
	}()

	if httpResponse.StatusCode != http.StatusOK {
		// drain the body so the connection can be reused
		_, _ = io.Copy(io.Discard, httpResponse.Body)
		return nil, httpResponse.StatusCode >= http.StatusInternalServerError, fmt.Errorf("http error: %s", httpResponse.Status)
	}

	body, err := io.ReadAll(httpResponse.Body)
	return body, err != nil, err
}
