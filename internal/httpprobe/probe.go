// Package httpprobe checks whether a URL answers a plain GET.
package httpprobe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"agentforge/internal/metrics"
)

// Target kinds used as the metrics label
const (
	TargetExternalURL = "external_url"
	TargetEndpoint    = "endpoint"
)

// Prober issues single GET requests with a fixed timeout. It never retries.
type Prober struct {
	client *http.Client
	target string
}

// New creates a prober for the given target kind
func New(target string, timeout time.Duration) *Prober {
	return &Prober{
		client: &http.Client{Timeout: timeout},
		target: target,
	}
}

// Status performs a GET on url and returns the response status code.
// Transport failures (refused connection, timeout, bad URL) return an error.
func (p *Prober) Status(ctx context.Context, url string) (int, error) {
	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		metrics.Get().RecordProbe(p.target, 0, time.Since(start))
		return 0, fmt.Errorf("build request for %s: %w", url, err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		metrics.Get().RecordProbe(p.target, 0, time.Since(start))
		return 0, fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	metrics.Get().RecordProbe(p.target, resp.StatusCode, time.Since(start))
	return resp.StatusCode, nil
}
