package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chainguard-dev/clog"
)

const defaultTimeout = 5 * time.Second

// httpJSON performs GET requests against JSON APIs.
type httpJSON struct {
	client    *http.Client
	userAgent string
}

func newHTTPJSON(timeout time.Duration, userAgent string) httpJSON {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return httpJSON{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

// StatusError is returned when an upstream answers with a non-2xx status.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d: %s", e.URL, e.StatusCode, e.Body)
}

func (h httpJSON) get(ctx context.Context, base, path string, query url.Values, out any) error {
	u := strings.TrimSuffix(base, "/") + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if h.userAgent != "" {
		req.Header.Set("User-Agent", h.userAgent)
	}

	start := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", u, err)
	}
	defer resp.Body.Close()

	clog.FromContext(ctx).With("url", u).
		With("status", resp.StatusCode).
		With("elapsed", time.Since(start)).
		Debug("Upstream request")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{URL: u, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", u, err)
	}
	return nil
}
