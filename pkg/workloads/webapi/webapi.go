// Package webapi is a tiny JSON-over-HTTP client for collaborator services.
package webapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// StatusError is returned when the server responds with non 2xx status.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// StatusOf returns the status code in err, or 0 when err is not a StatusError.
func StatusOf(err error) int {
	serr := new(StatusError)
	if errors.As(err, &serr) {
		return serr.StatusCode
	}
	return 0
}

type Client struct {
	api        string
	httpclient *http.Client
}

// New creates a client for the API at base.
//
// When httpclient is nil, http.DefaultClient is used.
func New(base string, httpclient *http.Client) (*Client, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme: %s", base)
	}
	if httpclient == nil {
		httpclient = http.DefaultClient
	}
	return &Client{api: strings.TrimSuffix(u.String(), "/"), httpclient: httpclient}, nil
}

func (c *Client) apipath(path ...string) string {
	p := make([]string, 0, len(path)+1)
	p = append(p, c.api)
	for _, s := range path {
		p = append(p, url.PathEscape(strings.Trim(s, "/")))
	}
	return strings.Join(p, "/")
}

// Get sends GET request and decodes JSON response into v.
func (c *Client) Get(ctx context.Context, v any, path ...string) error {
	return c.do(ctx, http.MethodGet, c.apipath(path...), nil, v)
}

// Post sends body as JSON and decodes JSON response into v, if v is not nil.
func (c *Client) Post(ctx context.Context, body any, v any, path ...string) error {
	buf, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, c.apipath(path...), bytes.NewReader(buf), v)
}

func (c *Client) do(ctx context.Context, method string, u string, body io.Reader, v any) error {
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpclient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || 300 <= resp.StatusCode {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Method: method, URL: u, StatusCode: resp.StatusCode, Body: string(msg)}
	}

	if v == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("%s %s: malformed response: %w", method, u, err)
	}
	return nil
}
