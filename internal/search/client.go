// Package search is a thin HTTP client for the external search service.
// It exists mostly as an instrumentation target: declared hooks wrap its
// transport with tracing and request counting at assembly time.
package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/keithlinneman/wireup/internal/xerrors"
)

// Result is one search hit.
type Result struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
	Title string  `json:"title"`
}

// Client queries the search service. Its Transport is deliberately
// exported so instrumentation hooks can wrap it.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Transport returns the current round tripper, defaulting like net/http does.
func (c *Client) Transport() http.RoundTripper {
	if c.http.Transport == nil {
		return http.DefaultTransport
	}
	return c.http.Transport
}

// SetTransport swaps the round tripper. Instrumentation hooks call this
// with a wrapper around the previous value.
func (c *Client) SetTransport(rt http.RoundTripper) {
	c.http.Transport = rt
}

// Search runs a query and decodes the hits.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	u, err := url.Parse(c.baseURL + "/search")
	if err != nil {
		return nil, xerrors.Wrap(err, "search url")
	}
	q := u.Query()
	q.Set("q", query)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, xerrors.Wrap(err, "search request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, xerrors.Wrap(err, "search call")
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, xerrors.Newf("search returned status %d", resp.StatusCode)
	}

	var out struct {
		Results []Result `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, xerrors.Wrap(err, "search decode")
	}
	return out.Results, nil
}
