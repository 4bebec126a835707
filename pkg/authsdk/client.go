package authsdk

import (
	"net/http"
	"strings"
	"time"
)

// Client talks to the FinTrack API. It is stateless; AuthState layers the
// session state machine on top of it.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

type ClientOption func(*Client)

// WithHTTPClient replaces the default HTTP client, for example to attach a
// cookie jar.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) { c.HTTPClient = hc }
}

func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		BaseURL:    strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}
