// Package courtlistener is a client for the CourtListener docket search
// API, used by the optional court-records red-flag rule.
package courtlistener

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"

	"github.com/grantbridge/vetting-cli/internal/resilience"
)

const defaultBaseURL = "https://www.courtlistener.com/api/rest/v4"

// Client searches dockets by party name.
type Client interface {
	SearchDockets(ctx context.Context, partyName string) (*SearchResponse, error)
}

// Docket is one search hit.
type Docket struct {
	CaseName    string `json:"caseName"`
	Court       string `json:"court"`
	DateFiled   string `json:"dateFiled"`
	AbsoluteURL string `json:"absolute_url"`
}

// SearchResponse is the body of GET /search/.
type SearchResponse struct {
	Count   int      `json:"count"`
	Results []Docket `json:"results"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRetry overrides the default retry policy.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

type httpClient struct {
	token   string
	baseURL string
	http    *http.Client
	retry   resilience.RetryConfig
}

// NewClient creates a CourtListener API client. The token is required by
// the API for authenticated search.
func NewClient(token string, opts ...Option) Client {
	c := &httpClient{
		token:   token,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		retry: resilience.DefaultRetryConfig(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) SearchDockets(ctx context.Context, partyName string) (*SearchResponse, error) {
	query := url.Values{}
	query.Set("type", "r")
	query.Set("q", `party:"`+partyName+`"`)
	endpoint := c.baseURL + "/search/?" + query.Encode()

	retry := c.retry
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger("courtlistener", "search_dockets")
	}

	return resilience.DoVal(ctx, retry, func(ctx context.Context) (*SearchResponse, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, eris.Wrap(err, "courtlistener: create request")
		}
		req.Header.Set("Accept", "application/json")
		if c.token != "" {
			req.Header.Set("Authorization", "Token "+c.token)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, eris.Wrap(err, "courtlistener: request")
		}
		defer resp.Body.Close()

		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(
				eris.Errorf("courtlistener: http %d", resp.StatusCode), resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, eris.Errorf("courtlistener: http %d", resp.StatusCode)
		}

		var body SearchResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return nil, eris.Wrap(err, "courtlistener: decode response")
		}
		return &body, nil
	})
}
