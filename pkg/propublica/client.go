// Package propublica is a client for the ProPublica Nonprofit Explorer
// API, the profile and filing source for vetting runs.
package propublica

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/grantbridge/vetting-cli/internal/resilience"
)

const defaultBaseURL = "https://projects.propublica.org/nonprofits/api/v2"

// ErrOrganizationNotFound is returned when the API has no record of the
// EIN.
var ErrOrganizationNotFound = eris.New("propublica: organization not found")

// Client fetches nonprofit organization records.
type Client interface {
	GetOrganization(ctx context.Context, ein string) (*OrganizationResponse, error)
}

// Organization is the registry portion of an organization record.
type Organization struct {
	EIN            int    `json:"ein"`
	Name           string `json:"name"`
	City           string `json:"city"`
	State          string `json:"state"`
	SubsectionCode int    `json:"subsection_code"`
	NTEECode       string `json:"ntee_code"`
	RulingDate     string `json:"ruling_date"` // YYYY-MM-DD
}

// Filing is one Form 990 extract. Field names follow the IRS extract
// columns the API exposes.
type Filing struct {
	TaxPeriod        int     `json:"tax_prd"` // YYYYMM
	FormType         int     `json:"formtype"`
	TotalRevenue     float64 `json:"totrevenue"`
	TotalExpenses    float64 `json:"totfuncexpns"`
	TotalAssets      float64 `json:"totassetsend"`
	TotalLiabilities float64 `json:"totliabend"`
	OfficerComp      float64 `json:"compnsatncurrofcr"`
}

// OrganizationResponse is the body of GET /organizations/{ein}.json.
type OrganizationResponse struct {
	Organization Organization `json:"organization"`
	Filings      []Filing     `json:"filings_with_data"`
}

// FormTypeName maps the API's numeric form type to the familiar label.
func (f Filing) FormTypeName() string {
	switch f.FormType {
	case 0:
		return "990"
	case 1:
		return "990EZ"
	case 2:
		return "990PF"
	default:
		return fmt.Sprintf("form-%d", f.FormType)
	}
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
	baseURL string
	http    *http.Client
	retry   resilience.RetryConfig
}

// NewClient creates a Nonprofit Explorer API client.
func NewClient(opts ...Option) Client {
	c := &httpClient{
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

func (c *httpClient) GetOrganization(ctx context.Context, ein string) (*OrganizationResponse, error) {
	url := fmt.Sprintf("%s/organizations/%s.json", c.baseURL, ein)

	retry := c.retry
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger("propublica", "get_organization")
	}

	return resilience.DoVal(ctx, retry, func(ctx context.Context) (*OrganizationResponse, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, eris.Wrap(err, "propublica: create request")
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, eris.Wrap(err, "propublica: request")
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusNotFound:
			return nil, eris.Wrapf(ErrOrganizationNotFound, "ein %s", ein)
		case resilience.IsTransientHTTPStatus(resp.StatusCode):
			return nil, resilience.NewTransientError(
				eris.Errorf("propublica: http %d for ein %s", resp.StatusCode, ein), resp.StatusCode)
		case resp.StatusCode != http.StatusOK:
			return nil, eris.Errorf("propublica: http %d for ein %s", resp.StatusCode, ein)
		}

		var body OrganizationResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return nil, eris.Wrap(err, "propublica: decode response")
		}
		return &body, nil
	})
}
