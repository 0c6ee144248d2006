package propublica

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grantbridge/vetting-cli/internal/resilience"
)

const orgJSON = `{
	"organization": {
		"ein": 131234567,
		"name": "Community Food Bank",
		"city": "Albany",
		"state": "NY",
		"subsection_code": 3,
		"ntee_code": "K31",
		"ruling_date": "2010-06-01"
	},
	"filings_with_data": [
		{"tax_prd": 202512, "formtype": 0, "totrevenue": 500000, "totfuncexpns": 450000,
		 "totassetsend": 250000, "totliabend": 40000, "compnsatncurrofcr": 60000},
		{"tax_prd": 202412, "formtype": 0, "totrevenue": 480000, "totfuncexpns": 430000,
		 "totassetsend": 230000, "totliabend": 35000, "compnsatncurrofcr": 58000}
	]
}`

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
}

func TestGetOrganization(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/organizations/131234567.json", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(orgJSON))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL), WithRetry(fastRetry()))
	resp, err := client.GetOrganization(context.Background(), "131234567")
	require.NoError(t, err)

	assert.Equal(t, "Community Food Bank", resp.Organization.Name)
	assert.Equal(t, 3, resp.Organization.SubsectionCode)
	assert.Equal(t, "2010-06-01", resp.Organization.RulingDate)
	require.Len(t, resp.Filings, 2)
	assert.Equal(t, 202512, resp.Filings[0].TaxPeriod)
	assert.Equal(t, "990", resp.Filings[0].FormTypeName())
}

func TestGetOrganizationNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL), WithRetry(fastRetry()))
	_, err := client.GetOrganization(context.Background(), "999999999")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrOrganizationNotFound))
}

func TestGetOrganizationRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(orgJSON))
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL), WithRetry(fastRetry()))
	resp, err := client.GetOrganization(context.Background(), "131234567")
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, "Community Food Bank", resp.Organization.Name)
}

func TestGetOrganizationDoesNotRetryNotFound(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	client := NewClient(WithBaseURL(srv.URL), WithRetry(fastRetry()))
	_, err := client.GetOrganization(context.Background(), "999999999")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFormTypeName(t *testing.T) {
	assert.Equal(t, "990", Filing{FormType: 0}.FormTypeName())
	assert.Equal(t, "990EZ", Filing{FormType: 1}.FormTypeName())
	assert.Equal(t, "990PF", Filing{FormType: 2}.FormTypeName())
	assert.Equal(t, "form-7", Filing{FormType: 7}.FormTypeName())
}
