package profile

import (
	"context"

	"github.com/grantbridge/vetting-cli/internal/model"
	"github.com/grantbridge/vetting-cli/pkg/courtlistener"
)

// CourtRecords adapts the docket search API to the red-flag detector's
// lookup contract.
type CourtRecords struct {
	client courtlistener.Client
}

// NewCourtRecords wraps a docket search client.
func NewCourtRecords(client courtlistener.Client) *CourtRecords {
	return &CourtRecords{client: client}
}

// Check searches for cases naming the organization.
func (c *CourtRecords) Check(ctx context.Context, name string) (*model.CourtRecordsResult, error) {
	resp, err := c.client.SearchDockets(ctx, name)
	if err != nil {
		return nil, err
	}

	result := &model.CourtRecordsResult{
		Found:     resp.Count > 0,
		CaseCount: resp.Count,
	}
	for _, docket := range resp.Results {
		result.Cases = append(result.Cases, model.CourtCase{
			CaseName:  docket.CaseName,
			Court:     docket.Court,
			DateFiled: docket.DateFiled,
			URL:       docket.AbsoluteURL,
		})
	}
	return result, nil
}
