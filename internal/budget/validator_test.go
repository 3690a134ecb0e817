package budget

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bcnelson/campaign-agent-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeReader filters a fixed campaign list the way storage does.
type fakeReader struct {
	campaigns []*domain.Campaign
	err       error
	calls     int
}

func (f *fakeReader) ListCampaignsInRange(ctx context.Context, org string, from, to domain.Date) ([]*domain.Campaign, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	var out []*domain.Campaign
	for _, c := range f.campaigns {
		if c.OrganizationID == org && c.Overlaps(from, to) {
			out = append(out, c)
		}
	}
	return out, nil
}

func date(y, m, d int) domain.Date {
	return domain.NewDate(y, time.Month(m), d)
}

func campaign(id string, budget int64, start, end domain.Date) *domain.Campaign {
	return &domain.Campaign{
		ID:             id,
		OrganizationID: "org-1",
		Name:           id,
		Budget:         budget,
		StartDate:      start,
		EndDate:        end,
		Status:         domain.CampaignStatusActive,
	}
}

func septemberReader() *fakeReader {
	return &fakeReader{campaigns: []*domain.Campaign{
		campaign("sep", 6000, date(2025, 9, 1), date(2025, 9, 30)),
	}}
}

func TestValidateRejectsSeptemberOverflow(t *testing.T) {
	v := NewValidator(10000)

	_, err := v.Validate(context.Background(), septemberReader(), Request{
		OrganizationID: "org-1",
		Budget:         5000,
		StartDate:      date(2025, 9, 15),
		EndDate:        date(2025, 10, 15),
	})

	var exceeded *domain.BudgetExceededError
	require.True(t, errors.As(err, &exceeded), "expected BudgetExceededError, got %v", err)
	assert.Equal(t, "2025-09", exceeded.AffectedMonth)
	assert.Equal(t, int64(6000), exceeded.CurrentTotal)
	assert.Equal(t, int64(5000), exceeded.Requested)
	assert.Equal(t, int64(4000), exceeded.Available)
	assert.Equal(t, int64(10000), exceeded.Limit)
	require.Len(t, exceeded.Campaigns, 1)
	assert.Equal(t, "sep", exceeded.Campaigns[0].ID)
}

func TestValidateAcceptsExactlyAtCeiling(t *testing.T) {
	v := NewValidator(10000)

	result, err := v.Validate(context.Background(), septemberReader(), Request{
		OrganizationID: "org-1",
		Budget:         4000,
		StartDate:      date(2025, 9, 15),
		EndDate:        date(2025, 10, 15),
	})
	require.NoError(t, err)
	require.Len(t, result.Months, 2)

	assert.Equal(t, MonthUsage{Month: "2025-09", Limit: 10000, Committed: 6000, Requested: 4000, Available: 0}, result.Months[0])
	assert.Equal(t, MonthUsage{Month: "2025-10", Limit: 10000, Committed: 0, Requested: 4000, Available: 6000}, result.Months[1])
}

func TestValidateChecksEveryMonthIndependently(t *testing.T) {
	v := NewValidator(10000)
	reader := &fakeReader{campaigns: []*domain.Campaign{
		campaign("sep-small", 1000, date(2025, 9, 1), date(2025, 9, 30)),
		campaign("oct-big", 8000, date(2025, 10, 1), date(2025, 10, 31)),
	}}

	_, err := v.Validate(context.Background(), reader, Request{
		OrganizationID: "org-1",
		Budget:         3000,
		StartDate:      date(2025, 9, 20),
		EndDate:        date(2025, 10, 5),
	})

	var exceeded *domain.BudgetExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, "2025-10", exceeded.AffectedMonth)
	assert.Equal(t, int64(8000), exceeded.CurrentTotal)
	assert.Equal(t, int64(2000), exceeded.Available)
}

func TestValidateExcludesCampaignBeingUpdated(t *testing.T) {
	v := NewValidator(10000)
	reader := &fakeReader{campaigns: []*domain.Campaign{
		campaign("self", 9000, date(2025, 9, 1), date(2025, 9, 30)),
		campaign("other", 1000, date(2025, 9, 1), date(2025, 9, 30)),
	}}

	// Shortening the range without changing the budget must pass.
	_, err := v.Validate(context.Background(), reader, Request{
		OrganizationID:    "org-1",
		Budget:            9000,
		StartDate:         date(2025, 9, 10),
		EndDate:           date(2025, 9, 20),
		ExcludeCampaignID: "self",
	})
	require.NoError(t, err)

	// Without exclusion the same numbers double count.
	_, err = v.Validate(context.Background(), reader, Request{
		OrganizationID: "org-1",
		Budget:         9000,
		StartDate:      date(2025, 9, 10),
		EndDate:        date(2025, 9, 20),
	})
	var exceeded *domain.BudgetExceededError
	require.ErrorAs(t, err, &exceeded)
	assert.Equal(t, int64(10000), exceeded.CurrentTotal)
}

func TestValidateIgnoresCancelledAndOtherOrganizations(t *testing.T) {
	v := NewValidator(10000)
	cancelled := campaign("cancelled", 9000, date(2025, 9, 1), date(2025, 9, 30))
	cancelled.Status = domain.CampaignStatusCancelled
	foreign := campaign("foreign", 9000, date(2025, 9, 1), date(2025, 9, 30))
	foreign.OrganizationID = "org-2"

	reader := &fakeReader{campaigns: []*domain.Campaign{cancelled, foreign}}
	_, err := v.Validate(context.Background(), reader, Request{
		OrganizationID: "org-1",
		Budget:         10000,
		StartDate:      date(2025, 9, 1),
		EndDate:        date(2025, 9, 30),
	})
	assert.NoError(t, err)
}

func TestValidateAttributesFullBudgetToEveryMonth(t *testing.T) {
	v := NewValidator(10000)
	reader := &fakeReader{campaigns: []*domain.Campaign{
		campaign("quarter", 7000, date(2025, 7, 31), date(2025, 9, 1)),
	}}

	for _, month := range []int{7, 8, 9} {
		_, err := v.Validate(context.Background(), reader, Request{
			OrganizationID: "org-1",
			Budget:         3001,
			StartDate:      date(2025, month, 1),
			EndDate:        date(2025, month, 1),
		})
		var exceeded *domain.BudgetExceededError
		require.ErrorAs(t, err, &exceeded, "month %d", month)
		assert.Equal(t, int64(7000), exceeded.CurrentTotal)
	}
}

func TestValidatePropagatesStorageErrors(t *testing.T) {
	v := NewValidator(10000)
	reader := &fakeReader{err: errors.New("connection refused")}

	_, err := v.Validate(context.Background(), reader, Request{
		OrganizationID: "org-1",
		Budget:         1,
		StartDate:      date(2025, 9, 1),
		EndDate:        date(2025, 9, 1),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDatabase)

	var exceeded *domain.BudgetExceededError
	assert.False(t, errors.As(err, &exceeded))
}

func TestValidateRejectsBadInput(t *testing.T) {
	v := NewValidator(10000)
	reader := &fakeReader{}

	_, err := v.Validate(context.Background(), reader, Request{
		OrganizationID: "org-1", Budget: 100, StartDate: date(2025, 9, 2), EndDate: date(2025, 9, 1),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = v.Validate(context.Background(), reader, Request{
		OrganizationID: "org-1", Budget: 0, StartDate: date(2025, 9, 1), EndDate: date(2025, 9, 1),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Zero(t, reader.calls)
}

func TestStatus(t *testing.T) {
	v := NewValidator(10000)

	status, err := v.Status(context.Background(), septemberReader(), "org-1", Month{Year: 2025, Month: 9})
	require.NoError(t, err)
	assert.Equal(t, "2025-09", status.Month)
	assert.Equal(t, "September 2025", status.Label)
	assert.Equal(t, int64(6000), status.Committed)
	assert.Equal(t, int64(4000), status.Available)
	assert.Len(t, status.Campaigns, 1)

	status, err = v.Status(context.Background(), septemberReader(), "org-1", Month{Year: 2025, Month: 11})
	require.NoError(t, err)
	assert.Zero(t, status.Committed)
	assert.Empty(t, status.Campaigns)
}
