// Package validation checks agent and dashboard request bodies before they
// reach the service layer. Every check reports all problems at once.
package validation

import (
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/bcnelson/campaign-agent-api/internal/domain"
)

const (
	maxNameLength        = 200
	maxDescriptionLength = 2000
	maxExpiryDays        = 365
	maxRateLimit         = 10000
)

// ValidateName validates a display name.
func ValidateName(errs *ValidationErrors, field, name string) {
	trimmed := strings.TrimSpace(name)
	switch {
	case trimmed == "":
		errs.Add(field, name, "is required")
	case len(trimmed) > maxNameLength:
		errs.Addf(field, "", "must be at most %d characters", maxNameLength)
	}
}

func validateDescription(errs *ValidationErrors, description string) {
	if len(description) > maxDescriptionLength {
		errs.Addf("description", "", "must be at most %d characters", maxDescriptionLength)
	}
}

func validateBudget(errs *ValidationErrors, budget int64) {
	if budget <= 0 {
		errs.Add("budget", strconv.FormatInt(budget, 10), "must be a positive integer")
	}
}

func validateDates(errs *ValidationErrors, start, end domain.Date) {
	if start.IsZero() {
		errs.Add("start_date", "", "is required")
	}
	if end.IsZero() {
		errs.Add("end_date", "", "is required")
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		errs.Add("end_date", end.String(), "must not be before start_date")
	}
}

// ValidateStatus validates a campaign status.
func ValidateStatus(errs *ValidationErrors, status string) {
	if !slices.Contains(domain.CampaignStatuses, status) {
		errs.Addf("status", status, "must be one of %s", strings.Join(domain.CampaignStatuses, ", "))
	}
}

func validatePlatforms(errs *ValidationErrors, platforms []string) {
	if len(platforms) == 0 {
		errs.Add("platforms", "", "at least one platform is required")
		return
	}
	seen := make(map[string]bool, len(platforms))
	for _, p := range platforms {
		if !slices.Contains(domain.Platforms, p) {
			errs.Addf("platforms", p, "must be one of %s", strings.Join(domain.Platforms, ", "))
			continue
		}
		if seen[p] {
			errs.Add("platforms", p, "is listed more than once")
		}
		seen[p] = true
	}
}

// ValidateCreateCampaign validates a campaign creation request.
// An empty status defaults to draft and is not reported.
func ValidateCreateCampaign(req *domain.CreateCampaignRequest) error {
	var errs ValidationErrors
	ValidateName(&errs, "name", req.Name)
	validateDescription(&errs, req.Description)
	validateBudget(&errs, req.Budget)
	validateDates(&errs, req.StartDate, req.EndDate)
	if req.Status != "" {
		ValidateStatus(&errs, req.Status)
	}
	validatePlatforms(&errs, req.Platforms)
	return errs.Err()
}

// ValidateUpdateCampaign validates the fields present in an update and
// the date range that results from applying it to current.
func ValidateUpdateCampaign(current *domain.Campaign, req *domain.UpdateCampaignRequest) error {
	var errs ValidationErrors
	if req.Name != nil {
		ValidateName(&errs, "name", *req.Name)
	}
	if req.Description != nil {
		validateDescription(&errs, *req.Description)
	}
	if req.Budget != nil {
		validateBudget(&errs, *req.Budget)
	}
	if req.Status != nil {
		ValidateStatus(&errs, *req.Status)
	}
	if req.Platforms != nil {
		validatePlatforms(&errs, *req.Platforms)
	}

	start, end := current.StartDate, current.EndDate
	if req.StartDate != nil {
		start = *req.StartDate
	}
	if req.EndDate != nil {
		end = *req.EndDate
	}
	validateDates(&errs, start, end)
	return errs.Err()
}

// ValidateCreateAsset validates an asset creation request.
func ValidateCreateAsset(req *domain.CreateAssetRequest) error {
	var errs ValidationErrors
	ValidateName(&errs, "name", req.Name)
	switch req.Type {
	case domain.AssetTypeImage, domain.AssetTypeVideo, domain.AssetTypeText:
	default:
		errs.Add("type", req.Type, "must be one of image, video, text")
	}
	if req.Type != domain.AssetTypeText || req.URL != "" {
		validateURL(&errs, "url", req.URL)
	}
	return errs.Err()
}

func validateURL(errs *ValidationErrors, field, raw string) {
	if raw == "" {
		errs.Add(field, "", "is required")
		return
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		errs.Add(field, raw, "must be an absolute http(s) URL")
	}
}

// ValidateCreateAudience validates an audience creation request.
func ValidateCreateAudience(req *domain.CreateAudienceRequest) error {
	var errs ValidationErrors
	ValidateName(&errs, "name", req.Name)
	validateDescription(&errs, req.Description)
	return errs.Err()
}

// ValidateCreateAPIKey validates a key issuance request.
func ValidateCreateAPIKey(req *domain.CreateAPIKeyRequest) error {
	var errs ValidationErrors
	ValidateName(&errs, "name", req.Name)
	validatePermissions(&errs, req.Permissions)
	if req.ExpiresInDays != nil && (*req.ExpiresInDays < 1 || *req.ExpiresInDays > maxExpiryDays) {
		errs.Add("expires_in_days", strconv.Itoa(*req.ExpiresInDays), "must be between 1 and 365")
	}
	if req.RateLimit != nil {
		validateRateLimit(&errs, *req.RateLimit)
	}
	return errs.Err()
}

// ValidateUpdateAPIKey validates a key update request.
func ValidateUpdateAPIKey(req *domain.UpdateAPIKeyRequest, now time.Time) error {
	var errs ValidationErrors
	if req.Name != nil {
		ValidateName(&errs, "name", *req.Name)
	}
	if req.Permissions != nil {
		validatePermissions(&errs, *req.Permissions)
	}
	if req.ExpiresAt != nil && !req.ExpiresAt.After(now) {
		errs.Add("expires_at", req.ExpiresAt.Format(time.RFC3339), "must be in the future")
	}
	if req.RateLimit != nil {
		validateRateLimit(&errs, *req.RateLimit)
	}
	return errs.Err()
}

func validatePermissions(errs *ValidationErrors, perms domain.Permissions) {
	if err := perms.Validate(); err != nil {
		errs.Add("permissions", "", err.Error())
	}
}

func validateRateLimit(errs *ValidationErrors, limit int) {
	if limit < 0 || limit > maxRateLimit {
		errs.Addf("rate_limit", strconv.Itoa(limit), "must be between 0 and %d", maxRateLimit)
	}
}

// ParseMonth parses a YYYY-MM month.
func ParseMonth(s string) (time.Time, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return time.Time{}, NewValidationError("month", s, "must be formatted as YYYY-MM")
	}
	return t, nil
}

// ParsePagination reads limit/offset query values with defaults and caps.
func ParsePagination(q url.Values) (limit, offset int, err error) {
	var errs ValidationErrors
	limit, offset = 50, 0
	if v := q.Get("limit"); v != "" {
		n, convErr := strconv.Atoi(v)
		if convErr != nil || n < 1 || n > 200 {
			errs.Add("limit", v, "must be between 1 and 200")
		} else {
			limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		n, convErr := strconv.Atoi(v)
		if convErr != nil || n < 0 {
			errs.Add("offset", v, "must be a non-negative integer")
		} else {
			offset = n
		}
	}
	return limit, offset, errs.Err()
}
