package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"sort"
)

// Resources an agent key can be granted access to.
const (
	ResourceCampaigns = "campaigns"
	ResourceAssets    = "assets"
	ResourceAudiences = "audiences"
	ResourceBudget    = "budget"
)

// Actions on resources.
const (
	ActionRead   = "read"
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionAssign = "assign"

	// ActionAll grants every known action of a known resource.
	ActionAll = "*"
)

// knownActions lists the grantable actions per resource. Anything not
// listed here is denied regardless of what a key claims.
var knownActions = map[string][]string{
	ResourceCampaigns: {ActionRead, ActionCreate, ActionUpdate},
	ResourceAssets:    {ActionRead, ActionCreate, ActionAssign},
	ResourceAudiences: {ActionRead, ActionCreate, ActionAssign},
	ResourceBudget:    {ActionRead},
}

// Permissions maps a resource to the actions granted on it.
type Permissions map[string][]string

// IsKnownPermission reports whether (resource, action) is grantable.
func IsKnownPermission(resource, action string) bool {
	actions, ok := knownActions[resource]
	if !ok {
		return false
	}
	if action == ActionAll {
		return true
	}
	for _, a := range actions {
		if a == action {
			return true
		}
	}
	return false
}

// KnownResources returns the grantable resources in sorted order.
func KnownResources() []string {
	out := make([]string, 0, len(knownActions))
	for r := range knownActions {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// Allows reports whether the permissions grant action on resource.
// Unknown resources and actions are always denied.
func (p Permissions) Allows(resource, action string) bool {
	if action == ActionAll || !IsKnownPermission(resource, action) {
		return false
	}
	for _, granted := range p[resource] {
		if granted == action || granted == ActionAll {
			return true
		}
	}
	return false
}

// Validate rejects grants that name an unknown resource or action.
func (p Permissions) Validate() error {
	if len(p) == 0 {
		return fmt.Errorf("at least one permission is required")
	}
	for resource, actions := range p {
		if _, ok := knownActions[resource]; !ok {
			return fmt.Errorf("unknown resource %q", resource)
		}
		if len(actions) == 0 {
			return fmt.Errorf("resource %q has no actions", resource)
		}
		for _, action := range actions {
			if !IsKnownPermission(resource, action) {
				return fmt.Errorf("unknown action %q for resource %q", action, resource)
			}
		}
	}
	return nil
}

func (p Permissions) Value() (driver.Value, error) {
	if p == nil {
		return "{}", nil
	}
	b, err := json.Marshal(map[string][]string(p))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (p *Permissions) Scan(src any) error {
	return scanJSON(src, p)
}
