package audit

import (
	"net/http"
	"strings"
)

// DeriveAction names an agent request as a dotted action, for example
// "campaign.create", "budget.status" or "campaign.asset.assign". route is
// the request path with the agent prefix removed.
func DeriveAction(method, route string) string {
	segs := splitRoute(route)
	if len(segs) == 0 {
		return "unknown"
	}
	resource := singular(segs[0])

	switch len(segs) {
	case 1:
		switch method {
		case http.MethodGet:
			return resource + ".list"
		case http.MethodPost:
			return resource + ".create"
		}
	case 2:
		if segs[1] == "status" {
			return resource + ".status"
		}
		switch method {
		case http.MethodGet:
			return resource + ".get"
		case http.MethodPut, http.MethodPatch:
			return resource + ".update"
		case http.MethodDelete:
			return resource + ".delete"
		}
	default:
		child := singular(segs[len(segs)-1])
		switch method {
		case http.MethodPost, http.MethodPut:
			return resource + "." + child + ".assign"
		case http.MethodGet:
			return resource + "." + child + ".list"
		case http.MethodDelete:
			return resource + "." + child + ".unassign"
		}
	}

	return resource + "." + strings.ToLower(method)
}

// ResourceType returns the singular resource named by route.
func ResourceType(route string) string {
	segs := splitRoute(route)
	if len(segs) == 0 {
		return ""
	}
	return singular(segs[0])
}

func splitRoute(route string) []string {
	route = strings.Trim(route, "/")
	if route == "" {
		return nil
	}
	return strings.Split(route, "/")
}

func singular(s string) string {
	switch {
	case strings.HasSuffix(s, "ies"):
		return strings.TrimSuffix(s, "ies") + "y"
	case strings.HasSuffix(s, "s"):
		return strings.TrimSuffix(s, "s")
	}
	return s
}
