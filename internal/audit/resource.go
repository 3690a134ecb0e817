package audit

// nestedResources are checked in order when the body has no top-level id.
var nestedResources = []string{"campaign", "asset", "audience"}

// ExtractResourceID finds the id of the resource a response is about.
// Response envelopes are unwrapped through their "data" member. When the
// body carries no id, the id segment of route is used.
func ExtractResourceID(body any, route string) string {
	if id := idFromBody(body); id != "" {
		return id
	}
	if segs := splitRoute(route); len(segs) >= 2 && segs[1] != "status" {
		return segs[1]
	}
	return ""
}

func idFromBody(body any) string {
	m, ok := body.(map[string]any)
	if !ok {
		return ""
	}
	if data, ok := m["data"].(map[string]any); ok {
		m = data
	}

	for _, field := range []string{"id", "campaign_id"} {
		if id, ok := m[field].(string); ok && id != "" {
			return id
		}
	}
	for _, name := range nestedResources {
		if nested, ok := m[name].(map[string]any); ok {
			if id, ok := nested["id"].(string); ok && id != "" {
				return id
			}
		}
	}
	return ""
}
