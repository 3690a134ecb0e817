package audit

import "testing"

func TestDeriveAction(t *testing.T) {
	tests := []struct {
		method string
		route  string
		want   string
	}{
		{"GET", "/campaigns", "campaign.list"},
		{"POST", "/campaigns", "campaign.create"},
		{"GET", "/campaigns/c-1", "campaign.get"},
		{"PATCH", "/campaigns/c-1", "campaign.update"},
		{"PUT", "/campaigns/c-1", "campaign.update"},
		{"DELETE", "/campaigns/c-1", "campaign.delete"},
		{"GET", "/audiences", "audience.list"},
		{"POST", "/assets", "asset.create"},
		{"GET", "/budget/status", "budget.status"},
		{"POST", "/campaigns/c-1/assets", "campaign.asset.assign"},
		{"POST", "/campaigns/c-1/audiences", "campaign.audience.assign"},
		{"GET", "/campaigns/c-1/assets", "campaign.asset.list"},
		{"OPTIONS", "/campaigns", "campaign.options"},
		{"GET", "/", "unknown"},
		{"GET", "", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.route, func(t *testing.T) {
			if got := DeriveAction(tt.method, tt.route); got != tt.want {
				t.Errorf("DeriveAction(%q, %q) = %q, want %q", tt.method, tt.route, got, tt.want)
			}
		})
	}
}

func TestResourceType(t *testing.T) {
	tests := map[string]string{
		"/campaigns/c-1/assets": "campaign",
		"/audiences":            "audience",
		"/budget/status":        "budget",
		"":                      "",
	}
	for route, want := range tests {
		if got := ResourceType(route); got != want {
			t.Errorf("ResourceType(%q) = %q, want %q", route, got, want)
		}
	}
}

func TestExtractResourceID(t *testing.T) {
	tests := []struct {
		name  string
		body  any
		route string
		want  string
	}{
		{
			name:  "top level id",
			body:  map[string]any{"id": "c-1", "name": "x"},
			route: "/campaigns",
			want:  "c-1",
		},
		{
			name:  "envelope data id",
			body:  map[string]any{"success": true, "data": map[string]any{"id": "c-2"}},
			route: "/campaigns",
			want:  "c-2",
		},
		{
			name:  "assignment result",
			body:  map[string]any{"data": map[string]any{"campaign_id": "c-3", "asset_id": "a-1"}},
			route: "/campaigns/c-3/assets",
			want:  "c-3",
		},
		{
			name:  "nested campaign before asset",
			body:  map[string]any{"campaign": map[string]any{"id": "c-4"}, "asset": map[string]any{"id": "a-4"}},
			route: "/campaigns",
			want:  "c-4",
		},
		{
			name:  "nested audience",
			body:  map[string]any{"audience": map[string]any{"id": "au-1"}},
			route: "/audiences",
			want:  "au-1",
		},
		{
			name:  "falls back to path",
			body:  map[string]any{"success": false},
			route: "/campaigns/c-5",
			want:  "c-5",
		},
		{
			name:  "status route has no id",
			body:  nil,
			route: "/budget/status",
			want:  "",
		},
		{
			name:  "list body",
			body:  []any{map[string]any{"id": "c-6"}},
			route: "/campaigns",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractResourceID(tt.body, tt.route); got != tt.want {
				t.Errorf("ExtractResourceID() = %q, want %q", got, tt.want)
			}
		})
	}
}
