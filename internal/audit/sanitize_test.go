package audit

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeRedactsAtAnyDepth(t *testing.T) {
	var body any
	require.NoError(t, json.Unmarshal([]byte(`{
		"name": "Autumn push",
		"Password": "hunter2",
		"config": {
			"API_KEY": "cak_abc",
			"nested": {"refresh_token": "r", "keep": 1}
		},
		"items": [
			{"authorization": "Bearer x", "label": "a"},
			[{"client_secret": "s"}],
			"plain"
		],
		"X-Api-Key": "k",
		"card_number": "4111"
	}`), &body))

	clean := Sanitize(body).(map[string]any)

	assert.Equal(t, "Autumn push", clean["name"])
	assert.Equal(t, RedactedValue, clean["Password"])
	assert.Equal(t, RedactedValue, clean["X-Api-Key"])
	assert.Equal(t, RedactedValue, clean["card_number"])

	config := clean["config"].(map[string]any)
	assert.Equal(t, RedactedValue, config["API_KEY"])
	nested := config["nested"].(map[string]any)
	assert.Equal(t, RedactedValue, nested["refresh_token"])
	assert.Equal(t, float64(1), nested["keep"])

	items := clean["items"].([]any)
	first := items[0].(map[string]any)
	assert.Equal(t, RedactedValue, first["authorization"])
	assert.Equal(t, "a", first["label"])
	inner := items[1].([]any)[0].(map[string]any)
	assert.Equal(t, RedactedValue, inner["client_secret"])
	assert.Equal(t, "plain", items[2])

	out, err := json.Marshal(clean)
	require.NoError(t, err)
	for _, raw := range []string{"hunter2", "cak_abc", "Bearer x", "4111"} {
		assert.NotContains(t, string(out), raw)
	}

	// the input is left untouched
	assert.Equal(t, "hunter2", body.(map[string]any)["Password"])
}

func TestSanitizeRedactsWholeSubtree(t *testing.T) {
	body := map[string]any{"credentials": map[string]any{"user": "u", "pass": "p"}}
	clean := Sanitize(body).(map[string]any)
	assert.Equal(t, RedactedValue, clean["credentials"])
}

func TestSanitizeScalars(t *testing.T) {
	assert.Nil(t, Sanitize(nil))
	assert.Equal(t, "text", Sanitize("text"))
	assert.Equal(t, float64(3), Sanitize(float64(3)))
}

func TestTruncate(t *testing.T) {
	small := map[string]any{"name": "short"}
	assert.Equal(t, small, Truncate(small, 100))

	big := map[string]any{"blob": strings.Repeat("x", 2000)}
	out, ok := Truncate(big, 1000).(map[string]any)
	require.True(t, ok)

	encoded, _ := json.Marshal(big)
	assert.Equal(t, true, out["_truncated"])
	assert.Equal(t, len(encoded), out["_original_size"])
	preview := out["_preview"].(string)
	assert.Len(t, preview, 500)
	assert.True(t, strings.HasPrefix(string(encoded), preview))
}

func TestTruncatePreviewKeepsRunesIntact(t *testing.T) {
	big := strings.Repeat("é", 1000)
	out := Truncate(big, 100).(map[string]any)
	preview := out["_preview"].(string)
	assert.Equal(t, 500, len([]rune(preview)))
}

func TestDecodeBody(t *testing.T) {
	assert.Nil(t, decodeBody(nil))
	assert.Equal(t, map[string]any{"a": float64(1)}, decodeBody([]byte(`{"a":1}`)))
	assert.Equal(t, map[string]any{"_unparseable": true, "_original_size": 8}, decodeBody([]byte("not json")))
}
