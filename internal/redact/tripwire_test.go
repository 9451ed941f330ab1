package redact

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, s string) interface{} {
	t.Helper()
	var v interface{}
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

func TestRuleMatch(t *testing.T) {
	tests := []struct {
		rule Rule
		key  string
		want bool
	}{
		{Rule{"url", Substring}, "profile_URL", true},
		{Rule{"url", Substring}, "curly", true},
		{Rule{"_name", Suffix}, "company_name", true},
		{Rule{"_name", Suffix}, "Founder_Name", true},
		{Rule{"_name", Suffix}, "name", false},
		{Rule{"_name", Suffix}, "name_of_thing", false},
		{Rule{"_name", Suffix}, "startup_name_or_descriptor", false},
		{Rule{"startup_id", Exact}, "STARTUP_ID", true},
		{Rule{"startup_id", Exact}, "startup_ids", false},
		{Rule{"x", MatchKind(9)}, "x", false},
	}
	for _, tt := range tests {
		if got := tt.rule.Match(tt.key); got != tt.want {
			t.Errorf("%s %q on %q = %v, want %v", tt.rule.Kind, tt.rule.Pattern, tt.key, got, tt.want)
		}
	}
}

func TestDefaultRulesBlockList(t *testing.T) {
	tw := New(Options{})
	blocked := []string{
		"url", "logo_url", "domain", "website", "linkedin", "linkedin_profile",
		"email", "founder_email", "founder", "founders", "company_name",
		"startup_name", "startup_id", "contact_name",
	}
	for _, k := range blocked {
		assert.True(t, tw.Blocked(k), k)
	}
	allowed := []string{"name", "score", "match_id", "startup_god_score", "investor_firm_or_null", "startup_sectors"}
	for _, k := range allowed {
		assert.False(t, tw.Blocked(k), k)
	}
}

func TestScanDropsFounderEmail(t *testing.T) {
	tw := New(Options{})
	res := tw.Scan(decode(t, `{"founder_email":"jane@example.org","score":72}`))

	assert.Equal(t, map[string]interface{}{"score": float64(72)}, res.Sanitized)
	require.Len(t, res.Violations, 1)
	assert.Equal(t, Violation{Type: BlockedField, Path: "founder_email", Preview: "jane@example.org"}, res.Violations[0])
}

func TestScanScenarioD(t *testing.T) {
	payload := `{"name":"Acme Inc","website":"acme.io","score":72}`

	t.Run("literal suffix semantics", func(t *testing.T) {
		res := New(Options{}).Scan(decode(t, payload))
		assert.Equal(t, map[string]interface{}{"name": "Acme Inc", "score": float64(72)}, res.Sanitized)
		require.Len(t, res.Violations, 1)
		assert.Equal(t, "website", res.Violations[0].Path)
	})

	t.Run("bare name blocked", func(t *testing.T) {
		res := New(Options{BlockBareName: true}).Scan(decode(t, payload))
		assert.Equal(t, map[string]interface{}{"score": float64(72)}, res.Sanitized)
		require.Len(t, res.Violations, 2)
		assert.Equal(t, "name", res.Violations[0].Path)
		assert.Equal(t, "website", res.Violations[1].Path)
		for _, v := range res.Violations {
			assert.Equal(t, BlockedField, v.Type)
		}
	})
}

func TestScanNestedPaths(t *testing.T) {
	tw := New(Options{})
	res := tw.Scan(decode(t, `{
		"items": [
			{"score": 1, "profile": {"linkedin": "x", "sector": "ai"}},
			{"score": 2, "homepage": "visit acme.io today"}
		],
		"meta": {"total": 2}
	}`))

	want := map[string]interface{}{
		"items": []interface{}{
			map[string]interface{}{"score": float64(1), "profile": map[string]interface{}{"sector": "ai"}},
			map[string]interface{}{"score": float64(2), "homepage": "visit acme.io today"},
		},
		"meta": map[string]interface{}{"total": float64(2)},
	}
	assert.Equal(t, want, res.Sanitized)
	require.Len(t, res.Violations, 2)
	assert.Equal(t, Violation{Type: BlockedField, Path: "items[0].profile.linkedin", Preview: "x"}, res.Violations[0])
	assert.Equal(t, Violation{Type: PotentialDomain, Path: "items[1].homepage", Preview: "visit acme.io today"}, res.Violations[1])
}

func TestScanDomainValues(t *testing.T) {
	tw := New(Options{})
	tests := []struct {
		value string
		want  bool
	}{
		{"acme.io", true},
		{"ACME.COM", true},
		{"go to foo-bar.dev", true},
		{"acme.iot", false},
		{"AI/ML", false},
		{"Series A", false},
		{"acme.xyz", false},
	}
	for _, tt := range tests {
		res := tw.Scan(map[string]interface{}{"note": tt.value})
		got := len(res.Violations) == 1 && res.Violations[0].Type == PotentialDomain
		if got != tt.want {
			t.Errorf("value %q flagged=%v, want %v", tt.value, got, tt.want)
		}
		// Soft findings never remove the value.
		assert.Equal(t, tt.value, res.Sanitized.(map[string]interface{})["note"])
	}
}

func TestScanPreview(t *testing.T) {
	tw := New(Options{})
	long := strings.Repeat("é", 80)
	res := tw.Scan(decode(t, `{"email":"`+long+`","website":{"a":1},"url":[1],"domain":null,"founder":true,"linkedin":3}`))

	previews := map[string]string{}
	for _, v := range res.Violations {
		previews[v.Path] = v.Preview
	}
	assert.Equal(t, strings.Repeat("é", 50), previews["email"])
	assert.Equal(t, "object", previews["website"])
	assert.Equal(t, "array", previews["url"])
	assert.Equal(t, "null", previews["domain"])
	assert.Equal(t, "boolean", previews["founder"])
	assert.Equal(t, "number", previews["linkedin"])
	assert.Equal(t, map[string]interface{}{}, res.Sanitized)
}

func TestScanDoesNotMutateInput(t *testing.T) {
	in := map[string]interface{}{"website": "x", "inner": map[string]interface{}{"email": "y"}}
	New(Options{}).Scan(in)
	assert.Contains(t, in, "website")
	assert.Contains(t, in["inner"], "email")
}

func TestScanOddInputs(t *testing.T) {
	tw := New(Options{})
	for _, v := range []interface{}{nil, "plain", float64(1), true, []interface{}{}, map[string]interface{}{}} {
		assert.NotPanics(t, func() { tw.Scan(v) })
	}

	// Deep nesting within normal JSON depth.
	deep := strings.Repeat(`{"a":`, 500) + `{"email":"x"}` + strings.Repeat(`}`, 500)
	res := tw.Scan(decode(t, deep))
	require.Len(t, res.Violations, 1)
	assert.True(t, strings.HasSuffix(res.Violations[0].Path, ".a.email"))
}

func TestScanTypedValues(t *testing.T) {
	tw := New(Options{})

	res := tw.Scan(map[string]string{"website": "acme.io", "sector": "ai"})
	assert.Equal(t, map[string]interface{}{"sector": "ai"}, res.Sanitized)
	require.Len(t, res.Violations, 1)
	assert.Equal(t, BlockedField, res.Violations[0].Type)
	assert.Equal(t, "website", res.Violations[0].Path)

	type founder struct {
		Label string `json:"label"`
		Email string `json:"founder_email"`
	}
	res = tw.Scan(map[string]interface{}{
		"rows": []founder{{Label: "A", Email: "a@acme.io"}},
	})
	assert.Equal(t, map[string]interface{}{
		"rows": []interface{}{map[string]interface{}{"label": "A"}},
	}, res.Sanitized)
	require.Len(t, res.Violations, 1)
	assert.Equal(t, "rows[0].founder_email", res.Violations[0].Path)

	res = tw.Scan(map[string]interface{}{"ok": "x", "ch": make(chan int)})
	assert.Equal(t, map[string]interface{}{"ok": "x", "ch": nil}, res.Sanitized)
	require.Len(t, res.Violations, 1)
	assert.Equal(t, "ch", res.Violations[0].Path)
}

func TestScanJSON(t *testing.T) {
	tw := New(Options{})

	clean, violations, err := tw.ScanJSON([]byte(`{"score":72.50,"website":"acme.io"}`))
	require.NoError(t, err)
	require.Len(t, violations, 1)
	assert.JSONEq(t, `{"score":72.50}`, string(clean))
	assert.Contains(t, string(clean), "72.50")

	body := []byte(`{"note":"see acme.io"}`)
	out, violations, err := tw.ScanJSON(body)
	require.NoError(t, err)
	assert.Equal(t, body, out)
	assert.Len(t, violations, 1)

	_, _, err = tw.ScanJSON([]byte(`{not json`))
	assert.Error(t, err)
}

func TestCustomRules(t *testing.T) {
	tw := New(Options{Rules: []Rule{{Pattern: "secret", Kind: Substring}}})
	res := tw.Scan(map[string]interface{}{"website": "w", "api_secret": "s"})
	assert.Equal(t, map[string]interface{}{"website": "w"}, res.Sanitized)
	assert.Len(t, tw.Rules(), 1)
}
