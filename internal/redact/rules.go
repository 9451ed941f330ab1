// Package redact is the last line of defense on the HTTP boundary. It strips
// identifying fields from outbound JSON and flags domain-like values.
package redact

import "strings"

// MatchKind selects how a Rule compares against a field name.
type MatchKind int

const (
	// Substring matches when the pattern appears anywhere in the key.
	Substring MatchKind = iota
	// Suffix matches when the key ends with the pattern.
	Suffix
	// Exact matches the whole key.
	Exact
)

func (k MatchKind) String() string {
	switch k {
	case Substring:
		return "substring"
	case Suffix:
		return "suffix"
	case Exact:
		return "exact"
	default:
		return "unknown"
	}
}

// Rule is one compiled field-name matcher. Matching is case-insensitive.
type Rule struct {
	Pattern string
	Kind    MatchKind
}

// Match reports whether key is blocked by r.
func (r Rule) Match(key string) bool {
	k := strings.ToLower(key)
	p := strings.ToLower(r.Pattern)
	switch r.Kind {
	case Substring:
		return strings.Contains(k, p)
	case Suffix:
		return strings.HasSuffix(k, p)
	case Exact:
		return k == p
	default:
		return false
	}
}

// DefaultRules is the shipped blocklist. The "_name" rule is a literal suffix:
// it blocks "company_name" and "founder_name" but not a bare "name".
func DefaultRules() []Rule {
	return []Rule{
		{Pattern: "url", Kind: Substring},
		{Pattern: "domain", Kind: Substring},
		{Pattern: "website", Kind: Substring},
		{Pattern: "linkedin", Kind: Substring},
		{Pattern: "email", Kind: Substring},
		{Pattern: "founder", Kind: Substring},
		{Pattern: "_name", Kind: Suffix},
		{Pattern: "company_name", Kind: Exact},
		{Pattern: "startup_name", Kind: Exact},
		{Pattern: "startup_id", Kind: Exact},
	}
}

// BareNameRule additionally blocks a key called exactly "name".
var BareNameRule = Rule{Pattern: "name", Kind: Exact}
