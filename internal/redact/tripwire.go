package redact

import (
	"bytes"
	"encoding/json"
	"regexp"
	"sort"
	"strconv"
	"unicode/utf8"

	"github.com/rotisserie/eris"
)

// ViolationType distinguishes hard drops from soft findings.
type ViolationType string

const (
	// BlockedField means the key was removed from the output.
	BlockedField ViolationType = "BLOCKED_FIELD"
	// PotentialDomain means a string value looks like a domain. The value is
	// kept.
	PotentialDomain ViolationType = "POTENTIAL_DOMAIN"
)

const previewLen = 50

var domainPattern = regexp.MustCompile(`(?i)\b[a-z0-9-]+\.(com|io|ai|co|net|org|dev)\b`)

// Violation is one finding. Path is dotted, with array indexes in brackets:
// "items[0].website".
type Violation struct {
	Type    ViolationType `json:"type"`
	Path    string        `json:"path"`
	Preview string        `json:"preview"`
}

// Result is the output of Scan.
type Result struct {
	Sanitized  interface{}
	Violations []Violation
}

// Options configures a Tripwire.
type Options struct {
	// Rules replaces DefaultRules when non-nil.
	Rules []Rule
	// BlockBareName adds BareNameRule.
	BlockBareName bool
}

// Tripwire scans decoded JSON values against a fixed rule list.
type Tripwire struct {
	rules []Rule
}

func New(opts Options) *Tripwire {
	rules := opts.Rules
	if rules == nil {
		rules = DefaultRules()
	}
	rules = append([]Rule(nil), rules...)
	if opts.BlockBareName {
		rules = append(rules, BareNameRule)
	}
	return &Tripwire{rules: rules}
}

// Rules returns a copy of the active rule list.
func (t *Tripwire) Rules() []Rule {
	return append([]Rule(nil), t.rules...)
}

// Blocked reports whether key matches any rule.
func (t *Tripwire) Blocked(key string) bool {
	for _, r := range t.rules {
		if r.Match(key) {
			return true
		}
	}
	return false
}

// Scan walks payload and returns a sanitized copy. Blocked keys are removed.
// The input is not modified. Violations are reported in key order.
//
// Values outside the encoding/json decoded set (typed maps, structs, slices)
// are first normalized through a JSON round trip so their keys are matched
// under their wire names. A value that cannot be encoded is dropped and
// reported as blocked.
func (t *Tripwire) Scan(payload interface{}) Result {
	var violations []Violation
	sanitized := t.walk(payload, "", &violations)
	return Result{Sanitized: sanitized, Violations: violations}
}

func (t *Tripwire) walk(v interface{}, path string, out *[]Violation) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		clean := make(map[string]interface{}, len(val))
		for _, k := range keys {
			child := joinPath(path, k)
			if t.Blocked(k) {
				*out = append(*out, Violation{Type: BlockedField, Path: child, Preview: preview(val[k])})
				continue
			}
			clean[k] = t.walk(val[k], child, out)
		}
		return clean
	case []interface{}:
		clean := make([]interface{}, len(val))
		for i, item := range val {
			clean[i] = t.walk(item, path+"["+strconv.Itoa(i)+"]", out)
		}
		return clean
	case string:
		if domainPattern.MatchString(val) {
			*out = append(*out, Violation{Type: PotentialDomain, Path: path, Preview: preview(val)})
		}
		return val
	case nil, bool, float64, json.Number:
		return val
	default:
		norm, err := jsonValue(val)
		if err != nil {
			*out = append(*out, Violation{Type: BlockedField, Path: path, Preview: preview(val)})
			return nil
		}
		return t.walk(norm, path, out)
	}
}

// jsonValue converts v to the generic form encoding/json decodes into.
func jsonValue(v interface{}) (interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, eris.Wrap(err, "redact: encode value")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var out interface{}
	if err := dec.Decode(&out); err != nil {
		return nil, eris.Wrap(err, "redact: decode value")
	}
	return out, nil
}

// ScanJSON decodes body, scans it and re-encodes the sanitized value. Numbers
// keep their original text.
func (t *Tripwire) ScanJSON(body []byte) ([]byte, []Violation, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var payload interface{}
	if err := dec.Decode(&payload); err != nil {
		return nil, nil, eris.Wrap(err, "redact: decode payload")
	}

	res := t.Scan(payload)
	if !hasBlocked(res.Violations) {
		return body, res.Violations, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(res.Sanitized); err != nil {
		return nil, nil, eris.Wrap(err, "redact: encode payload")
	}
	return buf.Bytes(), res.Violations, nil
}

func hasBlocked(vs []Violation) bool {
	for _, v := range vs {
		if v.Type == BlockedField {
			return true
		}
	}
	return false
}

func joinPath(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}

func preview(v interface{}) string {
	switch val := v.(type) {
	case string:
		if utf8.RuneCountInString(val) <= previewLen {
			return val
		}
		return string([]rune(val)[:previewLen])
	case nil:
		return "null"
	case map[string]interface{}:
		return "object"
	case []interface{}:
		return "array"
	case bool:
		return "boolean"
	case json.Number, float64, int, int64:
		return "number"
	default:
		return "unknown"
	}
}
