package policy

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jmespath/go-jmespath"
)

// validateDocument checks that the rendered document is well-formed and that
// every statement is scoped to the tenant: the tenant id must appear either
// as an exact condition value or as a component of a resource pattern. A
// renderer or template bug fails loudly here instead of producing a broader
// policy.
func validateDocument(doc, tenantID string) error {
	var parsed any
	if err := json.Unmarshal([]byte(doc), &parsed); err != nil {
		return fmt.Errorf("%w: not valid JSON: %v", ErrPolicyValidation, err)
	}

	stmtsRaw, _ := jmespath.Search("Statement", parsed)
	stmts, ok := stmtsRaw.([]any)
	if !ok || len(stmts) == 0 {
		return fmt.Errorf("%w: empty statement list", ErrPolicyValidation)
	}

	for i, s := range stmts {
		effect, _ := jmespath.Search("Effect", s)
		if effect != "Allow" {
			return fmt.Errorf("%w: statement %d effect must be Allow", ErrPolicyValidation, i)
		}
		actions, _ := jmespath.Search("Action", s)
		if len(stringsOf(actions)) == 0 {
			return fmt.Errorf("%w: statement %d has no actions", ErrPolicyValidation, i)
		}
		resources, _ := jmespath.Search("Resource", s)
		resList := stringsOf(resources)
		if len(resList) == 0 {
			return fmt.Errorf("%w: statement %d has no resources", ErrPolicyValidation, i)
		}
		cond, _ := jmespath.Search("Condition", s)
		if !scopedToTenant(resList, leafStrings(cond), tenantID) {
			return fmt.Errorf("%w: statement %d not scoped to tenant", ErrPolicyValidation, i)
		}
	}
	return nil
}

// scopedToTenant accepts a statement when a condition value equals the tenant
// id exactly, or a resource pattern carries it as a path component.
func scopedToTenant(resources, condVals []string, tenantID string) bool {
	for _, v := range condVals {
		if v == tenantID {
			return true
		}
	}
	for _, r := range resources {
		if containsComponent(r, tenantID) {
			return true
		}
	}
	return false
}

// containsComponent reports whether id occurs in pattern bounded by ARN or
// path separators, so "t-1" does not satisfy a pattern scoped to "t-12".
func containsComponent(pattern, id string) bool {
	if id == "" {
		return false
	}
	for start := 0; start < len(pattern); {
		i := strings.Index(pattern[start:], id)
		if i < 0 {
			return false
		}
		i += start
		before := i == 0 || pattern[i-1] == '/' || pattern[i-1] == ':'
		end := i + len(id)
		after := end == len(pattern) || pattern[end] == '/' || pattern[end] == ':'
		if before && after {
			return true
		}
		start = i + 1
	}
	return false
}

func stringsOf(v any) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []any:
		out := make([]string, 0, len(t))
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// leafStrings collects every string leaf under a condition subtree.
func leafStrings(v any) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []any:
		var out []string
		for _, e := range t {
			out = append(out, leafStrings(e)...)
		}
		return out
	case map[string]any:
		var out []string
		for _, e := range t {
			out = append(out, leafStrings(e)...)
		}
		return out
	}
	return nil
}
