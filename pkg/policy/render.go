package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"tvm/pkg/identity"
)

// placeholderRe matches a {{name}} slot. Substitution is a single pass over
// the source template; it never re-scans substituted output.
var placeholderRe = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_.:-]+)\s*\}\}`)

// Rendered is a validated session policy document plus the attribute
// fingerprint that produced it.
type Rendered struct {
	Type        PolicyType
	Document    string
	Fingerprint string
}

// Renderer fills policy templates with tenant attributes.
type Renderer struct {
	store *Store
}

func NewRenderer(store *Store) *Renderer { return &Renderer{store: store} }

// Render substitutes attributes into the template for policyType and
// validates the result. The reserved "tenant" key is always overwritten with
// the verified tenant id, so a caller-supplied attribute can never rebind the
// policy to another tenant.
func (r *Renderer) Render(policyType PolicyType, id identity.TenantIdentity, attrs map[string]string) (Rendered, error) {
	tmpl, ok := r.store.Template(policyType)
	if !ok {
		return Rendered{}, fmt.Errorf("%w: %s", ErrUnknownPolicyType, policyType)
	}

	vals := make(map[string]string, len(attrs)+1)
	for k, v := range attrs {
		vals[k] = v
	}
	vals["tenant"] = id.TenantID

	var missing []string
	doc := placeholderRe.ReplaceAllStringFunc(tmpl, func(m string) string {
		name := placeholderRe.FindStringSubmatch(m)[1]
		v, ok := vals[name]
		if !ok {
			missing = append(missing, name)
			return m
		}
		return escapeValue(v)
	})
	if len(missing) > 0 {
		return Rendered{}, fmt.Errorf("%w: unbound placeholders %v", ErrPolicyValidation, missing)
	}
	// Defense against nested templating: no template opener may survive
	// substitution. Values cannot trip this because escapeValue encodes
	// braces as unicode escapes.
	if strings.Contains(doc, "{{") {
		return Rendered{}, fmt.Errorf("%w: residual template markers", ErrPolicyValidation)
	}
	if err := validateDocument(doc, id.TenantID); err != nil {
		return Rendered{}, err
	}

	return Rendered{
		Type:        policyType,
		Document:    doc,
		Fingerprint: Fingerprint(policyType, vals),
	}, nil
}

// escapeValue renders v as the body of a JSON string literal. Quotes,
// backslashes and control characters go through the JSON encoder; brace
// characters are additionally encoded so template delimiters cannot appear
// in the output even as harmless text.
func escapeValue(v string) string {
	b, _ := json.Marshal(v)
	s := string(b[1 : len(b)-1])
	s = strings.ReplaceAll(s, "{", `\u007b`)
	s = strings.ReplaceAll(s, "}", `\u007d`)
	return s
}

// Fingerprint returns a stable hash of the policy type and the sorted
// attribute set, used as a cache key component. Every component is
// length-prefixed so values containing separator characters cannot collide
// with a differently shaped attribute set.
func Fingerprint(t PolicyType, vals map[string]string) string {
	keys := make([]string, 0, len(vals))
	for k := range vals {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	h := sha256.New()
	fmt.Fprintf(h, "%d:%s", len(t), t)
	for _, k := range keys {
		fmt.Fprintf(h, "%d:%s%d:%s", len(k), k, len(vals[k]), vals[k])
	}
	return hex.EncodeToString(h.Sum(nil))
}
