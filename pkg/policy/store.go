// Package policy renders tenant-scoped session policy documents from
// versioned templates. Substituted values are always string literals; input
// content can never change the structure of the rendered document.
package policy

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type PolicyType string

const (
	DynamoDBLeadingKey PolicyType = "DYNAMOLEADINGKEY"
	S3TenantPrefix     PolicyType = "S3TENANTPREFIX"
)

var (
	ErrUnknownPolicyType = errors.New("unknown policy type")
	ErrPolicyValidation  = errors.New("policy validation failed")
)

//go:embed templates.yaml
var embeddedTemplates []byte

// Store holds the immutable template set, keyed by policy type.
type Store struct {
	templates map[PolicyType]string
}

// NewStore loads templates from path, or the embedded defaults when path is
// empty. The store never mutates after load.
func NewStore(path string) (*Store, error) {
	raw := embeddedTemplates
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read policy templates: %w", err)
		}
		raw = b
	}
	var doc struct {
		Templates map[string]string `yaml:"templates"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse policy templates: %w", err)
	}
	if len(doc.Templates) == 0 {
		return nil, errors.New("policy template set is empty")
	}
	m := make(map[PolicyType]string, len(doc.Templates))
	for k, v := range doc.Templates {
		m[PolicyType(k)] = v
	}
	return &Store{templates: m}, nil
}

func (s *Store) Template(t PolicyType) (string, bool) {
	tmpl, ok := s.templates[t]
	return tmpl, ok
}
