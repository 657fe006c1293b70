package policy

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tvm/pkg/identity"
)

func testIdentity(tenant string) identity.TenantIdentity {
	return identity.TenantIdentity{
		UserID:   "user-1",
		TenantID: tenant,
	}
}

func defaultRenderer(t *testing.T) *Renderer {
	t.Helper()
	store, err := NewStore("")
	require.NoError(t, err)
	return NewRenderer(store)
}

func statements(t *testing.T, doc string) []any {
	t.Helper()
	var parsed map[string]any
	require.NoError(t, json.Unmarshal([]byte(doc), &parsed))
	stmts, ok := parsed["Statement"].([]any)
	require.True(t, ok)
	return stmts
}

func TestRenderLeadingKeyPolicy(t *testing.T) {
	r := defaultRenderer(t)

	rendered, err := r.Render(DynamoDBLeadingKey, testIdentity("t-42"), nil)
	require.NoError(t, err)
	assert.Equal(t, DynamoDBLeadingKey, rendered.Type)
	assert.NotEmpty(t, rendered.Fingerprint)

	stmts := statements(t, rendered.Document)
	require.Len(t, stmts, 1)
	stmt := stmts[0].(map[string]any)
	assert.Equal(t, "Allow", stmt["Effect"])

	cond := stmt["Condition"].(map[string]any)["ForAllValues:StringEquals"].(map[string]any)
	keys := cond["dynamodb:LeadingKeys"].([]any)
	require.Len(t, keys, 1)
	assert.Equal(t, "t-42", keys[0])
}

func TestRenderS3PrefixPolicy(t *testing.T) {
	r := defaultRenderer(t)

	rendered, err := r.Render(S3TenantPrefix, testIdentity("t-42"), map[string]string{"bucket": "tenant-data"})
	require.NoError(t, err)

	stmts := statements(t, rendered.Document)
	require.Len(t, stmts, 1)
	assert.Equal(t, "arn:aws:s3:::tenant-data/t-42/*", stmts[0].(map[string]any)["Resource"])
}

func TestRenderTenantKeyCannotBeOverridden(t *testing.T) {
	r := defaultRenderer(t)

	rendered, err := r.Render(DynamoDBLeadingKey, testIdentity("t-42"), map[string]string{"tenant": "t-evil"})
	require.NoError(t, err)
	assert.Contains(t, rendered.Document, "t-42")
	assert.NotContains(t, rendered.Document, "t-evil")
}

func TestRenderInjectionSafety(t *testing.T) {
	r := defaultRenderer(t)

	benign, err := r.Render(DynamoDBLeadingKey, testIdentity("t-42"), nil)
	require.NoError(t, err)

	for _, hostile := range []string{
		`t-42"],"Resource":"*"`,
		`t-42"},{"Effect":"Allow","Action":"*","Resource":"*"}]}`,
		`{{tenant}}`,
		`t-{{42}}`,
		"t-42\"\n\t\\",
	} {
		rendered, err := r.Render(DynamoDBLeadingKey, testIdentity(hostile), nil)
		require.NoError(t, err, "hostile id %q should render as a harmless literal", hostile)

		// Structure is identical to the benign render: same statement count,
		// the hostile id confined to a single condition value.
		hostileStmts := statements(t, rendered.Document)
		require.Len(t, hostileStmts, len(statements(t, benign.Document)))
		cond := hostileStmts[0].(map[string]any)["Condition"].(map[string]any)["ForAllValues:StringEquals"].(map[string]any)
		keys := cond["dynamodb:LeadingKeys"].([]any)
		require.Len(t, keys, 1)
		assert.Equal(t, hostile, keys[0])
		assert.NotContains(t, rendered.Document, "{{")
	}
}

func TestRenderIsolation(t *testing.T) {
	r := defaultRenderer(t)

	a, err := r.Render(DynamoDBLeadingKey, testIdentity("t-aaa"), nil)
	require.NoError(t, err)
	b, err := r.Render(DynamoDBLeadingKey, testIdentity("t-bbb"), nil)
	require.NoError(t, err)

	assert.NotContains(t, a.Document, "t-bbb")
	assert.NotContains(t, b.Document, "t-aaa")
	assert.NotEqual(t, a.Fingerprint, b.Fingerprint)
}

func TestRenderUnknownPolicyType(t *testing.T) {
	r := defaultRenderer(t)

	_, err := r.Render(PolicyType("NOPE"), testIdentity("t-42"), nil)
	assert.ErrorIs(t, err, ErrUnknownPolicyType)
}

func TestRenderUnboundPlaceholder(t *testing.T) {
	r := defaultRenderer(t)

	_, err := r.Render(S3TenantPrefix, testIdentity("t-42"), nil) // bucket missing
	assert.ErrorIs(t, err, ErrPolicyValidation)
}

func TestRenderRejectsResidualMarkers(t *testing.T) {
	r := storeFromYAML(t, `
templates:
  BROKEN: |
    {"Version":"2012-10-17","Statement":[{"Effect":"Allow","Action":["x:Get"],"Resource":"arn:x:{{tenant}}","Note":"{{ dangling"}]}
`)
	_, err := r.Render(PolicyType("BROKEN"), testIdentity("t-42"), nil)
	assert.ErrorIs(t, err, ErrPolicyValidation)
}

func TestRenderRejectsUnscopedStatement(t *testing.T) {
	r := storeFromYAML(t, `
templates:
  WIDE: |
    {"Version":"2012-10-17","Statement":[{"Effect":"Allow","Action":["s3:GetObject"],"Resource":"arn:aws:s3:::everything/*"}]}
`)
	_, err := r.Render(PolicyType("WIDE"), testIdentity("t-42"), nil)
	assert.ErrorIs(t, err, ErrPolicyValidation)
}

func TestRenderRejectsDenyEffect(t *testing.T) {
	r := storeFromYAML(t, `
templates:
  DENY: |
    {"Version":"2012-10-17","Statement":[{"Effect":"Deny","Action":["s3:GetObject"],"Resource":"arn:aws:s3:::b/{{tenant}}/*"}]}
`)
	_, err := r.Render(PolicyType("DENY"), testIdentity("t-42"), nil)
	assert.ErrorIs(t, err, ErrPolicyValidation)
}

func TestFingerprintDeterministic(t *testing.T) {
	a := Fingerprint(DynamoDBLeadingKey, map[string]string{"tenant": "t-42", "bucket": "b"})
	b := Fingerprint(DynamoDBLeadingKey, map[string]string{"bucket": "b", "tenant": "t-42"})
	assert.Equal(t, a, b)

	c := Fingerprint(DynamoDBLeadingKey, map[string]string{"tenant": "t-42", "bucket": "other"})
	assert.NotEqual(t, a, c)

	d := Fingerprint(S3TenantPrefix, map[string]string{"tenant": "t-42", "bucket": "b"})
	assert.NotEqual(t, a, d)
}

func TestFingerprintSeparatorValuesDoNotCollide(t *testing.T) {
	// A value carrying the old separator text must not hash like a
	// differently shaped attribute set.
	a := Fingerprint(S3TenantPrefix, map[string]string{"bucket": "B", "c": "1"})
	b := Fingerprint(S3TenantPrefix, map[string]string{"bucket": "B|c=1"})
	assert.NotEqual(t, a, b)

	c := Fingerprint(S3TenantPrefix, map[string]string{"ab": "c"})
	d := Fingerprint(S3TenantPrefix, map[string]string{"a": "bc"})
	assert.NotEqual(t, c, d)
}

func TestContainsComponentBoundaries(t *testing.T) {
	assert.True(t, containsComponent("arn:aws:s3:::b/t-1/*", "t-1"))
	assert.False(t, containsComponent("arn:aws:s3:::b/t-12/*", "t-1"))
	assert.True(t, containsComponent("arn:aws:dynamodb:::table:t-1", "t-1"))
	assert.False(t, containsComponent("arn:aws:s3:::b/x/*", "t-1"))
}

func storeFromYAML(t *testing.T, y string) *Renderer {
	t.Helper()
	path := filepath.Join(t.TempDir(), "templates.yaml")
	require.NoError(t, os.WriteFile(path, []byte(strings.TrimSpace(y)+"\n"), 0o600))
	store, err := NewStore(path)
	require.NoError(t, err)
	return NewRenderer(store)
}
