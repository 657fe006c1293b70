// Package broker vends temporary credentials from STS. The rendered policy
// rides along as a session policy, so it can only narrow the base role's
// permissions: a renderer bug degrades to "no access", never excess access.
package broker

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/aws-sdk-go-v2/service/sts/types"
	"github.com/aws/smithy-go"
	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"tvm/pkg/policy"
)

const (
	minDurationSeconds = 60
	maxDurationSeconds = 3600
	maxSessionNameLen  = 64
)

var (
	ErrAssumeRoleDenied = errors.New("assume role denied")
	ErrUnavailable      = errors.New("credential broker unavailable")
)

// sessionNameBad matches characters outside the STS role-session-name set.
var sessionNameBad = regexp.MustCompile(`[^a-zA-Z0-9_+=,.@-]`)

// Credentials is a vended, time-boxed credential set. It is never written to
// durable storage and never logged.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	ExpiresAt       time.Time
}

// FreshFor reports whether the credential remains usable for at least margin.
func (c Credentials) FreshFor(margin time.Duration) bool {
	return time.Now().Before(c.ExpiresAt.Add(-margin))
}

// Request carries the per-vend parameters alongside the rendered policy.
type Request struct {
	TenantID        string
	DurationSeconds int32
	SessionName     string // defaults to the tenant id
}

// STSAPI is the slice of the STS client the broker uses.
type STSAPI interface {
	AssumeRole(ctx context.Context, params *sts.AssumeRoleInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleOutput, error)
}

// Client calls AssumeRole with bounded retries. Transient failures back off
// exponentially; denials and malformed-policy errors fail fast.
type Client struct {
	api         STSAPI
	roleArn     string
	timeout     time.Duration
	maxRetries  int
	maxDuration int32
	log         *zap.SugaredLogger
}

// NewClient builds a broker client. maxDuration caps vended session lifetime;
// it is itself bounded by the STS session-policy ceiling of one hour.
func NewClient(api STSAPI, roleArn string, timeout time.Duration, maxRetries int, maxDuration time.Duration, log *zap.SugaredLogger) *Client {
	if maxRetries < 1 {
		maxRetries = 1
	}
	maxSec := int32(maxDuration.Seconds())
	if maxSec <= 0 || maxSec > maxDurationSeconds {
		maxSec = maxDurationSeconds
	}
	if maxSec < minDurationSeconds {
		maxSec = minDurationSeconds
	}
	return &Client{api: api, roleArn: roleArn, timeout: timeout, maxRetries: maxRetries, maxDuration: maxSec, log: log}
}

// Assume vends credentials for the rendered policy. The per-attempt timeout
// is independent of the caller's deadline so one slow vend cannot starve the
// service.
func (c *Client) Assume(ctx context.Context, rendered policy.Rendered, req Request) (Credentials, error) {
	if c.roleArn == "" {
		return Credentials{}, fmt.Errorf("%w: role arn not configured", ErrAssumeRoleDenied)
	}
	duration := clampDuration(req.DurationSeconds, c.maxDuration)
	session := sanitizeSessionName(req.SessionName, req.TenantID)

	input := &sts.AssumeRoleInput{
		RoleArn:         aws.String(c.roleArn),
		RoleSessionName: aws.String(session),
		DurationSeconds: aws.Int32(duration),
		Policy:          aws.String(rendered.Document),
		Tags: []types.Tag{
			{Key: aws.String("tenant"), Value: aws.String(req.TenantID)},
		},
	}

	var out *sts.AssumeRoleOutput
	op := func() error {
		cctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()
		var err error
		out, err = c.api.AssumeRole(cctx, input)
		if err != nil {
			return classify(err)
		}
		return nil
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(c.maxRetries-1)), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		c.log.Errorw("assume role failed", "tenant", req.TenantID, "policy_type", rendered.Type, "err", err)
		return Credentials{}, err
	}

	creds := Credentials{
		AccessKeyID:     aws.ToString(out.Credentials.AccessKeyId),
		SecretAccessKey: aws.ToString(out.Credentials.SecretAccessKey),
		SessionToken:    aws.ToString(out.Credentials.SessionToken),
		ExpiresAt:       aws.ToTime(out.Credentials.Expiration),
	}
	c.log.Infow("assumed role", "tenant", req.TenantID, "policy_type", rendered.Type,
		"duration_sec", duration, "expires_at", creds.ExpiresAt)
	return creds, nil
}

func clampDuration(d, max int32) int32 {
	if d < minDurationSeconds {
		return minDurationSeconds
	}
	if d > max {
		return max
	}
	return d
}

func sanitizeSessionName(name, tenantID string) string {
	if name == "" {
		name = tenantID
	}
	name = sessionNameBad.ReplaceAllString(name, "-")
	if len(name) > maxSessionNameLen {
		name = name[:maxSessionNameLen]
	}
	if name == "" {
		name = "tvm-session"
	}
	return name
}

// classify splits broker failures into permanent denials and retryable
// transport errors.
func classify(err error) error {
	var ae smithy.APIError
	if errors.As(err, &ae) {
		switch ae.ErrorCode() {
		case "AccessDenied", "AccessDeniedException", "MalformedPolicyDocument", "ValidationError", "PackedPolicyTooLarge":
			return backoff.Permanent(fmt.Errorf("%w: %s", ErrAssumeRoleDenied, ae.ErrorCode()))
		}
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}
