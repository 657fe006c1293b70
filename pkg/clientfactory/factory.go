// Package clientfactory builds tenant-constrained data clients from vended
// credentials. A returned client is only ever backed by the tenant's session
// credentials; there is no fallback to the task role on any failure path.
package clientfactory

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"

	"tvm/pkg/broker"
	"tvm/pkg/config"
	"tvm/pkg/credcache"
	"tvm/pkg/identity"
	"tvm/pkg/policy"
)

// Vendor is the broker slice the factory needs; satisfied by *broker.Client.
type Vendor interface {
	Assume(ctx context.Context, rendered policy.Rendered, req broker.Request) (broker.Credentials, error)
}

type Factory struct {
	renderer *policy.Renderer
	cache    *credcache.Cache
	vendor   Vendor
	awsCfg   aws.Config
	duration time.Duration
	log      *zap.SugaredLogger
}

// New builds a factory around the ambient AWS config, used only for region
// and endpoint resolution; per-request clients always override its
// credentials with vended ones.
func New(awsCfg aws.Config, cfg config.Config, renderer *policy.Renderer, cache *credcache.Cache, vendor Vendor, log *zap.SugaredLogger) *Factory {
	return &Factory{
		renderer: renderer,
		cache:    cache,
		vendor:   vendor,
		awsCfg:   awsCfg,
		duration: cfg.CredDuration,
		log:      log,
	}
}

// Credentials renders the scoped policy for the identity and obtains a vended
// credential through the cache.
func (f *Factory) Credentials(ctx context.Context, id identity.TenantIdentity, policyType policy.PolicyType, attrs map[string]string) (broker.Credentials, error) {
	rendered, err := f.renderer.Render(policyType, id, attrs)
	if err != nil {
		return broker.Credentials{}, err
	}
	key := id.TenantID + "|" + string(policyType) + "|" + rendered.Fingerprint
	creds, err := f.cache.GetOrVend(ctx, key, func(vctx context.Context) (broker.Credentials, error) {
		return f.vendor.Assume(vctx, rendered, broker.Request{
			TenantID:        id.TenantID,
			DurationSeconds: int32(f.duration.Seconds()),
		})
	})
	if err != nil {
		return broker.Credentials{}, err
	}
	if !time.Now().Before(creds.ExpiresAt) {
		return broker.Credentials{}, fmt.Errorf("vended credential already expired for tenant %s", id.TenantID)
	}
	return creds, nil
}

// DynamoDB returns a client scoped to the tenant's partition via the
// leading-keys session policy. The client is request-lived; its effective
// lifetime is bounded by the credential expiry.
func (f *Factory) DynamoDB(ctx context.Context, id identity.TenantIdentity) (*dynamodb.Client, error) {
	creds, err := f.Credentials(ctx, id, policy.DynamoDBLeadingKey, nil)
	if err != nil {
		return nil, err
	}
	cfg := f.awsCfg.Copy()
	cfg.Credentials = credentials.NewStaticCredentialsProvider(
		creds.AccessKeyID, creds.SecretAccessKey, creds.SessionToken)
	return dynamodb.NewFromConfig(cfg), nil
}
