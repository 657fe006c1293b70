// Package products serves the tenant's product catalog. Two stores implement
// the same contract: DynamoDB behind vended leading-key credentials, and
// Postgres behind row-level security keyed on app.tenant_id.
package products

import (
	"context"

	"tvm/pkg/identity"
)

type Product struct {
	ProductID string  `json:"productId" dynamodbav:"productId"`
	TenantID  string  `json:"tenantId" dynamodbav:"tenantId"`
	Name      string  `json:"name" dynamodbav:"name"`
	Price     float64 `json:"price" dynamodbav:"price"`
	SKU       string  `json:"sku" dynamodbav:"sku"`
	Category  string  `json:"category" dynamodbav:"category"`
}

type Repository interface {
	List(ctx context.Context, id identity.TenantIdentity) ([]Product, error)
	Get(ctx context.Context, id identity.TenantIdentity, productID string) (*Product, error)
	Put(ctx context.Context, id identity.TenantIdentity, p Product) error
	Delete(ctx context.Context, id identity.TenantIdentity, productID string) error
}
