package products

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"tvm/pkg/db"
	"tvm/pkg/identity"
)

// PostgresStore keeps the catalog in a relational table guarded by row-level
// security; every statement runs in a transaction with app.tenant_id bound to
// the verified tenant.
type PostgresStore struct {
	pool *pgxpool.Pool
	log  *zap.SugaredLogger
}

func NewPostgresStore(pool *pgxpool.Pool, log *zap.SugaredLogger) *PostgresStore {
	return &PostgresStore{pool: pool, log: log}
}

// EnsureSchema creates the products table and its RLS policy if missing.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS products (
			product_id TEXT NOT NULL,
			tenant_id  TEXT NOT NULL,
			name       TEXT NOT NULL,
			price      DOUBLE PRECISION NOT NULL DEFAULT 0,
			sku        TEXT NOT NULL DEFAULT '',
			category   TEXT NOT NULL DEFAULT '',
			PRIMARY KEY (tenant_id, product_id)
		);
		ALTER TABLE products ENABLE ROW LEVEL SECURITY;
		DO $$ BEGIN
			CREATE POLICY products_tenant_isolation ON products
				USING (tenant_id = current_setting('app.tenant_id', true));
		EXCEPTION WHEN duplicate_object THEN NULL; END $$;
	`)
	return err
}

func (s *PostgresStore) List(ctx context.Context, id identity.TenantIdentity) ([]Product, error) {
	tx, err := db.BeginTxWithTenant(ctx, s.pool, id.TenantID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	rows, err := tx.Query(ctx, `SELECT product_id, tenant_id, name, price, sku, category FROM products WHERE tenant_id=$1`, id.TenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	products := []Product{}
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ProductID, &p.TenantID, &p.Name, &p.Price, &p.SKU, &p.Category); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, tx.Commit(ctx)
}

func (s *PostgresStore) Get(ctx context.Context, id identity.TenantIdentity, productID string) (*Product, error) {
	tx, err := db.BeginTxWithTenant(ctx, s.pool, id.TenantID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var p Product
	err = tx.QueryRow(ctx, `SELECT product_id, tenant_id, name, price, sku, category FROM products WHERE tenant_id=$1 AND product_id=$2`,
		id.TenantID, productID).Scan(&p.ProductID, &p.TenantID, &p.Name, &p.Price, &p.SKU, &p.Category)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, tx.Commit(ctx)
}

func (s *PostgresStore) Put(ctx context.Context, id identity.TenantIdentity, p Product) error {
	tx, err := db.BeginTxWithTenant(ctx, s.pool, id.TenantID)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO products (product_id, tenant_id, name, price, sku, category)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (tenant_id, product_id) DO UPDATE
			SET name=EXCLUDED.name, price=EXCLUDED.price, sku=EXCLUDED.sku, category=EXCLUDED.category`,
		p.ProductID, id.TenantID, p.Name, p.Price, p.SKU, p.Category)
	if err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) Delete(ctx context.Context, id identity.TenantIdentity, productID string) error {
	tx, err := db.BeginTxWithTenant(ctx, s.pool, id.TenantID)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM products WHERE tenant_id=$1 AND product_id=$2`, id.TenantID, productID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
