package composables

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/iota-uz/functree/pkg/constants"
)

var ErrNoTenant = errors.New("no tenant found in context")

func WithTenantID(ctx context.Context, tenantID uuid.UUID) context.Context {
	return context.WithValue(ctx, constants.TenantIDKey, tenantID)
}

func UseTenantID(ctx context.Context) (uuid.UUID, error) {
	tenantID, ok := ctx.Value(constants.TenantIDKey).(uuid.UUID)
	if !ok || tenantID == uuid.Nil {
		return uuid.Nil, ErrNoTenant
	}
	return tenantID, nil
}

// InTenantTx runs fn inside a transaction opened with opts. An outer
// transaction already present in ctx is reused as is.
func InTenantTx(ctx context.Context, opts pgx.TxOptions, fn func(context.Context) error) error {
	if existing, ok := ctx.Value(constants.TxKey).(pgx.Tx); ok && existing != nil {
		if err := ApplyTenantRLS(ctx, existing); err != nil {
			return err
		}
		return fn(ctx)
	}

	pool, err := UsePool(ctx)
	if err != nil {
		return err
	}

	tx, err := pool.BeginTx(ctx, opts)
	if err != nil {
		return err
	}

	txCtx := WithTx(ctx, tx)
	if err := ApplyTenantRLS(txCtx, tx); err != nil {
		if rErr := tx.Rollback(ctx); rErr != nil {
			return errors.Join(err, rErr)
		}
		return err
	}

	if err := fn(txCtx); err != nil {
		if rErr := tx.Rollback(ctx); rErr != nil {
			return errors.Join(err, rErr)
		}
		return err
	}
	return tx.Commit(ctx)
}
