package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/iota-uz/functree/pkg/composables"
)

// PgTxRunner opens one pgx transaction per tree operation. The pool is taken
// from the context (see middleware.Provide / composables.WithPool).
type PgTxRunner struct {
	opts pgx.TxOptions
}

// NewPgTxRunner accepts "serializable" (default) or "repeatable_read".
func NewPgTxRunner(isolation string) *PgTxRunner {
	level := pgx.Serializable
	if isolation == "repeatable_read" {
		level = pgx.RepeatableRead
	}
	return &PgTxRunner{opts: pgx.TxOptions{IsoLevel: level}}
}

func (r *PgTxRunner) InTx(ctx context.Context, tenantID uuid.UUID, fn func(txCtx context.Context) error) error {
	ctx = composables.WithTenantID(ctx, tenantID)
	return composables.InTenantTx(ctx, r.opts, fn)
}
