package composables

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/iota-uz/functree/pkg/configuration"
	"github.com/iota-uz/functree/pkg/constants"
)

// Execer is the part of pgx.Tx that ApplyTenantRLS needs.
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// ApplyTenantRLS scopes tx to the tenant in ctx when RLS_ENFORCE=enforce.
// The settings are transaction local and vanish on commit or rollback.
func ApplyTenantRLS(ctx context.Context, tx Execer) error {
	return applyTenantRLS(ctx, tx, configuration.Use().RLSEnforce == "enforce")
}

func applyTenantRLS(ctx context.Context, tx Execer, enforce bool) error {
	if !enforce {
		return nil
	}
	tenantID, err := UseTenantID(ctx)
	if err != nil {
		return fmt.Errorf("functree rls: tenant is required: %w", err)
	}
	_, err = tx.Exec(ctx,
		"SELECT set_config($1, $2, true), set_config($3, $4, true)",
		constants.TenantSetting, tenantID.String(),
		constants.RequestIDSetting, UseRequestID(ctx),
	)
	if err != nil {
		return fmt.Errorf("functree rls: set tenant %s: %w", tenantID, err)
	}
	return nil
}
