package persistence

import (
	"context"
	"errors"
	"time"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/iota-uz/functree/modules/functionality/services"
	"github.com/iota-uz/functree/pkg/composables"
	"github.com/iota-uz/functree/pkg/configuration"
)

const nodeColumns = `id, parent_id, order_key, kind, name, created_at, updated_at`

type FunctionalityRepository struct{}

func NewFunctionalityRepository() *FunctionalityRepository {
	return &FunctionalityRepository{}
}

func (r *FunctionalityRepository) FindNode(ctx context.Context, tenantID uuid.UUID, id uuid.UUID) (services.Node, error) {
	tx, err := r.queries(ctx)
	if err != nil {
		return services.Node{}, err
	}
	row := tx.QueryRow(ctx, `
SELECT `+nodeColumns+`
FROM functionality_nodes
WHERE tenant_id = $1 AND id = $2
`, pgUUID(tenantID), pgUUID(id))
	n, err := scanNode(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return services.Node{}, services.ErrNodeNotFound
	}
	if err != nil {
		return services.Node{}, gerrors.Wrap(err, "find node")
	}
	return n, nil
}

func (r *FunctionalityRepository) FindChildren(ctx context.Context, tenantID uuid.UUID, parentID *uuid.UUID) ([]services.Node, error) {
	tx, err := r.queries(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `
SELECT `+nodeColumns+`
FROM functionality_nodes
WHERE tenant_id = $1 AND parent_id IS NOT DISTINCT FROM $2
ORDER BY order_key ASC, created_at ASC, id ASC
`, pgUUID(tenantID), pgNullableUUID(parentID))
	if err != nil {
		return nil, gerrors.Wrap(err, "find children")
	}
	return collectNodes(rows)
}

func (r *FunctionalityRepository) FindAll(ctx context.Context, tenantID uuid.UUID) ([]services.Node, error) {
	tx, err := r.queries(ctx)
	if err != nil {
		return nil, err
	}
	rows, err := tx.Query(ctx, `
SELECT `+nodeColumns+`
FROM functionality_nodes
WHERE tenant_id = $1
ORDER BY order_key ASC, created_at ASC, id ASC
`, pgUUID(tenantID))
	if err != nil {
		return nil, gerrors.Wrap(err, "find all nodes")
	}
	return collectNodes(rows)
}

// Save upserts a single row. A node id owned by another tenant is reported as
// not found instead of being overwritten.
func (r *FunctionalityRepository) Save(ctx context.Context, tenantID uuid.UUID, node services.Node) (services.Node, error) {
	tx, err := r.queries(ctx)
	if err != nil {
		return services.Node{}, err
	}
	id := pgtype.UUID{}
	if node.ID != uuid.Nil {
		id = pgUUID(node.ID)
	}
	row := tx.QueryRow(ctx, `
INSERT INTO functionality_nodes (id, tenant_id, parent_id, order_key, kind, name, created_at, updated_at)
VALUES (COALESCE($1, gen_random_uuid()), $2, $3, $4, $5, $6, COALESCE($7, now()), COALESCE($8, now()))
ON CONFLICT (id) DO UPDATE SET
	parent_id = EXCLUDED.parent_id,
	order_key = EXCLUDED.order_key,
	kind = EXCLUDED.kind,
	name = EXCLUDED.name,
	updated_at = EXCLUDED.updated_at
WHERE functionality_nodes.tenant_id = EXCLUDED.tenant_id
RETURNING `+nodeColumns,
		id,
		pgUUID(tenantID),
		pgNullableUUID(node.ParentID),
		node.OrderKey,
		string(node.Kind),
		node.Name,
		pgTimestamp(node.CreatedAt),
		pgTimestamp(node.UpdatedAt),
	)
	saved, err := scanNode(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return services.Node{}, services.ErrNodeNotFound
	}
	if err != nil {
		return services.Node{}, gerrors.Wrap(err, "save node")
	}
	return saved, nil
}

// Delete removes the node and its subtree and returns the number of rows removed.
func (r *FunctionalityRepository) Delete(ctx context.Context, tenantID uuid.UUID, id uuid.UUID) (int, error) {
	tx, err := r.queries(ctx)
	if err != nil {
		return 0, err
	}
	tag, err := tx.Exec(ctx, `
WITH RECURSIVE subtree AS (
	SELECT id FROM functionality_nodes WHERE tenant_id = $1 AND id = $2
	UNION ALL
	SELECT n.id
	FROM functionality_nodes n
	JOIN subtree s ON n.parent_id = s.id
	WHERE n.tenant_id = $1
)
DELETE FROM functionality_nodes
WHERE tenant_id = $1 AND id IN (SELECT id FROM subtree)
`, pgUUID(tenantID), pgUUID(id))
	if err != nil {
		return 0, gerrors.Wrap(err, "delete node")
	}
	if tag.RowsAffected() == 0 {
		return 0, services.ErrNodeNotFound
	}
	return int(tag.RowsAffected()), nil
}

func (r *FunctionalityRepository) queries(ctx context.Context) (composables.Tx, error) {
	if configuration.Use().RLSEnforce == "enforce" && !composables.HasTx(ctx) {
		return nil, gerrors.New("rls enforced: functionality queries require an explicit transaction")
	}
	return composables.UseTx(ctx)
}

func scanNode(row pgx.Row) (services.Node, error) {
	var (
		n      services.Node
		parent pgtype.UUID
		kind   string
	)
	if err := row.Scan(&n.ID, &parent, &n.OrderKey, &kind, &n.Name, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return services.Node{}, err
	}
	n.ParentID = fromPgUUID(parent)
	n.Kind = services.NodeKind(kind)
	return n, nil
}

func collectNodes(rows pgx.Rows) ([]services.Node, error) {
	defer rows.Close()
	out := make([]services.Node, 0, 64)
	for rows.Next() {
		n, err := scanNode(rows)
		if err != nil {
			return nil, gerrors.Wrap(err, "scan node")
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, gerrors.Wrap(err, "iterate nodes")
	}
	return out, nil
}

func pgTimestamp(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: !t.IsZero()}
}
