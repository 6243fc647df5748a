package persistence

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/iota-uz/functree/modules/functionality/services"
)

type memoryRow struct {
	node services.Node
	seq  int64
}

// MemoryRepository keeps nodes in process. It implements both
// services.NodeRepository and services.TxRunner; transactions are serialized
// and rolled back on error.
type MemoryRepository struct {
	txMu  sync.Mutex
	mu    sync.RWMutex
	rows  map[uuid.UUID]map[uuid.UUID]memoryRow
	seq   int64
	saves int
	now   func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		rows: make(map[uuid.UUID]map[uuid.UUID]memoryRow),
		now:  time.Now,
	}
}

func (r *MemoryRepository) InTx(ctx context.Context, _ uuid.UUID, fn func(txCtx context.Context) error) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()

	backup := r.snapshot()
	if err := fn(ctx); err != nil {
		r.restore(backup)
		return err
	}
	return nil
}

// SaveCount returns the number of Save calls that reached the store.
func (r *MemoryRepository) SaveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.saves
}

func (r *MemoryRepository) FindNode(_ context.Context, tenantID uuid.UUID, id uuid.UUID) (services.Node, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	row, ok := r.rows[tenantID][id]
	if !ok {
		return services.Node{}, services.ErrNodeNotFound
	}
	return cloneNode(row.node), nil
}

func (r *MemoryRepository) FindChildren(_ context.Context, tenantID uuid.UUID, parentID *uuid.UUID) ([]services.Node, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sorted(tenantID, func(n services.Node) bool {
		return n.SameParent(parentID)
	}), nil
}

func (r *MemoryRepository) FindAll(_ context.Context, tenantID uuid.UUID) ([]services.Node, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sorted(tenantID, func(services.Node) bool { return true }), nil
}

func (r *MemoryRepository) Save(_ context.Context, tenantID uuid.UUID, node services.Node) (services.Node, error) {
	if tenantID == uuid.Nil {
		return services.Node{}, gerrors.New("memory repository: tenant id is required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	tenantRows, ok := r.rows[tenantID]
	if !ok {
		tenantRows = make(map[uuid.UUID]memoryRow)
		r.rows[tenantID] = tenantRows
	}
	if node.ParentID != nil {
		if _, ok := tenantRows[*node.ParentID]; !ok {
			return services.Node{}, gerrors.Errorf("memory repository: parent %s not found", *node.ParentID)
		}
		if *node.ParentID == node.ID {
			return services.Node{}, gerrors.Errorf("memory repository: node %s cannot be its own parent", node.ID)
		}
	}

	now := r.now().UTC()
	if node.ID == uuid.Nil {
		node.ID = uuid.New()
	}
	existing, exists := tenantRows[node.ID]
	if node.CreatedAt.IsZero() {
		node.CreatedAt = now
	}
	if node.UpdatedAt.IsZero() {
		node.UpdatedAt = now
	}
	seq := existing.seq
	if !exists {
		r.seq++
		seq = r.seq
	}
	node = cloneNode(node)
	tenantRows[node.ID] = memoryRow{node: node, seq: seq}
	r.saves++
	return cloneNode(node), nil
}

func (r *MemoryRepository) Delete(_ context.Context, tenantID uuid.UUID, id uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tenantRows := r.rows[tenantID]
	if _, ok := tenantRows[id]; !ok {
		return 0, services.ErrNodeNotFound
	}
	subtree := services.FindSubtree(services.BuildTree(r.sorted(tenantID, func(services.Node) bool { return true })), id)
	removed := 0
	subtree.Walk(func(n *services.TreeNode, _ int) bool {
		delete(tenantRows, n.ID)
		removed++
		return true
	})
	return removed, nil
}

// sorted returns matching rows ordered by key, then insertion order. Callers hold mu.
func (r *MemoryRepository) sorted(tenantID uuid.UUID, match func(services.Node) bool) []services.Node {
	rows := make([]memoryRow, 0, len(r.rows[tenantID]))
	for _, row := range r.rows[tenantID] {
		if match(row.node) {
			rows = append(rows, row)
		}
	}
	slices.SortFunc(rows, func(a, b memoryRow) int {
		if c := cmp.Compare(a.node.OrderKey, b.node.OrderKey); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})
	out := make([]services.Node, len(rows))
	for i, row := range rows {
		out[i] = cloneNode(row.node)
	}
	return out
}

func (r *MemoryRepository) snapshot() map[uuid.UUID]map[uuid.UUID]memoryRow {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[uuid.UUID]map[uuid.UUID]memoryRow, len(r.rows))
	for tenantID, rows := range r.rows {
		copied := make(map[uuid.UUID]memoryRow, len(rows))
		for id, row := range rows {
			row.node = cloneNode(row.node)
			copied[id] = row
		}
		out[tenantID] = copied
	}
	return out
}

func (r *MemoryRepository) restore(rows map[uuid.UUID]map[uuid.UUID]memoryRow) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = rows
}

func cloneNode(n services.Node) services.Node {
	if n.ParentID != nil {
		parent := *n.ParentID
		n.ParentID = &parent
	}
	return n
}
