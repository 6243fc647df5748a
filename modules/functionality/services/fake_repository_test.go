package services

import (
	"cmp"
	"context"
	"slices"

	"github.com/google/uuid"
)

type fakeRepository struct {
	nodes    map[uuid.UUID]Node
	seq      []uuid.UUID
	saves    int
	snapshot []Node
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{nodes: make(map[uuid.UUID]Node)}
}

func (r *fakeRepository) InTx(ctx context.Context, _ uuid.UUID, fn func(context.Context) error) error {
	return fn(ctx)
}

func (r *fakeRepository) FindNode(_ context.Context, _ uuid.UUID, id uuid.UUID) (Node, error) {
	n, ok := r.nodes[id]
	if !ok {
		return Node{}, ErrNodeNotFound
	}
	return n, nil
}

func (r *fakeRepository) FindChildren(_ context.Context, _ uuid.UUID, parentID *uuid.UUID) ([]Node, error) {
	out := make([]Node, 0)
	for _, n := range r.ordered() {
		if sameParent(n.ParentID, parentID) {
			out = append(out, n)
		}
	}
	return out, nil
}

func (r *fakeRepository) FindAll(context.Context, uuid.UUID) ([]Node, error) {
	if r.snapshot != nil {
		return r.snapshot, nil
	}
	return r.ordered(), nil
}

func (r *fakeRepository) Save(_ context.Context, _ uuid.UUID, n Node) (Node, error) {
	r.saves++
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if _, exists := r.nodes[n.ID]; !exists {
		r.seq = append(r.seq, n.ID)
	}
	r.nodes[n.ID] = n
	return n, nil
}

func (r *fakeRepository) Delete(_ context.Context, _ uuid.UUID, id uuid.UUID) (int, error) {
	if _, ok := r.nodes[id]; !ok {
		return 0, ErrNodeNotFound
	}
	roots := BuildTree(r.ordered())
	sub := FindSubtree(roots, id)
	removed := 0
	sub.Walk(func(n *TreeNode, _ int) bool {
		delete(r.nodes, n.ID)
		removed++
		return true
	})
	return removed, nil
}

func (r *fakeRepository) ordered() []Node {
	out := make([]Node, 0, len(r.nodes))
	for _, id := range r.seq {
		if n, ok := r.nodes[id]; ok {
			out = append(out, n)
		}
	}
	slices.SortStableFunc(out, func(a, b Node) int { return cmp.Compare(a.OrderKey, b.OrderKey) })
	return out
}

// put stores a node directly, bypassing the save counter.
func (r *fakeRepository) put(kind NodeKind, parent *Node, key float64) Node {
	n := Node{ID: uuid.New(), Kind: kind, OrderKey: key, Name: string(kind)}
	if parent != nil {
		n.ParentID = &parent.ID
	}
	r.nodes[n.ID] = n
	r.seq = append(r.seq, n.ID)
	return n
}

func (r *fakeRepository) siblingKeys(parentID *uuid.UUID) []float64 {
	children, _ := r.FindChildren(context.Background(), uuid.Nil, parentID)
	keys := make([]float64, len(children))
	for i, c := range children {
		keys[i] = c.OrderKey
	}
	return keys
}

func ptr[T any](v T) *T { return &v }
