package services

import (
	"github.com/google/uuid"
)

type TreeNode struct {
	Node
	Children []*TreeNode
}

// BuildTree turns a flat node list into a forest. Children keep the input
// order, so a list sorted by OrderKey yields ordered sibling sets. Nodes whose
// parent is absent from the list become extra roots, and nodes caught in a
// stored parent cycle are attached once under the first of them reached.
func BuildTree(nodes []Node) []*TreeNode {
	arena := make([]TreeNode, len(nodes))
	index := make(map[uuid.UUID]int, len(nodes))
	for i, n := range nodes {
		arena[i].Node = n
		if _, dup := index[n.ID]; !dup {
			index[n.ID] = i
		}
	}

	children := make(map[uuid.UUID][]int, len(nodes))
	roots := make([]int, 0)
	for i, n := range nodes {
		if n.ParentID != nil {
			if _, ok := index[*n.ParentID]; ok {
				children[*n.ParentID] = append(children[*n.ParentID], i)
				continue
			}
		}
		roots = append(roots, i)
	}

	attached := make([]bool, len(arena))
	var attach func(i int)
	attach = func(i int) {
		attached[i] = true
		for _, c := range children[arena[i].ID] {
			if attached[c] {
				continue
			}
			attach(c)
			arena[i].Children = append(arena[i].Children, &arena[c])
		}
	}

	out := make([]*TreeNode, 0, len(roots))
	for _, r := range roots {
		attach(r)
		out = append(out, &arena[r])
	}
	for i := range arena {
		if attached[i] {
			continue
		}
		attach(i)
		out = append(out, &arena[i])
	}
	return out
}

// Flatten returns the nodes of the forest in pre-order.
func Flatten(roots []*TreeNode) []Node {
	out := make([]Node, 0, len(roots))
	for _, r := range roots {
		r.Walk(func(n *TreeNode, _ int) bool {
			out = append(out, n.Node)
			return true
		})
	}
	return out
}

// FindSubtree returns the tree node with the given id, or nil.
func FindSubtree(roots []*TreeNode, id uuid.UUID) *TreeNode {
	var found *TreeNode
	for _, r := range roots {
		r.Walk(func(n *TreeNode, _ int) bool {
			if n.ID == id {
				found = n
				return false
			}
			return true
		})
		if found != nil {
			return found
		}
	}
	return nil
}

// Contains reports whether id is t itself or one of its descendants.
func (t *TreeNode) Contains(id uuid.UUID) bool {
	found := false
	t.Walk(func(n *TreeNode, _ int) bool {
		if n.ID == id {
			found = true
			return false
		}
		return true
	})
	return found
}

// Walk visits t and its descendants in pre-order. Returning false from fn
// stops the walk.
func (t *TreeNode) Walk(fn func(n *TreeNode, depth int) bool) {
	t.walk(fn, 0)
}

func (t *TreeNode) walk(fn func(n *TreeNode, depth int) bool, depth int) bool {
	if t == nil {
		return true
	}
	if !fn(t, depth) {
		return false
	}
	for _, c := range t.Children {
		if !c.walk(fn, depth+1) {
			return false
		}
	}
	return true
}
