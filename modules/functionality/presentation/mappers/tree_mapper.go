package mappers

import (
	"time"

	"github.com/google/uuid"

	"github.com/iota-uz/functree/modules/functionality/presentation/viewmodels"
	"github.com/iota-uz/functree/modules/functionality/services"
)

func NodeToViewModel(n services.Node) viewmodels.Node {
	vm := viewmodels.Node{
		ID:        n.ID.String(),
		Kind:      string(n.Kind),
		Name:      n.Name,
		OrderKey:  n.OrderKey,
		CreatedAt: formatTime(n.CreatedAt),
		UpdatedAt: formatTime(n.UpdatedAt),
	}
	if n.ParentID != nil {
		parent := n.ParentID.String()
		vm.ParentID = &parent
	}
	return vm
}

func TreeToViewModel(tenantID uuid.UUID, roots []*services.TreeNode) viewmodels.Tree {
	out := make([]*viewmodels.TreeNode, 0, len(roots))
	for _, r := range roots {
		out = append(out, treeNodeToViewModel(r))
	}
	return viewmodels.Tree{TenantID: tenantID.String(), Nodes: out}
}

func treeNodeToViewModel(t *services.TreeNode) *viewmodels.TreeNode {
	vm := &viewmodels.TreeNode{
		Node:     NodeToViewModel(t.Node),
		Children: make([]*viewmodels.TreeNode, 0, len(t.Children)),
	}
	for _, c := range t.Children {
		vm.Children = append(vm.Children, treeNodeToViewModel(c))
	}
	return vm
}

// TreeToRows lists every node in pre-order with its depth below its root.
func TreeToRows(tenantID uuid.UUID, roots []*services.TreeNode) viewmodels.FlatTree {
	rows := make([]viewmodels.TreeRow, 0, 64)
	for _, r := range roots {
		r.Walk(func(n *services.TreeNode, depth int) bool {
			rows = append(rows, viewmodels.TreeRow{
				Node:     NodeToViewModel(n.Node),
				Depth:    depth,
				HasChild: len(n.Children) > 0,
			})
			return true
		})
	}
	return viewmodels.FlatTree{TenantID: tenantID.String(), Rows: rows}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
