package viewmodels

type Node struct {
	ID        string  `json:"id" yaml:"id"`
	ParentID  *string `json:"parent_id" yaml:"parent_id,omitempty"`
	Kind      string  `json:"kind" yaml:"kind"`
	Name      string  `json:"name" yaml:"name"`
	OrderKey  float64 `json:"order_key" yaml:"order_key"`
	CreatedAt string  `json:"created_at" yaml:"created_at"`
	UpdatedAt string  `json:"updated_at" yaml:"updated_at"`
}

type TreeNode struct {
	Node     `yaml:",inline"`
	Children []*TreeNode `json:"children" yaml:"children"`
}

// TreeRow is one line of the pre-order flat view.
type TreeRow struct {
	Node     `yaml:",inline"`
	Depth    int  `json:"depth" yaml:"depth"`
	HasChild bool `json:"has_children" yaml:"has_children"`
}

type Tree struct {
	TenantID string      `json:"tenant_id" yaml:"tenant_id"`
	Nodes    []*TreeNode `json:"nodes" yaml:"nodes"`
}

type FlatTree struct {
	TenantID string    `json:"tenant_id" yaml:"tenant_id"`
	Rows     []TreeRow `json:"rows" yaml:"rows"`
}
