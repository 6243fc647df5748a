package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/iota-uz/functree/modules/functionality/services"
)

// fixtureNamespace seeds ids for fixture nodes that do not declare one.
var fixtureNamespace = uuid.MustParse("6f1c2a4e-5d1b-4c59-9a43-0f7c1b3e2d10")

type fixtureFile struct {
	Tenant string        `yaml:"tenant,omitempty"`
	Nodes  []fixtureNode `yaml:"nodes"`
}

type fixtureNode struct {
	ID       string        `yaml:"id,omitempty"`
	Kind     string        `yaml:"kind"`
	Name     string        `yaml:"name"`
	Children []fixtureNode `yaml:"children,omitempty"`
}

func readFixture(path string) (*fixtureFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	return parseFixture(raw)
}

func parseFixture(raw []byte) (*fixtureFile, error) {
	var fx fixtureFile
	if err := yaml.Unmarshal(raw, &fx); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	return &fx, nil
}

type nodeSaver interface {
	Save(ctx context.Context, tenantID uuid.UUID, node services.Node) (services.Node, error)
}

// load saves every fixture node in document order. Siblings get increasing
// keys the same way repeated LAST_CHILD inserts would.
func (fx *fixtureFile) load(ctx context.Context, repo nodeSaver, tenantID uuid.UUID) error {
	return loadLevel(ctx, repo, tenantID, nil, "", fx.Nodes)
}

func loadLevel(ctx context.Context, repo nodeSaver, tenantID uuid.UUID, parentID *uuid.UUID, path string, nodes []fixtureNode) error {
	var last *float64
	for i, fn := range nodes {
		nodePath := fmt.Sprintf("%s/%d", path, i)
		kind, err := services.ParseNodeKind(fn.Kind)
		if err != nil {
			return fmt.Errorf("fixture node %s: %w", nodePath, err)
		}
		if strings.TrimSpace(fn.Name) == "" {
			return fmt.Errorf("fixture node %s: name is required", nodePath)
		}
		id := uuid.NewSHA1(fixtureNamespace, []byte(tenantID.String()+nodePath))
		if fn.ID != "" {
			if id, err = uuid.Parse(fn.ID); err != nil {
				return fmt.Errorf("fixture node %s: invalid id: %w", nodePath, err)
			}
		}
		if len(fn.Children) > 0 && !kind.CanHaveChildren() {
			return fmt.Errorf("fixture node %s: %s nodes cannot have children", nodePath, kind)
		}
		key := services.AllocateOrderKey(last, nil)
		last = &key
		if _, err := repo.Save(ctx, tenantID, services.Node{
			ID:       id,
			ParentID: parentID,
			OrderKey: key,
			Kind:     kind,
			Name:     fn.Name,
		}); err != nil {
			return fmt.Errorf("fixture node %s: %w", nodePath, err)
		}
		if err := loadLevel(ctx, repo, tenantID, &id, nodePath, fn.Children); err != nil {
			return err
		}
	}
	return nil
}

// fixtureFromTree converts a built tree back into the fixture layout.
func fixtureFromTree(tenantID uuid.UUID, roots []*services.TreeNode) *fixtureFile {
	return &fixtureFile{Tenant: tenantID.String(), Nodes: fixtureNodes(roots)}
}

func fixtureNodes(nodes []*services.TreeNode) []fixtureNode {
	if len(nodes) == 0 {
		return nil
	}
	out := make([]fixtureNode, len(nodes))
	for i, n := range nodes {
		out[i] = fixtureNode{
			ID:       n.ID.String(),
			Kind:     string(n.Kind),
			Name:     n.Name,
			Children: fixtureNodes(n.Children),
		}
	}
	return out
}

func writeFixture(path string, fx *fixtureFile) error {
	raw, err := yaml.Marshal(fx)
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}
