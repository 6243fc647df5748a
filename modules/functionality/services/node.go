package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type NodeKind string

const (
	NodeKindFolder NodeKind = "folder"
	NodeKindLeaf   NodeKind = "functionality"
)

func ParseNodeKind(v string) (NodeKind, error) {
	switch NodeKind(strings.ToLower(strings.TrimSpace(v))) {
	case NodeKindFolder:
		return NodeKindFolder, nil
	case NodeKindLeaf:
		return NodeKindLeaf, nil
	default:
		return "", fmt.Errorf("unknown node kind %q", v)
	}
}

// CanHaveChildren reports whether nodes of this kind may be used as a parent.
func (k NodeKind) CanHaveChildren() bool {
	return k == NodeKindFolder
}

// Node is a single persisted row of the catalog tree. ID is uuid.Nil until the
// node has been saved for the first time.
type Node struct {
	ID        uuid.UUID
	ParentID  *uuid.UUID
	OrderKey  float64
	Kind      NodeKind
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SameParent reports whether both nodes belong to the same sibling set.
func (n Node) SameParent(other *uuid.UUID) bool {
	return sameParent(n.ParentID, other)
}

func sameParent(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

var ErrNodeNotFound = errors.New("functree: node not found")

// NodeRepository is the persistence collaborator of the positioning engine.
// FindChildren and FindAll return nodes sorted by OrderKey ascending.
type NodeRepository interface {
	FindNode(ctx context.Context, tenantID uuid.UUID, id uuid.UUID) (Node, error)
	FindChildren(ctx context.Context, tenantID uuid.UUID, parentID *uuid.UUID) ([]Node, error)
	FindAll(ctx context.Context, tenantID uuid.UUID) ([]Node, error)
	Save(ctx context.Context, tenantID uuid.UUID, node Node) (Node, error)
	Delete(ctx context.Context, tenantID uuid.UUID, id uuid.UUID) (int, error)
}

// TxRunner runs fn inside a single storage transaction so that validation
// reads and the final write observe the same snapshot.
type TxRunner interface {
	InTx(ctx context.Context, tenantID uuid.UUID, fn func(txCtx context.Context) error) error
}
