package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	operationCreate = "create"
	operationMove   = "move"
)

type Position struct {
	ParentID *uuid.UUID
	OrderKey float64
}

// PositionResolver turns relative position requests into a concrete parent and
// order key. It keeps no state between calls; every call reads the tree through
// the repository, so callers must run it in the transaction of the final write.
type PositionResolver struct {
	repo NodeRepository
}

func NewPositionResolver(repo NodeRepository) *PositionResolver {
	return &PositionResolver{repo: repo}
}

func (r *PositionResolver) ResolveCreatePosition(ctx context.Context, tenantID uuid.UUID, referenceID *uuid.UUID, pos RelativePosition) (Position, error) {
	out, err := r.resolve(ctx, tenantID, nil, referenceID, pos)
	return out, r.observe(ctx, tenantID, operationCreate, pos, err)
}

func (r *PositionResolver) ResolveMovePosition(ctx context.Context, tenantID uuid.UUID, movingID uuid.UUID, referenceID *uuid.UUID, pos RelativePosition) (Position, error) {
	out, err := func() (Position, error) {
		moving, err := r.findNode(ctx, tenantID, movingID)
		if err != nil {
			return Position{}, err
		}
		return r.resolve(ctx, tenantID, &moving, referenceID, pos)
	}()
	return out, r.observe(ctx, tenantID, operationMove, pos, err)
}

func (r *PositionResolver) observe(ctx context.Context, tenantID uuid.UUID, operation string, pos RelativePosition, err error) error {
	if err == nil {
		recordPositionResolved(operation, pos)
		return nil
	}
	var posErr *PositionError
	if errors.As(err, &posErr) {
		recordPositionRejection(posErr.Kind)
		logPositionRejected(ctx, tenantID, operation, posErr)
	}
	return err
}

func (r *PositionResolver) resolve(ctx context.Context, tenantID uuid.UUID, moving *Node, referenceID *uuid.UUID, pos RelativePosition) (Position, error) {
	if !pos.Valid() {
		return Position{}, newPositionError(KindInvalidPosition, nil, fmt.Sprintf("unknown relative position %d", int(pos)), nil)
	}

	var (
		parentID  *uuid.UUID
		reference *Node
	)
	switch pos {
	case PositionLastChild:
		parentID = referenceID
	case PositionAbove, PositionBelow:
		if referenceID == nil {
			return Position{}, newPositionError(KindMissingReference, nil, pos.String()+" requires a reference node", nil)
		}
		ref, err := r.findNode(ctx, tenantID, *referenceID)
		if err != nil {
			return Position{}, err
		}
		if moving != nil && ref.ID == moving.ID {
			return Position{ParentID: moving.ParentID, OrderKey: moving.OrderKey}, nil
		}
		reference = &ref
		parentID = ref.ParentID
	}

	parent, err := r.guardParentKind(ctx, tenantID, parentID)
	if err != nil {
		return Position{}, err
	}
	if moving != nil && parent != nil {
		if err := r.guardCycle(ctx, tenantID, *parent, *moving); err != nil {
			return Position{}, err
		}
	}

	siblings, err := r.repo.FindChildren(ctx, tenantID, parentID)
	if err != nil {
		return Position{}, fmt.Errorf("load siblings: %w", err)
	}
	if moving != nil {
		siblings = withoutNode(siblings, moving.ID)
	}

	index := 0
	if reference != nil {
		index = indexOfNode(siblings, reference.ID)
		if index < 0 {
			return Position{}, consistencyFault(&reference.ID, "reference node missing from its own sibling set")
		}
	}

	lower, upper := SiblingBounds(siblings, index, pos)
	key := AllocateOrderKey(lower, upper)
	if !IsStrictlyBetween(key, lower, upper) {
		recordOrderKeyExhausted()
		logWithFields(ctx, logrus.WarnLevel, "functree.position.exhausted", logrus.Fields{
			"tenant_id":         tenantID.String(),
			"relative_position": pos.String(),
			"order_key":         key,
		})
	}
	return Position{ParentID: copyID(parentID), OrderKey: key}, nil
}

// guardParentKind returns the prospective parent, or nil for root level.
func (r *PositionResolver) guardParentKind(ctx context.Context, tenantID uuid.UUID, parentID *uuid.UUID) (*Node, error) {
	if parentID == nil {
		return nil, nil
	}
	parent, err := r.findNode(ctx, tenantID, *parentID)
	if err != nil {
		return nil, err
	}
	if !parent.Kind.CanHaveChildren() {
		return nil, newPositionError(KindTypeConstraintViolated, parentID, fmt.Sprintf("%s nodes cannot have children", parent.Kind), nil)
	}
	return &parent, nil
}

func (r *PositionResolver) guardCycle(ctx context.Context, tenantID uuid.UUID, destination, moving Node) error {
	snapshot, err := r.repo.FindAll(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("load tree snapshot: %w", err)
	}
	cycle, err := DetectCycle(destination, moving, snapshot)
	if err != nil {
		return err
	}
	if cycle {
		return newPositionError(KindCycleDetected, &moving.ID, fmt.Sprintf("cannot move node under itself or its descendant %s", destination.ID), nil)
	}
	return nil
}

func (r *PositionResolver) findNode(ctx context.Context, tenantID, id uuid.UUID) (Node, error) {
	n, err := r.repo.FindNode(ctx, tenantID, id)
	if errors.Is(err, ErrNodeNotFound) {
		return Node{}, newPositionError(KindReferenceNotFound, &id, "node not found", nil)
	}
	if err != nil {
		return Node{}, fmt.Errorf("find node %s: %w", id, err)
	}
	return n, nil
}

func withoutNode(nodes []Node, id uuid.UUID) []Node {
	out := make([]Node, 0, len(nodes))
	for _, n := range nodes {
		if n.ID != id {
			out = append(out, n)
		}
	}
	return out
}

func indexOfNode(nodes []Node, id uuid.UUID) int {
	for i, n := range nodes {
		if n.ID == id {
			return i
		}
	}
	return -1
}

func copyID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
