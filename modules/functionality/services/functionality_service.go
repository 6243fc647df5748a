package services

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/iota-uz/functree/modules/functionality/domain/events"
	"github.com/iota-uz/functree/pkg/composables"
	"github.com/iota-uz/functree/pkg/eventbus"
)

var tracer = otel.Tracer("functree-services")

type FunctionalityService struct {
	repo      NodeRepository
	tx        TxRunner
	resolver  *PositionResolver
	cache     TreeCache
	publisher eventbus.EventBus
	outbox    EventOutbox
	now       func() time.Time
}

// EventOutbox stores node events in the write transaction. When set, the
// service stops publishing directly and a relay delivers the stored events.
type EventOutbox interface {
	Enqueue(txCtx context.Context, ev events.NodeEventV1) error
}

// NewFunctionalityService wires the tree service. cache and publisher may be
// nil; tx must run its callback in a transaction shared by repo.
func NewFunctionalityService(repo NodeRepository, tx TxRunner, cache TreeCache, publisher eventbus.EventBus) *FunctionalityService {
	if cache == nil {
		cache = NewNoopTreeCache()
	}
	return &FunctionalityService{
		repo:      repo,
		tx:        tx,
		resolver:  NewPositionResolver(repo),
		cache:     cache,
		publisher: publisher,
		now:       time.Now,
	}
}

// WithOutbox switches event delivery to the given outbox.
func (s *FunctionalityService) WithOutbox(o EventOutbox) *FunctionalityService {
	s.outbox = o
	return s
}

// CreateNodeInput places the new node relative to ReferenceID. An unset
// Position means PositionLastChild.
type CreateNodeInput struct {
	Kind        NodeKind
	Name        string
	ReferenceID *uuid.UUID
	Position    RelativePosition
}

// MoveNodeInput uses the same placement rules as CreateNodeInput.
type MoveNodeInput struct {
	NodeID      uuid.UUID
	ReferenceID *uuid.UUID
	Position    RelativePosition
}

type UpdateNodeInput struct {
	NodeID uuid.UUID
	Name   string
}

type DeleteNodeResult struct {
	NodeID  uuid.UUID
	Removed int
}

func (s *FunctionalityService) CreateNode(ctx context.Context, tenantID uuid.UUID, in CreateNodeInput) (Node, error) {
	if in.Position == 0 {
		in.Position = PositionLastChild
	}
	ctx, span := s.startSpan(ctx, "functree.CreateNode", tenantID, attribute.String("relative_position", in.Position.String()))
	defer span.End()

	if tenantID == uuid.Nil {
		return Node{}, endSpan(span, newServiceError(http.StatusBadRequest, "FUNCTREE_NO_TENANT", "tenant_id is required", nil))
	}
	if in.Kind != NodeKindFolder && in.Kind != NodeKindLeaf {
		return Node{}, endSpan(span, newServiceError(http.StatusBadRequest, "FUNCTREE_INVALID_BODY", "kind must be folder or functionality", nil))
	}

	var ev events.NodeEventV1
	saved, err := inTx(ctx, s.tx, tenantID, func(txCtx context.Context) (Node, error) {
		pos, err := s.resolver.ResolveCreatePosition(txCtx, tenantID, in.ReferenceID, in.Position)
		if err != nil {
			return Node{}, err
		}
		now := s.now().UTC()
		saved, err := s.repo.Save(txCtx, tenantID, Node{
			ParentID:  pos.ParentID,
			OrderKey:  pos.OrderKey,
			Kind:      in.Kind,
			Name:      strings.TrimSpace(in.Name),
			CreatedAt: now,
			UpdatedAt: now,
		})
		if err != nil {
			return Node{}, err
		}
		ev = s.buildEvent(ctx, tenantID, events.ChangeNodeCreated, saved)
		ev.NewPosition = positionOf(saved)
		return saved, s.enqueue(txCtx, ev)
	})
	if err != nil {
		return Node{}, endSpan(span, toServiceError(err))
	}

	s.afterWrite(ctx, tenantID, ev)
	return saved, nil
}

func (s *FunctionalityService) MoveNode(ctx context.Context, tenantID uuid.UUID, in MoveNodeInput) (Node, error) {
	if in.Position == 0 {
		in.Position = PositionLastChild
	}
	ctx, span := s.startSpan(ctx, "functree.MoveNode", tenantID,
		attribute.String("node_id", in.NodeID.String()),
		attribute.String("relative_position", in.Position.String()),
	)
	defer span.End()

	if tenantID == uuid.Nil {
		return Node{}, endSpan(span, newServiceError(http.StatusBadRequest, "FUNCTREE_NO_TENANT", "tenant_id is required", nil))
	}
	if in.NodeID == uuid.Nil {
		return Node{}, endSpan(span, newServiceError(http.StatusBadRequest, "FUNCTREE_INVALID_BODY", "node id is required", nil))
	}

	var ev events.NodeEventV1
	saved, err := inTx(ctx, s.tx, tenantID, func(txCtx context.Context) (Node, error) {
		pos, err := s.resolver.ResolveMovePosition(txCtx, tenantID, in.NodeID, in.ReferenceID, in.Position)
		if err != nil {
			return Node{}, err
		}
		current, err := s.repo.FindNode(txCtx, tenantID, in.NodeID)
		if err != nil {
			return Node{}, err
		}
		before := current
		current.ParentID = pos.ParentID
		current.OrderKey = pos.OrderKey
		current.UpdatedAt = s.now().UTC()
		saved, err := s.repo.Save(txCtx, tenantID, current)
		if err != nil {
			return Node{}, err
		}
		ev = s.buildEvent(ctx, tenantID, events.ChangeNodeMoved, saved)
		ev.OldPosition = positionOf(before)
		ev.NewPosition = positionOf(saved)
		return saved, s.enqueue(txCtx, ev)
	})
	if err != nil {
		return Node{}, endSpan(span, toServiceError(err))
	}

	s.afterWrite(ctx, tenantID, ev)
	return saved, nil
}

// UpdateNode renames a node without touching its position.
func (s *FunctionalityService) UpdateNode(ctx context.Context, tenantID uuid.UUID, in UpdateNodeInput) (Node, error) {
	ctx, span := s.startSpan(ctx, "functree.UpdateNode", tenantID, attribute.String("node_id", in.NodeID.String()))
	defer span.End()

	if tenantID == uuid.Nil {
		return Node{}, endSpan(span, newServiceError(http.StatusBadRequest, "FUNCTREE_NO_TENANT", "tenant_id is required", nil))
	}
	name := strings.TrimSpace(in.Name)
	if in.NodeID == uuid.Nil || name == "" {
		return Node{}, endSpan(span, newServiceError(http.StatusBadRequest, "FUNCTREE_INVALID_BODY", "node id and name are required", nil))
	}

	var ev events.NodeEventV1
	saved, err := inTx(ctx, s.tx, tenantID, func(txCtx context.Context) (Node, error) {
		current, err := s.repo.FindNode(txCtx, tenantID, in.NodeID)
		if err != nil {
			return Node{}, err
		}
		current.Name = name
		current.UpdatedAt = s.now().UTC()
		saved, err := s.repo.Save(txCtx, tenantID, current)
		if err != nil {
			return Node{}, err
		}
		ev = s.buildEvent(ctx, tenantID, events.ChangeNodeUpdated, saved)
		return saved, s.enqueue(txCtx, ev)
	})
	if err != nil {
		return Node{}, endSpan(span, toServiceError(err))
	}

	s.afterWrite(ctx, tenantID, ev)
	return saved, nil
}

// DeleteNode removes a node together with its subtree.
func (s *FunctionalityService) DeleteNode(ctx context.Context, tenantID uuid.UUID, nodeID uuid.UUID) (DeleteNodeResult, error) {
	ctx, span := s.startSpan(ctx, "functree.DeleteNode", tenantID, attribute.String("node_id", nodeID.String()))
	defer span.End()

	if tenantID == uuid.Nil {
		return DeleteNodeResult{}, endSpan(span, newServiceError(http.StatusBadRequest, "FUNCTREE_NO_TENANT", "tenant_id is required", nil))
	}

	var ev events.NodeEventV1
	removed, err := inTx(ctx, s.tx, tenantID, func(txCtx context.Context) (int, error) {
		current, err := s.repo.FindNode(txCtx, tenantID, nodeID)
		if err != nil {
			return 0, err
		}
		removed, err := s.repo.Delete(txCtx, tenantID, nodeID)
		if err != nil {
			return 0, err
		}
		ev = s.buildEvent(ctx, tenantID, events.ChangeNodeDeleted, current)
		ev.OldPosition = positionOf(current)
		ev.Removed = removed
		return removed, s.enqueue(txCtx, ev)
	})
	if err != nil {
		return DeleteNodeResult{}, endSpan(span, toServiceError(err))
	}

	s.afterWrite(ctx, tenantID, ev)
	return DeleteNodeResult{NodeID: nodeID, Removed: removed}, nil
}

// GetTree returns the tenant's forest, served from the tree cache when possible.
func (s *FunctionalityService) GetTree(ctx context.Context, tenantID uuid.UUID) ([]*TreeNode, error) {
	ctx, span := s.startSpan(ctx, "functree.GetTree", tenantID)
	defer span.End()

	if tenantID == uuid.Nil {
		return nil, endSpan(span, newServiceError(http.StatusBadRequest, "FUNCTREE_NO_TENANT", "tenant_id is required", nil))
	}

	nodes, hit, err := s.cache.Get(ctx, tenantID)
	if err != nil {
		logWithFields(ctx, logrus.WarnLevel, "functree.cache.get_failed", logrus.Fields{
			"tenant_id": tenantID.String(),
			"error":     err.Error(),
		})
		hit = false
	}
	recordCacheRequest(hit)
	span.SetAttributes(attribute.Bool("cache_hit", hit))
	if hit {
		return BuildTree(nodes), nil
	}

	// The generation is read before loading so a write committed in between
	// makes Set a no-op.
	generation, genErr := s.cache.Generation(ctx, tenantID)
	nodes, err = inTx(ctx, s.tx, tenantID, func(txCtx context.Context) ([]Node, error) {
		return s.repo.FindAll(txCtx, tenantID)
	})
	if err != nil {
		return nil, endSpan(span, toServiceError(err))
	}
	if genErr != nil {
		logWithFields(ctx, logrus.WarnLevel, "functree.cache.generation_failed", logrus.Fields{
			"tenant_id": tenantID.String(),
			"error":     genErr.Error(),
		})
		return BuildTree(nodes), nil
	}
	stored, err := s.cache.Set(ctx, tenantID, generation, nodes)
	if err != nil {
		logWithFields(ctx, logrus.WarnLevel, "functree.cache.set_failed", logrus.Fields{
			"tenant_id": tenantID.String(),
			"error":     err.Error(),
		})
	} else if !stored {
		logWithFields(ctx, logrus.DebugLevel, "functree.cache.set_skipped", logrus.Fields{
			"tenant_id":  tenantID.String(),
			"generation": generation,
		})
	}
	return BuildTree(nodes), nil
}

func (s *FunctionalityService) afterWrite(ctx context.Context, tenantID uuid.UUID, ev events.NodeEventV1) {
	if err := s.cache.Invalidate(ctx, tenantID); err != nil {
		logWithFields(ctx, logrus.WarnLevel, "functree.cache.invalidate_failed", logrus.Fields{
			"tenant_id": tenantID.String(),
			"error":     err.Error(),
		})
	}
	if s.publisher != nil && s.outbox == nil {
		s.publisher.Publish(&ev)
	}
	logWithFields(ctx, logrus.InfoLevel, "functree.node.written", logrus.Fields{
		"tenant_id":   tenantID.String(),
		"change_type": ev.ChangeType,
		"node_id":     ev.NodeID.String(),
		"request_id":  ev.RequestID,
	})
}

func (s *FunctionalityService) enqueue(txCtx context.Context, ev events.NodeEventV1) error {
	if s.outbox == nil {
		return nil
	}
	return s.outbox.Enqueue(txCtx, ev)
}

func (s *FunctionalityService) buildEvent(ctx context.Context, tenantID uuid.UUID, changeType string, n Node) events.NodeEventV1 {
	requestID := composables.UseRequestID(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	return events.NodeEventV1{
		EventID:         uuid.New(),
		EventVersion:    events.EventVersionV1,
		RequestID:       requestID,
		TenantID:        tenantID,
		TransactionTime: s.now().UTC(),
		ChangeType:      changeType,
		NodeID:          n.ID,
		Kind:            string(n.Kind),
		Name:            n.Name,
	}
}

func positionOf(n Node) *events.NodePositionV1 {
	return &events.NodePositionV1{ParentID: copyID(n.ParentID), OrderKey: n.OrderKey}
}

func (s *FunctionalityService) startSpan(ctx context.Context, name string, tenantID uuid.UUID, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("tenant_id", tenantID.String()))
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) error {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func inTx[T any](ctx context.Context, runner TxRunner, tenantID uuid.UUID, fn func(txCtx context.Context) (T, error)) (T, error) {
	var out T
	err := runner.InTx(ctx, tenantID, func(txCtx context.Context) error {
		var innerErr error
		out, innerErr = fn(txCtx)
		return innerErr
	})
	return out, err
}
