package persistence

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/iota-uz/functree/modules/functionality/infrastructure/persistence/models"
	"github.com/iota-uz/functree/modules/functionality/services"
)

func pgUUID(id uuid.UUID) pgtype.UUID {
	return pgtype.UUID{Bytes: id, Valid: true}
}

func pgNullableUUID(id *uuid.UUID) pgtype.UUID {
	if id == nil {
		return pgtype.UUID{}
	}
	return pgUUID(*id)
}

func fromPgUUID(v pgtype.UUID) *uuid.UUID {
	if !v.Valid {
		return nil
	}
	id := uuid.UUID(v.Bytes)
	return &id
}

func ToDBNode(n services.Node) models.FunctionalityNode {
	out := models.FunctionalityNode{
		ID:        n.ID.String(),
		OrderKey:  n.OrderKey,
		Kind:      string(n.Kind),
		Name:      n.Name,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
	if n.ParentID != nil {
		parent := n.ParentID.String()
		out.ParentID = &parent
	}
	return out
}

func ToDomainNode(m models.FunctionalityNode) (services.Node, error) {
	id, err := uuid.Parse(m.ID)
	if err != nil {
		return services.Node{}, fmt.Errorf("invalid node id %q: %w", m.ID, err)
	}
	kind, err := services.ParseNodeKind(m.Kind)
	if err != nil {
		return services.Node{}, err
	}
	out := services.Node{
		ID:        id,
		OrderKey:  m.OrderKey,
		Kind:      kind,
		Name:      m.Name,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if m.ParentID != nil {
		parent, err := uuid.Parse(*m.ParentID)
		if err != nil {
			return services.Node{}, fmt.Errorf("invalid parent id %q: %w", *m.ParentID, err)
		}
		out.ParentID = &parent
	}
	return out, nil
}
