package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	ChangeNodeCreated = "node.created"
	ChangeNodeMoved   = "node.moved"
	ChangeNodeUpdated = "node.updated"
	ChangeNodeDeleted = "node.deleted"
	EventVersionV1    = 1

	// TopicNodeChangedV1 is the outbox topic of NodeEventV1 payloads.
	TopicNodeChangedV1 = "functree.node.changed.v1"
)

type NodePositionV1 struct {
	ParentID *uuid.UUID `json:"parent_id"`
	OrderKey float64    `json:"order_key"`
}

// NodeEventV1 is published after a tree write has been committed.
type NodeEventV1 struct {
	EventID         uuid.UUID       `json:"event_id"`
	EventVersion    int             `json:"event_version"`
	RequestID       string          `json:"request_id"`
	TenantID        uuid.UUID       `json:"tenant_id"`
	TransactionTime time.Time       `json:"transaction_time"`
	ChangeType      string          `json:"change_type"`
	NodeID          uuid.UUID       `json:"node_id"`
	Kind            string          `json:"kind"`
	Name            string          `json:"name"`
	OldPosition     *NodePositionV1 `json:"old_position,omitempty"`
	NewPosition     *NodePositionV1 `json:"new_position,omitempty"`
	Removed         int             `json:"removed,omitempty"`
}
