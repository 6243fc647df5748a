package models

import "time"

// FunctionalityNode is the serialized form of a node in the tree cache.
type FunctionalityNode struct {
	ID        string    `json:"id"`
	ParentID  *string   `json:"parent_id,omitempty"`
	OrderKey  float64   `json:"order_key"`
	Kind      string    `json:"kind"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
