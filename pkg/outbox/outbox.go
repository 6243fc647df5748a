// Package outbox stores events in the writing transaction and relays them
// to a Dispatcher once committed.
package outbox

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

var ErrInvalidConfig = errors.New("outbox: invalid configuration")

func invalidConfig(format string, args ...any) error {
	return errors.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...)
}

// Message is the unit stored in an outbox table.
type Message struct {
	TenantID uuid.UUID
	Topic    string
	EventID  uuid.UUID
	Payload  json.RawMessage
}

// Meta describes a claimed row. EventID is the idempotency key for consumers.
type Meta struct {
	Table    pgx.Identifier
	TenantID uuid.UUID
	Topic    string
	EventID  uuid.UUID
	Sequence int64
	Attempts int
}

type DispatchedMessage struct {
	Meta    Meta
	Payload json.RawMessage
}

type Dispatcher interface {
	Dispatch(ctx context.Context, msg DispatchedMessage) error
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, msg DispatchedMessage) error

func (f DispatcherFunc) Dispatch(ctx context.Context, msg DispatchedMessage) error {
	return f(ctx, msg)
}

var identPartRe = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// ParseIdentifier parses "schema.table" or "table".
func ParseIdentifier(s string) (pgx.Identifier, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, invalidConfig("identifier is empty")
	}
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return nil, invalidConfig("invalid identifier %q (expected table or schema.table)", s)
	}
	ident := make(pgx.Identifier, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if !identPartRe.MatchString(p) {
			return nil, invalidConfig("invalid identifier %q (bad part %q)", s, p)
		}
		ident = append(ident, p)
	}
	return ident, nil
}

func TableLabel(table pgx.Identifier) string {
	return strings.Join(table, ".")
}
