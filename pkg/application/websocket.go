package application

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/functree/pkg/composables"
)

const writeWait = 10 * time.Second

type HuberOptions struct {
	Pool         *pgxpool.Pool
	Logger       *logrus.Logger
	CheckOrigin  func(r *http.Request) bool
	TenantHeader string
}

type Connection interface {
	SendMessage(message []byte) error
	Close() error
	TenantID() uuid.UUID
}

type WsCallback func(ctx context.Context, conn Connection) error

// Huber accepts websocket upgrades and fans messages out to tenant channels.
type Huber interface {
	http.Handler
	ForEach(channel string, f WsCallback) error
	ConnectionsInChannel(channel string) int
}

// TenantChannel names the channel a connection joins for its tenant.
func TenantChannel(tenantID uuid.UUID) string {
	return "tenant/" + tenantID.String()
}

func NewHub(opts *HuberOptions) Huber {
	checkOrigin := opts.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	header := opts.TenantHeader
	if header == "" {
		header = "X-Tenant-ID"
	}
	return &huber{
		pool:         opts.Pool,
		logger:       opts.Logger,
		tenantHeader: header,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
		channels: make(map[string]map[*connection]struct{}),
	}
}

type huber struct {
	pool         *pgxpool.Pool
	logger       *logrus.Logger
	tenantHeader string
	upgrader     websocket.Upgrader

	mu       sync.RWMutex
	channels map[string]map[*connection]struct{}
}

// ServeHTTP requires a tenant id, taken from the tenant header or the
// "tenant" query parameter since browsers cannot set headers on upgrade.
func (h *huber) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	raw := r.Header.Get(h.tenantHeader)
	if raw == "" {
		raw = r.URL.Query().Get("tenant")
	}
	tenantID, err := uuid.Parse(raw)
	if err != nil || tenantID == uuid.Nil {
		http.Error(w, "tenant id is required", http.StatusBadRequest)
		return
	}
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if h.logger != nil {
			h.logger.WithError(err).Warn("websocket upgrade failed")
		}
		return
	}
	conn := &connection{conn: ws, tenantID: tenantID}
	channel := TenantChannel(tenantID)
	h.join(channel, conn)
	go h.readLoop(channel, conn)
}

// readLoop drains client frames until the peer goes away.
func (h *huber) readLoop(channel string, conn *connection) {
	defer func() {
		h.leave(channel, conn)
		_ = conn.Close()
	}()
	for {
		if _, _, err := conn.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *huber) join(channel string, conn *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members, ok := h.channels[channel]
	if !ok {
		members = make(map[*connection]struct{})
		h.channels[channel] = members
	}
	members[conn] = struct{}{}
}

func (h *huber) leave(channel string, conn *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	members := h.channels[channel]
	delete(members, conn)
	if len(members) == 0 {
		delete(h.channels, channel)
	}
}

func (h *huber) ConnectionsInChannel(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

func (h *huber) buildContext() context.Context {
	ctx := context.Background()
	if h.logger != nil {
		ctx = composables.WithLogger(ctx, logrus.NewEntry(h.logger))
	}
	if h.pool != nil {
		ctx = composables.WithPool(ctx, h.pool)
	}
	return ctx
}

// ForEach calls f for every connection in channel. A failed send is logged and
// the remaining connections are still visited.
func (h *huber) ForEach(channel string, f WsCallback) error {
	h.mu.RLock()
	members := make([]*connection, 0, len(h.channels[channel]))
	for conn := range h.channels[channel] {
		members = append(members, conn)
	}
	h.mu.RUnlock()

	ctx := h.buildContext()
	for _, conn := range members {
		if err := f(ctx, conn); err != nil && h.logger != nil {
			h.logger.WithError(err).WithField("channel", channel).Warn("websocket send failed")
		}
	}
	return nil
}

type connection struct {
	writeMu  sync.Mutex
	conn     *websocket.Conn
	tenantID uuid.UUID
}

func (c *connection) SendMessage(message []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, message)
}

func (c *connection) Close() error {
	return c.conn.Close()
}

func (c *connection) TenantID() uuid.UUID {
	return c.tenantID
}
