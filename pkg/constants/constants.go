package constants

type ContextKey string

const (
	TxKey        ContextKey = "tx"
	PoolKey      ContextKey = "pool"
	LoggerKey    ContextKey = "logger"
	TenantIDKey  ContextKey = "tenant_id"
	RequestIDKey ContextKey = "request_id"
	RequestStart ContextKey = "request_start"
	AppKey       ContextKey = "app"
)

// Transaction-local settings read by the row level security policies of the
// functionality tables.
const (
	TenantSetting    = "functree.tenant_id"
	RequestIDSetting = "functree.request_id"
)
