package configuration

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/functree/pkg/logging"
)

const Production = "production"

var singleton = sync.OnceValue(func() *Configuration {
	c := &Configuration{}
	if err := c.load([]string{".env", ".env.local"}); err != nil {
		c.Unload()
		panic(err)
	}
	return c
})

// LoadEnv loads the given env files. Relative paths are tried in the working
// directory first and then in the nearest parent directory holding a go.mod.
func LoadEnv(envFiles []string) (int, error) {
	existingFiles := make([]string, 0, len(envFiles))
	root := findModuleRoot()
	for _, file := range envFiles {
		if fileExists(file) {
			existingFiles = append(existingFiles, file)
			continue
		}
		if root == "" || filepath.IsAbs(file) {
			continue
		}
		if candidate := filepath.Join(root, file); fileExists(candidate) {
			existingFiles = append(existingFiles, candidate)
		}
	}

	if len(existingFiles) == 0 {
		return 0, nil
	}

	return len(existingFiles), godotenv.Load(existingFiles...)
}

func fileExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir()
}

func findModuleRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if fileExists(filepath.Join(dir, "go.mod")) {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

type DatabaseOptions struct {
	Opts     string `env:"-"`
	Name     string `env:"DB_NAME" envDefault:"functree"`
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD" envDefault:"postgres"`
}

func (d *DatabaseOptions) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s dbname=%s password=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Name, d.Password,
	)
}

type LogOptions struct {
	Path       string `env:"LOG_PATH" envDefault:"./logs/app.log"`
	MaxSizeMB  int    `env:"LOG_MAX_SIZE_MB" envDefault:"100"`
	MaxBackups int    `env:"LOG_MAX_BACKUPS" envDefault:"5"`
}

type OpenTelemetryOptions struct {
	Enabled     bool   `env:"OTEL_ENABLED" envDefault:"false"`
	TempoURL    string `env:"OTEL_TEMPO_URL" envDefault:"localhost:4318"`
	ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"functree"`
}

type PrometheusOptions struct {
	Enabled bool   `env:"PROMETHEUS_METRICS_ENABLED" envDefault:"false"`
	Path    string `env:"PROMETHEUS_METRICS_PATH" envDefault:"/debug/prometheus"`
}

type TreeOptions struct {
	// Isolation level used for positioning transactions (serializable|repeatable_read).
	TxIsolation string `env:"FUNCTREE_TX_ISOLATION" envDefault:"serializable"`
	// Tree read cache backend (disabled|memory|redis).
	Cache    string        `env:"FUNCTREE_TREE_CACHE" envDefault:"disabled"`
	CacheTTL time.Duration `env:"FUNCTREE_TREE_CACHE_TTL" envDefault:"5m"`
}

// Validate normalizes and checks the tree options.
func (t *TreeOptions) Validate() error {
	isolation := strings.ToLower(strings.TrimSpace(t.TxIsolation))
	if isolation == "" {
		isolation = "serializable"
	}
	switch isolation {
	case "serializable", "repeatable_read":
	default:
		return fmt.Errorf("invalid FUNCTREE_TX_ISOLATION=%q (expected serializable|repeatable_read)", t.TxIsolation)
	}
	t.TxIsolation = isolation

	cache := strings.ToLower(strings.TrimSpace(t.Cache))
	if cache == "" {
		cache = "disabled"
	}
	switch cache {
	case "disabled", "memory", "redis":
	default:
		return fmt.Errorf("invalid FUNCTREE_TREE_CACHE=%q (expected disabled|memory|redis)", t.Cache)
	}
	t.Cache = cache

	if t.CacheTTL < 0 {
		return fmt.Errorf("FUNCTREE_TREE_CACHE_TTL must be non-negative, got %s", t.CacheTTL)
	}
	return nil
}

// OutboxOptions control durable delivery of node events. When disabled the
// service publishes events in process after commit.
type OutboxOptions struct {
	Enabled      bool          `env:"OUTBOX_ENABLED" envDefault:"false"`
	Table        string        `env:"OUTBOX_TABLE" envDefault:"public.functionality_outbox"`
	RelayEnabled bool          `env:"OUTBOX_RELAY_ENABLED" envDefault:"true"`
	PollInterval time.Duration `env:"OUTBOX_RELAY_POLL_INTERVAL" envDefault:"1s"`
	BatchSize    int           `env:"OUTBOX_RELAY_BATCH_SIZE" envDefault:"100"`
	MaxAttempts  int           `env:"OUTBOX_RELAY_MAX_ATTEMPTS" envDefault:"25"`
	LockTTL      time.Duration `env:"OUTBOX_RELAY_LOCK_TTL" envDefault:"60s"`
	SingleActive bool          `env:"OUTBOX_RELAY_SINGLE_ACTIVE" envDefault:"true"`
	Retention    time.Duration `env:"OUTBOX_RETENTION" envDefault:"168h"`
}

type Configuration struct {
	Database      DatabaseOptions
	Log           LogOptions
	OpenTelemetry OpenTelemetryOptions
	Prometheus    PrometheusOptions
	Tree          TreeOptions
	Outbox        OutboxOptions

	RedisURL         string   `env:"REDIS_URL" envDefault:"localhost:6379"`
	ServerPort       int      `env:"PORT" envDefault:"3200"`
	GoAppEnvironment string   `env:"GO_APP_ENV" envDefault:"development"`
	SocketAddress    string   `env:"-"`
	Origin           string   `env:"ORIGIN" envDefault:"http://localhost:3200"`
	AllowedOrigins   []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	LogLevel         string   `env:"LOG_LEVEL" envDefault:"error"`
	// The request id is read from this header, a random uuid is generated when absent.
	RequestIDHeader string `env:"REQUEST_ID_HEADER" envDefault:"X-Request-ID"`
	RealIPHeader    string `env:"REAL_IP_HEADER" envDefault:"X-Real-IP"`
	// Tenant scope of every tree operation.
	TenantHeader string `env:"TENANT_HEADER" envDefault:"X-Tenant-ID"`
	// RLS enforcement mode (disabled/enforce).
	RLSEnforce string `env:"RLS_ENFORCE" envDefault:"disabled"`

	logFile *logging.RotatingFile
	logger  *logrus.Logger
}

func (c *Configuration) Logger() *logrus.Logger {
	return c.logger
}

func (c *Configuration) LogrusLogLevel() logrus.Level {
	switch c.LogLevel {
	case "silent":
		return logrus.PanicLevel
	case "error":
		return logrus.ErrorLevel
	case "warn":
		return logrus.WarnLevel
	case "info":
		return logrus.InfoLevel
	case "debug":
		return logrus.DebugLevel
	default:
		return logrus.ErrorLevel
	}
}

func Use() *Configuration {
	return singleton()
}

func (c *Configuration) load(envFiles []string) error {
	n, err := LoadEnv(envFiles)
	if err != nil {
		return err
	}
	if n == 0 {
		wd, _ := os.Getwd()
		log.Println("No .env files found. Tried:")
		for _, file := range envFiles {
			log.Println(filepath.Join(wd, file))
		}
	}
	if err := env.Parse(c); err != nil {
		return err
	}
	if err := c.Tree.Validate(); err != nil {
		return fmt.Errorf("tree configuration error: %w", err)
	}
	if err := c.validateRLS(); err != nil {
		return err
	}

	f, logger, err := logging.FileLogger(c.LogrusLogLevel(), logging.FileOptions{
		Path:       c.Log.Path,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
	})
	if err != nil {
		return err
	}
	c.logFile = f
	c.logger = logger

	c.Database.Opts = c.Database.ConnectionString()
	if c.GoAppEnvironment == Production {
		c.SocketAddress = fmt.Sprintf(":%d", c.ServerPort)
	} else {
		c.SocketAddress = fmt.Sprintf("localhost:%d", c.ServerPort)
	}
	return nil
}

func (c *Configuration) validateRLS() error {
	mode := strings.ToLower(strings.TrimSpace(c.RLSEnforce))
	if mode == "" {
		mode = "disabled"
	}
	switch mode {
	case "disabled", "enforce":
	default:
		return fmt.Errorf("invalid RLS_ENFORCE=%q (expected disabled|enforce)", c.RLSEnforce)
	}

	if mode == "enforce" && strings.EqualFold(strings.TrimSpace(c.Database.User), "postgres") {
		return fmt.Errorf("RLS_ENFORCE=enforce requires a non-superuser DB_USER (postgres will bypass RLS)")
	}

	c.RLSEnforce = mode
	return nil
}

// Unload handles a graceful shutdown.
func (c *Configuration) Unload() {
	if c.logFile != nil {
		if err := c.logFile.Close(); err != nil {
			log.Printf("Failed to close log file: %v", err)
		}
	}
}
