// Package config holds the gateway's environment-driven settings.
package config

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jessevdk/go-flags"
)

// Config is parsed from the environment. Field tags follow go-flags
// conventions so the same struct backs both env parsing and --help output.
type Config struct {
	Warehouse struct {
		Hostname    string `long:"hostname" env:"DATABRICKS_SERVER_HOSTNAME" description:"Warehouse hostname, scheme optional"`
		Host        string `long:"host" env:"DATABRICKS_HOST" description:"Fallback hostname when DATABRICKS_SERVER_HOSTNAME is unset"`
		HTTPPath    string `long:"http-path" env:"DATABRICKS_HTTP_PATH" description:"SQL endpoint HTTP path"`
		WarehouseID    string `long:"warehouse-id" env:"WAREHOUSE_ID" description:"Warehouse ID used to derive the HTTP path"`
		WarehouseIDAlt string `long:"databricks-warehouse-id" env:"DATABRICKS_WAREHOUSE_ID" description:"Fallback when WAREHOUSE_ID is unset"`
		AccessToken string `long:"access-token" env:"DATABRICKS_TOKEN" description:"Service principal access token"`
		Catalog     string `long:"catalog" env:"DATABRICKS_CATALOG" default:"main" description:"Default catalog"`
		Schema      string `long:"schema" env:"DATABRICKS_SCHEMA" default:"default" description:"Default schema"`

		SocketTimeout  int  `long:"socket-timeout" env:"DB_SOCKET_TIMEOUT" default:"600" description:"Socket timeout in seconds"`
		SessionTimeout int  `long:"session-timeout" env:"DB_SESSION_TIMEOUT" default:"3600" description:"Idle session timeout in seconds"`
		UseCloudFetch  bool `long:"use-cloud-fetch" env:"USE_CLOUD_FETCH" description:"Enable cloud fetch for large results"`
	} `group:"Warehouse" namespace:"warehouse"`

	Limits struct {
		DefaultReadLimit         int `long:"default-read-limit" env:"DEFAULT_READ_LIMIT" default:"1000"`
		MaxReadLimit             int `long:"max-read-limit" env:"MAX_READ_LIMIT" default:"10000"`
		MaxBatchSize             int `long:"max-batch-size" env:"MAX_BATCH_SIZE" default:"1000"`
		MaxTransactionStatements int `long:"max-transaction-statements" env:"MAX_TRANSACTION_STATEMENTS" default:"50"`
		QueryTimeoutSeconds      int `long:"query-timeout" env:"QUERY_TIMEOUT_SECONDS" default:"900"`
		ConnectionPoolSize       int `long:"connection-pool-size" env:"CONNECTION_POOL_SIZE" default:"5"`

		RateLimitRequests      int `long:"rate-limit-requests" env:"RATE_LIMIT_REQUESTS" default:"8"`
		RateLimitWindowSeconds int `long:"rate-limit-window" env:"RATE_LIMIT_WINDOW_SECONDS" default:"10"`
		RateLimitCleanupSecs   int `long:"rate-limit-cleanup" env:"RATE_LIMIT_CLEANUP_INTERVAL_SECONDS" default:"300"`
		MaxConcurrentQueries   int `long:"max-concurrent-queries" env:"MAX_CONCURRENT_QUERIES" default:"20"`
	} `group:"Limits" namespace:"limits"`

	Warmup struct {
		Enabled        bool `long:"enabled" env:"WAREHOUSE_WARMUP_ENABLED" description:"Warm the warehouse on first use"`
		TTLSeconds     int  `long:"ttl" env:"WAREHOUSE_WARMUP_TTL_SECONDS" default:"600"`
		BackoffSeconds int  `long:"backoff" env:"WAREHOUSE_WARMUP_BACKOFF_SECONDS" default:"30"`
		TimeoutSeconds int    `long:"timeout" env:"WAREHOUSE_WARMUP_TIMEOUT_SECONDS" default:"60"`
		SQL            string `long:"sql" env:"WAREHOUSE_WARMUP_SQL" default:"SELECT 1" description:"Statement issued to wake the warehouse"`
	} `group:"Warmup" namespace:"warmup"`

	SchemaCache struct {
		TTLSeconds int    `long:"ttl" env:"SCHEMA_CACHE_TTL_SECONDS" default:"3600"`
		Dir        string `long:"dir" env:"SCHEMA_CACHE_DIR" default:"cache/schema"`
		MaxTables  int    `long:"max-tables" env:"SCHEMA_CACHE_MAX_TABLES" default:"256"`
	} `group:"Schema cache" namespace:"schema-cache"`

	Log struct {
		Level         string `long:"level" env:"LOG_LEVEL" default:"info" choice:"debug" choice:"info" choice:"warning" choice:"error"`
		FormatStyle   string `long:"format" env:"LOG_FORMAT_STYLE" default:"terminal" choice:"terminal" choice:"json"`
		File          string `long:"file" env:"LOG_FILE" description:"Optional rotating log file"`
		IntentEnabled bool   `long:"intent" env:"LOG_INTENT_ENABLED" description:"Log full request intents at debug level"`
	} `group:"Logging" namespace:"log"`

	UILog struct {
		EnabledDefault bool   `long:"enabled-default" env:"UI_LOG_ENABLED_DEFAULT" description:"Capture logs for new UI sessions by default"`
		Level          string `long:"level" env:"UI_LOG_LEVEL" default:"INFO"`
		MaxMessages    int    `long:"max-messages" env:"UI_LOG_BUFFER_MAX_MESSAGES" default:"500"`
	} `group:"UI logging" namespace:"ui-log"`

	LocalDBPath string `long:"local-db" env:"LAKEGATE_LOCAL_DB" description:"SQLite path enabling LOCAL auth mode"`
}

// ServerHostname returns the warehouse hostname with any URL scheme
// stripped, preferring DATABRICKS_SERVER_HOSTNAME over DATABRICKS_HOST.
func (c *Config) ServerHostname() string {
	h := c.Warehouse.Hostname
	if h == "" {
		h = c.Warehouse.Host
	}
	h = strings.TrimPrefix(h, "https://")
	h = strings.TrimPrefix(h, "http://")
	return strings.TrimSuffix(h, "/")
}

// EndpointHTTPPath returns the configured HTTP path, deriving it from the
// warehouse ID when unset.
func (c *Config) EndpointHTTPPath() string {
	if c.Warehouse.HTTPPath != "" {
		return c.Warehouse.HTTPPath
	}
	if id := c.EffectiveWarehouseID(); id != "" {
		return "/sql/1.0/warehouses/" + id
	}
	return ""
}

// EffectiveWarehouseID prefers WAREHOUSE_ID over DATABRICKS_WAREHOUSE_ID.
func (c *Config) EffectiveWarehouseID() string {
	if c.Warehouse.WarehouseID != "" {
		return c.Warehouse.WarehouseID
	}
	return c.Warehouse.WarehouseIDAlt
}

// QueryTimeout returns the per-statement timeout.
func (c *Config) QueryTimeout() time.Duration {
	return time.Duration(c.Limits.QueryTimeoutSeconds) * time.Second
}

// RateWindow returns the sliding rate-limit window.
func (c *Config) RateWindow() time.Duration {
	return time.Duration(c.Limits.RateLimitWindowSeconds) * time.Second
}

// IsLocal reports whether the gateway runs against an embedded database
// instead of a real warehouse.
func (c *Config) IsLocal() bool {
	return c.LocalDBPath != ""
}

// Validate checks that production mode has a reachable endpoint. LOCAL mode
// needs nothing beyond the database path.
func (c *Config) Validate() error {
	if c.IsLocal() {
		return nil
	}
	if c.ServerHostname() == "" {
		return fmt.Errorf("missing warehouse hostname: set DATABRICKS_SERVER_HOSTNAME or DATABRICKS_HOST")
	}
	if c.EndpointHTTPPath() == "" {
		return fmt.Errorf("missing endpoint path: set DATABRICKS_HTTP_PATH or WAREHOUSE_ID")
	}
	return nil
}

var (
	settings     *Config
	settingsOnce sync.Once
	settingsErr  error
)

// Load parses a Config from the environment.
func Load() (*Config, error) {
	var c Config
	parser := flags.NewParser(&c, flags.IgnoreUnknown)
	if _, err := parser.ParseArgs(nil); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Settings returns the process-wide Config, loading it on first use.
func Settings() (*Config, error) {
	settingsOnce.Do(func() {
		settings, settingsErr = Load()
	})
	return settings, settingsErr
}

// SetForTest replaces the process-wide Config. Test use only.
func SetForTest(c *Config) {
	settingsOnce.Do(func() {})
	settings, settingsErr = c, nil
}

// Defaults returns a Config populated with tag defaults and no endpoint,
// suitable for tests and LOCAL runs.
func Defaults() *Config {
	var c Config
	parser := flags.NewParser(&c, flags.IgnoreUnknown)
	// Parsing an empty argument vector applies the struct tag defaults.
	_, _ = parser.ParseArgs([]string{})
	return &c
}
