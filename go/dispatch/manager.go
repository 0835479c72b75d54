package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/sovakpeter/lakegate/go/auth"
	"github.com/sovakpeter/lakegate/go/config"
	"github.com/sovakpeter/lakegate/go/driver"
	"github.com/sovakpeter/lakegate/go/handlers"
	"github.com/sovakpeter/lakegate/go/limits"
	"github.com/sovakpeter/lakegate/go/logging"
	"github.com/sovakpeter/lakegate/go/logging/uilog"
	"github.com/sovakpeter/lakegate/go/pool"
	"github.com/sovakpeter/lakegate/go/protocol"
	"github.com/sovakpeter/lakegate/go/queries"
	"github.com/sovakpeter/lakegate/go/schema"
	"github.com/sovakpeter/lakegate/go/warmup"
)

// Manager is the gateway's single entry point. It owns the connection
// pool and every lifecycle service, and turns raw Execute calls into
// scoped, logged, guaranteed responses.
type Manager struct {
	cfg       *config.Config
	pool      *pool.Pool
	lifecycle *Lifecycle
	uiLogs    *uilog.Registry
}

var hookOnce sync.Once

// NewManager builds a manager from configuration. The warehouse driver is
// chosen by mode: Databricks SQL in production, embedded SQLite when a
// local database path is configured.
func NewManager(cfg *config.Config) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logging.Setup(cfg)

	var drv driver.Driver
	if cfg.IsLocal() {
		drv = driver.NewSQLite(cfg.LocalDBPath, cfg.QueryTimeout())
	} else {
		drv = driver.NewDatabricks(cfg)
	}
	p := pool.New(drv, cfg.Limits.ConnectionPoolSize)

	registry, err := queries.NewRegistry()
	if err != nil {
		return nil, err
	}

	cache := schema.NewCache(cfg.SchemaCache.Dir, cfg.SchemaCache.MaxTables,
		time.Duration(cfg.SchemaCache.TTLSeconds)*time.Second)
	provider := schema.NewProvider(cache, p, registry)

	env := &handlers.Env{
		Config:  cfg,
		Pool:    p,
		Queries: registry,
		Schemas: provider,
	}

	limiter := limits.NewSessionRateLimiter(cfg.Limits.RateLimitRequests, cfg.RateWindow())
	gate := limits.NewAdmissionGate(cfg.Limits.MaxConcurrentQueries)
	warmer := warmup.New(p, cfg.Warmup.Enabled, cfg.Warmup.SQL,
		time.Duration(cfg.Warmup.TTLSeconds)*time.Second,
		time.Duration(cfg.Warmup.BackoffSeconds)*time.Second,
		time.Duration(cfg.Warmup.TimeoutSeconds)*time.Second)

	uiLogs := uilog.NewRegistry(cfg.UILog.MaxMessages, cfg.UILog.EnabledDefault)
	hookOnce.Do(func() {
		level, err := logrus.ParseLevel(cfg.UILog.Level)
		if err != nil {
			level = logrus.InfoLevel
		}
		logrus.AddHook(uilog.NewHook(uiLogs, level))
	})

	return &Manager{
		cfg:  cfg,
		pool: p,
		lifecycle: NewLifecycle(env, handlers.NewRegistry(),
			limiter, gate, warmer, schema.NewResolver(provider)),
		uiLogs: uiLogs,
	}, nil
}

// UILogs exposes the per-session log capture registry.
func (m *Manager) UILogs() *uilog.Registry { return m.uiLogs }

// Close releases the connection pool.
func (m *Manager) Close() { m.pool.Close() }

// Execute runs one operation. The response is never nil: every failure,
// including panics, maps into the error taxonomy. An empty correlation id
// gets a generated one; the OBO token falls back to forwarded headers.
func (m *Manager) Execute(ctx context.Context, req *protocol.OperationRequest,
	oboToken, correlationID string, headers map[string]string) *protocol.OperationResponse {

	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	if oboToken == "" {
		oboToken = auth.OBOToken(headers)
	}
	method := auth.Detect(headers, oboToken, m.cfg.Warehouse.AccessToken, m.cfg.IsLocal())
	email := auth.UserEmail(headers, oboToken)

	scope := logging.Scope{
		CorrelationID: correlationID,
		UserEmail:     email,
		AuthMethod:    string(method),
	}
	var table, sessionID string
	if req != nil {
		scope.Scenario = handlers.RouteKey(req)
		scope.Table = req.Table
		scope.UISessionID = req.SessionID
		table = req.Table
		sessionID = req.SessionID
	}
	ctx = logging.WithScope(ctx, scope)

	skipLogging := req != nil && req.Opts().SkipLogging
	if !skipLogging {
		logging.RequestStart(ctx, correlationID, email, scope.Scenario, table)
		if m.cfg.Log.IntentEnabled && req != nil {
			logging.LogIntent(ctx, req, correlationID)
		}
	}

	start := time.Now()
	token := oboToken
	if method != protocol.AuthOBO {
		token = ""
	}
	ec := &handlers.ExecContext{
		Request:       req,
		Token:         token,
		CorrelationID: correlationID,
	}
	resp := m.lifecycle.Run(ctx, req, ec)
	resp.Meta()["user"] = email
	resp.Meta()["auth_method"] = string(method)
	if sessionID != "" {
		resp.Meta()["session_id"] = sessionID
	}

	if !skipLogging {
		rows := 0
		if n, ok := resp.Metadata["row_count"].(int); ok {
			rows = n
		}
		logging.RequestEnd(ctx, correlationID, resp.Success, ms(time.Since(start)), rows)
	}
	return resp
}
