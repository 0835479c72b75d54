package driver

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	_ "github.com/databricks/databricks-sql-go"

	"github.com/sovakpeter/lakegate/go/config"
	"github.com/sovakpeter/lakegate/go/logging"
	"github.com/sovakpeter/lakegate/go/protocol"
)

const userAgentEntry = "lakegate"

// Databricks opens connections to a Databricks SQL warehouse. An empty
// token on Connect falls back to the configured service principal token.
type Databricks struct {
	cfg *config.Config
}

// NewDatabricks returns a driver for the configured warehouse endpoint.
func NewDatabricks(cfg *config.Config) *Databricks {
	return &Databricks{cfg: cfg}
}

func (d *Databricks) Name() string { return "databricks" }

// dsn assembles the connector DSN: token:<token>@host:443<http-path>?opts.
func (d *Databricks) dsn(token string) string {
	q := url.Values{}
	q.Set("timeout", fmt.Sprint(d.cfg.Warehouse.SocketTimeout))
	q.Set("userAgentEntry", userAgentEntry)
	if d.cfg.Warehouse.UseCloudFetch {
		q.Set("useCloudFetch", "true")
	}
	if d.cfg.Warehouse.Catalog != "" {
		q.Set("catalog", d.cfg.Warehouse.Catalog)
	}
	if d.cfg.Warehouse.Schema != "" {
		q.Set("schema", d.cfg.Warehouse.Schema)
	}
	return fmt.Sprintf("token:%s@%s:443%s?%s",
		token, d.cfg.ServerHostname(), d.cfg.EndpointHTTPPath(), q.Encode())
}

// Connect opens and verifies a connection, retrying transient failures
// with capped exponential backoff.
func (d *Databricks) Connect(ctx context.Context, token string) (Conn, error) {
	if token == "" {
		token = d.cfg.Warehouse.AccessToken
	}
	if token == "" {
		return nil, protocol.AuthenticationError(
			"No warehouse credentials available.",
			"neither an OBO token nor DATABRICKS_TOKEN is present")
	}

	db, err := sql.Open("databricks", d.dsn(token))
	if err != nil {
		return nil, d.diagnose(err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxIdleTime(time.Duration(d.cfg.Warehouse.SessionTimeout) * time.Second)

	policy := backoff.WithContext(connectBackoff(), ctx)
	ping := func() error {
		pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		return db.PingContext(pingCtx)
	}
	if err := backoff.Retry(ping, policy); err != nil {
		_ = db.Close()
		return nil, d.diagnose(err)
	}

	logging.Logger(ctx).WithField("host", d.cfg.ServerHostname()).
		Debug("warehouse connection established")
	return &sqlConn{db: db, bind: bindNamed, timeout: d.cfg.QueryTimeout()}, nil
}

func connectBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 5 * time.Second
	b.MaxElapsedTime = 30 * time.Second
	return b
}

// diagnose folds connect failures into the taxonomy with hints about the
// usual misconfigurations.
func (d *Databricks) diagnose(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "401") || strings.Contains(msg, "unauthorized") ||
		strings.Contains(msg, "invalid token") || strings.Contains(msg, "expired"):
		return protocol.TokenExpiredError(err.Error()).WithCause(err)
	case strings.Contains(msg, "403") || strings.Contains(msg, "forbidden"):
		return protocol.AuthorizationError(
			"Access to the warehouse was denied.", err.Error()).WithCause(err)
	case strings.Contains(msg, "no such host") || strings.Contains(msg, "dns"):
		return protocol.ConnectionError(
			"The warehouse hostname could not be resolved.",
			fmt.Sprintf("%s (check DATABRICKS_SERVER_HOSTNAME=%q)", err, d.cfg.ServerHostname())).WithCause(err)
	case strings.Contains(msg, "404") || strings.Contains(msg, "not found"):
		return protocol.ConnectionError(
			"The warehouse endpoint was not found.",
			fmt.Sprintf("%s (check DATABRICKS_HTTP_PATH=%q)", err, d.cfg.EndpointHTTPPath())).WithCause(err)
	default:
		return protocol.ConnectionError(
			"Could not connect to the warehouse.", err.Error()).WithCause(err)
	}
}
