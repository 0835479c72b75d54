// Package logging configures logrus for the gateway and carries the
// request-scoped fields every log line is stamped with.
package logging

import (
	"context"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/sovakpeter/lakegate/go/config"
)

// Scope is the per-request logging context. It travels on context.Context
// and is injected into every entry produced through Logger.
type Scope struct {
	CorrelationID string
	UserEmail     string
	AuthMethod    string
	Scenario      string
	Phase         string
	Table         string
	UISessionID   string
}

type scopeKey struct{}

// WithScope attaches a request scope to the context.
func WithScope(ctx context.Context, s Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

// ScopeFrom returns the scope on ctx, or a zero scope.
func ScopeFrom(ctx context.Context) Scope {
	if ctx == nil {
		return Scope{}
	}
	if s, ok := ctx.Value(scopeKey{}).(Scope); ok {
		return s
	}
	return Scope{}
}

// WithPhase returns ctx with the lifecycle phase updated in its scope.
func WithPhase(ctx context.Context, phase string) context.Context {
	s := ScopeFrom(ctx)
	s.Phase = phase
	return WithScope(ctx, s)
}

// Logger returns an entry stamped with the request scope on ctx. The
// context rides along on the entry so capture hooks can read the scope.
func Logger(ctx context.Context) *logrus.Entry {
	s := ScopeFrom(ctx)
	fields := logrus.Fields{}
	if s.CorrelationID != "" {
		fields["correlation_id"] = s.CorrelationID
	}
	if s.UserEmail != "" {
		fields["user"] = s.UserEmail
	}
	if s.AuthMethod != "" {
		fields["auth_method"] = s.AuthMethod
	}
	if s.Scenario != "" {
		fields["scenario"] = s.Scenario
	}
	if s.Phase != "" {
		fields["phase"] = s.Phase
	}
	if s.Table != "" {
		fields["table"] = s.Table
	}
	return logrus.WithContext(ctx).WithFields(fields)
}

var setupOnce sync.Once

// Setup configures the root logrus logger from config. Idempotent.
func Setup(cfg *config.Config) {
	setupOnce.Do(func() {
		level, err := logrus.ParseLevel(cfg.Log.Level)
		if err != nil {
			level = logrus.InfoLevel
		}
		logrus.SetLevel(level)

		if cfg.Log.FormatStyle == "json" {
			logrus.SetFormatter(&logrus.JSONFormatter{
				FieldMap: logrus.FieldMap{
					logrus.FieldKeyTime: "timestamp",
					logrus.FieldKeyMsg:  "message",
				},
			})
		} else {
			logrus.SetFormatter(&logrus.TextFormatter{
				FullTimestamp:   true,
				TimestampFormat: "15:04:05.000",
			})
		}

		var out io.Writer = os.Stdout
		if cfg.Log.File != "" {
			out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
				Filename:   cfg.Log.File,
				MaxSize:    100,
				MaxBackups: 5,
				Compress:   true,
			})
		}
		logrus.SetOutput(out)
	})
}

const maxSQLInLog = 500

// LogSQL logs a statement and its parameters at debug level, truncating
// long SQL and masking token-like parameter values.
func LogSQL(ctx context.Context, sql string, params map[string]any) {
	entry := Logger(ctx)
	if len(sql) > maxSQLInLog {
		sql = sql[:maxSQLInLog] + "..."
	}
	entry.WithField("sql", sql).Debug("executing statement")
	if len(params) == 0 {
		return
	}
	safe := make(map[string]any, len(params))
	for k, v := range params {
		if strings.Contains(strings.ToLower(k), "token") {
			safe[k] = "***"
		} else {
			safe[k] = v
		}
	}
	entry.WithField("params", safe).Debug("statement parameters")
}
