// Package dispatch drives a request through the fixed lifecycle:
// validate, throttle, authenticate, route, warm up, resolve, execute
// behind the admission gate, shape, observe. Every request gets a
// response; errors map into the closed taxonomy instead of escaping.
package dispatch

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sovakpeter/lakegate/go/handlers"
	"github.com/sovakpeter/lakegate/go/limits"
	"github.com/sovakpeter/lakegate/go/logging"
	"github.com/sovakpeter/lakegate/go/protocol"
	"github.com/sovakpeter/lakegate/go/schema"
	"github.com/sovakpeter/lakegate/go/shape"
	"github.com/sovakpeter/lakegate/go/warmup"
)

// Lifecycle executes requests phase by phase against a fixed set of
// services. It is safe for concurrent use.
type Lifecycle struct {
	env      *handlers.Env
	registry *handlers.Registry
	limiter  *limits.SessionRateLimiter
	gate     *limits.AdmissionGate
	warmer   *warmup.Gate
	resolver *schema.Resolver

	cleanupInterval time.Duration
	cleanupMu       sync.Mutex
	lastCleanup     time.Time
}

// NewLifecycle wires a lifecycle. warmer and resolver may be nil; the
// corresponding phases then do nothing.
func NewLifecycle(env *handlers.Env, registry *handlers.Registry,
	limiter *limits.SessionRateLimiter, gate *limits.AdmissionGate,
	warmer *warmup.Gate, resolver *schema.Resolver) *Lifecycle {
	return &Lifecycle{
		env:             env,
		registry:        registry,
		limiter:         limiter,
		gate:            gate,
		warmer:          warmer,
		resolver:        resolver,
		cleanupInterval: time.Duration(env.Config.Limits.RateLimitCleanupSecs) * time.Second,
		lastCleanup:     time.Now(),
	}
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000.0
}

// Run executes one request. It never panics outward and never returns nil.
func (l *Lifecycle) Run(ctx context.Context, req *protocol.OperationRequest, ec *handlers.ExecContext) (resp *protocol.OperationResponse) {
	start := time.Now()
	meta := map[string]any{"correlation_id": ec.CorrelationID}

	defer func() {
		if r := recover(); r != nil {
			logging.Logger(ctx).WithField("panic", r).Error("request lifecycle panicked")
			resp = l.fail(ctx, req, meta, start, protocol.PhaseExecute,
				protocol.ConnectionError("An unexpected error occurred.", "lifecycle panic"))
		}
	}()

	// VALIDATE
	phaseStart := time.Now()
	ctx = logging.WithPhase(ctx, string(protocol.PhaseValidate))
	if err := validateRequest(req, l.env.Config); err != nil {
		rejectionsTotal.WithLabelValues("validation").Inc()
		return l.fail(ctx, req, meta, start, protocol.PhaseValidate, err)
	}
	meta["validation_ms"] = ms(time.Since(phaseStart))
	phaseDuration.WithLabelValues(string(protocol.PhaseValidate)).Observe(time.Since(phaseStart).Seconds())

	// THROTTLE. Heartbeats bypass the limiter so liveness polling never
	// starves real work.
	if req.Operation != protocol.OpHeartbeat && l.limiter != nil {
		ctx = logging.WithPhase(ctx, string(protocol.PhaseThrottle))
		if err := l.limiter.Check(req.SessionID); err != nil {
			rejectionsTotal.WithLabelValues("throttle").Inc()
			return l.fail(ctx, req, meta, start, protocol.PhaseThrottle, err)
		}
	}

	// AUTHN is soft: classification happened in the manager, the phase
	// only surfaces it. A request with no identity still proceeds and
	// fails at the warehouse if it truly cannot authenticate.
	scope := logging.ScopeFrom(ctx)
	if scope.AuthMethod != "" {
		meta["auth_method"] = scope.AuthMethod
	}

	// ROUTE
	phaseStart = time.Now()
	ctx = logging.WithPhase(ctx, string(protocol.PhaseRoute))
	key := handlers.RouteKey(req)
	handler, err := l.registry.Lookup(key)
	if err != nil {
		rejectionsTotal.WithLabelValues("routing").Inc()
		return l.fail(ctx, req, meta, start, protocol.PhaseRoute, err)
	}
	meta["routing_ms"] = ms(time.Since(phaseStart))
	meta["scenario"] = key

	// WARMUP never fails the request.
	if req.Operation != protocol.OpHeartbeat {
		ctx = logging.WithPhase(ctx, string(protocol.PhaseWarmup))
		l.warmer.MaybeWarm(ctx)
	}

	// RESOLVE failures are advisory: the read proceeds as SELECT *.
	if l.resolver != nil && l.resolver.NeedsResolution(req) {
		ctx = logging.WithPhase(ctx, string(protocol.PhaseResolve))
		resolved, err := l.resolver.Resolve(ctx, req)
		if err != nil {
			logging.Logger(ctx).WithError(err).Debug("schema resolution failed, proceeding unresolved")
			meta["schema_resolved"] = false
		} else {
			ec.Resolved = resolved
			meta["schema_resolved"] = true
		}
	}

	// EXECUTE behind the admission gate. Heartbeats and schema lookups
	// are exempt: liveness checks and metadata reads must stay
	// responsive even when the warehouse is saturated with queries.
	phaseStart = time.Now()
	ctx = logging.WithPhase(ctx, string(protocol.PhaseExecute))
	release := func() {}
	if req.Operation != protocol.OpHeartbeat && req.Operation != protocol.OpSchema {
		release, err = l.gate.TryAcquire()
		if err != nil {
			rejectionsTotal.WithLabelValues("admission").Inc()
			return l.fail(ctx, req, meta, start, protocol.PhaseExecute, err)
		}
	}
	outcome, err := func() (*handlers.Outcome, error) {
		defer release()
		return handler(ctx, l.env, ec)
	}()
	meta["execution_ms"] = ms(time.Since(phaseStart))
	phaseDuration.WithLabelValues(string(protocol.PhaseExecute)).Observe(time.Since(phaseStart).Seconds())
	if err != nil {
		return l.fail(ctx, req, meta, start, protocol.PhaseExecute, err)
	}

	// SHAPE
	phaseStart = time.Now()
	ctx = logging.WithPhase(ctx, string(protocol.PhaseShape))
	resp = &protocol.OperationResponse{Success: true, Metadata: meta}
	for k, v := range outcome.Metadata {
		meta[k] = v
	}
	switch {
	case outcome.Result != nil:
		uiFormat := shape.ResolveUIFormat(outcome.Result.DataFormat, req.EffectiveUIFormat())
		data, err := shape.Deliver(outcome.Result, uiFormat)
		if err != nil {
			return l.fail(ctx, req, meta, start, protocol.PhaseShape, err)
		}
		resp.Data = data
		meta["data_format"] = outcome.Result.DataFormat
		meta["ui_format"] = uiFormat
		meta["row_count"] = outcome.Result.RowCount
		if len(outcome.Result.Columns) > 0 {
			meta["schema"] = outcome.Result.Columns
		}
		rowsReturned.Observe(float64(outcome.Result.RowCount))
	case outcome.Data != nil:
		resp.Data = outcome.Data
	}
	meta["shape_ms"] = ms(time.Since(phaseStart))

	// OBSERVE
	l.observe(ctx, req, meta, start, true)
	return resp
}

// fail builds the error response and runs the observe phase for it.
func (l *Lifecycle) fail(ctx context.Context, req *protocol.OperationRequest,
	meta map[string]any, start time.Time, phase protocol.LifecyclePhase, err error) *protocol.OperationResponse {

	meta["failed_phase"] = string(phase)
	detail := protocol.ErrorDetailFrom(err)
	logging.Logger(ctx).WithError(err).
		WithField("category", detail.Category).
		Warn("request failed")

	l.observe(ctx, req, meta, start, false)
	return &protocol.OperationResponse{Success: false, Error: detail, Metadata: meta}
}

// observe finalizes timings, emits metrics, and opportunistically evicts
// stale rate limiter sessions.
func (l *Lifecycle) observe(ctx context.Context, req *protocol.OperationRequest,
	meta map[string]any, start time.Time, success bool) {

	ctx = logging.WithPhase(ctx, string(protocol.PhaseObserve))
	total := time.Since(start)
	meta["total_ms"] = ms(total)

	op := "unknown"
	if req != nil && req.Operation != "" {
		op = strings.ToLower(string(req.Operation))
	}
	outcome := "success"
	if !success {
		outcome = "error"
	}
	requestsTotal.WithLabelValues(op, outcome).Inc()
	requestDuration.WithLabelValues(op).Observe(total.Seconds())

	logging.Logger(ctx).WithField("success", success).
		WithField("total_ms", meta["total_ms"]).
		Debug("request observed")

	l.maybeCleanup(ctx)
}

func (l *Lifecycle) maybeCleanup(ctx context.Context) {
	if l.limiter == nil || l.cleanupInterval <= 0 {
		return
	}
	l.cleanupMu.Lock()
	due := time.Since(l.lastCleanup) >= l.cleanupInterval
	if due {
		l.lastCleanup = time.Now()
	}
	l.cleanupMu.Unlock()
	if !due {
		return
	}
	if removed := l.limiter.CleanupStale(l.cleanupInterval); removed > 0 {
		logging.Logger(ctx).WithField("sessions", removed).Debug("evicted stale rate limiter sessions")
	}
}
