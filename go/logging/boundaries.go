package logging

import (
	"context"
	"fmt"
	"strings"

	"github.com/sovakpeter/lakegate/go/protocol"
)

// Markers recognized by the UI log viewer when grouping captured lines.
const (
	requestBorder = "══════════════════════════════════════════════════════════════════════"
	phaseBorder   = "────────────────────"
)

// RequestStart writes the opening boundary for a request.
func RequestStart(ctx context.Context, correlationID, user, scenario, table string) {
	entry := Logger(ctx)
	if user == "" {
		user = "anonymous"
	}
	entry.Info(requestBorder)
	entry.Infof("REQUEST: %s | %s | %s | START", correlationID, user, scenario)
	if table != "" {
		entry.Infof("Table: %s", table)
	}
	entry.Info(requestBorder)
}

// RequestEnd writes the closing boundary for a request.
func RequestEnd(ctx context.Context, correlationID string, success bool, durationMS float64, rows int) {
	entry := Logger(ctx)
	status := "COMPLETED"
	if !success {
		status = "FAILED"
	}
	entry.Info(requestBorder)
	entry.Infof("REQUEST: %s | %s | success=%t | %.1fms | rows=%d",
		correlationID, status, success, durationMS, rows)
	entry.Info(requestBorder)
}

// PhaseHeader marks the start of a lifecycle phase.
func PhaseHeader(ctx context.Context, phase protocol.LifecyclePhase) {
	Logger(ctx).Infof("%s PHASE: %s %s", phaseBorder, phase, phaseBorder)
}

// PhaseSummary marks the end of a lifecycle phase with its duration.
func PhaseSummary(ctx context.Context, phase protocol.LifecyclePhase, durationMS float64, status string) {
	if status == "" {
		status = "OK"
	}
	Logger(ctx).Infof("%s PHASE: %s | %s | %.1fms %s", phaseBorder, phase, status, durationMS, phaseBorder)
}

// IsRequestBoundary reports whether a captured message is a request border.
func IsRequestBoundary(message string) bool {
	return strings.Contains(message, "REQUEST:") && strings.Contains(message, "═")
}

// IsPhaseHeader reports whether a captured message is a phase separator.
func IsPhaseHeader(message string) bool {
	return strings.Contains(message, "PHASE:") && strings.Contains(message, "─")
}

// LogIntent logs the full request at debug level with secrets redacted.
// Gated by LOG_INTENT_ENABLED; callers pass that flag through.
func LogIntent(ctx context.Context, req *protocol.OperationRequest, correlationID string) {
	entry := Logger(ctx)
	entry.Debugf("INTENT: %s", correlationID)
	entry.Debugf("  operation: %s mode: %s", req.Operation, req.Mode)
	if req.Table != "" {
		entry.Debugf("  table: %s", req.Table)
	}
	if len(req.Columns) > 0 {
		entry.Debugf("  columns: %s", strings.Join(req.Columns, ", "))
	}
	if len(req.Where) > 0 {
		entry.Debugf("  where: %v", Redact(req.Where))
	}
	if len(req.Payload) > 0 {
		entry.Debugf("  payload: %v", Redact(req.Payload))
	}
	if len(req.Records) > 0 {
		entry.Debugf("  records: %d", len(req.Records))
	}
	if opts := req.Options; opts != nil {
		var parts []string
		if opts.Limit != nil {
			parts = append(parts, fmt.Sprintf("limit=%d", *opts.Limit))
		}
		if opts.Offset != nil {
			parts = append(parts, fmt.Sprintf("offset=%d", *opts.Offset))
		}
		if opts.QueryName != "" {
			parts = append(parts, "query="+opts.QueryName)
		}
		if len(parts) > 0 {
			entry.Debugf("  options: %s", strings.Join(parts, " "))
		}
	}
}
