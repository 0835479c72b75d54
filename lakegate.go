// Package lakegate is the embedding surface of the gateway: a single
// Execute call that accepts an operation request plus caller identity and
// always returns a response envelope.
package lakegate

import (
	"context"
	"sync"

	"github.com/sovakpeter/lakegate/go/config"
	"github.com/sovakpeter/lakegate/go/dispatch"
	"github.com/sovakpeter/lakegate/go/protocol"
)

var (
	defaultManager *dispatch.Manager
	managerOnce    sync.Once
	managerErr     error
)

// DefaultManager returns the process-wide manager, building it from the
// environment on first use.
func DefaultManager() (*dispatch.Manager, error) {
	managerOnce.Do(func() {
		var cfg *config.Config
		if cfg, managerErr = config.Settings(); managerErr != nil {
			return
		}
		defaultManager, managerErr = dispatch.NewManager(cfg)
	})
	return defaultManager, managerErr
}

// Execute runs one operation through the default manager. Configuration
// failures surface as CONNECTION errors in the response rather than
// panics, so UI callers always get an envelope back.
func Execute(ctx context.Context, req *protocol.OperationRequest,
	oboToken, correlationID string, headers map[string]string) *protocol.OperationResponse {

	m, err := DefaultManager()
	if err != nil {
		return &protocol.OperationResponse{
			Success: false,
			Error: protocol.ErrorDetailFrom(protocol.ConnectionError(
				"The gateway is not configured.", err.Error())),
			Metadata: map[string]any{"correlation_id": correlationID},
		}
	}
	return m.Execute(ctx, req, oboToken, correlationID, headers)
}
