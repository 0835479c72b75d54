package handlers

import (
	"context"

	"github.com/sovakpeter/lakegate/go/logging"
	"github.com/sovakpeter/lakegate/go/protocol"
	"github.com/sovakpeter/lakegate/go/schema"
)

// StepKind names what a chain step does.
type StepKind string

const (
	// StepSchemaFetch loads the target table's schema into the execution
	// context before data is read.
	StepSchemaFetch StepKind = "SCHEMA_FETCH"
	// StepDataFetch runs the request's routed handler.
	StepDataFetch StepKind = "DATA_FETCH"
)

// Step is one stage of a composed operation. Modify, when set, adjusts
// the request before the step runs; the original request is not touched.
type Step struct {
	Kind   StepKind
	Modify func(req *protocol.OperationRequest)
}

// Chain composes steps into one handler. Steps share the execution
// context, so an earlier schema fetch feeds a later data fetch.
type Chain struct {
	Steps []Step
}

// ReadWithSchema is the prebuilt chain for reads that must carry column
// metadata even when the result set is empty: fetch the schema first,
// then the data.
func ReadWithSchema() *Chain {
	return &Chain{Steps: []Step{
		{Kind: StepSchemaFetch},
		{Kind: StepDataFetch},
	}}
}

// Handler adapts the chain into a registry handler.
func (c *Chain) Handler() Handler {
	return func(ctx context.Context, env *Env, ec *ExecContext) (*Outcome, error) {
		return c.Run(ctx, env, ec)
	}
}

// Run executes the chain. Schema-fetch failures are advisory, matching
// wildcard resolution: the data fetch proceeds unresolved.
func (c *Chain) Run(ctx context.Context, env *Env, ec *ExecContext) (*Outcome, error) {
	req := ec.Request
	var outcome *Outcome

	for _, step := range c.Steps {
		stepReq := req
		if step.Modify != nil {
			clone := *req
			step.Modify(&clone)
			stepReq = &clone
		}
		stepCtx := logging.WithPhase(ctx, string(step.Kind))

		switch step.Kind {
		case StepSchemaFetch:
			if stepReq.Table == "" {
				continue
			}
			s, err := env.Schemas.GetTableSchema(stepCtx, stepReq.Table)
			if err != nil {
				logging.Logger(stepCtx).WithError(err).
					Debug("chain schema fetch failed, continuing without metadata")
				continue
			}
			ec.Resolved = &schema.Resolved{
				ColumnNames: s.ColumnNames(),
				Columns:     s.ColumnMetadata(),
				TableRef:    s.TableRef(),
			}

		case StepDataFetch:
			stepEC := *ec
			stepEC.Request = stepReq
			out, err := ReadSingle(stepCtx, env, &stepEC)
			if err != nil {
				return nil, err
			}
			outcome = out

		default:
			return nil, protocol.ValidationError(
				"Unsupported chain step.", "unknown step kind "+string(step.Kind))
		}
	}

	if outcome == nil {
		return nil, protocol.ValidationError(
			"Chain produced no result.", "chain without a data fetch step")
	}
	return outcome, nil
}
