package dispatch

import (
	"fmt"

	"github.com/sovakpeter/lakegate/go/config"
	"github.com/sovakpeter/lakegate/go/protocol"
	"github.com/sovakpeter/lakegate/go/sqlgen"
)

// validModes is the closed operation/mode compatibility matrix.
var validModes = map[protocol.OperationType]map[protocol.OperationMode]bool{
	protocol.OpRead: {
		protocol.ModeSingle: true, protocol.ModeBatch: true, protocol.ModeNamed: true,
	},
	protocol.OpInsert: {protocol.ModeSingle: true, protocol.ModeBatch: true},
	protocol.OpUpdate: {protocol.ModeSingle: true, protocol.ModeBatch: true},
	protocol.OpMerge:  {protocol.ModeSingle: true, protocol.ModeBatch: true},
	protocol.OpDelete: {protocol.ModeSingle: true, protocol.ModeBatch: true},
	protocol.OpTransaction: {protocol.ModeMulti: true},
	protocol.OpSchema:      {},
	protocol.OpHeartbeat:   {},
}

var validScenarios = map[protocol.SchemaScenario]bool{
	protocol.ScenarioListCatalogs:    true,
	protocol.ScenarioListSchemas:     true,
	protocol.ScenarioListTables:      true,
	protocol.ScenarioTableColumns:    true,
	protocol.ScenarioTableInfo:       true,
	protocol.ScenarioInvalidateTable: true,
}

var validDataFormats = map[protocol.DataFormat]bool{
	"": true, protocol.FormatJSONRows: true, protocol.FormatArrow: true, protocol.FormatFrame: true,
}

var validUIFormats = map[protocol.UIFormat]bool{
	"": true, protocol.UIAuto: true, protocol.UIJSONDict: true,
	protocol.UIFrame: true, protocol.UIArrowTable: true,
}

// tablelessScenarios are SCHEMA flavors that browse rather than target one
// table.
var tablelessScenarios = map[protocol.SchemaScenario]bool{
	protocol.ScenarioListCatalogs: true,
	protocol.ScenarioListSchemas:  true,
	protocol.ScenarioListTables:   true,
}

// validateRequest enforces the structural rules of the request envelope
// before any resource is touched. Semantic checks (column safety, typed
// parameters) live with the handlers and builders.
func validateRequest(req *protocol.OperationRequest, cfg *config.Config) error {
	if req == nil {
		return protocol.ValidationError("Missing request.", "nil operation request")
	}

	modes, known := validModes[req.Operation]
	if !known {
		return protocol.ValidationError(
			"Unsupported operation.",
			fmt.Sprintf("unknown operation %q", req.Operation))
	}

	if !validDataFormats[req.DataFormat] {
		return protocol.ValidationError(
			"Unsupported data format.", fmt.Sprintf("data_format %q", req.DataFormat))
	}
	if !validUIFormats[req.UIFormat] {
		return protocol.ValidationError(
			"Unsupported UI format.", fmt.Sprintf("ui_format %q", req.UIFormat))
	}

	switch req.Operation {
	case protocol.OpHeartbeat:
		return nil

	case protocol.OpSchema:
		return validateSchemaRequest(req)

	case protocol.OpTransaction:
		if req.Mode != "" && req.Mode != protocol.ModeMulti {
			return protocol.ValidationError(
				"Transactions run in MULTI mode.",
				fmt.Sprintf("TRANSACTION with mode %q", req.Mode))
		}
		return validateTransactionRequest(req, cfg)
	}

	mode := req.Mode
	if mode == "" {
		mode = protocol.ModeSingle
	}
	if !modes[mode] {
		return protocol.ValidationError(
			"Unsupported operation mode.",
			fmt.Sprintf("%s does not support mode %q", req.Operation, mode))
	}

	// Named reads address a manifest query, not a table.
	if req.Operation == protocol.OpRead && mode == protocol.ModeNamed {
		if req.Opts().QueryName == "" {
			return protocol.ValidationError(
				"Named read requires a query name.", "READ.NAMED without options.query_name")
		}
		return nil
	}

	if req.Table == "" {
		return protocol.ValidationError(
			"Missing table.", fmt.Sprintf("%s.%s without table", req.Operation, mode))
	}
	if _, _, _, err := sqlgen.ParseTableRef(req.Table); err != nil {
		return err
	}

	if mode == protocol.ModeBatch {
		if err := validateBatchSizes(req, cfg); err != nil {
			return err
		}
	}

	switch req.Operation {
	case protocol.OpInsert, protocol.OpUpdate, protocol.OpMerge, protocol.OpDelete:
		if mode == protocol.ModeSingle {
			return sqlgen.ValidateMutationSafety(req.Operation, req.Payload, req.Where)
		}
	}
	return nil
}

func validateSchemaRequest(req *protocol.OperationRequest) error {
	if !validScenarios[req.Scenario] {
		return protocol.ValidationError(
			"Unsupported schema scenario.",
			fmt.Sprintf("unknown scenario %q", req.Scenario))
	}
	if tablelessScenarios[req.Scenario] {
		return nil
	}
	if req.Table == "" {
		return protocol.ValidationError(
			"Missing table.", fmt.Sprintf("SCHEMA/%s without table", req.Scenario))
	}
	return nil
}

func validateBatchSizes(req *protocol.OperationRequest, cfg *config.Config) error {
	max := cfg.Limits.MaxBatchSize
	size := len(req.Records)
	if size == 0 {
		size = len(req.Opts().BatchWhere)
	}
	if size == 0 {
		return protocol.ValidationError(
			"Batch operations require records or keys.",
			fmt.Sprintf("%s.BATCH with no records and no batch_where", req.Operation))
	}
	if size > max {
		return protocol.ValidationError(
			fmt.Sprintf("Batches are limited to %d records.", max),
			fmt.Sprintf("%s.BATCH with %d records, limit %d", req.Operation, size, max))
	}
	return nil
}

func validateTransactionRequest(req *protocol.OperationRequest, cfg *config.Config) error {
	statements := req.Opts().Statements
	if len(statements) == 0 {
		return protocol.ValidationError(
			"Transaction requires statements.", "TRANSACTION.MULTI without statements")
	}
	if max := cfg.Limits.MaxTransactionStatements; len(statements) > max {
		return protocol.ValidationError(
			fmt.Sprintf("Transactions are limited to %d statements.", max),
			fmt.Sprintf("TRANSACTION.MULTI with %d statements, limit %d", len(statements), max))
	}
	for i, ts := range statements {
		switch ts.Operation {
		case protocol.OpInsert, protocol.OpUpdate, protocol.OpMerge, protocol.OpDelete:
		default:
			return protocol.ValidationError(
				"Transactions may only contain mutations.",
				fmt.Sprintf("statement %d has operation %q", i, ts.Operation))
		}
		if ts.Table == "" {
			return protocol.ValidationError(
				"Missing table.", fmt.Sprintf("transaction statement %d without table", i))
		}
		if _, _, _, err := sqlgen.ParseTableRef(ts.Table); err != nil {
			return err
		}
		if err := sqlgen.ValidateMutationSafety(ts.Operation, ts.Payload, ts.Where); err != nil {
			return err
		}
	}
	return nil
}
