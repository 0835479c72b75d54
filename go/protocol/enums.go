// Package protocol defines the wire contracts between the UI layer and the
// gateway: operation requests, typed results, response envelopes, and the
// closed error taxonomy.
package protocol

// OperationType names the category of work a request asks for.
type OperationType string

const (
	OpRead        OperationType = "READ"
	OpInsert      OperationType = "INSERT"
	OpUpdate      OperationType = "UPDATE"
	OpDelete      OperationType = "DELETE"
	OpMerge       OperationType = "MERGE"
	OpTransaction OperationType = "TRANSACTION"
	OpSchema      OperationType = "SCHEMA"
	OpHeartbeat   OperationType = "HEARTBEAT"
)

// OperationMode qualifies how the operation is applied.
type OperationMode string

const (
	ModeSingle OperationMode = "SINGLE"
	ModeBatch  OperationMode = "BATCH"
	ModeMulti  OperationMode = "MULTI"
	ModeNamed  OperationMode = "NAMED"
)

// SchemaScenario selects a metadata retrieval flavor for SCHEMA operations.
type SchemaScenario string

const (
	ScenarioListCatalogs    SchemaScenario = "LIST_CATALOGS"
	ScenarioListSchemas     SchemaScenario = "LIST_SCHEMAS"
	ScenarioListTables      SchemaScenario = "LIST_TABLES"
	ScenarioTableColumns    SchemaScenario = "TABLE_COLUMNS"
	ScenarioTableInfo       SchemaScenario = "TABLE_INFO"
	ScenarioInvalidateTable SchemaScenario = "INVALIDATE_TABLE_SCHEMA"
)

// DataFormat is the shape data travels in between gateway and warehouse.
type DataFormat string

const (
	FormatJSONRows DataFormat = "JSON_ROWS"
	FormatArrow    DataFormat = "ARROW"
	FormatFrame    DataFormat = "PANDAS"
)

// UIFormat is the shape data is delivered to the UI in.
type UIFormat string

const (
	UIAuto       UIFormat = "AUTO"
	UIJSONDict   UIFormat = "JSON_DICT"
	UIFrame      UIFormat = "PANDAS_DF"
	UIArrowTable UIFormat = "ARROW_TABLE"
)

// UpdateStrategy selects the SQL synthesized for UPDATE operations.
type UpdateStrategy string

const (
	StrategyUpdate UpdateStrategy = "UPDATE"
	StrategyMerge  UpdateStrategy = "MERGE"
)

// AuthMethod is how the current request authenticates to the warehouse.
type AuthMethod string

const (
	AuthOBO   AuthMethod = "OBO"
	AuthSP    AuthMethod = "SP"
	AuthLocal AuthMethod = "LOCAL"
)

// LifecyclePhase names the fixed stages every request passes through.
type LifecyclePhase string

const (
	PhaseValidate LifecyclePhase = "VALIDATE"
	PhaseThrottle LifecyclePhase = "THROTTLE"
	PhaseAuthn    LifecyclePhase = "AUTHN"
	PhaseRoute    LifecyclePhase = "ROUTE"
	PhaseWarmup   LifecyclePhase = "WARMUP"
	PhaseResolve  LifecyclePhase = "RESOLVE"
	PhaseExecute  LifecyclePhase = "EXECUTE"
	PhaseShape    LifecyclePhase = "SHAPE"
	PhaseObserve  LifecyclePhase = "OBSERVE"
)
