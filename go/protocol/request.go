package protocol

// OrderBy is a single ORDER BY term.
type OrderBy struct {
	Column     string `json:"column"`
	Descending bool   `json:"descending,omitempty"`
}

// Aggregate is a projection term like COUNT(id) AS n.
type Aggregate struct {
	Function string `json:"function"`
	Column   string `json:"column"`
	Alias    string `json:"alias,omitempty"`
}

// Options carries the optional knobs of a request. Zero values mean "unset".
type Options struct {
	Limit        *int                     `json:"limit,omitempty"`
	Offset       *int                     `json:"offset,omitempty"`
	OrderBy      []OrderBy                `json:"order_by,omitempty"`
	GroupBy      []string                 `json:"group_by,omitempty"`
	Aggregations []Aggregate              `json:"aggregations,omitempty"`
	Having       map[string]any           `json:"having,omitempty"`
	OldValues    map[string]any           `json:"old_values,omitempty"`
	Strategy     UpdateStrategy           `json:"strategy,omitempty"`
	QueryName    string                   `json:"query_name,omitempty"`
	Params       map[string]any           `json:"params,omitempty"`
	SkipLogging  bool                     `json:"skip_logging,omitempty"`
	BatchWhere   []map[string]any         `json:"batch_where,omitempty"`
	Statements   []TransactionStatement   `json:"statements,omitempty"`
}

// TransactionStatement is one mutation inside a TRANSACTION.MULTI request.
type TransactionStatement struct {
	Operation OperationType    `json:"operation"`
	Table     string           `json:"table"`
	Payload   map[string]any   `json:"payload,omitempty"`
	Where     map[string]any   `json:"where,omitempty"`
	OldValues map[string]any   `json:"old_values,omitempty"`
	Strategy  UpdateStrategy   `json:"strategy,omitempty"`
}

// OperationRequest is the single request envelope accepted by the gateway.
//
// Table references are fully qualified catalog.schema.table. Where holds
// equality filters unless a value is a list (IN) or an operator object.
type OperationRequest struct {
	Operation  OperationType    `json:"operation"`
	Mode       OperationMode    `json:"mode,omitempty"`
	Scenario   SchemaScenario   `json:"scenario,omitempty"`
	Table      string           `json:"table,omitempty"`
	Columns    []string         `json:"columns,omitempty"`
	Where      map[string]any   `json:"where,omitempty"`
	Payload    map[string]any   `json:"payload,omitempty"`
	Records    []map[string]any `json:"records,omitempty"`
	Options    *Options         `json:"options,omitempty"`
	Catalog    string           `json:"catalog,omitempty"`
	SchemaName string           `json:"schema_name,omitempty"`
	DataFormat DataFormat       `json:"data_format,omitempty"`
	UIFormat   UIFormat         `json:"ui_format,omitempty"`
	SessionID  string           `json:"session_id,omitempty"`
}

// Opts returns the request options, never nil.
func (r *OperationRequest) Opts() *Options {
	if r.Options == nil {
		return &Options{}
	}
	return r.Options
}

// EffectiveDataFormat defaults to JSON_ROWS.
func (r *OperationRequest) EffectiveDataFormat() DataFormat {
	if r.DataFormat == "" {
		return FormatJSONRows
	}
	return r.DataFormat
}

// EffectiveUIFormat defaults to AUTO.
func (r *OperationRequest) EffectiveUIFormat() UIFormat {
	if r.UIFormat == "" {
		return UIAuto
	}
	return r.UIFormat
}

// IsWildcard reports whether the request selects all columns, either
// implicitly (no columns) or explicitly (["*"]).
func (r *OperationRequest) IsWildcard() bool {
	if len(r.Columns) == 0 {
		return true
	}
	return len(r.Columns) == 1 && r.Columns[0] == "*"
}
