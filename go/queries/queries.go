// Package queries serves the named query manifest: curated SQL files with
// typed parameters, loaded from an embedded bundle or an override
// directory. Every query is validated as read-only at load time.
package queries

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/sovakpeter/lakegate/go/protocol"
	"github.com/sovakpeter/lakegate/go/sqlgen"
)

//go:embed sql/manifest.json sql/*.sql
var builtin embed.FS

// DefaultNamespace prefixes bare query names: "row_count" means
// "analytics.row_count".
const DefaultNamespace = "analytics"

// Parameter is one typed query parameter from the manifest.
type Parameter struct {
	Name        string `json:"name"`
	Type        string `json:"param_type"`
	Required    bool   `json:"required"`
	Default     any    `json:"default,omitempty"`
	Description string `json:"description,omitempty"`
}

// Accepts reports whether value satisfies the parameter's type. A nil
// value is acceptable only for optional parameters.
func (p *Parameter) Accepts(value any) bool {
	if value == nil {
		return !p.Required
	}
	switch strings.ToLower(p.Type) {
	case "", "string", "date", "table_ref":
		_, ok := value.(string)
		return ok
	case "integer":
		switch value.(type) {
		case int, int32, int64:
			return true
		case float64:
			// JSON decodes every number as float64.
			return value == float64(int64(value.(float64)))
		}
		return false
	case "float":
		switch value.(type) {
		case int, int32, int64, float32, float64:
			return true
		}
		return false
	case "bool":
		_, ok := value.(bool)
		return ok
	case "list":
		switch value.(type) {
		case []any, []string, []int, []float64:
			return true
		}
		return false
	default:
		return true
	}
}

// Definition is a loaded, validated named query.
type Definition struct {
	Key         string
	SQL         string
	Description string
	Parameters  []Parameter
	CacheTTL    int
	Tags        []string
}

// ApplyDefaults merges manifest defaults into the provided parameters.
func (d *Definition) ApplyDefaults(provided map[string]any) map[string]any {
	out := make(map[string]any, len(provided)+len(d.Parameters))
	for k, v := range provided {
		out[k] = v
	}
	for _, p := range d.Parameters {
		if _, ok := out[p.Name]; !ok && p.Default != nil {
			out[p.Name] = p.Default
		}
	}
	return out
}

// ValidateParams checks requiredness, types, and the strict allowlist:
// parameters not declared in the manifest are rejected.
func (d *Definition) ValidateParams(provided map[string]any) []string {
	var errs []string
	known := map[string]*Parameter{}
	for i := range d.Parameters {
		known[d.Parameters[i].Name] = &d.Parameters[i]
	}

	for _, p := range d.Parameters {
		v, ok := provided[p.Name]
		if !ok {
			if p.Required {
				errs = append(errs, fmt.Sprintf("missing required parameter: %s", p.Name))
			}
			continue
		}
		if !p.Accepts(v) {
			errs = append(errs, fmt.Sprintf("invalid type for %q: expected %s", p.Name, p.Type))
		}
	}
	for name := range provided {
		if _, ok := known[name]; !ok {
			errs = append(errs, fmt.Sprintf("unknown parameter: %s", name))
		}
	}
	sort.Strings(errs)
	return errs
}

// tableRefParams lists parameters substituted inline rather than bound.
func (d *Definition) tableRefParams() map[string]bool {
	out := map[string]bool{}
	for _, p := range d.Parameters {
		if strings.EqualFold(p.Type, "table_ref") {
			out[p.Name] = true
		}
	}
	return out
}

// Render produces the executable statement: table_ref parameters are
// validated and spliced in as quoted identifiers (identifiers cannot be
// bound), everything else stays a bound parameter.
func (d *Definition) Render(provided map[string]any) (*sqlgen.Statement, error) {
	merged := d.ApplyDefaults(provided)
	if errs := d.ValidateParams(merged); len(errs) > 0 {
		return nil, protocol.ValidationError(
			"Invalid query parameters.", strings.Join(errs, "; "))
	}

	sqlText := d.SQL
	bound := map[string]any{}
	refs := d.tableRefParams()
	for name, value := range merged {
		if !refs[name] {
			bound[name] = value
			continue
		}
		ref, _ := value.(string)
		quoted, err := sqlgen.QuoteTableRef(ref)
		if err != nil {
			return nil, err
		}
		sqlText = strings.ReplaceAll(sqlText, "%("+name+")s", quoted)
	}

	return &sqlgen.Statement{SQL: sqlText, Params: bound}, nil
}

type manifestEntry struct {
	File        string      `json:"file"`
	Description string      `json:"description"`
	Parameters  []Parameter `json:"parameters"`
	CacheTTL    int         `json:"cache_ttl"`
	Tags        []string    `json:"tags"`
}

type manifestFile struct {
	Queries map[string]manifestEntry `json:"queries"`
}

// Registry loads and caches query definitions.
type Registry struct {
	fsys fs.FS

	mu      sync.RWMutex
	entries map[string]manifestEntry
	cache   map[string]*Definition
}

// NewRegistry loads the embedded query bundle.
func NewRegistry() (*Registry, error) {
	sub, err := fs.Sub(builtin, "sql")
	if err != nil {
		return nil, err
	}
	return NewRegistryFS(sub)
}

// NewRegistryDir loads queries from a directory, letting deployments
// override the built-in bundle.
func NewRegistryDir(dir string) (*Registry, error) {
	if _, err := os.Stat(filepath.Join(dir, "manifest.json")); err != nil {
		return nil, fmt.Errorf("query manifest not found in %s: %w", dir, err)
	}
	return NewRegistryFS(os.DirFS(dir))
}

// NewRegistryFS loads queries from an arbitrary filesystem.
func NewRegistryFS(fsys fs.FS) (*Registry, error) {
	r := &Registry{fsys: fsys}
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Reload re-reads and re-validates the manifest, dropping cached SQL.
func (r *Registry) Reload() error {
	raw, err := fs.ReadFile(r.fsys, "manifest.json")
	if err != nil {
		return fmt.Errorf("reading query manifest: %w", err)
	}

	var m manifestFile
	if err := json.Unmarshal(raw, &m); err != nil {
		return protocol.ValidationError(
			"Invalid query manifest.", "manifest.json is not valid JSON: "+err.Error())
	}
	if m.Queries == nil {
		return protocol.ValidationError(
			"Invalid query manifest.", "manifest.json must contain a top-level 'queries' object")
	}

	for key, entry := range m.Queries {
		for _, segment := range strings.Split(key, ".") {
			if _, err := sqlgen.QuoteIdentifier(segment); err != nil {
				return protocol.ValidationError(
					"Invalid query manifest.",
					fmt.Sprintf("query key %q has an unsafe segment", key))
			}
		}
		if strings.TrimSpace(entry.File) == "" {
			return protocol.ValidationError(
				"Invalid query manifest.", fmt.Sprintf("query %q missing 'file'", key))
		}
		if entry.CacheTTL < 0 {
			return protocol.ValidationError(
				"Invalid query manifest.", fmt.Sprintf("query %q cache_ttl must be non-negative", key))
		}
		for _, p := range entry.Parameters {
			if _, err := sqlgen.QuoteIdentifier(p.Name); err != nil {
				return protocol.ValidationError(
					"Invalid query manifest.",
					fmt.Sprintf("query %q has unsafe parameter name %q", key, p.Name))
			}
		}
	}

	r.mu.Lock()
	r.entries = m.Queries
	r.cache = map[string]*Definition{}
	r.mu.Unlock()

	logrus.WithField("queries", len(m.Queries)).Debug("query manifest loaded")
	return nil
}

// Resolve normalizes a query name: bare names get the default namespace.
func Resolve(name string) string {
	if strings.Contains(name, ".") {
		return name
	}
	return DefaultNamespace + "." + name
}

// Get returns the definition for key, loading and validating its SQL on
// first use.
func (r *Registry) Get(key string) (*Definition, error) {
	r.mu.RLock()
	if def, ok := r.cache[key]; ok {
		r.mu.RUnlock()
		return def, nil
	}
	entry, ok := r.entries[key]
	r.mu.RUnlock()

	if !ok {
		return nil, protocol.NotFoundError(
			"Unknown query.", fmt.Sprintf("query not found in manifest: %s", key))
	}

	raw, err := fs.ReadFile(r.fsys, entry.File)
	if err != nil {
		return nil, fmt.Errorf("reading query file %s: %w", entry.File, err)
	}
	sqlText := sqlgen.NormalizePlaceholders(strings.TrimSpace(string(raw)))

	if err := sqlgen.ValidateSQL(sqlText); err != nil {
		return nil, err
	}
	if err := sqlgen.ValidateReadonlyPrefix(sqlText); err != nil {
		return nil, err
	}

	def := &Definition{
		Key:         key,
		SQL:         sqlText,
		Description: entry.Description,
		Parameters:  entry.Parameters,
		CacheTTL:    entry.CacheTTL,
		Tags:        entry.Tags,
	}

	r.mu.Lock()
	r.cache[key] = def
	r.mu.Unlock()
	return def, nil
}

// ListByTag returns the keys of queries carrying tag, sorted.
func (r *Registry) ListByTag(tag string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []string
	for key, entry := range r.entries {
		for _, t := range entry.Tags {
			if t == tag {
				out = append(out, key)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

// Keys returns every manifest key, sorted.
func (r *Registry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.entries))
	for key := range r.entries {
		out = append(out, key)
	}
	sort.Strings(out)
	return out
}
