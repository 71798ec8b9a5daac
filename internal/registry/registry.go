// Package registry loads the capability manifest and the enablement
// configuration and computes the effective tool surface exposed to the
// model: function schemas, name mapping and parameter mapping.
package registry

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	. "github.com/fixxit/fixxit/internal/logging"
	"github.com/fixxit/fixxit/internal/types"
)

// ErrConfig marks manifest/enablement load failures. The caller degrades
// to an empty tool set and keeps running.
type ErrConfig struct {
	Path string
	Err  error
}

func (e *ErrConfig) Error() string {
	return fmt.Sprintf("config error (%s): %v", e.Path, e.Err)
}

func (e *ErrConfig) Unwrap() error { return e.Err }

// manifest is the on-disk shape of tools.yaml.
type manifest struct {
	AlwaysAvailable []string            `yaml:"always_available"`
	Tools           map[string]yaml.Node `yaml:"tools"`
}

// Registry holds the loaded tool catalog and the derived enabled set.
// Safe for concurrent use; the watcher reloads while the loop reads.
type Registry struct {
	manifestPath string
	configPath   string

	mu      sync.RWMutex
	tools   map[string]types.ToolDefinition
	always  map[string]bool
	config  map[string]bool // tool name -> enabled, from the enablement file
	enabled map[string]bool
}

// New creates an unloaded registry for the given manifest and enablement
// file paths. Call Load before use.
func New(manifestPath, configPath string) *Registry {
	return &Registry{
		manifestPath: manifestPath,
		configPath:   configPath,
		tools:        map[string]types.ToolDefinition{},
		always:       map[string]bool{},
		config:       map[string]bool{},
		enabled:      map[string]bool{},
	}
}

// Load reads the manifest and the enablement file and computes the enabled
// set. Malformed manifest entries are skipped with a warning; a missing
// enablement file leaves only the always-available tools enabled. Load
// never panics and the returned error is advisory: the registry is usable
// (possibly empty) regardless.
func (r *Registry) Load() error {
	if err := r.loadManifest(); err != nil {
		return err
	}
	if err := r.loadConfig(); err != nil {
		return err
	}
	return nil
}

func (r *Registry) loadManifest() error {
	data, err := os.ReadFile(r.manifestPath)
	if err != nil {
		L_error("tool manifest not found", "path", r.manifestPath, "error", err)
		return &ErrConfig{Path: r.manifestPath, Err: err}
	}

	var m manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		L_error("tool manifest malformed", "path", r.manifestPath, "error", err)
		return &ErrConfig{Path: r.manifestPath, Err: err}
	}

	tools := make(map[string]types.ToolDefinition, len(m.Tools))
	for name, node := range m.Tools {
		var def types.ToolDefinition
		if err := node.Decode(&def); err != nil {
			L_warn("skipping malformed tool entry", "tool", name, "error", err)
			continue
		}
		def.Name = name
		if def.Description == "" || def.MCPFunction == "" {
			L_warn("skipping incomplete tool entry", "tool", name)
			continue
		}
		tools[name] = def
	}

	always := make(map[string]bool, len(m.AlwaysAvailable))
	for _, name := range m.AlwaysAvailable {
		always[name] = true
	}

	r.mu.Lock()
	r.tools = tools
	r.always = always
	r.recomputeLocked()
	r.mu.Unlock()

	L_info("tool manifest loaded", "tools", len(tools), "alwaysAvailable", len(always))
	return nil
}

func (r *Registry) loadConfig() error {
	data, err := os.ReadFile(r.configPath)
	if err != nil {
		L_warn("tool config not found, using defaults", "path", r.configPath)
		r.mu.Lock()
		r.config = map[string]bool{}
		r.recomputeLocked()
		r.mu.Unlock()
		return &ErrConfig{Path: r.configPath, Err: err}
	}

	config := map[string]bool{}
	r.mu.RLock()
	byKey := make(map[string]string, len(r.tools))
	for name, def := range r.tools {
		if def.EnabledBy != "" {
			byKey[def.EnabledBy] = name
		}
	}
	r.mu.RUnlock()

	for lineNum, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			L_warn("invalid config line", "line", lineNum+1, "content", line)
			continue
		}
		key = strings.TrimSpace(key)
		name, known := byKey[key]
		if !known {
			// Unrecognized keys are ignored per the file contract.
			continue
		}
		config[name] = parseBool(strings.TrimSpace(value))
	}

	r.mu.Lock()
	r.config = config
	r.recomputeLocked()
	enabledCount := len(r.enabled)
	r.mu.Unlock()

	L_info("tool config loaded", "configured", len(config), "enabled", enabledCount)
	return nil
}

// parseBool accepts the usual truthy spellings, case-insensitive.
func parseBool(value string) bool {
	switch strings.ToLower(value) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}

// recomputeLocked rebuilds the enabled set:
// enabled = (always ∩ registry) ∪ {name : config[name]}.
// Callers hold r.mu.
func (r *Registry) recomputeLocked() {
	enabled := map[string]bool{}
	for name := range r.always {
		if _, ok := r.tools[name]; ok {
			enabled[name] = true
		}
	}
	for name, on := range r.config {
		if !on {
			continue
		}
		if _, ok := r.tools[name]; ok {
			enabled[name] = true
		}
	}
	r.enabled = enabled
}

// ReloadConfig re-reads the enablement file and recomputes the enabled
// set without touching the manifest. Idempotent: reloading unchanged
// content yields an identical enabled set and mappings.
func (r *Registry) ReloadConfig() error {
	L_debug("reloading tool config", "path", r.configPath)
	return r.loadConfig()
}

// IsEnabled reports whether a tool is currently enabled.
func (r *Registry) IsEnabled(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.enabled[name]
}

// Get returns the definition of a known tool.
func (r *Registry) Get(name string) (types.ToolDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.tools[name]
	return def, ok
}

// EnabledNames returns the sorted names of all enabled tools.
func (r *Registry) EnabledNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.enabled)
}

// EnabledFunctions returns the model-facing function schemas: the sentinel
// finalize tool first, then every enabled tool in name order.
func (r *Registry) EnabledFunctions() []types.FunctionSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	schemas := make([]types.FunctionSchema, 0, len(r.enabled)+1)
	schemas = append(schemas, types.AnswerSchema())
	for _, name := range sortedKeys(r.enabled) {
		if name == types.AnswerFunction {
			continue
		}
		schemas = append(schemas, r.tools[name].Schema())
	}
	return schemas
}

// Mapping returns abstract name -> backend-qualified function name for
// every enabled tool. The sentinel maps to "" (no backend call).
func (r *Registry) Mapping() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	mapping := map[string]string{types.AnswerFunction: ""}
	for name := range r.enabled {
		if name == types.AnswerFunction {
			continue
		}
		mapping[name] = r.tools[name].MCPFunction
	}
	return mapping
}

// ParameterMapping returns, per enabled tool, the rename table from
// abstract parameter name to backend parameter name. Identity unless the
// manifest declares an override.
func (r *Registry) ParameterMapping() map[string]map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	mapping := map[string]map[string]string{
		types.AnswerFunction: {"answer": "answer"},
	}
	for name := range r.enabled {
		if name == types.AnswerFunction {
			continue
		}
		def := r.tools[name]
		params := make(map[string]string, def.Parameters.Len())
		for _, p := range def.Parameters.Names {
			if renamed, ok := def.MCPParameters[p]; ok {
				params[p] = renamed
			} else {
				params[p] = p
			}
		}
		mapping[name] = params
	}
	return mapping
}

// EnabledByCategory returns the enabled tools carrying the given category
// tag, sorted by name.
func (r *Registry) EnabledByCategory(category string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var names []string
	for name := range r.enabled {
		if def, ok := r.tools[name]; ok && def.Category == category {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Status summarizes the registry state for diagnostics.
type Status struct {
	TotalTools      int                 `json:"totalTools"`
	EnabledTools    int                 `json:"enabledTools"`
	AlwaysAvailable []string            `json:"alwaysAvailable"`
	Enabled         []string            `json:"enabled"`
	Disabled        []string            `json:"disabled"`
	Categories      map[string][]string `json:"categories"`
}

// Status returns a snapshot of the registry state.
func (r *Registry) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var disabled []string
	for name := range r.tools {
		if !r.enabled[name] {
			disabled = append(disabled, name)
		}
	}
	sort.Strings(disabled)

	categories := map[string][]string{}
	for name := range r.enabled {
		def, ok := r.tools[name]
		if !ok || def.Category == "" {
			continue
		}
		categories[def.Category] = append(categories[def.Category], name)
	}
	for _, names := range categories {
		sort.Strings(names)
	}

	return Status{
		TotalTools:      len(r.tools),
		EnabledTools:    len(r.enabled),
		AlwaysAvailable: sortedKeys(r.always),
		Enabled:         sortedKeys(r.enabled),
		Disabled:        disabled,
		Categories:      categories,
	}
}

func sortedKeys(set map[string]bool) []string {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
