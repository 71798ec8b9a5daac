package registry

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/fixxit/fixxit/internal/types"
)

const testManifest = `
always_available:
  - query_maintenance_database

tools:
  search_equipment:
    description: Find machines.
    category: equipment
    enabled_by: TOOL_EQUIPMENT_SEARCH
    mcp_function: machines.search
    parameters:
      location:
        type: string
        description: Location substring.
      status:
        type: string
        description: Status filter.
        enum: [operational, maintenance, down, retired]

  search_parts_inventory:
    description: Search parts.
    category: inventory
    enabled_by: TOOL_PARTS_SEARCH
    mcp_function: parts.search
    parameters:
      part_name:
        type: string
        description: Part name substring.
    mcp_parameters:
      part_name: name

  get_troubleshooting_help:
    description: Fault code lookup.
    category: troubleshooting
    enabled_by: TOOL_FAULT_CODES
    mcp_function: faultcodes.lookup
    parameters:
      fault_code:
        type: string
        description: Fault code.
        required: true
    mcp_parameters:
      fault_code: code

  query_maintenance_database:
    description: Read-only SQL.
    category: database
    enabled_by: TOOL_SQL_QUERY
    mcp_function: query.execute_sql
    parameters:
      query:
        type: string
        description: SELECT statement.
        required: true

  broken_tool:
    description: Missing its backend function.
    category: misc
    enabled_by: TOOL_BROKEN
`

const testConfig = `
# comment line

TOOL_EQUIPMENT_SEARCH=true
TOOL_PARTS_SEARCH=false
TOOL_FAULT_CODES=yes
TOOL_UNKNOWN_KEY=true
not a key value line
`

func newTestRegistry(t *testing.T, manifest, config string) *Registry {
	t.Helper()
	dir := t.TempDir()

	manifestPath := filepath.Join(dir, "tools.yaml")
	if err := os.WriteFile(manifestPath, []byte(manifest), 0644); err != nil {
		t.Fatal(err)
	}
	configPath := filepath.Join(dir, "tool_config.env")
	if err := os.WriteFile(configPath, []byte(config), 0644); err != nil {
		t.Fatal(err)
	}

	r := New(manifestPath, configPath)
	if err := r.Load(); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	return r
}

func TestEnabledSet(t *testing.T) {
	r := newTestRegistry(t, testManifest, testConfig)

	// always_available plus explicitly enabled keys; false and unknown
	// keys contribute nothing.
	want := []string{"get_troubleshooting_help", "query_maintenance_database", "search_equipment"}
	if got := r.EnabledNames(); !reflect.DeepEqual(got, want) {
		t.Errorf("enabled = %v, want %v", got, want)
	}

	if r.IsEnabled("search_parts_inventory") {
		t.Error("search_parts_inventory should be disabled")
	}
	if !r.IsEnabled("query_maintenance_database") {
		t.Error("always-available tool should be enabled without a config key")
	}
}

func TestMalformedEntrySkipped(t *testing.T) {
	r := newTestRegistry(t, testManifest, testConfig)

	if _, ok := r.Get("broken_tool"); ok {
		t.Error("incomplete tool entry should have been skipped")
	}
	if _, ok := r.Get("search_equipment"); !ok {
		t.Error("valid tool entry missing after load")
	}
}

func TestSentinelAlwaysFirst(t *testing.T) {
	r := newTestRegistry(t, testManifest, testConfig)

	schemas := r.EnabledFunctions()
	if len(schemas) != 4 {
		t.Fatalf("got %d schemas, want 4", len(schemas))
	}
	if schemas[0].Function.Name != types.AnswerFunction {
		t.Errorf("first schema = %s, want %s", schemas[0].Function.Name, types.AnswerFunction)
	}
	for _, s := range schemas {
		if s.Type != "function" {
			t.Errorf("schema %s has type %q", s.Function.Name, s.Type)
		}
	}
}

func TestSchemaShape(t *testing.T) {
	r := newTestRegistry(t, testManifest, testConfig)

	def, ok := r.Get("search_equipment")
	if !ok {
		t.Fatal("search_equipment not found")
	}
	schema := def.Schema()

	status, ok := schema.Function.Parameters.Properties["status"]
	if !ok {
		t.Fatal("status parameter missing from schema")
	}
	if len(status.Enum) != 4 {
		t.Errorf("status enum has %d values, want 4", len(status.Enum))
	}
	if len(schema.Function.Parameters.Required) != 0 {
		t.Errorf("unexpected required list: %v", schema.Function.Parameters.Required)
	}

	fault, _ := r.Get("get_troubleshooting_help")
	required := fault.Schema().Function.Parameters.Required
	if !reflect.DeepEqual(required, []string{"fault_code"}) {
		t.Errorf("required = %v, want [fault_code]", required)
	}
}

func TestMapping(t *testing.T) {
	r := newTestRegistry(t, testManifest, testConfig)

	mapping := r.Mapping()
	if mapping[types.AnswerFunction] != "" {
		t.Errorf("sentinel should map to no backend call, got %q", mapping[types.AnswerFunction])
	}
	if mapping["search_equipment"] != "machines.search" {
		t.Errorf("search_equipment maps to %q", mapping["search_equipment"])
	}
	if _, ok := mapping["search_parts_inventory"]; ok {
		t.Error("disabled tool should not appear in mapping")
	}
}

func TestParameterMapping(t *testing.T) {
	r := newTestRegistry(t, testManifest, testConfig)

	pm := r.ParameterMapping()
	if pm["get_troubleshooting_help"]["fault_code"] != "code" {
		t.Errorf("fault_code should rename to code, got %q", pm["get_troubleshooting_help"]["fault_code"])
	}
	// Unmapped parameters pass through under their own name.
	if pm["search_equipment"]["location"] != "location" {
		t.Errorf("location should map to itself, got %q", pm["search_equipment"]["location"])
	}
}

func TestReloadTogglesOneKey(t *testing.T) {
	r := newTestRegistry(t, testManifest, testConfig)

	before := r.EnabledNames()
	if err := os.WriteFile(r.configPath, []byte("TOOL_PARTS_SEARCH=on\nTOOL_EQUIPMENT_SEARCH=true\nTOOL_FAULT_CODES=yes\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := r.ReloadConfig(); err != nil {
		t.Fatalf("reload failed: %v", err)
	}

	after := r.EnabledNames()
	if len(after) != len(before)+1 {
		t.Fatalf("enabled before %v, after %v", before, after)
	}
	if !r.IsEnabled("search_parts_inventory") {
		t.Error("search_parts_inventory should be enabled after reload")
	}
}

func TestReloadIdempotent(t *testing.T) {
	r := newTestRegistry(t, testManifest, testConfig)

	first := r.EnabledNames()
	firstMapping := r.Mapping()
	if err := r.ReloadConfig(); err != nil {
		t.Fatalf("reload failed: %v", err)
	}

	if !reflect.DeepEqual(first, r.EnabledNames()) {
		t.Errorf("enabled set changed on no-op reload: %v vs %v", first, r.EnabledNames())
	}
	if !reflect.DeepEqual(firstMapping, r.Mapping()) {
		t.Error("mapping changed on no-op reload")
	}
}

func TestMissingConfigLeavesAlwaysAvailable(t *testing.T) {
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "tools.yaml")
	if err := os.WriteFile(manifestPath, []byte(testManifest), 0644); err != nil {
		t.Fatal(err)
	}

	r := New(manifestPath, filepath.Join(dir, "missing.env"))
	if err := r.Load(); err == nil {
		t.Error("expected advisory error for missing config file")
	}

	want := []string{"query_maintenance_database"}
	if got := r.EnabledNames(); !reflect.DeepEqual(got, want) {
		t.Errorf("enabled = %v, want %v", got, want)
	}
}

func TestParseBool(t *testing.T) {
	truthy := []string{"true", "TRUE", "1", "yes", "Yes", "on", "ON"}
	for _, v := range truthy {
		if !parseBool(v) {
			t.Errorf("parseBool(%q) = false, want true", v)
		}
	}
	falsy := []string{"false", "0", "no", "off", "", "banana"}
	for _, v := range falsy {
		if parseBool(v) {
			t.Errorf("parseBool(%q) = true, want false", v)
		}
	}
}

func TestEnabledByCategory(t *testing.T) {
	r := newTestRegistry(t, testManifest, testConfig)

	if got := r.EnabledByCategory("equipment"); !reflect.DeepEqual(got, []string{"search_equipment"}) {
		t.Errorf("equipment = %v", got)
	}
	if got := r.EnabledByCategory("inventory"); len(got) != 0 {
		t.Errorf("inventory should be empty while parts search is disabled, got %v", got)
	}
}

func TestStatus(t *testing.T) {
	r := newTestRegistry(t, testManifest, testConfig)

	status := r.Status()
	if status.TotalTools != 4 {
		t.Errorf("TotalTools = %d, want 4", status.TotalTools)
	}
	if status.EnabledTools != 3 {
		t.Errorf("EnabledTools = %d, want 3", status.EnabledTools)
	}
	if !reflect.DeepEqual(status.Disabled, []string{"search_parts_inventory"}) {
		t.Errorf("Disabled = %v", status.Disabled)
	}
}
