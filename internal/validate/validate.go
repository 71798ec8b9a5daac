// Package validate holds the pre-flight parameter checks for every tool.
// All functions are pure: no I/O, no state, deterministic. The agent loop
// must never hand the bridge parameters that failed these checks.
package validate

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Error identifies the violated constraint of a parameter check.
type Error struct {
	Tool   string
	Param  string
	Reason string
}

func (e *Error) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("invalid %s for %s: %s", e.Param, e.Tool, e.Reason)
	}
	return fmt.Sprintf("invalid parameters for %s: %s", e.Tool, e.Reason)
}

var (
	machineStatuses     = set("operational", "maintenance", "down", "retired")
	ticketStatuses      = set("open", "assigned", "in_progress", "resolved", "closed")
	priorities          = set("low", "medium", "high", "urgent")
	maintenanceTypes    = set("preventive", "corrective", "emergency", "inspection")
	certificationLevels = set("junior", "senior", "expert", "lead")

	faultCodePattern = regexp.MustCompile(`^[A-Z]\d{3}$`)

	dangerousSQL = []string{
		"drop", "delete", "insert", "update", "create", "alter",
		"truncate", "replace", "merge", "exec", "execute",
	}
)

func set(values ...string) map[string]bool {
	m := make(map[string]bool, len(values))
	for _, v := range values {
		m[v] = true
	}
	return m
}

// Check validates the arguments of a tool call. Tools without registered
// checks pass. Returns a *Error describing the first violated constraint.
func Check(tool string, args map[string]any) error {
	switch tool {
	case "search_equipment":
		return checkEquipment(tool, args)
	case "get_maintenance_tickets":
		return checkTickets(tool, args)
	case "get_service_history":
		return checkServiceHistory(tool, args)
	case "search_parts_inventory":
		return checkParts(tool, args)
	case "get_troubleshooting_help":
		return checkFaultCode(tool, args)
	case "get_technician_info":
		return checkTechnician(tool, args)
	case "query_maintenance_database":
		return checkQuery(tool, args)
	}
	return nil
}

func checkEquipment(tool string, args map[string]any) error {
	if err := checkEnum(tool, args, "status", machineStatuses); err != nil {
		return err
	}
	// location, model, manufacturer accept any string
	return nil
}

func checkTickets(tool string, args map[string]any) error {
	if err := checkEnum(tool, args, "status", ticketStatuses); err != nil {
		return err
	}
	if err := checkEnum(tool, args, "priority", priorities); err != nil {
		return err
	}
	if err := checkPositiveInt(tool, args, "machine_id"); err != nil {
		return err
	}
	return checkIntRange(tool, args, "limit", 1, 1000)
}

func checkServiceHistory(tool string, args map[string]any) error {
	if err := checkPositiveInt(tool, args, "machine_id"); err != nil {
		return err
	}
	if err := checkPositiveInt(tool, args, "technician_id"); err != nil {
		return err
	}
	if err := checkEnum(tool, args, "maintenance_type", maintenanceTypes); err != nil {
		return err
	}
	return checkIntRange(tool, args, "days_back", 1, 365)
}

func checkParts(tool string, args map[string]any) error {
	if v, ok := args["low_stock_only"]; ok {
		if _, isBool := v.(bool); !isBool {
			return &Error{Tool: tool, Param: "low_stock_only", Reason: "must be true or false"}
		}
	}
	return nil
}

func checkFaultCode(tool string, args map[string]any) error {
	v, ok := args["fault_code"]
	if !ok {
		return nil
	}
	code, isString := v.(string)
	if !isString || strings.TrimSpace(code) == "" {
		return &Error{Tool: tool, Param: "fault_code", Reason: "must be a non-empty string"}
	}
	if !faultCodePattern.MatchString(strings.ToUpper(code)) {
		return &Error{Tool: tool, Param: "fault_code", Reason: "must be a letter followed by three digits, like E001"}
	}
	return nil
}

func checkTechnician(tool string, args map[string]any) error {
	if err := checkPositiveInt(tool, args, "technician_id"); err != nil {
		return err
	}
	return checkEnum(tool, args, "certification_level", certificationLevels)
}

func checkQuery(tool string, args map[string]any) error {
	v, ok := args["query"]
	if !ok {
		return &Error{Tool: tool, Param: "query", Reason: "is required"}
	}
	query, isString := v.(string)
	if !isString {
		return &Error{Tool: tool, Param: "query", Reason: "must be a string"}
	}
	if reason := sqlGuard(query); reason != "" {
		return &Error{Tool: tool, Param: "query", Reason: reason}
	}
	return checkIntRange(tool, args, "limit", 1, 1000)
}

// sqlGuard allows only single SELECT statements. Returns a reason string
// on violation, "" when the query is acceptable.
func sqlGuard(query string) string {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return "query cannot be empty"
	}
	lower := strings.ToLower(trimmed)
	if !strings.HasPrefix(lower, "select") {
		return "only SELECT queries are allowed"
	}
	padded := " " + lower + " "
	for _, keyword := range dangerousSQL {
		if strings.Contains(padded, " "+keyword+" ") {
			return fmt.Sprintf("keyword %q not allowed", keyword)
		}
	}
	// A semicolon is tolerated at the very end only.
	if strings.Contains(strings.TrimSuffix(trimmed, ";"), ";") {
		return "multiple statements not allowed"
	}
	return ""
}

func checkEnum(tool string, args map[string]any, param string, allowed map[string]bool) error {
	v, ok := args[param]
	if !ok {
		return nil
	}
	s, isString := v.(string)
	if !isString || !allowed[strings.ToLower(s)] {
		return &Error{Tool: tool, Param: param, Reason: fmt.Sprintf("%v is not one of the allowed values", v)}
	}
	return nil
}

func checkPositiveInt(tool string, args map[string]any, param string) error {
	v, ok := args[param]
	if !ok {
		return nil
	}
	n, err := intValue(v)
	if err != nil {
		return &Error{Tool: tool, Param: param, Reason: "must be a number"}
	}
	if n <= 0 {
		return &Error{Tool: tool, Param: param, Reason: "must be positive"}
	}
	return nil
}

func checkIntRange(tool string, args map[string]any, param string, min, max int) error {
	v, ok := args[param]
	if !ok {
		return nil
	}
	n, err := intValue(v)
	if err != nil {
		return &Error{Tool: tool, Param: param, Reason: "must be a number"}
	}
	if n < min || n > max {
		return &Error{Tool: tool, Param: param, Reason: fmt.Sprintf("must be between %d and %d", min, max)}
	}
	return nil
}

// intValue coerces the ways JSON and the model deliver integers: float64
// from decoding, plain ints, and numeric strings.
func intValue(v any) (int, error) {
	switch n := v.(type) {
	case float64:
		return int(n), nil
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case string:
		return strconv.Atoi(strings.TrimSpace(n))
	}
	return 0, fmt.Errorf("not a number: %T", v)
}

// UserInput sanity-checks a raw user message before the loop starts.
func UserInput(input string) error {
	if strings.TrimSpace(input) == "" {
		return &Error{Tool: "user_input", Reason: "input cannot be empty"}
	}
	if len(input) > 2000 {
		return &Error{Tool: "user_input", Reason: "input too long (max 2000 characters)"}
	}
	return nil
}
