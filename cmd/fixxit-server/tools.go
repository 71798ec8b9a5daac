package main

import (
	"fmt"
	"strings"
)

// registerTools wires every backend function to its query. Tool names
// are backend-qualified; the client's registry maps its abstract names
// onto these.
func (s *server) registerTools() map[string]tool {
	return map[string]tool{
		"machines.search": {
			description: "Search machines by location, status, model, manufacturer or serial number.",
			schema: objectSchema(map[string]string{
				"location":      "string",
				"status":        "string",
				"model":         "string",
				"manufacturer":  "string",
				"serial_number": "string",
			}),
			handler: s.searchMachines,
		},
		"tickets.list": {
			description: "List trouble tickets filtered by machine, status or priority.",
			schema: objectSchema(map[string]string{
				"machine_id": "integer",
				"status":     "string",
				"priority":   "string",
				"limit":      "integer",
			}),
			handler: s.listTickets,
		},
		"maintenance.history": {
			description: "Service history records, optionally by machine, technician, type or recency.",
			schema: objectSchema(map[string]string{
				"machine_id":       "integer",
				"technician_id":    "integer",
				"maintenance_type": "string",
				"days_back":        "integer",
			}),
			handler: s.maintenanceHistory,
		},
		"parts.search": {
			description: "Search the parts inventory by name, number or category.",
			schema: objectSchema(map[string]string{
				"name":           "string",
				"part_number":    "string",
				"category":       "string",
				"low_stock_only": "boolean",
			}),
			handler: s.searchParts,
		},
		"faultcodes.lookup": {
			description: "Look up a fault code and its troubleshooting steps.",
			schema:      objectSchema(map[string]string{"code": "string"}),
			handler:     s.lookupFaultCode,
		},
		"technicians.info": {
			description: "Technician details filtered by id, name, expertise or certification.",
			schema: objectSchema(map[string]string{
				"technician_id":       "integer",
				"name":                "string",
				"expertise":           "string",
				"certification_level": "string",
			}),
			handler: s.technicianInfo,
		},
		"query.execute_sql": {
			description: "Run a read-only SQL query against the maintenance database.",
			schema: objectSchema(map[string]string{
				"query": "string",
				"limit": "integer",
			}),
			handler: s.executeSQL,
		},
		"db.overview": {
			description: "Row counts and status breakdowns across all tables.",
			schema:      objectSchema(nil),
			handler:     s.overview,
		},
	}
}

func objectSchema(props map[string]string) map[string]any {
	properties := map[string]any{}
	for name, typ := range props {
		properties[name] = map[string]any{"type": typ}
	}
	return map[string]any{
		"type":       "object",
		"properties": properties,
	}
}

func (s *server) searchMachines(args map[string]any) (any, error) {
	var f filter
	f.like("location", stringArg(args, "location"))
	f.eq("status", stringArg(args, "status"))
	f.like("model", stringArg(args, "model"))
	f.like("manufacturer", stringArg(args, "manufacturer"))
	f.eq("serial_number", stringArg(args, "serial_number"))

	return s.store.query(
		"SELECT id, serial_number, model, manufacturer, location, status, installed_date FROM machines"+
			f.where()+" ORDER BY id LIMIT ?",
		append(f.args, s.limits.MaxRows)...)
}

func (s *server) listTickets(args map[string]any) (any, error) {
	var f filter
	f.eqInt("machine_id", intArg(args, "machine_id"))
	f.eq("status", stringArg(args, "status"))
	f.eq("priority", stringArg(args, "priority"))

	limit := s.rowLimit(args)
	return s.store.query(
		"SELECT id, machine_id, title, status, priority, reported_by, created_at, updated_at FROM tickets"+
			f.where()+" ORDER BY updated_at DESC LIMIT ?",
		append(f.args, limit)...)
}

func (s *server) maintenanceHistory(args map[string]any) (any, error) {
	var f filter
	f.eqInt("sh.machine_id", intArg(args, "machine_id"))
	f.eqInt("sh.technician_id", intArg(args, "technician_id"))
	f.eq("sh.maintenance_type", stringArg(args, "maintenance_type"))
	if days := intArg(args, "days_back"); days != nil {
		f.clauses = append(f.clauses, "sh.performed_at >= datetime('now', ?)")
		f.args = append(f.args, fmt.Sprintf("-%d days", *days))
	}

	return s.store.query(
		"SELECT sh.id, sh.machine_id, sh.technician_id, t.name AS technician, sh.maintenance_type, sh.description, sh.parts_used, sh.performed_at"+
			" FROM service_history sh LEFT JOIN technicians t ON t.id = sh.technician_id"+
			f.where()+" ORDER BY sh.performed_at DESC LIMIT ?",
		append(f.args, s.limits.DefaultRows)...)
}

func (s *server) searchParts(args map[string]any) (any, error) {
	var f filter
	f.like("name", stringArg(args, "name"))
	f.eq("part_number", stringArg(args, "part_number"))
	f.eq("category", stringArg(args, "category"))
	if low, ok := args["low_stock_only"].(bool); ok && low {
		f.clauses = append(f.clauses, "stock_quantity <= min_stock")
	}

	return s.store.query(
		"SELECT part_number, name, category, stock_quantity, min_stock, location, unit_cost FROM parts"+
			f.where()+" ORDER BY part_number LIMIT ?",
		append(f.args, s.limits.MaxRows)...)
}

func (s *server) lookupFaultCode(args map[string]any) (any, error) {
	code := strings.ToUpper(stringArg(args, "code"))
	if code == "" {
		return nil, fmt.Errorf("code is required")
	}

	rows, err := s.store.query(
		"SELECT code, description, severity, troubleshooting FROM fault_codes WHERE code = ?", code)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("unknown fault code: %s", code)
	}
	return rows[0], nil
}

func (s *server) technicianInfo(args map[string]any) (any, error) {
	var f filter
	f.eqInt("id", intArg(args, "technician_id"))
	f.like("name", stringArg(args, "name"))
	f.like("expertise", stringArg(args, "expertise"))
	f.eq("certification_level", stringArg(args, "certification_level"))

	return s.store.query(
		"SELECT id, name, expertise, certification_level, available, phone FROM technicians"+
			f.where()+" ORDER BY name LIMIT ?",
		append(f.args, s.limits.DefaultRows)...)
}

// executeSQL re-checks the SELECT-only contract on the server side; the
// client validates too but this process is the last line of defense.
func (s *server) executeSQL(args map[string]any) (any, error) {
	query := strings.TrimSpace(stringArg(args, "query"))
	lower := strings.ToLower(query)
	if !strings.HasPrefix(lower, "select") {
		return nil, fmt.Errorf("only SELECT queries are allowed")
	}
	for _, keyword := range []string{"insert", "update", "delete", "drop", "alter", "create", "truncate", "replace"} {
		if strings.Contains(" "+lower+" ", " "+keyword+" ") {
			return nil, fmt.Errorf("keyword %q not allowed", keyword)
		}
	}

	limit := s.rowLimit(args)
	if !strings.Contains(lower, "limit") {
		query = fmt.Sprintf("%s LIMIT %d", strings.TrimSuffix(query, ";"), limit)
	}
	return s.store.query(query)
}

func (s *server) overview(map[string]any) (any, error) {
	overview := map[string]any{}
	for _, table := range []string{"machines", "tickets", "service_history", "parts", "fault_codes", "technicians"} {
		rows, err := s.store.query("SELECT COUNT(*) AS count FROM " + table)
		if err != nil {
			return nil, err
		}
		overview[table] = rows[0]["count"]
	}

	statuses, err := s.store.query("SELECT status, COUNT(*) AS count FROM machines GROUP BY status")
	if err != nil {
		return nil, err
	}
	overview["machine_status"] = statuses

	open, err := s.store.query(
		"SELECT priority, COUNT(*) AS count FROM tickets WHERE status NOT IN ('resolved', 'closed') GROUP BY priority")
	if err != nil {
		return nil, err
	}
	overview["open_tickets_by_priority"] = open

	return overview, nil
}

func (s *server) rowLimit(args map[string]any) int {
	if n := intArg(args, "limit"); n != nil && *n > 0 && *n <= s.limits.MaxRows {
		return *n
	}
	return s.limits.DefaultRows
}

func stringArg(args map[string]any, name string) string {
	v, _ := args[name].(string)
	return v
}

// intArg reads a numeric argument, tolerating the float64 that JSON
// decoding produces. Nil when absent or non-numeric.
func intArg(args map[string]any, name string) *int {
	switch v := args[name].(type) {
	case float64:
		n := int(v)
		return &n
	case int:
		return &v
	}
	return nil
}
