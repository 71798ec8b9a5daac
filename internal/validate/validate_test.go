package validate

import (
	"strings"
	"testing"
)

func TestEquipmentStatus(t *testing.T) {
	for _, status := range []string{"operational", "maintenance", "down", "retired", "DOWN"} {
		if err := Check("search_equipment", map[string]any{"status": status}); err != nil {
			t.Errorf("status %q rejected: %v", status, err)
		}
	}
	if err := Check("search_equipment", map[string]any{"status": "exploded"}); err == nil {
		t.Error("invalid status accepted")
	}
	// Free-text filters are unconstrained.
	if err := Check("search_equipment", map[string]any{"location": "Building A", "model": "X"}); err != nil {
		t.Errorf("free-text filters rejected: %v", err)
	}
}

func TestTicketParams(t *testing.T) {
	ok := map[string]any{"status": "open", "priority": "urgent", "machine_id": float64(3), "limit": float64(100)}
	if err := Check("get_maintenance_tickets", ok); err != nil {
		t.Errorf("valid params rejected: %v", err)
	}

	cases := []map[string]any{
		{"status": "pending"},
		{"priority": "asap"},
		{"machine_id": float64(0)},
		{"machine_id": -1},
		{"machine_id": "seven-ish"},
		{"limit": float64(0)},
		{"limit": float64(1001)},
	}
	for _, args := range cases {
		if err := Check("get_maintenance_tickets", args); err == nil {
			t.Errorf("args %v accepted", args)
		}
	}
}

func TestServiceHistoryParams(t *testing.T) {
	ok := map[string]any{"machine_id": 7, "technician_id": 2, "maintenance_type": "preventive", "days_back": 30}
	if err := Check("get_service_history", ok); err != nil {
		t.Errorf("valid params rejected: %v", err)
	}

	if err := Check("get_service_history", map[string]any{"maintenance_type": "cosmetic"}); err == nil {
		t.Error("invalid maintenance type accepted")
	}
	if err := Check("get_service_history", map[string]any{"days_back": 366}); err == nil {
		t.Error("days_back over a year accepted")
	}
	if err := Check("get_service_history", map[string]any{"days_back": 0}); err == nil {
		t.Error("days_back zero accepted")
	}
}

func TestPartsParams(t *testing.T) {
	if err := Check("search_parts_inventory", map[string]any{"low_stock_only": true}); err != nil {
		t.Errorf("boolean flag rejected: %v", err)
	}
	if err := Check("search_parts_inventory", map[string]any{"low_stock_only": "yes"}); err == nil {
		t.Error("string low_stock_only accepted")
	}
}

func TestFaultCodeFormat(t *testing.T) {
	for _, code := range []string{"E001", "A999", "e001"} {
		if err := Check("get_troubleshooting_help", map[string]any{"fault_code": code}); err != nil {
			t.Errorf("code %q rejected: %v", code, err)
		}
	}
	for _, code := range []string{"E01", "1234", "EE01", "E0011", "", "  "} {
		if err := Check("get_troubleshooting_help", map[string]any{"fault_code": code}); err == nil {
			t.Errorf("code %q accepted", code)
		}
	}
}

func TestTechnicianParams(t *testing.T) {
	if err := Check("get_technician_info", map[string]any{"technician_id": 4, "certification_level": "expert"}); err != nil {
		t.Errorf("valid params rejected: %v", err)
	}
	if err := Check("get_technician_info", map[string]any{"certification_level": "wizard"}); err == nil {
		t.Error("invalid certification level accepted")
	}
}

func TestSQLGuard(t *testing.T) {
	allowed := []string{
		"SELECT * FROM machines",
		"select id, status from tickets where priority = 'urgent'",
		"  SELECT COUNT(*) FROM parts;  ",
	}
	for _, q := range allowed {
		if err := Check("query_maintenance_database", map[string]any{"query": q}); err != nil {
			t.Errorf("query %q rejected: %v", q, err)
		}
	}

	blocked := []string{
		"DROP TABLE machines",
		"SELECT * FROM machines; DROP TABLE machines",
		"select * from tickets where id = 1; delete from tickets",
		"UPDATE machines SET status = 'down'",
		"",
	}
	for _, q := range blocked {
		if err := Check("query_maintenance_database", map[string]any{"query": q}); err == nil {
			t.Errorf("query %q accepted", q)
		}
	}

	if err := Check("query_maintenance_database", map[string]any{}); err == nil {
		t.Error("missing query accepted")
	}
}

func TestUnknownToolPasses(t *testing.T) {
	if err := Check("get_database_overview", map[string]any{"whatever": 1}); err != nil {
		t.Errorf("tool without checks rejected: %v", err)
	}
}

func TestNumericCoercion(t *testing.T) {
	// The model may deliver numbers as JSON floats, ints or strings.
	for _, v := range []any{float64(5), 5, int64(5), "5", " 5 "} {
		if err := Check("get_maintenance_tickets", map[string]any{"machine_id": v}); err != nil {
			t.Errorf("machine_id %v (%T) rejected: %v", v, v, err)
		}
	}
}

func TestUserInput(t *testing.T) {
	if err := UserInput("what machines are down?"); err != nil {
		t.Errorf("valid input rejected: %v", err)
	}
	if err := UserInput("   "); err == nil {
		t.Error("blank input accepted")
	}
	if err := UserInput(strings.Repeat("x", 2001)); err == nil {
		t.Error("oversized input accepted")
	}
	if err := UserInput(strings.Repeat("x", 2000)); err != nil {
		t.Errorf("input at the limit rejected: %v", err)
	}
}
