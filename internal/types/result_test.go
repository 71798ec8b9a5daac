package types

import "testing"

func TestParsePayload(t *testing.T) {
	cases := []struct {
		body       string
		structured bool
	}{
		{`{"id": 1}`, true},
		{`[{"id": 1}, {"id": 2}]`, true},
		{`[]`, true},
		{"plain text result", false},
		{`"a bare json string"`, false},
		{"42", false},
		{"", false},
	}

	for _, c := range cases {
		p := ParsePayload(c.body)
		if _, ok := p.Structured(); ok != c.structured {
			t.Errorf("ParsePayload(%q): structured = %v, want %v", c.body, ok, c.structured)
		}
		if _, ok := p.Text(); ok == c.structured {
			t.Errorf("ParsePayload(%q): text and structured must be mutually exclusive", c.body)
		}
	}
}

func TestPayloadJSON(t *testing.T) {
	structured := ParsePayload(`{"count": 3}`)
	if got := structured.JSON(); got != `{"count": 3}` {
		t.Errorf("structured JSON = %q", got)
	}

	text := ParsePayload("ok")
	if got := text.JSON(); got != `{"text":"ok"}` {
		t.Errorf("text JSON = %q, want wrapped form", got)
	}
}

func TestPayloadFields(t *testing.T) {
	p := ParsePayload(`{"machines": [], "count": 0}`)
	fields := p.Fields()
	if fields == nil {
		t.Fatal("expected fields for object payload")
	}
	if _, ok := fields["machines"]; !ok {
		t.Error("machines key missing")
	}

	if ParsePayload(`[1, 2]`).Fields() != nil {
		t.Error("array payload should have nil fields")
	}
	if TextPayload("x").Fields() != nil {
		t.Error("text payload should have nil fields")
	}
}

func TestCallResult(t *testing.T) {
	ok := Success("search_equipment", "machines.search", TextPayload("x"))
	if !ok.OK() || ok.ErrorMessage() != "" {
		t.Error("success result misreports")
	}

	fail := Failure("search_equipment", "machines.search", "backend unavailable")
	if fail.OK() {
		t.Error("failure result reports OK")
	}
	if fail.ErrorMessage() != "backend unavailable" {
		t.Errorf("error message = %q", fail.ErrorMessage())
	}
}

func TestArgumentMap(t *testing.T) {
	call := ToolCall{Name: "x", Arguments: []byte(`{"limit": 5, "status": "open"}`)}
	args := call.ArgumentMap()
	if args["status"] != "open" {
		t.Errorf("status = %v", args["status"])
	}
	if args["limit"] != float64(5) {
		t.Errorf("limit = %v (%T)", args["limit"], args["limit"])
	}

	// Garbage and empty blobs degrade to an empty map.
	if got := (ToolCall{Arguments: []byte("{not json")}).ArgumentMap(); len(got) != 0 {
		t.Errorf("garbage arguments produced %v", got)
	}
	if got := (ToolCall{}).ArgumentMap(); len(got) != 0 {
		t.Errorf("empty arguments produced %v", got)
	}
}
