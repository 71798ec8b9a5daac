package types

import "encoding/json"

// Payload is the tagged result body of a backend call: either structured
// JSON or opaque text. Callers pattern-match instead of guessing.
type Payload struct {
	raw        json.RawMessage
	text       string
	structured bool
}

// StructuredPayload wraps decoded JSON.
func StructuredPayload(raw json.RawMessage) Payload {
	return Payload{raw: raw, structured: true}
}

// TextPayload wraps opaque text.
func TextPayload(text string) Payload {
	return Payload{text: text}
}

// ParsePayload classifies a backend response body. JSON objects and arrays
// become structured payloads, anything else stays text.
func ParsePayload(body string) Payload {
	var probe any
	if err := json.Unmarshal([]byte(body), &probe); err == nil {
		switch probe.(type) {
		case map[string]any, []any:
			return StructuredPayload(json.RawMessage(body))
		}
	}
	return TextPayload(body)
}

// Structured returns the decoded JSON and true, or nil and false for text
// payloads.
func (p Payload) Structured() (json.RawMessage, bool) {
	if !p.structured {
		return nil, false
	}
	return p.raw, true
}

// Text returns the opaque text and true, or "" and false for structured
// payloads.
func (p Payload) Text() (string, bool) {
	if p.structured {
		return "", false
	}
	return p.text, true
}

// JSON renders the payload as a JSON document. Text payloads are wrapped
// as {"text": <raw>} per the backend contract.
func (p Payload) JSON() string {
	if p.structured {
		return string(p.raw)
	}
	wrapped, err := json.Marshal(map[string]string{"text": p.text})
	if err != nil {
		return `{"text":""}`
	}
	return string(wrapped)
}

// Fields decodes a structured payload into a generic map. Returns nil for
// text payloads or non-object documents.
func (p Payload) Fields() map[string]any {
	if !p.structured {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(p.raw, &m); err != nil {
		return nil
	}
	return m
}

// CallResult is the tagged outcome of one tool invocation.
type CallResult struct {
	ok       bool
	payload  Payload
	errMsg   string
	Function string // abstract tool name
	Backend  string // backend-qualified function invoked, "" for the sentinel
}

// Success builds a successful result.
func Success(function, backend string, payload Payload) CallResult {
	return CallResult{ok: true, payload: payload, Function: function, Backend: backend}
}

// Failure builds an error result.
func Failure(function, backend, msg string) CallResult {
	return CallResult{errMsg: msg, Function: function, Backend: backend}
}

// OK reports whether the call succeeded.
func (r CallResult) OK() bool { return r.ok }

// Payload returns the success payload; only meaningful when OK.
func (r CallResult) Payload() Payload { return r.payload }

// ErrorMessage returns the failure message; only meaningful when !OK.
func (r CallResult) ErrorMessage() string { return r.errMsg }
