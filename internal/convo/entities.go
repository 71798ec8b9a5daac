package convo

import (
	"fmt"
	"strconv"

	"github.com/fixxit/fixxit/internal/types"
)

// Kind classifies the domain objects tracked across turns.
type Kind string

const (
	KindMachine    Kind = "machine"
	KindTicket     Kind = "ticket"
	KindTechnician Kind = "technician"
	KindPart       Kind = "part"
	KindFaultCode  Kind = "fault_code"
)

// EntityKey is the typed composite key of the entity store.
type EntityKey struct {
	Kind Kind
	ID   string
}

func (k EntityKey) String() string {
	return string(k.Kind) + "#" + k.ID
}

// Entity is a domain object mentioned in the conversation.
type Entity struct {
	Key           EntityKey
	Name          string
	Details       map[string]any
	MentionedTurn int
	LastUsedTurn  int
}

// listField describes one recognized list field of a tool payload and how
// to derive the entity key and display name from its items.
type listField struct {
	field   string
	kind    Kind
	idKey   string
	nameKey string
}

var listFields = []listField{
	{field: "machines", kind: KindMachine, idKey: "id", nameKey: "serial_number"},
	{field: "tickets", kind: KindTicket, idKey: "id", nameKey: ""},
	{field: "technicians", kind: KindTechnician, idKey: "id", nameKey: "name"},
	{field: "parts", kind: KindPart, idKey: "part_number", nameKey: "name"},
	{field: "fault_codes", kind: KindFaultCode, idKey: "code", nameKey: "code"},
}

// extractEntities pulls recognizable entity lists out of a successful tool
// payload. Returns the entities in payload order; the caller upserts them
// into the store.
func extractEntities(payload types.Payload) []Entity {
	data := payload.Fields()
	if data == nil {
		return nil
	}

	var found []Entity
	for _, lf := range listFields {
		items, ok := data[lf.field].([]any)
		if !ok {
			continue
		}
		for _, raw := range items {
			item, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			id := idString(item[lf.idKey])
			if id == "" {
				continue
			}
			name := ""
			if lf.nameKey != "" {
				name, _ = item[lf.nameKey].(string)
			}
			if lf.kind == KindTicket {
				name = "Ticket #" + id
			}
			found = append(found, Entity{
				Key:     EntityKey{Kind: lf.kind, ID: id},
				Name:    name,
				Details: item,
			})
		}
	}
	return found
}

// idString normalizes identifiers: JSON numbers arrive as float64 and must
// not grow a ".0" suffix in the key.
func idString(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return strconv.FormatInt(int64(id), 10)
	case int:
		return strconv.Itoa(id)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", id)
	}
}
