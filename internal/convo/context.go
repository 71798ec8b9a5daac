// Package convo maintains per-session conversation state: the turn
// counter, the entity store used for reference resolution, inferred
// intent/location/priority filters, and the bounded message history.
package convo

import (
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/fixxit/fixxit/internal/logging"
	"github.com/fixxit/fixxit/internal/types"
)

// Config holds the tunable retention knobs.
type Config struct {
	// MaxHistory caps the message history (sliding window).
	MaxHistory int
	// RetentionTurns is how long entities stay "recent"; they are evicted
	// after twice this many turns without use.
	RetentionTurns int
}

// DefaultConfig returns the standard retention knobs.
func DefaultConfig() Config {
	return Config{MaxHistory: 20, RetentionTurns: 5}
}

// Context is the long-lived conversation state of one session. It is
// owned by a single Agent and is not safe for concurrent mutation.
type Context struct {
	cfg Config

	turn     int
	focus    *EntityKey
	intent   Intent
	location string
	priority string
	entities map[EntityKey]*Entity
	messages []types.Message
}

// NewContext creates an empty conversation context.
func NewContext(cfg Config) *Context {
	if cfg.MaxHistory <= 0 {
		cfg.MaxHistory = DefaultConfig().MaxHistory
	}
	if cfg.RetentionTurns <= 0 {
		cfg.RetentionTurns = DefaultConfig().RetentionTurns
	}
	return &Context{
		cfg:      cfg,
		entities: map[EntityKey]*Entity{},
	}
}

// AddUserMessage starts a new turn: bumps the turn counter, runs the
// input heuristics (intent, location, priority, reference resolution)
// and appends the message to history.
func (c *Context) AddUserMessage(content string) {
	c.turn++

	if intent, ok := ClassifyIntent(content); ok {
		c.intent = intent
	}
	if loc, ok := ExtractLocation(content); ok {
		c.location = loc
	}
	if prio, ok := ExtractPriority(content); ok {
		c.priority = prio
	}
	c.resolveReference(content)

	c.append(types.Message{
		Role:      types.RoleUser,
		Content:   content,
		Turn:      c.turn,
		Timestamp: time.Now(),
	})
}

// AddAssistantMessage appends the assistant's final answer for the
// current turn.
func (c *Context) AddAssistantMessage(content string) {
	c.append(types.Message{
		Role:      types.RoleAssistant,
		Content:   content,
		Turn:      c.turn,
		Timestamp: time.Now(),
	})
}

// AddToolCall records a tool invocation and folds any recognizable entity
// lists from its result into the entity store.
func (c *Context) AddToolCall(name string, args json.RawMessage, result types.CallResult) {
	c.append(types.Message{
		Role:      types.RoleTool,
		Content:   observationText(result),
		Turn:      c.turn,
		Timestamp: time.Now(),
		ToolName:  name,
		ToolArgs:  args,
	})

	if !result.OK() {
		return
	}
	for _, e := range extractEntities(result.Payload()) {
		c.upsert(e)
	}
}

func observationText(result types.CallResult) string {
	if result.OK() {
		return result.Payload().JSON()
	}
	return "Error: " + result.ErrorMessage()
}

// resolveReference maps pronouns and reference phrases to the most
// recently used entity of the referenced kind and focuses it.
func (c *Context) resolveReference(content string) {
	kind, ok := ReferenceKind(content)
	if !ok {
		return
	}
	entity, ok := MostRecent(c.snapshot(), kind)
	if !ok {
		return
	}
	stored := c.entities[entity.Key]
	stored.LastUsedTurn = c.turn
	c.focus = &stored.Key
	logging.L_debug("resolved reference", "kind", kind, "entity", stored.Key.String(), "name", stored.Name)
}

// upsert merges an extracted entity into the store. The store never holds
// two live entries with the same (kind, id).
func (c *Context) upsert(e Entity) {
	if existing, ok := c.entities[e.Key]; ok {
		existing.LastUsedTurn = c.turn
		if e.Name != "" {
			existing.Name = e.Name
		}
		for k, v := range e.Details {
			existing.Details[k] = v
		}
		return
	}
	e.MentionedTurn = c.turn
	e.LastUsedTurn = c.turn
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	stored := e
	c.entities[e.Key] = &stored
}

// append adds a message, trims the history window, and evicts stale
// entities.
func (c *Context) append(msg types.Message) {
	c.messages = append(c.messages, msg)
	if len(c.messages) > c.cfg.MaxHistory {
		c.messages = c.messages[len(c.messages)-c.cfg.MaxHistory:]
	}
	c.evict()
}

// evict drops entities unused for longer than twice the retention window.
func (c *Context) evict() {
	cutoff := c.turn - 2*c.cfg.RetentionTurns
	for key, e := range c.entities {
		if e.LastUsedTurn < cutoff {
			delete(c.entities, key)
			if c.focus != nil && *c.focus == key {
				c.focus = nil
			}
		}
	}
}

// Reset clears focus, intent, filters and entities but keeps the message
// history. The turn counter is re-seeded from the history length so it
// stays non-decreasing.
func (c *Context) Reset() {
	c.focus = nil
	c.intent = ""
	c.location = ""
	c.priority = ""
	c.entities = map[EntityKey]*Entity{}
	if len(c.messages) > c.turn {
		c.turn = len(c.messages)
	}
}

// Turn returns the monotonic turn counter.
func (c *Context) Turn() int { return c.turn }

// Intent returns the currently inferred intent ("" when none).
func (c *Context) Intent() Intent { return c.intent }

// Location returns the current location filter ("" when none).
func (c *Context) Location() string { return c.location }

// Priority returns the current priority filter ("" when none).
func (c *Context) Priority() string { return c.priority }

// Focus returns the currently focused entity.
func (c *Context) Focus() (Entity, bool) {
	if c.focus == nil {
		return Entity{}, false
	}
	e, ok := c.entities[*c.focus]
	if !ok {
		return Entity{}, false
	}
	return *e, true
}

// EntityCount returns the number of live entities.
func (c *Context) EntityCount() int { return len(c.entities) }

// Messages returns a copy of the history window.
func (c *Context) Messages() []types.Message {
	out := make([]types.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// snapshot returns the entity store as a value slice for the pure
// resolution helpers.
func (c *Context) snapshot() []Entity {
	out := make([]Entity, 0, len(c.entities))
	for _, e := range c.entities {
		out = append(out, *e)
	}
	return out
}

// Hints assembles context hints for the model: active filters, the
// focused entity, and entities used within the retention window.
func (c *Context) Hints() map[string]any {
	hints := map[string]any{}
	if c.location != "" {
		hints["suggested_location"] = c.location
	}
	if c.priority != "" {
		hints["suggested_priority"] = c.priority
	}
	if focused, ok := c.Focus(); ok {
		hints["focused_entity"] = map[string]any{
			"type": string(focused.Key.Kind),
			"id":   focused.Key.ID,
			"name": focused.Name,
		}
	}

	recent := map[string][]map[string]any{}
	for _, e := range c.snapshot() {
		if c.turn-e.LastUsedTurn > c.cfg.RetentionTurns {
			continue
		}
		kind := string(e.Key.Kind)
		recent[kind] = append(recent[kind], map[string]any{
			"id":        e.Key.ID,
			"name":      e.Name,
			"last_used": e.LastUsedTurn,
		})
	}
	for _, items := range recent {
		sort.Slice(items, func(i, j int) bool {
			return items[i]["id"].(string) < items[j]["id"].(string)
		})
	}
	if len(recent) > 0 {
		hints["recent_entities"] = recent
	}
	return hints
}

// Summary renders a short human-readable description of the active
// context, used in debug logging and status output.
func (c *Context) Summary() string {
	var parts []string
	if c.intent != "" {
		parts = append(parts, "Intent: "+string(c.intent))
	}
	if c.location != "" {
		parts = append(parts, "Location: "+c.location)
	}
	if c.priority != "" {
		parts = append(parts, "Priority: "+c.priority)
	}

	var recent []string
	for _, e := range c.snapshot() {
		if c.turn-e.LastUsedTurn <= 2 {
			recent = append(recent, string(e.Key.Kind)+": "+e.Name)
		}
	}
	if len(recent) > 0 {
		sort.Strings(recent)
		parts = append(parts, "Recent entities: "+strings.Join(recent, ", "))
	}

	if len(parts) == 0 {
		return "No active context"
	}
	return strings.Join(parts, " | ")
}
