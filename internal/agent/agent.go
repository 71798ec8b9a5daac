// Package agent orchestrates one user turn: it repeatedly asks the
// language model to pick a tool or finalize an answer, executes chosen
// tools through the bridge, folds observations back into the working
// context, and enforces the iteration cap.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fixxit/fixxit/internal/bridge"
	"github.com/fixxit/fixxit/internal/config"
	"github.com/fixxit/fixxit/internal/convo"
	"github.com/fixxit/fixxit/internal/llm"
	. "github.com/fixxit/fixxit/internal/logging"
	"github.com/fixxit/fixxit/internal/registry"
	"github.com/fixxit/fixxit/internal/tokens"
	"github.com/fixxit/fixxit/internal/types"
	"github.com/fixxit/fixxit/internal/validate"
)

// FallbackAnswer is returned when a turn exhausts the iteration cap
// without the model finalizing. The cap is the loop's safety contract
// against unbounded cost on a round-trip-expensive backend.
const FallbackAnswer = "Maximum tool calls reached. Please ask a more specific question."

// DefaultSystemPrompt is the base instruction set for the maintenance
// assistant; config may replace it.
const DefaultSystemPrompt = `You are a helpful AI assistant specializing in machine maintenance and troubleshooting.

You have access to a comprehensive maintenance database through specialized tools. Use these tools to:
- Find machines by location, status, model, or manufacturer
- Look up trouble tickets and their current status
- Check maintenance history and service records
- Search parts inventory and stock levels
- Get troubleshooting steps for fault codes
- Find technician expertise and availability

Key guidelines:
1. Always use the appropriate tool when users ask about specific data
2. Be proactive in suggesting related information that might be helpful
3. Format responses clearly with relevant details highlighted
4. Remember context from previous queries to handle follow-up questions
5. Prioritize urgent issues and safety concerns
6. Provide actionable next steps when possible`

// decisionInstructions is appended to the system prompt every
// iteration; it frames each round as decide-or-finalize.
const decisionInstructions = `

You have access to maintenance database tools. You can either:
1. Call a tool to gather more information
2. Call 'answer_user_query' to provide the final answer

Base your decision on whether you have enough information to answer the user's question. If you need more specific data, call appropriate tools first.`

// Backend is the bridge surface the loop depends on. Satisfied by
// *bridge.Bridge; tests substitute a scripted implementation.
type Backend interface {
	Connect(ctx context.Context) error
	Disconnect()
	IsConnected() bool
	ServerTools() []bridge.ToolInfo
	Call(ctx context.Context, function string, args map[string]any) types.CallResult
}

// Agent drives the decision loop for one conversation. One Agent owns
// one conversation context and one backend session; it is not safe for
// concurrent use.
type Agent struct {
	cfg      config.AgentConfig
	registry *registry.Registry
	backend  Backend
	provider llm.Provider
	convo    *convo.Context

	initialized bool
}

// Status is a point-in-time snapshot of all components, mirroring what
// the /status command prints.
type Status struct {
	Provider        string          `json:"provider"`
	Model           string          `json:"model"`
	BridgeConnected bool            `json:"bridgeConnected"`
	BackendTools    int             `json:"backendTools"`
	Turns           int             `json:"turns"`
	ActiveEntities  int             `json:"activeEntities"`
	CurrentFocus    string          `json:"currentFocus,omitempty"`
	Intent          string          `json:"intent,omitempty"`
	ContextSummary  string          `json:"contextSummary"`
	ContextTokens   int             `json:"contextTokens"`
	Tools           registry.Status `json:"tools"`
}

// New wires an agent from its collaborators. The conversation context
// is created here so its lifetime matches the agent's.
func New(cfg config.AgentConfig, reg *registry.Registry, backend Backend, provider llm.Provider) *Agent {
	if cfg.MaxToolCalls <= 0 {
		cfg.MaxToolCalls = 5
	}
	return &Agent{
		cfg:      cfg,
		registry: reg,
		backend:  backend,
		provider: provider,
		convo: convo.NewContext(convo.Config{
			MaxHistory:     cfg.MaxHistory,
			RetentionTurns: cfg.RetentionTurns,
		}),
	}
}

// Initialize connects the backend session. This is the only operation
// that surfaces a hard error; everything after start-up degrades into
// messages instead.
func (a *Agent) Initialize(ctx context.Context) error {
	if a.provider == nil {
		return fmt.Errorf("no LLM provider configured")
	}
	if err := a.backend.Connect(ctx); err != nil {
		return fmt.Errorf("backend connect: %w", err)
	}

	enabled := a.registry.EnabledNames()
	L_info("agent ready", "provider", a.provider.Name(), "model", a.provider.Model(), "enabled_tools", len(enabled))
	a.initialized = true
	return nil
}

// ProcessUserMessage runs one full turn and always returns a user-facing
// answer; failures become text, never panics or Go errors.
func (a *Agent) ProcessUserMessage(ctx context.Context, input string) string {
	if !a.initialized {
		return "Agent not initialized"
	}
	if err := validate.UserInput(input); err != nil {
		return "Invalid input: " + err.Error()
	}

	run := uuid.NewString()[:8]
	start := time.Now()
	L_info("processing user message", "run", run, "turn", a.convo.Turn()+1, "length", len(input))

	a.convo.AddUserMessage(input)
	L_debug("conversation context", "run", run, "summary", a.convo.Summary())

	answer := a.decisionLoop(ctx, run, input)
	L_info("turn complete", "run", run, "duration", time.Since(start).Round(time.Millisecond))
	return answer
}

// decisionLoop is the bounded decide-then-act cycle. The working
// context starts with just the user message and accumulates one
// observation per tool call; the iteration cap is the only way out
// besides a finalized answer.
func (a *Agent) decisionLoop(ctx context.Context, run, input string) string {
	working := []types.Message{{Role: types.RoleUser, Content: input, Turn: a.convo.Turn()}}
	systemPrompt := a.buildSystemPrompt()

	for iteration := 1; iteration <= a.cfg.MaxToolCalls; iteration++ {
		decision, err := a.provider.Decide(ctx, systemPrompt, working, a.registry.EnabledFunctions())
		if err != nil {
			L_error("model decision failed", "run", run, "iteration", iteration, "error", err)
			answer := "Sorry, I encountered an error: " + err.Error()
			a.convo.AddAssistantMessage(answer)
			return answer
		}
		L_debug("decision", "run", run, "iteration", iteration,
			"tool_calls", len(decision.ToolCalls), "tokens_in", decision.InputTokens, "tokens_out", decision.OutputTokens)

		if !decision.HasToolCalls() {
			// Plain text with no tool selection is an implicit final answer.
			a.convo.AddAssistantMessage(decision.Text)
			return decision.Text
		}

		for _, call := range decision.ToolCalls {
			if call.Name == types.AnswerFunction {
				answer := a.extractAnswer(call)
				a.convo.AddAssistantMessage(answer)
				return answer
			}
			working = append(working, a.executeTool(ctx, run, iteration, call))
		}
	}

	L_warn("iteration cap reached", "run", run, "cap", a.cfg.MaxToolCalls)
	a.convo.AddAssistantMessage(FallbackAnswer)
	return FallbackAnswer
}

// executeTool validates and dispatches one ordinary tool call, returning
// the observation to append to the working context. Validation failures
// never reach the backend.
func (a *Agent) executeTool(ctx context.Context, run string, iteration int, call types.ToolCall) types.Message {
	args := call.ArgumentMap()
	L_info("tool call", "run", run, "iteration", iteration, "tool", call.Name, "args", args)

	var result types.CallResult
	if verr := validate.Check(call.Name, args); verr != nil {
		result = types.Failure(call.Name, "", verr.Error())
	} else {
		result = a.backend.Call(ctx, call.Name, args)
	}

	a.convo.AddToolCall(call.Name, call.Arguments, result)

	if result.OK() {
		return observation(call.Name, result.Payload().JSON())
	}
	return observation(call.Name, "Error: "+result.ErrorMessage())
}

// observation phrases a tool outcome as an assistant-voiced context
// message for the next decision round.
func observation(tool, body string) types.Message {
	return types.Message{
		Role:      types.RoleAssistant,
		Content:   fmt.Sprintf("I called %s and got: %s", tool, body),
		Timestamp: time.Now(),
		ToolName:  tool,
	}
}

// extractAnswer pulls the answer argument off the sentinel finalize
// call.
func (a *Agent) extractAnswer(call types.ToolCall) string {
	answer, _ := call.ArgumentMap()["answer"].(string)
	if answer == "" {
		return "No answer provided"
	}
	return answer
}

// buildSystemPrompt assembles the base prompt, the decide-or-finalize
// instructions, and the current context hints.
func (a *Agent) buildSystemPrompt() string {
	base := a.cfg.SystemPrompt
	if base == "" {
		base = DefaultSystemPrompt
	}
	prompt := base + decisionInstructions

	if hints := a.convo.Hints(); len(hints) > 0 {
		if encoded, err := json.Marshal(hints); err == nil {
			prompt += "\n\nConversation context hints: " + string(encoded)
		}
	}
	return prompt
}

// ResetContext clears the inferred context and entity store. History is
// kept; the turn counter never moves backwards.
func (a *Agent) ResetContext() {
	a.convo.Reset()
	L_info("conversation context reset")
}

// GetHistory returns a copy of the conversation history window.
func (a *Agent) GetHistory() []types.Message {
	return a.convo.Messages()
}

// ReloadTools re-reads the enablement file and recomputes the enabled
// set without restarting.
func (a *Agent) ReloadTools() error {
	if err := a.registry.ReloadConfig(); err != nil {
		return err
	}
	L_info("tools reloaded", "enabled", len(a.registry.EnabledNames()))
	return nil
}

// GetStatus reports the state of every component.
func (a *Agent) GetStatus() Status {
	status := Status{
		Provider:        a.provider.Name(),
		Model:           a.provider.Model(),
		BridgeConnected: a.backend.IsConnected(),
		BackendTools:    len(a.backend.ServerTools()),
		Turns:           a.convo.Turn(),
		ActiveEntities:  a.convo.EntityCount(),
		Intent:          string(a.convo.Intent()),
		ContextSummary:  a.convo.Summary(),
		ContextTokens:   tokens.EstimateMessages(a.convo.Messages()),
		Tools:           a.registry.Status(),
	}
	if focused, ok := a.convo.Focus(); ok {
		status.CurrentFocus = focused.Key.String()
	}
	return status
}

// Shutdown releases the backend session.
func (a *Agent) Shutdown() {
	a.backend.Disconnect()
	L_info("agent shut down")
}
