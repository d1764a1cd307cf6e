package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"alfredoptarigan/hr-agent/internal/apperr"
	"alfredoptarigan/hr-agent/internal/models"
)

const (
	DefaultMaxIterations = 10

	// MaxTraceOutputChars bounds each tool output kept in the reasoning trace.
	MaxTraceOutputChars = 500

	maxObservationChars = 4000
	agentTemperature    = 0.3
	finalAnswerAction   = "final_answer"
)

type TranscriptEntry struct {
	Role    models.MessageRole
	Content string
}

// Transcript is the conversation memory of one session, oldest first.
type Transcript []TranscriptEntry

// Append returns a copy of t with one more entry.
func (t Transcript) Append(role models.MessageRole, content string) Transcript {
	next := make(Transcript, len(t), len(t)+1)
	copy(next, t)
	return append(next, TranscriptEntry{Role: role, Content: content})
}

type agentStep struct {
	Thought     string
	Action      string
	Input       map[string]any
	Observation string
}

// TurnResult is the outcome of one agent turn. Trace has one entry per tool
// invocation; ToolsUsed is the same list deduplicated.
type TurnResult struct {
	Response  string
	Trace     []models.ReasoningStep
	ToolsUsed []string
	Success   bool
	Err       error
}

type agentReply struct {
	Thought     string         `json:"thought"`
	Action      string         `json:"action"`
	ActionInput map[string]any `json:"action_input"`
	FinalAnswer string         `json:"final_answer"`
}

// Orchestrator runs the bounded reason/act loop. It holds no session state:
// a turn depends only on the transcript, the message and what tools return.
type Orchestrator struct {
	llm           LLMProvider
	tools         ToolInvoker
	promptBuilder *PromptBuilder
	maxIterations int
	log           *zap.Logger
}

func NewOrchestrator(llm LLMProvider, tools ToolInvoker, maxIterations int, log *zap.Logger) *Orchestrator {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}

	return &Orchestrator{
		llm:           llm,
		tools:         tools,
		promptBuilder: NewPromptBuilder(),
		maxIterations: maxIterations,
		log:           log,
	}
}

// Run executes one turn. It never returns an error or panics; failures are
// reported through TurnResult.Success and TurnResult.Err.
func (o *Orchestrator) Run(ctx context.Context, transcript Transcript, message string) (result TurnResult) {
	var steps []agentStep
	var lastThought string

	defer func() {
		if p := recover(); p != nil {
			o.log.Error("💥 agent turn panicked", zap.Any("panic", p))
			err := fmt.Errorf("agent turn failed unexpectedly: %v", p)
			result.Response = "I encountered an error: " + err.Error()
			result.Success = false
			result.Err = err
		}
	}()

	seenTools := make(map[string]bool)

	for iteration := 1; iteration <= o.maxIterations; iteration++ {
		prompt := o.promptBuilder.BuildAgentPrompt(o.tools.Specs(), transcript, message, steps)

		raw, err := o.llm.GenerateJSON(ctx, CompletionRequest{
			System:      agentSystemPrompt,
			Prompt:      prompt,
			Temperature: agentTemperature,
		})
		if err != nil {
			o.log.Error("❌ reasoning call failed", zap.Int("iteration", iteration), zap.Error(err))
			result.Response = "I encountered an error: " + err.Error()
			result.Err = err
			return result
		}

		reply, err := parseAgentReply(raw)
		if err != nil {
			o.log.Warn("⚠️ unparseable agent reply",
				zap.Int("iteration", iteration),
				zap.String("reply", TruncateForLog(raw, 300)),
			)
			steps = append(steps, agentStep{
				Observation: fmt.Sprintf("Your reply could not be parsed (%v). Reply with exactly one JSON object using the keys thought, action, action_input and final_answer.", err),
			})
			continue
		}

		if reply.Thought != "" {
			lastThought = reply.Thought
		}

		action := strings.ToLower(strings.TrimSpace(reply.Action))
		if action == finalAnswerAction || (action == "" && reply.FinalAnswer != "") {
			answer := strings.TrimSpace(reply.FinalAnswer)
			if answer == "" {
				answer = lastThought
			}
			result.Response = answer
			result.Success = true
			o.log.Info("✅ Agent turn completed",
				zap.Int("iterations", iteration),
				zap.Int("tool_calls", len(result.Trace)),
			)
			return result
		}

		spec, ok := o.tools.Spec(action)
		if !ok {
			steps = append(steps, agentStep{
				Thought:     reply.Thought,
				Action:      reply.Action,
				Input:       reply.ActionInput,
				Observation: fmt.Sprintf("%q is not a valid tool. Use one of: %s, or %s.", reply.Action, toolNames(o.tools.Specs()), finalAnswerAction),
			})
			continue
		}

		input := reply.ActionInput
		if input == nil {
			input = map[string]any{}
		}

		output, err := o.tools.Invoke(ctx, string(spec.Name), input)
		if err != nil {
			output = errorObservation(err)
		}

		result.Trace = append(result.Trace, models.ReasoningStep{
			Tool:   string(spec.Name),
			Input:  input,
			Output: TruncateHead(output, MaxTraceOutputChars),
		})
		if !seenTools[string(spec.Name)] {
			seenTools[string(spec.Name)] = true
			result.ToolsUsed = append(result.ToolsUsed, string(spec.Name))
		}

		steps = append(steps, agentStep{
			Thought:     reply.Thought,
			Action:      string(spec.Name),
			Input:       input,
			Observation: TruncateForLog(output, maxObservationChars),
		})
	}

	o.log.Warn("⚠️ agent hit iteration limit", zap.Int("max_iterations", o.maxIterations))

	result.Response = lastThought
	if result.Response == "" {
		result.Response = "I could not finish this request within the allowed number of steps."
	}
	result.Err = apperr.ErrIterationLimit
	return result
}

func parseAgentReply(raw string) (*agentReply, error) {
	var reply agentReply
	if err := json.Unmarshal([]byte(extractJSON(raw)), &reply); err != nil {
		return nil, err
	}
	if strings.TrimSpace(reply.Action) == "" && strings.TrimSpace(reply.FinalAnswer) == "" {
		return nil, fmt.Errorf("reply has neither an action nor a final answer")
	}
	return &reply, nil
}

func errorObservation(err error) string {
	b, _ := json.Marshal(map[string]string{"error": err.Error()})
	return string(b)
}

func toolNames(specs []ToolSpec) string {
	names := make([]string, 0, len(specs))
	for _, spec := range specs {
		names = append(names, string(spec.Name))
	}
	return strings.Join(names, ", ")
}
