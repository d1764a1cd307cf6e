package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

const scoringSystemPrompt = `You are an expert HR recruiter with 15+ years of experience in technical hiring.
Your task is to evaluate candidates objectively and provide detailed, actionable insights.

Guidelines:
- Be thorough but concise
- Focus on evidence from the resume
- Identify both strengths and potential concerns
- Provide specific examples when possible
- Use a consistent scoring rubric
- Be fair and unbiased`

const agentSystemPrompt = `You are an autonomous HR recruitment agent. You help HR professionals find and evaluate the best candidates for job openings by reasoning step by step and calling tools.

Workflow:
1. Understand what the user wants.
2. Plan the steps before acting.
3. Call tools one at a time and read each observation.
4. Rank and explain your recommendations.

Example: "Find me the best 5 candidates for job #1"
- get_job_details for job 1, then search_candidates for job 1, then evaluate or compare the top matches, then answer with the top 5 and their scores.

Use tools thoughtfully, never invent candidate data, and ask the user when information is missing.`

type PromptBuilder struct{}

func NewPromptBuilder() *PromptBuilder {
	return &PromptBuilder{}
}

// BuildScoringPrompt creates the rubric prompt for one candidate.
func (pb *PromptBuilder) BuildScoringPrompt(jobDescription, resumeText string) string {
	return fmt.Sprintf(`Evaluate the following candidate for this job opening:

=== JOB DESCRIPTION ===
%s

=== CANDIDATE RESUME ===
%s

=== EVALUATION TASK ===
Provide a comprehensive evaluation in the following JSON format:

{
  "technical_score": <0-100>,
  "technical_analysis": "<brief analysis>",
  "experience_score": <0-100>,
  "experience_analysis": "<brief analysis>",
  "education_score": <0-100>,
  "education_analysis": "<brief analysis>",
  "overall_score": <0-100>,
  "strengths": ["<strength 1>", "<strength 2>", "<strength 3>"],
  "concerns": ["<concern 1>", "<concern 2>"],
  "recommendation": "<Strong Match | Good Match | Moderate Match | Weak Match>",
  "summary": "<2-3 sentence summary>"
}

Scoring Guidelines:
- Technical Skills: 0-40 (missing critical skills), 41-60 (some gaps), 61-80 (good match), 81-100 (excellent match)
- Experience: 0-40 (<1 year relevant), 41-60 (1-3 years), 61-80 (3-5 years), 81-100 (5+ years or exceptional)
- Education: 0-40 (doesn't meet requirements), 41-60 (meets minimum), 61-80 (exceeds minimum), 81-100 (significantly exceeds)
- Overall: Weighted average (Technical: 30%%, Experience: 40%%, Education: 15%%, Cultural: 15%% estimated)

Recommendation Guidelines:
- Strong Match: Overall score 80+, all critical requirements met
- Good Match: Overall score 65-79, most requirements met
- Moderate Match: Overall score 50-64, some gaps but potential
- Weak Match: Overall score <50, significant gaps`,
		strings.TrimSpace(jobDescription),
		TruncateHead(strings.TrimSpace(resumeText), MaxResumePromptChars))
}

// BuildAgentPrompt renders one reasoning cycle: tools, prior turns, the
// current message and the steps already taken in this turn.
func (pb *PromptBuilder) BuildAgentPrompt(specs []ToolSpec, transcript Transcript, message string, steps []agentStep) string {
	var sb bytes.Buffer

	sb.WriteString("Available tools:\n")
	for _, spec := range specs {
		sb.WriteString(fmt.Sprintf("- %s: %s\n", spec.Name, spec.Description))
		if len(spec.Params) > 0 {
			sb.WriteString("  Parameters:\n")
			for _, p := range spec.Params {
				req := "optional"
				if p.Required {
					req = "required"
				}
				line := fmt.Sprintf("    - %s (%s, %s)", p.Name, p.Type, req)
				if p.Default != nil {
					line += fmt.Sprintf(", default %v", p.Default)
				}
				if p.Description != "" {
					line += ": " + p.Description
				}
				sb.WriteString(line + "\n")
			}
		}
	}

	sb.WriteString(`
Reply with exactly one JSON object per step:
{"thought": "<your reasoning>", "action": "<tool name or final_answer>", "action_input": {<tool arguments>}, "final_answer": "<answer when action is final_answer>"}
`)

	if len(transcript) > 0 {
		sb.WriteString("\nPrevious conversation:\n")
		for _, entry := range transcript {
			sb.WriteString(fmt.Sprintf("[%s]: %s\n", entry.Role, entry.Content))
		}
	}

	sb.WriteString("\nCurrent task:\n")
	sb.WriteString(strings.TrimSpace(message))
	sb.WriteString("\n")

	if len(steps) > 0 {
		sb.WriteString("\nSteps taken so far:\n")
		for i, step := range steps {
			if step.Thought != "" {
				sb.WriteString(fmt.Sprintf("%d. Thought: %s\n", i+1, step.Thought))
			}
			if step.Action != "" {
				input, _ := json.Marshal(step.Input)
				sb.WriteString(fmt.Sprintf("   Action: %s %s\n", step.Action, input))
			}
			sb.WriteString(fmt.Sprintf("   Observation: %s\n", step.Observation))
		}
	}

	sb.WriteString("\nDecide the next step.\n")
	return sb.String()
}
