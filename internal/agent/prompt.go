package agent

import (
	"fmt"
	"strings"
)

// generateSystemPrompt constructs the instruction set the model sees on every
// step of a run.
func generateSystemPrompt() string {
	basePrompt := `You are the mind of 'pagepilot', an autonomous web navigation agent.
Your goal is to complete the user's instruction by driving a real browser one step at a time.
On every step you receive the current page state and must respond with a single JSON object describing your next actions.`

	return basePrompt + actionListPrompt() + closingPrompt()
}

// actionListPrompt returns the static list of available actions.
func actionListPrompt() string {
	return `

Available action types:

    - navigate: Go to a URL. (target: the URL)
    - click: Click an element. (target: the CSS selector shown for the element)
    - type: Type text into a field. (target: selector, value: the text)
    - scroll: Scroll the page. (target: "up" or "down")
    - wait: Wait for an element to become visible. (target: selector)
    - done: No browser action; use together with "done": true when finished.

Only use selectors that appear in the page state. If nothing on the current
page helps, navigate or scroll to find what you need.`
}

func closingPrompt() string {
	return `

Respond with a single JSON object and nothing else:
{"thought": "<short reasoning>", "done": <true when the instruction is complete>, "actions": [{"type": "...", "target": "...", "value": "..."}]}
When you set "done": true the actions list may be empty.`
}

// generateUserPrompt renders the instruction, the recent step history and the
// current page snapshot into the per-step prompt.
func generateUserPrompt(instruction, url, elements string, history []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Instruction: %s\n\n", instruction)
	if len(history) > 0 {
		b.WriteString("Previous steps:\n")
		for _, h := range history {
			b.WriteString(h)
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "Current URL: %s\n\nInteractive elements:\n%s\n\nDecide the next actions. Respond with a single JSON object.", url, elements)
	return b.String()
}

// summarizeStep condenses an executed step into one history line for the
// sliding window fed back to the model.
func summarizeStep(step StepResult) string {
	var parts []string
	for _, ar := range step.Actions {
		desc := ar.Action.Type
		if ar.Action.Target != "" {
			desc += " " + ar.Action.Target
		}
		if ar.Success {
			desc += " (ok)"
		} else {
			desc += fmt.Sprintf(" (failed: %s)", ar.Error)
		}
		parts = append(parts, desc)
	}
	if len(parts) == 0 {
		parts = append(parts, "no actions")
	}
	return fmt.Sprintf("step %d: %s", step.Step, strings.Join(parts, "; "))
}
