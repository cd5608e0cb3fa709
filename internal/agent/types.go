package agent

import "context"

// ActionType identifies one entry of the executor's action vocabulary. Using
// a custom type ensures that only predefined constants can be used where an
// ActionType is expected.
type ActionType string

const (
	ActionNavigate ActionType = "navigate"
	ActionClick    ActionType = "click"
	ActionTypeText ActionType = "type"
	ActionScroll   ActionType = "scroll"
	ActionWait     ActionType = "wait"
	ActionDone     ActionType = "done"
)

// ActionDescriptor is a single browser action decided by the model. It is
// immutable once decoded; results are carried separately in ActionResult.
type ActionDescriptor struct {
	// Type is one of the vocabulary constants above.
	Type string `json:"type"`
	// Target is a CSS selector for element actions, a URL for navigate, or
	// a direction ("up"/"down") for scroll.
	Target string `json:"target,omitempty"`
	// Value carries typed text for "type" and a duration hint for "wait".
	Value string `json:"value,omitempty"`
}

// ActionResult pairs an executed action with its outcome.
type ActionResult struct {
	Action  ActionDescriptor `json:"action"`
	Success bool             `json:"success"`
	// Error holds the failure message when Success is false.
	Error string `json:"error,omitempty"`
}

// StepResult is one think-act cycle. Step numbering is 1-based.
type StepResult struct {
	Step    int            `json:"step"`
	Thought string         `json:"thought,omitempty"`
	Actions []ActionResult `json:"actions"`
	// Done reports that the model declared the goal achieved in this step.
	Done bool `json:"done"`
}

// RunResult is the full outcome of one instruction.
type RunResult struct {
	// Actions is the flattened list across all steps, kept alongside Steps
	// so single-step reports can render without step headers.
	Actions      []ActionResult `json:"actions"`
	Steps        []StepResult   `json:"steps"`
	GoalAchieved bool           `json:"goal_achieved"`
	TotalSteps   int            `json:"total_steps"`
}

// decision is the JSON object the model must answer with on every step.
type decision struct {
	Thought string             `json:"thought"`
	Done    bool               `json:"done"`
	Actions []ActionDescriptor `json:"actions"`
}

// Runner executes a natural-language instruction against the browser.
type Runner interface {
	Run(ctx context.Context, instruction string) (*RunResult, error)
}
