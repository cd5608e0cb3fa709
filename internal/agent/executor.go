package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dkovalq/pagepilot-cli/internal/browser"
	"github.com/dkovalq/pagepilot-cli/internal/config"
	"github.com/dkovalq/pagepilot-cli/internal/llmclient"
)

// Browser is the slice of the session the executor drives. *browser.Session
// satisfies it.
type Browser interface {
	CurrentURL(ctx context.Context) (string, error)
	Navigate(ctx context.Context, url string) error
	Click(ctx context.Context, selector string) error
	Type(ctx context.Context, selector, text string) error
	Scroll(ctx context.Context, dy int) error
	WaitVisible(ctx context.Context, selector string) error
	Snapshot(ctx context.Context) ([]browser.Element, error)
}

// scrollStep is the pixel delta applied per scroll action.
const scrollStep = 600

// defaultWaitTimeout bounds a "wait" action so a never-appearing element
// cannot stall the whole step budget.
const defaultWaitTimeout = 10 * time.Second

// Executor runs the think-act loop: snapshot the page, ask the model for the
// next actions, execute them, repeat until done or the step budget runs out.
type Executor struct {
	cfg     config.AgentConfig
	llm     llmclient.Client
	browser Browser
	logger  *zap.Logger
}

// NewExecutor wires the executor. The llm client and browser session are
// constructed by the caller so the shell controls their lifetimes.
func NewExecutor(cfg config.AgentConfig, llm llmclient.Client, b Browser, logger *zap.Logger) *Executor {
	return &Executor{
		cfg:     cfg,
		llm:     llm,
		browser: b,
		logger:  logger.Named("agent"),
	}
}

// Run executes one natural-language instruction. The returned RunResult is
// non-nil whenever at least one step completed, even if a later step failed.
func (e *Executor) Run(ctx context.Context, instruction string) (*RunResult, error) {
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		return nil, newError(ErrCodeInvalidInstruction, "run", fmt.Errorf("empty instruction"))
	}

	result := &RunResult{}
	systemPrompt := generateSystemPrompt()
	var history []string

	for step := 1; step <= e.cfg.MaxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return result, newError(ErrCodeBrowserFailure, "run", err)
		}

		d, err := e.decide(ctx, instruction, history, systemPrompt)
		if err != nil {
			return result, err
		}

		actions := d.Actions
		if len(actions) > e.cfg.MaxActionsPerStep {
			e.logger.Warn("Model proposed too many actions, truncating",
				zap.Int("proposed", len(actions)),
				zap.Int("limit", e.cfg.MaxActionsPerStep))
			actions = actions[:e.cfg.MaxActionsPerStep]
		}

		stepResult := StepResult{Step: step, Thought: d.Thought, Done: d.Done}
		for _, action := range actions {
			ar := e.execute(ctx, action)
			stepResult.Actions = append(stepResult.Actions, ar)
			result.Actions = append(result.Actions, ar)
		}
		result.Steps = append(result.Steps, stepResult)
		result.TotalSteps = len(result.Steps)
		history = appendWindow(history, summarizeStep(stepResult), e.cfg.MemoryWindow)

		if d.Done {
			result.GoalAchieved = true
			return result, nil
		}
	}

	e.logger.Info("Step budget exhausted without a done signal",
		zap.Int("max_steps", e.cfg.MaxSteps))
	return result, nil
}

// decide snapshots the page, builds the per-step prompt and asks the model
// for its next decision.
func (e *Executor) decide(ctx context.Context, instruction string, history []string, systemPrompt string) (decision, error) {
	url, err := e.browser.CurrentURL(ctx)
	if err != nil {
		return decision{}, newError(ErrCodeBrowserFailure, "snapshot", err)
	}
	elements, err := e.browser.Snapshot(ctx)
	if err != nil {
		return decision{}, newError(ErrCodeBrowserFailure, "snapshot", err)
	}
	encoded := browser.EncodeElements(elements, e.cfg.ElementFormat)

	reqCtx := ctx
	if e.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, e.cfg.RequestTimeout)
		defer cancel()
	}
	raw, err := e.llm.Generate(reqCtx, llmclient.GenerationRequest{
		SystemPrompt: systemPrompt,
		UserPrompt:   generateUserPrompt(instruction, url, encoded, history),
		Temperature:  e.cfg.Temperature,
		ForceJSON:    true,
	})
	if err != nil {
		return decision{}, newError(ErrCodeModelFailure, "generate", err)
	}

	d, err := parseDecision(raw)
	if err != nil {
		e.logger.Warn("Failed to parse model decision",
			zap.String("raw_response", raw),
			zap.Error(err))
		return decision{}, newError(ErrCodeMalformedResponse, "parse", err)
	}
	return d, nil
}

// execute performs a single action. Failures are recorded, not returned: the
// model sees them in the next step's history and can route around them.
func (e *Executor) execute(ctx context.Context, action ActionDescriptor) ActionResult {
	err := e.dispatch(ctx, action)
	if err != nil {
		e.logger.Debug("Action failed",
			zap.String("type", action.Type),
			zap.String("target", action.Target),
			zap.Error(err))
		return ActionResult{Action: action, Success: false, Error: err.Error()}
	}
	return ActionResult{Action: action, Success: true}
}

func (e *Executor) dispatch(ctx context.Context, action ActionDescriptor) error {
	switch ActionType(action.Type) {
	case ActionNavigate:
		if action.Target == "" {
			return fmt.Errorf("navigate requires a target URL")
		}
		return e.browser.Navigate(ctx, action.Target)
	case ActionClick:
		if action.Target == "" {
			return fmt.Errorf("click requires a target selector")
		}
		return e.browser.Click(ctx, action.Target)
	case ActionTypeText:
		if action.Target == "" {
			return fmt.Errorf("type requires a target selector")
		}
		return e.browser.Type(ctx, action.Target, action.Value)
	case ActionScroll:
		dy := scrollStep
		if action.Target == "up" {
			dy = -scrollStep
		}
		return e.browser.Scroll(ctx, dy)
	case ActionWait:
		if action.Target == "" {
			return fmt.Errorf("wait requires a target selector")
		}
		waitCtx, cancel := context.WithTimeout(ctx, defaultWaitTimeout)
		defer cancel()
		return e.browser.WaitVisible(waitCtx, action.Target)
	case ActionDone:
		return nil
	default:
		return fmt.Errorf("unknown action type %q", action.Type)
	}
}

// appendWindow appends a summary and trims the history to the last n entries.
func appendWindow(history []string, summary string, n int) []string {
	history = append(history, summary)
	if n > 0 && len(history) > n {
		history = history[len(history)-n:]
	}
	return history
}
