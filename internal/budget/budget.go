// Package budget estimates how many prompt tokens a conversation costs and
// derives the completion ceiling that still fits the model's context window.
package budget

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/cockroachdb/errors"

	"github.com/ziadkadry99/funcall/internal/llm"
)

// ErrBudgetExceeded marks conversations that no longer fit the context window.
var ErrBudgetExceeded = errors.New("token budget exceeded")

// BudgetExceededError reports a prompt that leaves no room for a completion.
type BudgetExceededError struct {
	Model        string
	Window       int
	PromptTokens int
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("conversation needs %d prompt tokens but %s has a context window of %d",
		e.PromptTokens, e.Model, e.Window)
}

// Is lets errors.Is match ErrBudgetExceeded.
func (e *BudgetExceededError) Is(target error) bool {
	return target == ErrBudgetExceeded
}

// Overhead holds the framing tokens the completion service adds around
// message fields.
type Overhead struct {
	// PerMessage is charged once for every message.
	PerMessage int
	// PerName is charged for every message that carries a name.
	PerName int
	// Reply primes the assistant reply and is charged once per request.
	Reply int
}

// DefaultOverhead matches the chat models' published metering.
func DefaultOverhead() Overhead {
	return Overhead{PerMessage: 3, PerName: 1, Reply: 3}
}

// Calculator computes completion ceilings.
type Calculator struct {
	tokenizer    Tokenizer
	overhead     Overhead
	allowUnknown bool
	logger       *log.Logger
}

// Option configures a Calculator.
type Option func(*Calculator)

// WithOverhead replaces the default framing overhead.
func WithOverhead(o Overhead) Option {
	return func(c *Calculator) { c.overhead = o }
}

// WithUnknownModels makes unknown models fall back to
// llm.DefaultContextWindow instead of failing.
func WithUnknownModels(allow bool) Option {
	return func(c *Calculator) { c.allowUnknown = allow }
}

// WithLogger sets the logger used for fallback warnings.
func WithLogger(l *log.Logger) Option {
	return func(c *Calculator) { c.logger = l }
}

// NewCalculator creates a Calculator counting tokens with tokenizer.
func NewCalculator(tokenizer Tokenizer, opts ...Option) *Calculator {
	c := &Calculator{
		tokenizer: tokenizer,
		overhead:  DefaultOverhead(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.tokenizer == nil {
		c.tokenizer = HeuristicCounter{}
	}
	if c.logger == nil {
		c.logger = log.New(io.Discard)
	}
	return c
}

// PromptTokens returns the estimated prompt cost of messages and functions,
// framing overhead included.
func (c *Calculator) PromptTokens(model string, messages []llm.Message, functions []llm.FunctionSpec) int {
	count := func(text string) int { return c.tokenizer.CountTokens(model, text) }

	total := c.overhead.Reply
	for _, m := range messages {
		total += c.overhead.PerMessage
		total += count(string(m.Role))
		total += count(m.Content)
		if m.Name != "" {
			total += count(m.Name) + c.overhead.PerName
		}
		if m.FunctionCall != nil {
			total += count(m.FunctionCall.Name)
			total += count(m.FunctionCall.Arguments)
		}
	}

	for _, f := range functions {
		data, err := json.Marshal(f)
		if err != nil {
			// Parameters that cannot be marshalled are still metered by text.
			data = []byte(f.Name + f.Description + fmt.Sprint(f.Parameters))
		}
		total += count(string(data))
	}
	return total
}

// MaxCompletionTokens returns the model's context window minus the prompt
// cost, capped at the model's output limit. The uncapped remainder must be
// at least 1; anything smaller is reported as a *BudgetExceededError.
func (c *Calculator) MaxCompletionTokens(model string, messages []llm.Message, functions []llm.FunctionSpec) (int, error) {
	window, err := llm.ContextWindow(model)
	if err != nil {
		if !c.allowUnknown {
			return 0, errors.WithHint(err, "set model to a known model or enable allow_unknown_models")
		}
		c.logger.Warn("unknown model, assuming default context window", "model", model, "window", window)
	}
	// Unknown models fall back to the default window as their cap too.
	maxOutput, _ := llm.MaxOutputTokens(model)

	prompt := c.PromptTokens(model, messages, functions)
	remaining := window - prompt
	if remaining < 1 {
		return 0, &BudgetExceededError{Model: model, Window: window, PromptTokens: prompt}
	}
	return min(remaining, maxOutput), nil
}
