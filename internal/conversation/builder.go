// Package conversation drives one chat: it turns the growing message
// history into completion requests and dispatches the function calls the
// model asks for until it produces an answer.
package conversation

import (
	"github.com/cockroachdb/errors"

	"github.com/ziadkadry99/funcall/internal/config"
	"github.com/ziadkadry99/funcall/internal/llm"
)

// Budgeter computes the completion ceiling for a prompt.
type Budgeter interface {
	MaxCompletionTokens(model string, messages []llm.Message, functions []llm.FunctionSpec) (int, error)
}

// Policy holds the fixed request parameters. Temperature is not part of it:
// every request is sent with temperature 0.
type Policy struct {
	// Model is a model name or config.ModelAuto.
	Model string
	// TopP of zero keeps the service default.
	TopP float64
	Stop []string
	// SkipBudget leaves MaxTokens unset and skips the budget check.
	SkipBudget bool
}

// PolicyFromConfig extracts the request policy from cfg.
func PolicyFromConfig(cfg *config.Config) Policy {
	return Policy{
		Model:      cfg.Model,
		TopP:       cfg.TopP,
		Stop:       cfg.Stop,
		SkipBudget: cfg.SkipBudget,
	}
}

// Builder turns a conversation into a CompletionRequest. It performs no I/O
// and never retains the slices it is given.
type Builder struct {
	policy Policy
	budget Budgeter
}

// NewBuilder returns a Builder applying policy. budget may be nil only when
// policy.SkipBudget is set.
func NewBuilder(policy Policy, budget Budgeter) *Builder {
	return &Builder{policy: policy, budget: budget}
}

// Build returns the request for the next turn of conversation, offering
// every function in functions.
func (b *Builder) Build(conversation []llm.Message, functions []llm.FunctionSpec) (llm.CompletionRequest, error) {
	req := llm.CompletionRequest{
		Model:       b.policy.Model,
		Messages:    cloneMessages(conversation),
		Functions:   append([]llm.FunctionSpec(nil), functions...),
		Temperature: 0,
		TopP:        b.policy.TopP,
		Stop:        append([]string(nil), b.policy.Stop...),
	}

	if b.policy.Model == config.ModelAuto {
		model, maxTokens, err := b.chooseModel(req.Messages, req.Functions)
		if err != nil {
			return llm.CompletionRequest{}, err
		}
		req.Model = model
		if !b.policy.SkipBudget {
			req.MaxTokens = &maxTokens
		}
		return req, nil
	}

	if b.policy.SkipBudget {
		return req, nil
	}
	if b.budget == nil {
		return llm.CompletionRequest{}, errors.New("no token budget calculator configured")
	}
	maxTokens, err := b.budget.MaxCompletionTokens(req.Model, req.Messages, req.Functions)
	if err != nil {
		return llm.CompletionRequest{}, err
	}
	req.MaxTokens = &maxTokens
	return req, nil
}

// chooseModel picks the cheapest known model whose window still fits the
// prompt. When none fits, the last candidate's error is returned.
func (b *Builder) chooseModel(messages []llm.Message, functions []llm.FunctionSpec) (string, int, error) {
	if b.budget == nil {
		return "", 0, errors.New("model auto needs a token budget calculator")
	}
	var lastErr error
	for _, m := range llm.Models() {
		maxTokens, err := b.budget.MaxCompletionTokens(m.Name, messages, functions)
		if err == nil {
			return m.Name, maxTokens, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = errors.New("no models available")
	}
	return "", 0, errors.WithHint(lastErr, "the conversation does not fit any known model")
}

func cloneMessages(messages []llm.Message) []llm.Message {
	out := make([]llm.Message, len(messages))
	for i, m := range messages {
		if m.FunctionCall != nil {
			call := *m.FunctionCall
			m.FunctionCall = &call
		}
		out[i] = m
	}
	return out
}
