package conversation

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/ziadkadry99/funcall/internal/functions"
	"github.com/ziadkadry99/funcall/internal/llm"
)

var (
	// ErrEmptyInput is returned when the user message is blank.
	ErrEmptyInput = errors.New("empty input")
	// ErrMalformedFunctionCall is returned when the model requests a
	// function with arguments that are not valid JSON.
	ErrMalformedFunctionCall = errors.New("malformed function call")
	// ErrMaxTurnsExceeded is returned when the model keeps requesting
	// functions past the turn limit.
	ErrMaxTurnsExceeded = errors.New("maximum function-call turns exceeded")
	// ErrCompletion marks failures of the completion client.
	ErrCompletion = errors.New("completion request failed")
)

// DefaultMaxTurns is the dispatch limit used when none is configured.
const DefaultMaxTurns = 8

// Invoker executes a named function with JSON arguments.
type Invoker interface {
	Invoke(ctx context.Context, name string, arguments json.RawMessage) (json.RawMessage, error)
}

// Observer receives the events of a run. Implementations must not retain
// or modify the values they are given.
type Observer interface {
	OnRequest(req llm.CompletionRequest)
	OnResponse(resp *llm.CompletionResponse)
	OnFunctionCall(call llm.FunctionCall)
	// OnFunctionResult reports the content appended for a call. err is the
	// invocation error that content describes, if any.
	OnFunctionResult(name string, content string, err error)
}

type nopObserver struct{}

func (nopObserver) OnRequest(llm.CompletionRequest)        {}
func (nopObserver) OnResponse(*llm.CompletionResponse)     {}
func (nopObserver) OnFunctionCall(llm.FunctionCall)        {}
func (nopObserver) OnFunctionResult(string, string, error) {}

// Result is the outcome of a run.
type Result struct {
	Answer       string
	Conversation []llm.Message
	// Model is the model of the last request.
	Model string
	// Turns counts dispatched function calls.
	Turns        int
	Requests     int
	InputTokens  int
	OutputTokens int
}

// Orchestrator runs the completion loop for one conversation.
type Orchestrator struct {
	client       llm.Provider
	invoker      Invoker
	builder      *Builder
	functions    []llm.FunctionSpec
	systemPrompt string
	maxTurns     int
	observer     Observer
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSystemPrompt seeds every conversation with a system message. An empty
// prompt omits it.
func WithSystemPrompt(prompt string) Option {
	return func(o *Orchestrator) { o.systemPrompt = prompt }
}

// WithMaxTurns bounds the number of function calls dispatched per run.
func WithMaxTurns(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxTurns = n
		}
	}
}

// WithObserver registers run event hooks.
func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// NewOrchestrator returns an Orchestrator that offers specs on every request
// and dispatches function calls to invoker.
func NewOrchestrator(client llm.Provider, invoker Invoker, builder *Builder, specs []llm.FunctionSpec, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		client:    client,
		invoker:   invoker,
		builder:   builder,
		functions: specs,
		maxTurns:  DefaultMaxTurns,
		observer:  nopObserver{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run answers input. It alternates completion requests and function
// dispatches until the model replies without a function call. The returned
// Result is non-nil even on failure and holds the conversation up to the
// point of failure.
func (o *Orchestrator) Run(ctx context.Context, input string) (*Result, error) {
	res := &Result{}

	input = strings.TrimSpace(input)
	if input == "" {
		return res, errors.WithHint(ErrEmptyInput, "pipe a question on stdin, e.g. echo 'What is the weather in Boston?' | funcall")
	}

	conv := make([]llm.Message, 0, 4)
	if o.systemPrompt != "" {
		conv = append(conv, llm.Message{Role: llm.RoleSystem, Content: o.systemPrompt})
	}
	conv = append(conv, llm.Message{Role: llm.RoleUser, Content: input})
	res.Conversation = conv

	for {
		req, err := o.builder.Build(conv, o.functions)
		if err != nil {
			return res, err
		}
		res.Model = req.Model

		o.observer.OnRequest(req)
		resp, err := o.client.Complete(ctx, req)
		res.Requests++
		if err != nil {
			return res, errors.Mark(errors.Wrapf(err, "%s", ErrCompletion), ErrCompletion)
		}
		o.observer.OnResponse(resp)
		res.InputTokens += resp.InputTokens
		res.OutputTokens += resp.OutputTokens

		msg := resp.Message
		msg.Role = llm.RoleAssistant
		if msg.FunctionCall != nil {
			call := *msg.FunctionCall
			msg.FunctionCall = &call
			msg.Content = ""
		}
		conv = append(conv, msg)
		res.Conversation = conv

		if msg.FunctionCall == nil {
			res.Answer = msg.Content
			return res, nil
		}

		if res.Turns >= o.maxTurns {
			return res, errors.WithHintf(
				errors.Wrapf(ErrMaxTurnsExceeded, "model requested %s after %d function calls", msg.FunctionCall.Name, res.Turns),
				"raise max_turns (currently %d) if the task needs more function calls", o.maxTurns,
			)
		}

		reply, err := o.dispatch(ctx, *msg.FunctionCall)
		if err != nil {
			return res, err
		}
		res.Turns++
		conv = append(conv, reply)
		res.Conversation = conv
	}
}

// dispatch runs one function call and returns the function message to
// append. Invocation failures become an error payload for the model; only
// malformed calls and cancellation abort the run.
func (o *Orchestrator) dispatch(ctx context.Context, call llm.FunctionCall) (llm.Message, error) {
	if call.Name == "" {
		return llm.Message{}, errors.Wrapf(ErrMalformedFunctionCall, "function call without a name, arguments %q", call.Arguments)
	}
	var args bytes.Buffer
	if err := json.Compact(&args, []byte(call.Arguments)); err != nil {
		return llm.Message{}, errors.WithHint(
			errors.Wrapf(ErrMalformedFunctionCall, "function %s: arguments %q: %v", call.Name, call.Arguments, err),
			"the model produced arguments that are not JSON; rephrasing the question may help",
		)
	}

	o.observer.OnFunctionCall(llm.FunctionCall{Name: call.Name, Arguments: args.String()})

	result, err := o.invoker.Invoke(ctx, call.Name, json.RawMessage(args.Bytes()))
	if ctxErr := ctx.Err(); ctxErr != nil {
		return llm.Message{}, errors.Wrapf(ctxErr, "function %s", call.Name)
	}

	var content string
	if err != nil {
		var execErr *functions.ExecutionError
		if !errors.As(err, &execErr) {
			return llm.Message{}, err
		}
		content = errorPayload(err)
	} else {
		content = compact(result)
	}

	o.observer.OnFunctionResult(call.Name, content, err)
	return llm.Message{Role: llm.RoleFunction, Name: call.Name, Content: content}, nil
}

// errorPayload encodes an invocation failure as the function's result.
func errorPayload(err error) string {
	data, mErr := json.Marshal(map[string]string{"error": err.Error()})
	if mErr != nil {
		return `{"error":"function failed"}`
	}
	return string(data)
}

// compact strips insignificant whitespace from a JSON result, keeping the
// text as-is when it is not valid JSON.
func compact(result json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, result); err != nil {
		return string(result)
	}
	return buf.String()
}
