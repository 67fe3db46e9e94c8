// Package history records finished runs in the local database.
package history

import (
	"time"

	"github.com/ziadkadry99/funcall/internal/conversation"
	"github.com/ziadkadry99/funcall/internal/llm"
)

// Status is the terminal state of a run.
type Status string

const (
	StatusDone   Status = "done"
	StatusFailed Status = "failed"
)

// Run is one recorded conversation.
type Run struct {
	ID            string        `json:"id"`
	StartedAt     time.Time     `json:"started_at"`
	Duration      time.Duration `json:"duration"`
	Backend       string        `json:"backend"`
	Model         string        `json:"model"`
	Input         string        `json:"input"`
	Answer        string        `json:"answer,omitempty"`
	Error         string        `json:"error,omitempty"`
	Status        Status        `json:"status"`
	Requests      int           `json:"requests"`
	FunctionCalls int           `json:"function_calls"`
	InputTokens   int           `json:"input_tokens"`
	OutputTokens  int           `json:"output_tokens"`
	Conversation  []llm.Message `json:"conversation,omitempty"`
}

// NewRun builds the record of a run that started at started and ended with
// res and err. res may be nil.
func NewRun(started time.Time, backend, input string, res *conversation.Result, err error) Run {
	run := Run{
		StartedAt: started,
		Duration:  time.Since(started),
		Backend:   backend,
		Input:     input,
		Status:    StatusDone,
	}
	if res != nil {
		run.Model = res.Model
		run.Answer = res.Answer
		run.Requests = res.Requests
		run.FunctionCalls = res.Turns
		run.InputTokens = res.InputTokens
		run.OutputTokens = res.OutputTokens
		run.Conversation = res.Conversation
	}
	if err != nil {
		run.Status = StatusFailed
		run.Error = err.Error()
	}
	return run
}
