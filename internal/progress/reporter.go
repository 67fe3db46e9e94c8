// Package progress reports the steps of a run through the logger.
package progress

import (
	"encoding/json"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/samber/lo"

	"github.com/ziadkadry99/funcall/internal/conversation"
	"github.com/ziadkadry99/funcall/internal/llm"
)

// maxSummary caps the argument and result text in Info summaries.
const maxSummary = 200

// Reporter logs function-call summaries at Info and full request and
// response payloads at Debug.
type Reporter struct {
	logger *log.Logger
	turn   int
}

var _ conversation.Observer = (*Reporter)(nil)

// NewReporter returns a Reporter writing to logger.
func NewReporter(logger *log.Logger) *Reporter {
	return &Reporter{logger: logger}
}

func (r *Reporter) OnRequest(req llm.CompletionRequest) {
	r.turn++
	if r.logger.GetLevel() > log.DebugLevel {
		return
	}
	var maxTokens any = "unset"
	if req.MaxTokens != nil {
		maxTokens = *req.MaxTokens
	}
	r.logger.Debug("completion request", "turn", r.turn, "model", req.Model,
		"messages", len(req.Messages), "functions", len(req.Functions), "max_tokens", maxTokens)
	r.logger.Debug("request payload", "json", dump(req))
}

func (r *Reporter) OnResponse(resp *llm.CompletionResponse) {
	if r.logger.GetLevel() > log.DebugLevel {
		return
	}
	r.logger.Debug("completion response", "turn", r.turn, "finish_reason", resp.FinishReason,
		"input_tokens", resp.InputTokens, "output_tokens", resp.OutputTokens)
	r.logger.Debug("response payload", "json", dump(resp.Message))
}

func (r *Reporter) OnFunctionCall(call llm.FunctionCall) {
	r.logger.Info("calling function", "name", call.Name, "arguments", truncate(call.Arguments))
}

func (r *Reporter) OnFunctionResult(name string, content string, err error) {
	if err != nil {
		r.logger.Warn("function failed, reporting error to the model", "name", name, "err", err)
		return
	}
	r.logger.Info("function returned", "name", name, "result", truncate(content))
}

// Finish logs the totals of a run.
func (r *Reporter) Finish(res *conversation.Result) {
	if res == nil {
		return
	}
	r.logger.Info("run finished",
		"model", res.Model,
		"requests", res.Requests,
		"function_calls", res.Turns,
		"input_tokens", res.InputTokens,
		"output_tokens", res.OutputTokens,
		"est_cost_usd", llm.EstimateCost(res.Model, res.InputTokens, res.OutputTokens),
	)
}

func dump(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err.Error()
	}
	return string(data)
}

func truncate(s string) string {
	if utf8.RuneCountInString(s) <= maxSummary {
		return s
	}
	return lo.Substring(s, 0, maxSummary) + "..."
}
