package output

import (
	"bytes"
	"context"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"

	"github.com/ziadkadry99/funcall/internal/budget"
	"github.com/ziadkadry99/funcall/internal/config"
	"github.com/ziadkadry99/funcall/internal/conversation"
	"github.com/ziadkadry99/funcall/internal/functions"
	"github.com/ziadkadry99/funcall/internal/llm"
)

func TestAnswerIsVerbatim(t *testing.T) {
	var out, errOut bytes.Buffer
	w := NewWriter(&out, &errOut)

	assert.NoError(t, w.Answer("It is 72 degrees in Boston."))
	assert.NoError(t, w.Answer("line one\nline two\n"))
	assert.Equal(t, "It is 72 degrees in Boston.\nline one\nline two\n", out.String())
	assert.Empty(t, errOut.String())
}

func TestFailPrintsMessageAndHints(t *testing.T) {
	var out, errOut bytes.Buffer
	w := NewWriter(&out, &errOut)

	err := errors.WithHint(config.Errorf("unknown backend %q", "x"), "use openai")
	code := w.Fail(err)

	assert.Equal(t, ExitConfig, code)
	assert.Empty(t, out.String())
	assert.Contains(t, errOut.String(), `Error: unknown backend "x"`)
	assert.Contains(t, errOut.String(), "Hint: use openai")
}

func TestFailNil(t *testing.T) {
	var out, errOut bytes.Buffer
	assert.Equal(t, ExitOK, NewWriter(&out, &errOut).Fail(nil))
	assert.Empty(t, errOut.String())
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"config", config.Errorf("bad"), ExitConfig},
		{"provider spec", &functions.SpecError{Provider: "p", Err: errors.New("exit 1")}, ExitProviderSpec},
		{"wrapped provider spec", errors.Wrap(&functions.SpecError{Provider: "p", Err: errors.New("x")}, "startup"), ExitProviderSpec},
		{"malformed call", errors.Wrap(conversation.ErrMalformedFunctionCall, "f"), ExitMalformedCall},
		{"budget", &budget.BudgetExceededError{Model: "gpt-4", Window: 8192, PromptTokens: 9000}, ExitBudget},
		{"unknown model", errors.Wrapf(llm.ErrUnknownModel, "%q", "x"), ExitBudget},
		{"max turns", errors.Wrap(conversation.ErrMaxTurnsExceeded, "x"), ExitMaxTurns},
		{"completion", errors.Mark(errors.New("503"), conversation.ErrCompletion), ExitCompletion},
		{"interrupted", errors.Wrap(context.Canceled, "function f"), ExitInterrupted},
		{"other", errors.New("boom"), ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCode(tt.err))
		})
	}
}

func TestLevel(t *testing.T) {
	assert.Equal(t, log.WarnLevel, Level(0))
	assert.Equal(t, log.InfoLevel, Level(1))
	assert.Equal(t, log.DebugLevel, Level(2))
	assert.Equal(t, log.DebugLevel, Level(5))
}

func TestNewLoggerFiltersByVerbosity(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, 0)
	logger.Info("hidden")
	logger.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}
