// Package output writes the final answer and failure reports of a run.
package output

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/ziadkadry99/funcall/internal/budget"
	"github.com/ziadkadry99/funcall/internal/config"
	"github.com/ziadkadry99/funcall/internal/conversation"
	"github.com/ziadkadry99/funcall/internal/functions"
	"github.com/ziadkadry99/funcall/internal/llm"
)

// Exit codes by failure class.
const (
	ExitOK            = 0
	ExitFailure       = 1
	ExitConfig        = 2
	ExitProviderSpec  = 3
	ExitMalformedCall = 4
	ExitBudget        = 5
	ExitMaxTurns      = 6
	ExitCompletion    = 7
	ExitInterrupted   = 130
)

// Writer prints answers to out and failures to errOut.
type Writer struct {
	out    io.Writer
	errOut io.Writer
}

// NewWriter returns a Writer.
func NewWriter(out, errOut io.Writer) *Writer {
	return &Writer{out: out, errOut: errOut}
}

// Answer prints text verbatim, adding a trailing newline if it has none.
func (w *Writer) Answer(text string) error {
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	_, err := io.WriteString(w.out, text)
	return err
}

// Fail reports err and returns the process exit code for it.
func (w *Writer) Fail(err error) int {
	if err == nil {
		return ExitOK
	}
	fmt.Fprintf(w.errOut, "Error: %v\n", err)
	for _, hint := range errors.GetAllHints(err) {
		fmt.Fprintf(w.errOut, "Hint: %s\n", hint)
	}
	return ExitCode(err)
}

// ExitCode maps err to its failure class.
func ExitCode(err error) int {
	var specErr *functions.SpecError
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, context.Canceled):
		return ExitInterrupted
	case errors.Is(err, config.ErrConfig):
		return ExitConfig
	case errors.As(err, &specErr):
		return ExitProviderSpec
	case errors.Is(err, conversation.ErrMalformedFunctionCall):
		return ExitMalformedCall
	case errors.Is(err, budget.ErrBudgetExceeded), errors.Is(err, llm.ErrUnknownModel):
		return ExitBudget
	case errors.Is(err, conversation.ErrMaxTurnsExceeded):
		return ExitMaxTurns
	case errors.Is(err, conversation.ErrCompletion):
		return ExitCompletion
	default:
		return ExitFailure
	}
}
