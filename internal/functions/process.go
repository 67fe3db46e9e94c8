package functions

import (
	"bytes"
	"context"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
)

// waitDelay bounds how long a killed provider may keep its pipes open.
const waitDelay = 500 * time.Millisecond

// maxStderr is how much provider stderr is kept for error messages.
const maxStderr = 2048

// run executes one provider process: spawn, feed stdin (nil means no
// input), close stdin, drain stdout and stderr, then wait. exec.Cmd owns the
// pipes, so they and the process handle are released on every return path,
// including start failures and context expiry.
func run(ctx context.Context, command string, args []string, stdin []byte) ([]byte, error) {
	cmd := exec.CommandContext(ctx, command, args...)
	cmd.WaitDelay = waitDelay

	if stdin != nil {
		cmd.Stdin = bytes.NewReader(stdin)
	}
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, errors.Wrapf(ctxErr, "running %s", command)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, errors.Newf("%s exited with status %d%s", command, exitErr.ExitCode(), stderrSuffix(&stderr))
		}
		return nil, errors.Wrapf(err, "running %s", command)
	}
	return stdout.Bytes(), nil
}

func stderrSuffix(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, maxStderr))
	msg := strings.TrimSpace(string(data))
	if msg == "" {
		return ""
	}
	return ": " + msg
}
