package diff

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"hintgraph/tree"
)

// DefaultTimeout bounds one external diff invocation.
const DefaultTimeout = 10 * time.Second

// ToolError reports a failed external diff invocation. The comparison is
// lost; callers must not substitute a default distance.
type ToolError struct {
	Command  string
	ExitCode int // -1 when the process did not exit normally
	Timeout  bool
	Stderr   string
	Err      error
}

func (e *ToolError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("diff tool %s timed out", e.Command)
	case e.ExitCode > 0:
		return fmt.Sprintf("diff tool %s failed with exit code %d: %s", e.Command, e.ExitCode, e.Stderr)
	default:
		return fmt.Sprintf("diff tool %s failed: %v", e.Command, e.Err)
	}
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// ExternalEngine delegates diffs to an external process. Both trees are
// written as JSON files whose paths are appended to Command. The process
// prints either one integer (the distance) or a JSON edit script.
type ExternalEngine struct {
	Command []string
	Timeout time.Duration
	TempDir string // defaults to os.TempDir()
	Logger  *zap.Logger
}

// NewExternalEngine creates an engine running command with the given
// timeout.
func NewExternalEngine(command []string, timeout time.Duration, logger *zap.Logger) *ExternalEngine {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExternalEngine{Command: command, Timeout: timeout, Logger: logger}
}

// Distance runs the tool and returns the edit count it reports. A script
// output is accepted and costed.
func (e *ExternalEngine) Distance(ctx context.Context, a, b *tree.Node) (int, error) {
	n, _, err := e.measure(ctx, a, b)
	return n, err
}

func (e *ExternalEngine) measure(ctx context.Context, a, b *tree.Node) (int, Script, error) {
	out, err := e.run(ctx, a, b)
	if err != nil {
		return 0, nil, err
	}
	if n, err := strconv.Atoi(string(out)); err == nil {
		if n < 0 {
			return 0, nil, e.toolError(fmt.Errorf("negative distance %d", n))
		}
		return n, nil, nil
	}
	s, err := e.parseScript(out)
	if err != nil {
		return 0, nil, err
	}
	return s.Cost(), s, nil
}

// EditScript runs the tool and parses the edit script it prints.
func (e *ExternalEngine) EditScript(ctx context.Context, a, b *tree.Node) (Script, error) {
	out, err := e.run(ctx, a, b)
	if err != nil {
		return nil, err
	}
	return e.parseScript(out)
}

func (e *ExternalEngine) parseScript(out []byte) (Script, error) {
	var s Script
	if err := json.Unmarshal(out, &s); err != nil {
		return nil, e.toolError(fmt.Errorf("unparseable output: %w", err))
	}
	return s, nil
}

func (e *ExternalEngine) commandName() string {
	if len(e.Command) == 0 {
		return ""
	}
	return e.Command[0]
}

func (e *ExternalEngine) toolError(err error) *ToolError {
	return &ToolError{Command: e.commandName(), ExitCode: -1, Err: err}
}

// run writes both trees to a private temp directory and returns the
// trimmed stdout of the tool.
func (e *ExternalEngine) run(ctx context.Context, a, b *tree.Node) ([]byte, error) {
	if len(e.Command) == 0 {
		return nil, e.toolError(errors.New("no diff command configured"))
	}

	dir, err := os.MkdirTemp(e.TempDir, "hintgraph-diff-")
	if err != nil {
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	pa, pb := filepath.Join(dir, "a.json"), filepath.Join(dir, "b.json")
	if err := writeTree(pa, a); err != nil {
		return nil, err
	}
	if err := writeTree(pb, b); err != nil {
		return nil, err
	}

	timeout := e.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := append(append([]string{}, e.Command[1:]...), pa, pb)
	cmd := exec.CommandContext(ctx, e.Command[0], args...)
	cmd.WaitDelay = time.Second
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err = cmd.Run()
	if e.Logger != nil {
		e.Logger.Debug("external diff",
			zap.String("command", e.Command[0]),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
	}
	if err != nil {
		te := &ToolError{Command: e.Command[0], ExitCode: -1, Stderr: strings.TrimSpace(stderr.String()), Err: err}
		if ctx.Err() == context.DeadlineExceeded {
			te.Timeout = true
			te.Err = ctx.Err()
		} else if exitErr, ok := err.(*exec.ExitError); ok {
			te.ExitCode = exitErr.ExitCode()
		}
		return nil, te
	}

	out := bytes.TrimSpace(stdout.Bytes())
	if len(out) == 0 {
		return nil, e.toolError(errors.New("empty output"))
	}
	return out, nil
}

func writeTree(path string, n *tree.Node) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encoding tree: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
