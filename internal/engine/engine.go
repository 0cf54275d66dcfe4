// Package engine wraps a single blocking invocation of the external
// computation engine.
package engine

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/vk/scalegrid/internal/ctxlog"
)

// UnknownElapsed is reported when the engine never prints its run time.
const UnknownElapsed int64 = -1

const timeTakenMarker = "Time taken: "

// waitDelay bounds how long Wait keeps waiting for output pipes after the
// engine has been killed.
const waitDelay = 5 * time.Second

// Spec describes how the engine is launched. The parameter file path is
// appended as the final argument.
type Spec struct {
	Command string
	Args    []string
	Dir     string
	Env     []string
	Timeout time.Duration
}

// Outcome is the result of one engine invocation.
type Outcome struct {
	ParamPath      string
	ElapsedSeconds int64
	ExitCode       int
	TimedOut       bool
	Output         []string
	Wall           time.Duration
}

// Failed reports whether the engine exited unsuccessfully.
func (o Outcome) Failed() bool {
	return o.ExitCode != 0 || o.TimedOut
}

// HasElapsed reports whether the engine reported its run time.
func (o Outcome) HasElapsed() bool {
	return o.ElapsedSeconds != UnknownElapsed
}

// Runner launches the engine. It performs no retries.
type Runner struct {
	spec   Spec
	stream io.Writer
}

// Option configures a Runner.
type Option func(*Runner)

// WithStream copies every engine output line to w.
func WithStream(w io.Writer) Option {
	return func(r *Runner) { r.stream = w }
}

// New creates a Runner for spec.
func New(spec Spec, opts ...Option) (*Runner, error) {
	if spec.Command == "" {
		return nil, errors.New("engine command must not be empty")
	}
	r := &Runner{spec: spec}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run invokes the engine once with paramPath as its final argument and
// blocks until it exits. A non-zero exit status is reported through the
// returned Outcome, not as an error; an error means the engine could not
// be started or its output could not be read.
func (r *Runner) Run(ctx context.Context, paramPath string) (Outcome, error) {
	logger := ctxlog.FromContext(ctx).With("param_file", paramPath)
	out := Outcome{ParamPath: paramPath, ElapsedSeconds: UnknownElapsed}

	if r.spec.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.spec.Timeout)
		defer cancel()
	}

	args := append(append([]string(nil), r.spec.Args...), paramPath)
	cmd := exec.CommandContext(ctx, r.spec.Command, args...)
	cmd.Dir = r.spec.Dir
	cmd.WaitDelay = waitDelay
	setProcessGroup(cmd)
	if len(r.spec.Env) > 0 {
		cmd.Env = append(cmd.Environ(), r.spec.Env...)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return out, fmt.Errorf("attach engine output: %w", err)
	}
	cmd.Stderr = cmd.Stdout

	logger.Info("Launching engine.", "command", cmd.String())
	start := time.Now()
	if err := cmd.Start(); err != nil {
		return out, fmt.Errorf("start engine: %w", err)
	}

	sc := bufio.NewScanner(stdout)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		out.Output = append(out.Output, line)
		if secs, ok := parseTimeTaken(line); ok {
			out.ElapsedSeconds = secs
		}
		logger.Debug("Engine output.", "line", line)
		if r.stream != nil {
			fmt.Fprintln(r.stream, line)
		}
	}
	scanErr := sc.Err()
	if scanErr != nil {
		// Keep the pipe flowing so the engine cannot block on a full buffer.
		_, _ = io.Copy(io.Discard, stdout)
	}

	waitErr := cmd.Wait()
	out.Wall = time.Since(start)

	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return out, fmt.Errorf("wait for engine: %w", waitErr)
		}
		out.ExitCode = exitErr.ExitCode()
		out.TimedOut = errors.Is(ctx.Err(), context.DeadlineExceeded)
	}
	if scanErr != nil && !out.Failed() {
		return out, fmt.Errorf("read engine output: %w", scanErr)
	}

	if out.Failed() {
		logger.Error("Engine failed.", "exit_code", out.ExitCode, "timed_out", out.TimedOut, "output", strings.Join(out.Output, "\n"))
	} else {
		logger.Info("Engine finished.", "elapsed_seconds", out.ElapsedSeconds, "wall", out.Wall)
	}
	return out, nil
}

// parseTimeTaken extracts N from a line containing "Time taken: Ns".
func parseTimeTaken(line string) (int64, bool) {
	_, rest, found := strings.Cut(line, timeTakenMarker)
	if !found {
		return 0, false
	}
	rest = strings.TrimSuffix(strings.TrimSpace(rest), "s")
	secs, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0, false
	}
	return secs, true
}
