// Package executor runs the external analyzer binary and normalizes
// whatever it prints.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"syscall"
	"time"

	domain "github.com/iotecha/loggy/internal/domain/analysis"
)

// Runner invokes the analyzer with its working directory pinned to the
// analyzer's own directory so relative paths inside it resolve.
type Runner struct {
	analyzer string
	dir      string
}

func NewRunner(analyzerPath string) *Runner {
	abs, err := filepath.Abs(analyzerPath)
	if err != nil {
		abs = analyzerPath
	}
	return &Runner{analyzer: abs, dir: filepath.Dir(abs)}
}

// Run executes the analyzer once. Failures never surface as errors:
// exceeding the timeout kills the child and returns the sentinel exit
// code with a descriptive stderr; a launch failure returns exit code 1
// with the error text in stderr.
func (r *Runner) Run(ctx context.Context, args []string, timeout time.Duration) domain.Result {
	res, err := r.invoke(ctx, args, timeout)
	if err != nil {
		return domain.Result{ExitCode: 1, Stderr: err.Error()}
	}
	return res
}

// RunWithRetry retries launch failures with jittered exponential
// backoff. Real analyzer exits and timeouts are never retried.
func (r *Runner) RunWithRetry(ctx context.Context, args []string, timeout time.Duration, maxAttempts int) domain.Result {
	var res domain.Result
	_ = retry(ctx, maxAttempts, 200*time.Millisecond, func() error {
		rr, err := r.invoke(ctx, args, timeout)
		if err != nil {
			res = domain.Result{ExitCode: 1, Stderr: err.Error()}
			return err
		}
		res = rr
		return nil
	})
	return res
}

// invoke runs the analyzer; the returned error is non-nil only for
// launch failures (binary missing, permission denied).
func (r *Runner) invoke(ctx context.Context, args []string, timeout time.Duration) (domain.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, r.analyzer, args...)
	cmd.Dir = r.dir
	// Terminal formatting off so downstream pattern matching sees
	// clean text.
	cmd.Env = append(os.Environ(), "TERM=dumb", "NO_COLOR=1")
	// The analyzer forks helpers that inherit the output pipes. Kill
	// the whole process group at the deadline, and give Wait a short
	// grace before abandoning the pipes, so a timed-out run returns
	// close to the deadline with no survivors.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return domain.Result{
			ExitCode: domain.TimeoutExitCode,
			Stderr:   fmt.Sprintf("Timeout after %ds", int(timeout.Seconds())),
		}, nil
	}
	if errors.Is(err, exec.ErrWaitDelay) {
		// The analyzer exited cleanly but an orphan kept the pipes
		// open past the grace; keep what was captured.
		err = nil
	}

	exitCode := 0
	if err != nil {
		ee, ok := err.(*exec.ExitError)
		if !ok {
			return domain.Result{}, err
		}
		exitCode = ee.ExitCode()
	}
	return domain.Result{
		ExitCode: exitCode,
		Stdout:   clean(stdout.String()),
		Stderr:   clean(stderr.String()),
	}, nil
}

var (
	ansiRe = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)
	ctrlRe = regexp.MustCompile("[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]")
)

// StripControl removes ANSI CSI escape sequences and non-printable
// control bytes except newline and tab.
func StripControl(s string) string {
	s = ansiRe.ReplaceAllString(s, "")
	return ctrlRe.ReplaceAllString(s, "")
}

func clean(s string) string {
	return StripControl(strings.ToValidUTF8(s, "�"))
}
