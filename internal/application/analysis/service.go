// Package analysis implements the use-cases around the external
// analyzer: capability check, per-session analysis, compare and fleet
// runs, and reads over a session's derived artifacts.
package analysis

import (
	"context"
	"path/filepath"
	"time"

	"github.com/iotecha/loggy/internal/application/sessions"
	domain "github.com/iotecha/loggy/internal/domain/analysis"
	"github.com/iotecha/loggy/internal/domain/session"
	"github.com/iotecha/loggy/internal/extract"
	"github.com/iotecha/loggy/internal/search"
)

// Timeouts bound each invocation kind.
type Timeouts struct {
	Check   time.Duration
	Analyze time.Duration
	Compare time.Duration
	Fleet   time.Duration
}

// checkAttempts retries transient launch failures during the
// capability check only; analysis runs are never retried.
const checkAttempts = 3

// Service wires the session store to the analyzer runner.
type Service struct {
	Store    *sessions.Store
	Runner   domain.Runner
	Timeouts Timeouts
}

// Check invokes the analyzer with its capability-check flag.
func (s *Service) Check(ctx context.Context) (bool, string) {
	ctx = context.WithoutCancel(ctx)
	var res domain.Result
	if rr, ok := s.Runner.(domain.RetryRunner); ok {
		res = rr.RunWithRetry(ctx, []string{"--check"}, s.Timeouts.Check, checkAttempts)
	} else {
		res = s.Runner.Run(ctx, []string{"--check"}, s.Timeouts.Check)
	}
	return res.ExitCode == 0, res.Stdout + res.Stderr
}

// AnalyzeCommand is the analysis trigger payload.
type AnalyzeCommand struct {
	SessionID string
	Mode      string
	Web       bool
	Mail      bool
	Tickets   bool
}

// AnalyzeResult mirrors what the UI needs after an analysis run.
type AnalyzeResult struct {
	OK        bool     `json:"ok"`
	ExitCode  int      `json:"exit_code"`
	Output    string   `json:"output"`
	Errors    string   `json:"errors"`
	Reports   []string `json:"reports"`
	SessionID string   `json:"session_id"`
}

// Analyze runs the analyzer against the session's input bundle and
// updates the session in place. The call blocks for the duration of
// the invocation, bounded by the analyze timeout.
func (s *Service) Analyze(ctx context.Context, cmd AnalyzeCommand) (AnalyzeResult, error) {
	sess, ok := s.Store.Get(cmd.SessionID)
	if !ok {
		return AnalyzeResult{}, sessions.ErrNotFound
	}
	mode := cmd.Mode
	if mode == "" {
		mode = "standard"
	}

	args := []string{"-q", "--no-color", "--mode", mode, "-o", sess.ReportsDir}
	if cmd.Web {
		args = append(args, "--web")
	}
	if cmd.Mail {
		args = append(args, "--mail")
	}
	if cmd.Tickets {
		args = append(args, "--tickets")
	}
	args = append(args, sess.InputPath)

	_ = s.Store.SetState(cmd.SessionID, session.StateAnalyzing)
	_ = s.Store.SetMode(cmd.SessionID, mode)

	// Once invoked, only the timeout bounds the run: a client
	// disconnect must not abort the analyzer or corrupt the session.
	res := s.Runner.Run(context.WithoutCancel(ctx), args, s.Timeouts.Analyze)
	_ = s.Store.SetOutput(cmd.SessionID, res.Stdout, res.Stderr)

	if id := extract.DeviceID(res.Stdout); id != "" {
		_ = s.Store.SetDeviceID(cmd.SessionID, id)
	}

	reports := reportNames(sess.ReportsDir)
	// Success is judged by produced artifacts: a non-zero exit with
	// reports on disk still counts as done.
	ok = len(reports) > 0
	state := session.StateError
	if res.ExitCode == 0 || ok {
		state = session.StateDone
	}
	_ = s.Store.SetState(cmd.SessionID, state)

	return AnalyzeResult{
		OK:        ok,
		ExitCode:  res.ExitCode,
		Output:    res.Stdout,
		Errors:    res.Stderr,
		Reports:   reports,
		SessionID: cmd.SessionID,
	}, nil
}

// RunResult is the outcome of a compare or fleet run, which produce
// their reports into a fresh directory outside any session.
type RunResult struct {
	OK         bool     `json:"ok"`
	Output     string   `json:"output"`
	Errors     string   `json:"errors"`
	Reports    []string `json:"reports"`
	ReportsDir string   `json:"reports_dir"`
}

// Compare runs the analyzer in compare mode. Baseline and target may
// be session ids, which resolve to their uploaded inputs, or raw
// on-disk paths.
func (s *Service) Compare(ctx context.Context, baseline, target string) (RunResult, error) {
	basePath := s.resolveInput(baseline)
	targetPath := s.resolveInput(target)
	outDir, err := s.Store.OutputDir("compare")
	if err != nil {
		return RunResult{}, err
	}
	args := []string{"-q", "--no-color", "-o", outDir, "--compare", basePath, targetPath}
	res := s.Runner.Run(context.WithoutCancel(ctx), args, s.Timeouts.Compare)
	return RunResult{
		OK:         res.ExitCode == 0,
		Output:     res.Stdout,
		Errors:     res.Stderr,
		Reports:    reportNames(outDir),
		ReportsDir: outDir,
	}, nil
}

// Fleet runs the analyzer over a whole directory of bundles.
func (s *Service) Fleet(ctx context.Context, directory string) (RunResult, error) {
	outDir, err := s.Store.OutputDir("fleet")
	if err != nil {
		return RunResult{}, err
	}
	args := []string{"-q", "--no-color", "-o", outDir, "--fleet", directory}
	res := s.Runner.Run(context.WithoutCancel(ctx), args, s.Timeouts.Fleet)
	return RunResult{
		OK:         res.ExitCode == 0,
		Output:     res.Stdout,
		Errors:     res.Stderr,
		Reports:    reportNames(outDir),
		ReportsDir: outDir,
	}, nil
}

// Results recomputes the extracted findings for a session.
func (s *Service) Results(id string) (extract.ResultSet, string, error) {
	sess, ok := s.Store.Get(id)
	if !ok {
		return extract.ResultSet{}, "", sessions.ErrNotFound
	}
	return extract.Results(sess), sess.Stdout, nil
}

// Search queries the session's parsed component logs.
func (s *Service) Search(id string, q search.Query) ([]search.Hit, error) {
	sess, ok := s.Store.Get(id)
	if !ok {
		return nil, sessions.ErrNotFound
	}
	return search.Search(sess.WorkDir, q), nil
}

// Components summarizes the session's parsed component logs.
func (s *Service) Components(id string) (map[string]search.ComponentStats, error) {
	sess, ok := s.Store.Get(id)
	if !ok {
		return nil, sessions.ErrNotFound
	}
	return search.Components(sess.WorkDir), nil
}

func (s *Service) resolveInput(ref string) string {
	if sess, ok := s.Store.Get(ref); ok {
		return sess.InputPath
	}
	return ref
}

func reportNames(dir string) []string {
	names := []string{}
	for _, r := range extract.Reports(dir) {
		names = append(names, filepath.Base(r.Path))
	}
	return names
}
