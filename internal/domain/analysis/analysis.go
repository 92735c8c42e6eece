package analysis

import (
	"context"
	"time"
)

// Severity enum, ordered worst first.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
)

// Issue is one severity-tagged anomaly extracted from analyzer output.
type Issue struct {
	Severity Severity `json:"severity"`
	Title    string   `json:"title"`
}

// Health is the analyzer's overall score for a bundle.
type Health struct {
	Score int    `json:"score"`
	Grade string `json:"grade"`
}

// Report is one artifact file written by the analyzer.
type Report struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Size int64  `json:"size"`
}

// Result of one analyzer invocation. Failures are folded into the exit
// code and stderr text rather than returned as errors: a timeout yields
// the sentinel exit code 124, a launch failure exit code 1.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// TimeoutExitCode is returned when an invocation exceeds its deadline.
// Distinct from any exit code the analyzer itself produces.
const TimeoutExitCode = 124

// Runner port (interface for analyzer execution).
type Runner interface {
	Run(ctx context.Context, args []string, timeout time.Duration) Result
}

// RetryRunner is an optional extension for runners that can retry
// transient launch failures.
type RetryRunner interface {
	Runner
	RunWithRetry(ctx context.Context, args []string, timeout time.Duration, maxAttempts int) Result
}
