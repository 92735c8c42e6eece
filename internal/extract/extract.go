// Package extract derives structured findings from analyzer stdout.
// The analyzer's free text is treated as a semi-structured protocol: a
// fixed, ordered set of named rules, where the first rule that yields a
// non-empty result wins and later rules are never evaluated.
package extract

import (
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	domain "github.com/iotecha/loggy/internal/domain/analysis"
	"github.com/iotecha/loggy/internal/domain/session"
)

// issueRule matches "severity + title" lines in one textual convention.
type issueRule struct {
	name string
	re   *regexp.Regexp
}

var issueRules = []issueRule{
	// "#3 CRITICAL Disk full" — numbered issue list.
	{"numbered", regexp.MustCompile(`(?m)#\d+\s+(CRITICAL|HIGH|MEDIUM|LOW)\s+(.+)$`)},
	// "[LOW] Clock skew" — bracketed fallback convention.
	{"bracketed", regexp.MustCompile(`(?m)\[(CRITICAL|HIGH|MEDIUM|LOW)\]\s+(.+)$`)},
}

var healthRules = []*regexp.Regexp{
	regexp.MustCompile(`Health Score:\s*(\d+)\s*/\s*100\s*Grade:\s*([A-F])`),
	regexp.MustCompile(`Health Score:\s*(\d+)/100\s*\(([A-F])\)`),
}

var deviceRe = regexp.MustCompile(`Device.*?:\s*(\S+)`)

// ResultSet is everything derivable from a session's captured output
// and reports directory. Recomputed on each request, never persisted.
type ResultSet struct {
	Issues     []domain.Issue    `json:"issues"`
	Health     *domain.Health    `json:"health,omitempty"`
	DeviceInfo map[string]string `json:"device_info"`
	Reports    []domain.Report   `json:"reports"`
}

// Issues applies the issue rules in order. The conventions are never
// merged: the bracketed rule runs only when the numbered rule matched
// nothing at all.
func Issues(stdout string) []domain.Issue {
	for _, rule := range issueRules {
		issues := []domain.Issue{}
		for _, m := range rule.re.FindAllStringSubmatch(stdout, -1) {
			issues = append(issues, domain.Issue{
				Severity: domain.Severity(m[1]),
				Title:    strings.TrimSpace(m[2]),
			})
		}
		if len(issues) > 0 {
			return issues
		}
	}
	return []domain.Issue{}
}

// Health finds the score/grade line in either of the analyzer's two
// layouts. First match wins; nil when neither appears.
func Health(stdout string) *domain.Health {
	for _, re := range healthRules {
		if m := re.FindStringSubmatch(stdout); m != nil {
			score, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			return &domain.Health{Score: score, Grade: m[2]}
		}
	}
	return nil
}

// DeviceID pulls the device identifier token; empty when absent.
func DeviceID(stdout string) string {
	if m := deviceRe.FindStringSubmatch(stdout); m != nil {
		return m[1]
	}
	return ""
}

// Reports lists artifact files directly under dir, sorted by name.
func Reports(dir string) []domain.Report {
	reports := []domain.Report{}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return reports
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		reports = append(reports, domain.Report{
			Name: e.Name(),
			Path: filepath.Join(dir, e.Name()),
			Size: info.Size(),
		})
	}
	sort.Slice(reports, func(i, j int) bool { return reports[i].Name < reports[j].Name })
	return reports
}

// Results runs every extraction rule against the session. Absent
// matches leave fields empty, never error.
func Results(s session.Session) ResultSet {
	rs := ResultSet{
		Issues:     Issues(s.Stdout),
		Health:     Health(s.Stdout),
		DeviceInfo: map[string]string{},
		Reports:    Reports(s.ReportsDir),
	}
	if id := DeviceID(s.Stdout); id != "" {
		rs.DeviceInfo["device_id"] = id
	}
	return rs
}
