// Package search runs bounded full-text queries over the per-component
// .parsed log files the analyzer leaves in a session's working
// directory.
package search

import (
	"bufio"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

const (
	// DefaultMaxResults caps a query when the caller gives no limit.
	DefaultMaxResults = 50
	// maxLineLen bounds each surfaced line to keep payloads small.
	maxLineLen = 300
	// maxScanLine is the longest parsed-log line the scanner accepts.
	maxScanLine = 1024 * 1024
)

// severityMarkers maps single-letter filter codes to the inline marker
// tokens the analyzer tags parsed lines with.
var severityMarkers = map[string]string{
	"E": "|E|",
	"W": "|W|",
	"I": "|I|",
	"C": "|C|",
	"N": "|N|",
}

// Hit is one matched line. The placeholder hit returned before any
// analysis has run carries only the line text.
type Hit struct {
	File   string `json:"file,omitempty"`
	LineNo int    `json:"line_no,omitempty"`
	Line   string `json:"line"`
}

// Query filters a search.
type Query struct {
	Pattern    string
	Severity   string
	Component  string
	MaxResults int
}

// ComponentStats summarizes one parsed component log.
type ComponentStats struct {
	Total    int `json:"total"`
	Errors   int `json:"errors"`
	Warnings int `json:"warnings"`
}

// matcher is a per-line predicate built once per query.
type matcher func(line string) bool

// newMatcher compiles the pattern case-insensitively; a pattern that is
// not a valid regexp degrades to a plain substring match.
func newMatcher(pattern string) matcher {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		needle := strings.ToLower(pattern)
		return func(line string) bool {
			return strings.Contains(strings.ToLower(line), needle)
		}
	}
	return re.MatchString
}

// Search scans the session's parsed logs in lexical file order and
// stops as soon as the result cap is reached. A missing parsed
// directory means analysis has not run yet and yields one explanatory
// placeholder hit, distinct from "no matches".
func Search(workDir string, q Query) []Hit {
	parsedDir := filepath.Join(workDir, "parsed")
	if st, err := os.Stat(parsedDir); err != nil || !st.IsDir() {
		return []Hit{{Line: "Logs not parsed yet — run analysis first"}}
	}

	max := q.MaxResults
	if max <= 0 {
		max = DefaultMaxResults
	}
	marker := ""
	if q.Severity != "" {
		marker = severityMarkers[strings.ToUpper(q.Severity)]
	}
	component := strings.ToLower(q.Component)
	match := newMatcher(q.Pattern)

	hits := []Hit{}
	for _, file := range parsedFiles(parsedDir) {
		f, err := os.Open(file)
		if err != nil {
			continue
		}
		sc := bufio.NewScanner(f)
		sc.Buffer(make([]byte, 64*1024), maxScanLine)
		lineNo := 0
		for sc.Scan() {
			lineNo++
			line := sc.Text()
			if !match(line) {
				continue
			}
			if marker != "" && !strings.Contains(line, marker) {
				continue
			}
			if component != "" && !strings.Contains(strings.ToLower(line), component) {
				continue
			}
			hits = append(hits, Hit{
				File:   filepath.Base(file),
				LineNo: lineNo,
				Line:   truncate(line, maxLineLen),
			})
			if len(hits) >= max {
				f.Close()
				return hits
			}
		}
		f.Close()
	}
	return hits
}

// Components counts lines per parsed component log: total, errors
// (|E| or |C| markers) and warnings (|W|).
func Components(workDir string) map[string]ComponentStats {
	comps := map[string]ComponentStats{}
	parsedDir := filepath.Join(workDir, "parsed")
	for _, file := range parsedFiles(parsedDir) {
		name := strings.TrimSuffix(filepath.Base(file), ".parsed")
		stats := ComponentStats{}
		f, err := os.Open(file)
		if err != nil {
			comps[name] = stats
			continue
		}
		sc := bufio.NewScanner(f)
		sc.Buffer(make([]byte, 64*1024), maxScanLine)
		for sc.Scan() {
			line := sc.Text()
			stats.Total++
			if strings.Contains(line, "|E|") || strings.Contains(line, "|C|") {
				stats.Errors++
			}
			if strings.Contains(line, "|W|") {
				stats.Warnings++
			}
		}
		f.Close()
		comps[name] = stats
	}
	return comps
}

// parsedFiles returns the .parsed files in deterministic lexical order
// so earlier files keep priority when the result cap truncates a query.
func parsedFiles(parsedDir string) []string {
	files, err := filepath.Glob(filepath.Join(parsedDir, "*.parsed"))
	if err != nil {
		return nil
	}
	sort.Strings(files)
	return files
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
