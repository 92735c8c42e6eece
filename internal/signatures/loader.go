// Package signatures loads the known-signatures knowledge base: two
// tab-separated catalogs with different schemas, normalized into one
// list and re-exposed verbatim over the API.
package signatures

import (
	"bufio"
	"os"
	"strings"
)

// Entry is one normalized signature record. Module, ErrorType and
// OnSiteRequired are populated only for registry-sourced rows.
type Entry struct {
	Pattern        string `json:"pattern"`
	Component      string `json:"component"`
	Severity       string `json:"severity"`
	Title          string `json:"title"`
	RootCause      string `json:"root_cause"`
	Fix            string `json:"fix"`
	KBURL          string `json:"kb_url"`
	Source         string `json:"source"`
	Module         string `json:"module,omitempty"`
	ErrorType      string `json:"errorType,omitempty"`
	OnSiteRequired string `json:"onSiteRequired,omitempty"`
}

// Catalog knows where the two source files live. Either file may be
// absent; a missing source simply contributes nothing.
type Catalog struct {
	signaturesFile string
	registryFile   string
}

func NewCatalog(signaturesFile, registryFile string) *Catalog {
	return &Catalog{signaturesFile: signaturesFile, registryFile: registryFile}
}

// Load reads both sources and concatenates them, signatures first.
// No deduplication across sources.
func (c *Catalog) Load() []Entry {
	entries := []Entry{}
	entries = append(entries, loadFixed(c.signaturesFile)...)
	entries = append(entries, loadRegistry(c.registryFile)...)
	return entries
}

// loadFixed reads the fixed-column file: pattern, component, severity,
// title, root cause, fix, optional KB URL. Rows with fewer than six
// cells are skipped.
func loadFixed(path string) []Entry {
	entries := []Entry{}
	forEachDataLine(path, func(line string) {
		cells := strings.Split(line, "\t")
		if len(cells) < 6 {
			return
		}
		e := Entry{
			Pattern:   cells[0],
			Component: cells[1],
			Severity:  cells[2],
			Title:     cells[3],
			RootCause: cells[4],
			Fix:       cells[5],
			Source:    "signatures",
		}
		if len(cells) > 6 {
			e.KBURL = cells[6]
		}
		entries = append(entries, e)
	})
	return entries
}

// loadRegistry reads the header-driven file. The first data line names
// the columns; subsequent rows are looked up by header name with a
// default when the column is absent or the row is short.
func loadRegistry(path string) []Entry {
	entries := []Entry{}
	var cols map[string]int
	forEachDataLine(path, func(line string) {
		cells := strings.Split(line, "\t")
		if cols == nil {
			cols = map[string]int{}
			for i, name := range cells {
				cols[strings.TrimSpace(name)] = i
			}
			return
		}
		if len(cells) < 4 {
			return
		}
		row := registryRow{cells: cells, cols: cols}
		entries = append(entries, Entry{
			Pattern:        row.col("name", ""),
			Component:      row.col("module", ""),
			Severity:       row.col("severity", "MEDIUM"),
			Title:          row.col("description", ""),
			RootCause:      row.col("description", ""),
			Fix:            row.col("troubleshootingSteps", ""),
			Source:         "registry",
			Module:         row.col("module", ""),
			ErrorType:      row.col("errorType", ""),
			OnSiteRequired: row.col("onSiteServiceRequired", "false"),
		})
	})
	return entries
}

// registryRow resolves cells by header name, built once per parse.
type registryRow struct {
	cells []string
	cols  map[string]int
}

func (r registryRow) col(name, def string) string {
	idx, ok := r.cols[name]
	if !ok || idx >= len(r.cells) {
		return def
	}
	return r.cells[idx]
}

// forEachDataLine streams non-empty, non-comment lines of a TSV file.
// A missing or unreadable file yields nothing.
func forEachDataLine(path string, fn func(line string)) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fn(line)
	}
}
