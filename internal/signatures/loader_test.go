package signatures

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const fixedSample = "# known signatures\n" +
	"\n" +
	"OOM killer\tkernel\tCRITICAL\tOut of memory\tRAM exhausted\tAdd swap\thttps://kb.example/oom\n" +
	"link down\tnet\tHIGH\tLink lost\tCable fault\tCheck cable\n" +
	"too\tfew\tcolumns\n"

const registrySample = "# error registry\n" +
	"name\tmodule\tseverity\terrorType\ttroubleshootingSteps\tdescription\tonSiteServiceRequired\n" +
	"E1001\tevcc\tHIGH\tcomm\tReboot the unit\tEVCC lost heartbeat\ttrue\n" +
	"E1002\tmodem\t\tcomm\t\t\ttrue\n" +
	"short\trow\n"

func TestLoadFixedColumns(t *testing.T) {
	dir := t.TempDir()
	sig := writeFile(t, dir, "known_signatures.tsv", fixedSample)

	entries := NewCatalog(sig, filepath.Join(dir, "missing.tsv")).Load()
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2 (comment, blank and short rows skipped)", len(entries))
	}

	first := entries[0]
	if first.Pattern != "OOM killer" || first.Component != "kernel" ||
		first.Severity != "CRITICAL" || first.Title != "Out of memory" ||
		first.RootCause != "RAM exhausted" || first.Fix != "Add swap" ||
		first.KBURL != "https://kb.example/oom" {
		t.Errorf("first entry wrong: %+v", first)
	}
	if first.Source != "signatures" {
		t.Errorf("source = %q, want signatures", first.Source)
	}
	// Six-column row: KB URL defaults to empty.
	if entries[1].KBURL != "" {
		t.Errorf("kb_url should default empty: %+v", entries[1])
	}
}

func TestLoadRegistryHeaderDriven(t *testing.T) {
	dir := t.TempDir()
	reg := writeFile(t, dir, "error_registry.tsv", registrySample)

	entries := NewCatalog(filepath.Join(dir, "missing.tsv"), reg).Load()
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2 (short row skipped)", len(entries))
	}

	e := entries[0]
	if e.Pattern != "E1001" || e.Module != "evcc" || e.Severity != "HIGH" ||
		e.ErrorType != "comm" || e.Fix != "Reboot the unit" ||
		e.Title != "EVCC lost heartbeat" || e.OnSiteRequired != "true" {
		t.Errorf("registry entry wrong: %+v", e)
	}
	if e.Source != "registry" {
		t.Errorf("source = %q, want registry", e.Source)
	}
	if e.RootCause != e.Title {
		t.Errorf("root_cause should mirror description: %+v", e)
	}
}

// A header-driven row with empty cells keeps the verbatim values; the
// defaults only apply when a column is absent from the header or the
// row is shorter than the column index.
func TestRegistryColumnDefaults(t *testing.T) {
	dir := t.TempDir()
	reg := writeFile(t, dir, "error_registry.tsv",
		"name\tmodule\tseverity\terrorType\n"+
			"E2000\tpwr\tLOW\thw\n")

	entries := NewCatalog(filepath.Join(dir, "none.tsv"), reg).Load()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	e := entries[0]
	// troubleshootingSteps and onSiteServiceRequired are not in the
	// header at all: declared defaults apply.
	if e.Fix != "" {
		t.Errorf("fix = %q, want empty default", e.Fix)
	}
	if e.OnSiteRequired != "false" {
		t.Errorf("onSiteRequired = %q, want false default", e.OnSiteRequired)
	}
}

func TestRegistrySeverityDefault(t *testing.T) {
	dir := t.TempDir()
	reg := writeFile(t, dir, "error_registry.tsv",
		"name\tmodule\terrorType\tdescription\n"+
			"E3000\tnet\tcomm\tno heartbeat\n")

	entries := NewCatalog(filepath.Join(dir, "none.tsv"), reg).Load()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	if entries[0].Severity != "MEDIUM" {
		t.Errorf("severity = %q, want MEDIUM default", entries[0].Severity)
	}
}

func TestLoadConcatenatesBothSources(t *testing.T) {
	dir := t.TempDir()
	sig := writeFile(t, dir, "known_signatures.tsv", fixedSample)
	reg := writeFile(t, dir, "error_registry.tsv", registrySample)

	entries := NewCatalog(sig, reg).Load()
	if len(entries) != 4 {
		t.Fatalf("got %d entries, want 4", len(entries))
	}
	// Signatures first, then registry; no dedup.
	if entries[0].Source != "signatures" || entries[3].Source != "registry" {
		t.Errorf("order wrong: %+v", entries)
	}
}

func TestLoadMissingFiles(t *testing.T) {
	dir := t.TempDir()
	entries := NewCatalog(filepath.Join(dir, "a.tsv"), filepath.Join(dir, "b.tsv")).Load()
	if len(entries) != 0 {
		t.Errorf("expected empty catalog, got %+v", entries)
	}
	if entries == nil {
		t.Error("catalog must be non-nil for JSON encoding")
	}
}
