package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"text/template"

	"github.com/google/subcommands"
)

func TestPublish(t *testing.T) {
	useTempBook(t)
	execute(t, &buyCmd{}, "-id", "b1", "-c", "alice", "-s", "ACME", "-lots", "100", "-price", "10", "-at", "2025-01-01")
	execute(t, &sellCmd{}, "-id", "s1", "-c", "alice", "-s", "ACME", "-lots", "40", "-price", "24", "-at", "2025-01-02")
	execute(t, &payCmd{}, "-id", "p1", "-c", "bob", "-amount", "10", "-at", "2025-01-02")

	fm := filepath.Join(t.TempDir(), "fm.tmpl")
	if err := os.WriteFile(fm, []byte("---\ntitle: {{.Title}}\n---\n"), 0644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(t.TempDir(), "reports")
	if got := execute(t, &publishCmd{}, "-o", out, "-frontmatter", fm); got != subcommands.ExitSuccess {
		t.Fatalf("publish = %v", got)
	}

	tests := []struct {
		file string
		want string
	}{
		{"positions.md", "title: Positions\n"},
		{"collections.md", "| alice | 168.00 | 0.00 | +168.00 |"},
		{"clients/alice/sales.md", "title: Sales of alice\n"},
		{"clients/bob/collections.md", "| bob | 0.00 | 10.00 | -10.00 |"},
	}
	for _, tt := range tests {
		content, err := os.ReadFile(filepath.Join(out, tt.file))
		if err != nil {
			t.Errorf("missing report: %v", err)
			continue
		}
		if !strings.Contains(string(content), tt.want) {
			t.Errorf("%s = %s\nwant it to contain %q", tt.file, content, tt.want)
		}
	}

	if got := execute(t, &publishCmd{}, "-o", out, "-html"); got != subcommands.ExitSuccess {
		t.Fatalf("publish -html = %v", got)
	}
	if _, err := os.Stat(filepath.Join(out, "clients", "alice", "positions.html")); err != nil {
		t.Errorf("missing html report: %v", err)
	}
}

func TestRenderFrontMatter(t *testing.T) {
	tpl := template.Must(template.New("fm").Parse("report: {{.Report}}, client: {{.Client}}"))
	got, err := renderFrontMatter(tpl, reportTask{Report: "sales", Client: "alice"})
	if err != nil {
		t.Fatal(err)
	}
	if got != "report: sales, client: alice" {
		t.Errorf("renderFrontMatter() = %q", got)
	}
}
