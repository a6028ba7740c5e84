package docs

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"testing"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

func TestTopics(t *testing.T) {
	topics, err := Topics()
	if err != nil {
		t.Fatalf("Topics() error = %v", err)
	}
	var names []string
	for _, topic := range topics {
		names = append(names, topic.Name)
		if topic.Summary == "" {
			t.Errorf("topic %q has no summary in readme.md", topic.Name)
		}
		if _, err := Page(topic.Name); err != nil {
			t.Errorf("Page(%q) error = %v", topic.Name, err)
		}
	}

	files, err := filepath.Glob("*.md")
	if err != nil {
		t.Fatal(err)
	}
	for _, file := range files {
		name := strings.TrimSuffix(file, ".md")
		if name != "readme" && !slices.Contains(names, name) {
			t.Errorf("%s is not listed in readme.md", file)
		}
	}
}

func TestRead(t *testing.T) {
	topics, err := Topics()
	if err != nil || len(topics) < 2 {
		t.Fatalf("Topics() = %v, %v", topics, err)
	}
	all, err := Read(All)
	if err != nil {
		t.Fatalf("Read(*) error = %v", err)
	}
	// pages come in the order of the index
	last := -1
	for _, topic := range topics {
		page, _ := Page(topic.Name)
		i := strings.Index(all, page)
		if i <= last {
			t.Errorf("topic %q is out of order in Read(*)", topic.Name)
		}
		last = i
	}

	if _, err := Read("lots", "no-such-topic"); err == nil {
		t.Error("Read() of an unknown topic succeeded")
	}
}

// Pages hold shell scenarios run against a freshly built bocs:
//
//	"bash setup" starts a scenario in a new directory,
//	"bash run" runs commands and keeps their output,
//	"console check" compares the kept output,
//	"bash check" must exit successfully.
const (
	setupBlock   = "bash setup"
	runBlock     = "bash run"
	checkBlock   = "console check"
	successBlock = "bash check"
)

type snippet struct {
	kind string
	code string
	line int
}

// snippets returns the scenario blocks of a markdown file.
func snippets(t *testing.T, file string) []snippet {
	t.Helper()
	source, err := os.ReadFile(file)
	if err != nil {
		t.Fatal(err)
	}
	var out []snippet
	doc := goldmark.DefaultParser().Parse(text.NewReader(source))
	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		block, ok := n.(*ast.FencedCodeBlock)
		if !entering || !ok || block.Info == nil {
			return ast.WalkContinue, nil
		}
		kind := string(block.Info.Segment.Value(source))
		switch kind {
		case setupBlock, runBlock, checkBlock, successBlock:
		default:
			return ast.WalkContinue, nil
		}
		var code bytes.Buffer
		for i := 0; i < block.Lines().Len(); i++ {
			seg := block.Lines().At(i)
			code.Write(seg.Value(source))
		}
		line := bytes.Count(source[:block.Info.Segment.Start], []byte("\n")) + 1
		out = append(out, snippet{kind: kind, code: code.String(), line: line})
		return ast.WalkContinue, nil
	})
	return out
}

func TestScenarios(t *testing.T) {
	files, err := filepath.Glob("*.md")
	if err != nil {
		t.Fatal(err)
	}
	files = append(files, "../README.md")

	var env []string
	for _, file := range files {
		blocks := snippets(t, file)
		if len(blocks) == 0 {
			continue
		}
		if env == nil {
			env = scenarioEnv(t)
		}
		t.Run(filepath.Base(file), func(t *testing.T) {
			dir, output := t.TempDir(), ""
			for _, b := range blocks {
				where := file + ":" + strconv.Itoa(b.line)
				if b.kind == checkBlock {
					got := strings.ReplaceAll(strings.TrimSpace(output), "\t", "        ")
					if want := strings.TrimSpace(b.code); got != want {
						t.Errorf("%s: output mismatch\ngot:\n%s\nwant:\n%s", where, got, want)
					}
					continue
				}
				if b.kind == setupBlock {
					dir = t.TempDir()
				}
				cmd := exec.Command("bash", "-c", "set -e; "+b.code)
				cmd.Dir, cmd.Env = dir, env
				out, err := cmd.CombinedOutput()
				if b.kind == runBlock {
					output = string(out)
				}
				switch {
				case err == nil:
				case b.kind == successBlock:
					t.Errorf("%s: check failed: %v\n%s", where, err, out)
				default:
					t.Fatalf("%s: %s failed: %v\n%s", where, b.kind, err, out)
				}
			}
		})
	}
}

// scenarioEnv builds bocs and returns an environment that runs it, free of
// the BOCS_* settings of the caller.
func scenarioEnv(t *testing.T) []string {
	t.Helper()
	bin := t.TempDir()
	build := exec.Command("go", "build", "-o", filepath.Join(bin, "bocs"), "../bocs/")
	if out, err := build.CombinedOutput(); err != nil {
		t.Fatalf("go build bocs: %v\n%s", err, out)
	}
	var env []string
	for _, kv := range os.Environ() {
		if !strings.HasPrefix(kv, "BOCS_") && !strings.HasPrefix(kv, "PATH=") {
			env = append(env, kv)
		}
	}
	return append(env,
		"PATH="+bin+string(os.PathListSeparator)+os.Getenv("PATH"),
		"BOCS_LOG_LEVEL=error",
	)
}
