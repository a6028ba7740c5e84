package cmd

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"text/template"

	"github.com/etnz/brokerage"
	"github.com/etnz/brokerage/renderer"
	"github.com/google/subcommands"
)

// reportTask is one file to publish. It is also the data of the front
// matter template.
type reportTask struct {
	Report string // report name, also the file name
	Client string // empty for reports on every client
	Title  string

	report renderer.Report
}

type publishCmd struct {
	outputDir      string
	frontMatterTpl string
	html           bool
}

func (*publishCmd) Name() string { return "publish" }

func (*publishCmd) Synopsis() string { return "generates every report of the book into a directory" }

func (*publishCmd) Usage() string {
	return `publish [-o <dir>] [-frontmatter <file>] [-html]

  Generates the positions, sales and collections reports, and a statement
  for each client, and saves them to a directory tree:

    <dir>/positions.md
    <dir>/clients/<client>/sales.md
    ...
`
}

func (c *publishCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.outputDir, "o", "reports", "Root directory for the generated reports")
	f.StringVar(&c.frontMatterTpl, "frontmatter", "", "Path to a Go template file for the report front matter")
	f.BoolVar(&c.html, "html", false, "Write HTML files instead of markdown")
}

func (c *publishCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	var frontMatterTpl *template.Template
	if c.frontMatterTpl != "" {
		var err error
		frontMatterTpl, err = template.ParseFiles(c.frontMatterTpl)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to parse front matter template: %v\n", err)
			return subcommands.ExitFailure
		}
	}

	return run(ctx, false, func(ctx context.Context, a *app) error {
		tasks, err := publishTasks(ctx, a.book)
		if err != nil {
			return err
		}
		for _, task := range tasks {
			if err := c.write(task, frontMatterTpl); err != nil {
				return err
			}
			a.log.Debug("report generated", "report", task.Report, "client", task.Client)
		}
		fmt.Printf("Published %d reports to %s\n", len(tasks), c.outputDir)
		return nil
	})
}

// publishTasks computes every report of the book.
func publishTasks(ctx context.Context, b *brokerage.Book) ([]reportTask, error) {
	positions, err := b.Positions(ctx, brokerage.Filter{})
	if err != nil {
		return nil, err
	}
	collections, err := b.Collections(ctx)
	if err != nil {
		return nil, err
	}
	sales, err := b.Sales(ctx, "")
	if err != nil {
		return nil, err
	}

	tasks := []reportTask{
		{Report: "positions", report: renderer.Positions(positions)},
		{Report: "stocks", report: renderer.Summaries("Stock", brokerage.RollupByStock(positions))},
		{Report: "brokers", report: renderer.Summaries("Broker", brokerage.RollupByBroker(positions))},
		{Report: "sales", report: renderer.Sales(sales)},
		{Report: "collections", report: renderer.Collections(collections)},
	}

	// A statement per client: its positions, sales and balances.
	var clients []string
	balances := make(map[string][]brokerage.CollectionsEntry)
	for _, e := range collections {
		if _, ok := balances[e.Client]; !ok {
			clients = append(clients, e.Client)
		}
		balances[e.Client] = append(balances[e.Client], e)
	}
	for _, client := range clients {
		clientSales, err := b.Sales(ctx, client)
		if err != nil {
			return nil, err
		}
		clientPositions, err := b.Positions(ctx, brokerage.Filter{Client: client})
		if err != nil {
			return nil, err
		}
		tasks = append(tasks,
			reportTask{Report: "positions", Client: client, report: renderer.Positions(clientPositions)},
			reportTask{Report: "sales", Client: client, report: renderer.Sales(clientSales)},
			reportTask{Report: "collections", Client: client, report: renderer.Collections(balances[client])},
		)
	}
	for i := range tasks {
		if tasks[i].Client != "" {
			tasks[i].report.Title += " of " + tasks[i].Client
		}
		tasks[i].Title = tasks[i].report.Title
	}
	return tasks, nil
}

func (c *publishCmd) write(task reportTask, frontMatterTpl *template.Template) error {
	md := renderer.RenderMarkdown(task.report)
	// Generate frontmatter if template is provided
	if frontMatterTpl != nil {
		fm, err := renderFrontMatter(frontMatterTpl, task)
		if err != nil {
			return fmt.Errorf("failed to render front matter for %s report: %w", task.Report, err)
		}
		md = fm + "\n" + md
	}

	dir := c.outputDir
	if task.Client != "" {
		dir = filepath.Join(dir, "clients", task.Client)
	}
	ext := ".md"
	content := []byte(md)
	if c.html {
		var buf bytes.Buffer
		if err := renderer.WriteHTML(&buf, md); err != nil {
			return err
		}
		ext, content = ".html", buf.Bytes()
	}
	fullPath := filepath.Join(dir, task.Report+ext)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory for file %s: %w", fullPath, err)
	}
	if err := os.WriteFile(fullPath, content, 0644); err != nil {
		return fmt.Errorf("failed to write file %s: %w", fullPath, err)
	}
	return nil
}

func renderFrontMatter(tpl *template.Template, task reportTask) (string, error) {
	var fmBuffer bytes.Buffer
	if err := tpl.Execute(&fmBuffer, task); err != nil {
		return "", err
	}
	return fmBuffer.String(), nil
}
