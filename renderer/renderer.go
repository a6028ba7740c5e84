// Package renderer turns ledger reports into markdown, terminal, HTML,
// plain table or JSON output.
package renderer

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"text/template"

	"github.com/PaesslerAG/jsonpath"
	"github.com/charmbracelet/glamour"
	"github.com/olekukonko/tablewriter"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

//go:embed *.md
var templates embed.FS

// Align is the alignment of a report column.
type Align string

const (
	Left  Align = "left"
	Right Align = "right"
)

// Report is a titled table together with the records it was built from.
type Report struct {
	Title  string
	Notes  []string
	Header []string
	Align  []Align
	Rows   [][]string
	// Empty is printed instead of the table when there are no rows.
	Empty string
	// Data is what the json format encodes.
	Data any
}

// Format selects how a Report is written.
type Format string

const (
	Markdown Format = "markdown" // rendered for the terminal
	Raw      Format = "raw"      // markdown source
	Table    Format = "table"
	JSON     Format = "json"
	HTML     Format = "html"
)

// Formats lists the accepted formats.
var Formats = []Format{Markdown, Raw, Table, JSON, HTML}

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	for _, f := range Formats {
		if strings.EqualFold(s, string(f)) {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown format %q, want one of %v", s, Formats)
}

// Write writes r to w in the given format. query is a JSONPath expression
// applied to the json output; it is rejected for other formats.
func Write(w io.Writer, r Report, format Format, query string) error {
	if query != "" && format != JSON {
		return fmt.Errorf("a query requires the json format, got %q", format)
	}
	switch format {
	case Raw:
		_, err := io.WriteString(w, RenderMarkdown(r))
		return err
	case Markdown:
		out, err := Terminal(RenderMarkdown(r))
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, out)
		return err
	case Table:
		WriteTable(w, r)
		return nil
	case JSON:
		return WriteJSON(w, r.Data, query)
	case HTML:
		return WriteHTML(w, RenderMarkdown(r))
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

// RenderMarkdown renders r to a markdown string.
func RenderMarkdown(r Report) string {
	partials := map[string]string{
		"report_title": "report_title.md",
		"report_table": "report_table.md",
	}
	return renderTemplate("report", "report.md", partials, r)
}

// Terminal renders markdown for display in a terminal.
func Terminal(md string) (string, error) {
	tr, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		return "", fmt.Errorf("cannot create terminal renderer: %w", err)
	}
	return tr.Render(md)
}

// WriteHTML converts markdown to HTML.
func WriteHTML(w io.Writer, md string) error {
	gm := goldmark.New(goldmark.WithExtensions(extension.Table))
	return gm.Convert([]byte(md), w)
}

// WriteTable writes r as a plain text table.
func WriteTable(w io.Writer, r Report) {
	if len(r.Rows) == 0 {
		fmt.Fprintln(w, r.Empty)
		return
	}
	t := tablewriter.NewWriter(w)
	t.SetHeader(r.Header)
	aligns := make([]int, len(r.Align))
	for i, a := range r.Align {
		aligns[i] = tablewriter.ALIGN_LEFT
		if a == Right {
			aligns[i] = tablewriter.ALIGN_RIGHT
		}
	}
	t.SetColumnAlignment(aligns)
	t.AppendBulk(r.Rows)
	t.Render()
}

// WriteJSON writes v as indented JSON, keeping only what query selects
// when query is not empty.
func WriteJSON(w io.Writer, v any, query string) error {
	if query != "" {
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		d := json.NewDecoder(bytes.NewReader(b))
		d.UseNumber()
		var doc any
		if err := d.Decode(&doc); err != nil {
			return err
		}
		if v, err = jsonpath.Get(query, doc); err != nil {
			return fmt.Errorf("invalid query %q: %w", query, err)
		}
	}
	e := json.NewEncoder(w)
	e.SetIndent("", "  ")
	return e.Encode(v)
}

var funcs = template.FuncMap{
	"join": strings.Join,
	"row": func(cells []string) string {
		escaped := make([]string, len(cells))
		for i, c := range cells {
			escaped[i] = strings.ReplaceAll(c, "|", `\|`)
		}
		return strings.Join(escaped, " | ")
	},
}

// renderTemplate renders a main template that depends on several partials.
func renderTemplate(templateName, mainFile string, partials map[string]string, data any) string {
	mainContent, err := fs.ReadFile(templates, mainFile)
	if err != nil {
		return fmt.Sprintf("error reading main template %q: %v", mainFile, err)
	}

	tmpl, err := template.New(templateName).Funcs(funcs).Parse(string(mainContent))
	if err != nil {
		return fmt.Sprintf("error parsing main template %q: %v", mainFile, err)
	}

	for name, file := range partials {
		content, err := fs.ReadFile(templates, file)
		if err != nil {
			return fmt.Sprintf("error reading partial template %q: %v", file, err)
		}
		if _, err := tmpl.New(name).Parse(string(content)); err != nil {
			return fmt.Sprintf("error parsing partial template %q for %q: %v", file, name, err)
		}
	}

	var b strings.Builder
	if err := tmpl.ExecuteTemplate(&b, templateName, data); err != nil {
		return fmt.Sprintf("error executing template %q: %v", templateName, err)
	}
	return b.String()
}
