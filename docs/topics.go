// Package docs embeds the help pages shown by "bocs topic".
//
// readme.md is the index: every "* name: summary" line of it names a page
// name.md, in reading order.
package docs

import (
	"bufio"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strings"
)

//go:embed *.md
var pages embed.FS

// All is the pseudo topic naming every page.
const All = "*"

// Topic is an entry of the index.
type Topic struct {
	Name    string
	Summary string
}

// Topics returns the entries of the index in reading order.
func Topics() ([]Topic, error) {
	index, err := pages.ReadFile("readme.md")
	if err != nil {
		return nil, err
	}
	var topics []Topic
	sc := bufio.NewScanner(strings.NewReader(string(index)))
	for sc.Scan() {
		item, ok := strings.CutPrefix(sc.Text(), "* ")
		if !ok {
			continue
		}
		name, summary, ok := strings.Cut(item, ":")
		if !ok {
			continue
		}
		topics = append(topics, Topic{Name: strings.TrimSpace(name), Summary: strings.TrimSpace(summary)})
	}
	return topics, sc.Err()
}

// Page returns the markdown of a topic, "readme" being the index itself.
func Page(name string) (string, error) {
	content, err := pages.ReadFile(name + ".md")
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("unknown topic %q, run 'bocs topic' for the list", name)
	}
	if err != nil {
		return "", err
	}
	return string(content), nil
}

// Read concatenates the pages of names. All expands to every topic of the
// index.
func Read(names ...string) (string, error) {
	var b strings.Builder
	for _, name := range names {
		expanded := []string{name}
		if name == All {
			topics, err := Topics()
			if err != nil {
				return "", err
			}
			expanded = expanded[:0]
			for _, t := range topics {
				expanded = append(expanded, t.Name)
			}
		}
		for _, n := range expanded {
			page, err := Page(n)
			if err != nil {
				return "", err
			}
			b.WriteString(page)
			b.WriteString("\n")
		}
	}
	return b.String(), nil
}
