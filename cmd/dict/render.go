// =============================================================================
// render.go - Output Rendering (Styled Text or YAML)
// =============================================================================
//
// Results are printed in one of two formats:
//
//   - text: a styled heading per definition ("From WordNet [wn]:"), with the
//     body word-wrapped to the terminal width and indented two spaces.
//     Styling is dropped automatically when output is not a terminal.
//   - yaml: a machine-readable document per result.
//
// =============================================================================

package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/indent"
	"github.com/muesli/reflow/wordwrap"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/attic/dict/dictprotocol"
)

const (
	formatText = "text"
	formatYAML = "yaml"

	defaultWidth = 80
	bodyIndent   = 2
)

// renderer prints protocol results to an output stream.
type renderer struct {
	out    io.Writer
	format string
	width  int

	heading lipgloss.Style
	label   lipgloss.Style
	muted   lipgloss.Style
}

// newRenderer creates a renderer for out. A width of 0 uses the terminal
// width when out is a terminal, else defaultWidth.
func newRenderer(out io.Writer, format string, width int) *renderer {
	if width <= 0 {
		width = terminalWidth(out)
	}

	lr := lipgloss.NewRenderer(out)
	return &renderer{
		out:     out,
		format:  format,
		width:   width,
		heading: lr.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		label:   lr.NewStyle().Foreground(lipgloss.Color("170")),
		muted:   lr.NewStyle().Foreground(lipgloss.Color("241")),
	}
}

func terminalWidth(out io.Writer) int {
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
			return w
		}
	}
	return defaultWidth
}

// Definitions prints every definition of word, or a notice when there are none.
func (r *renderer) Definitions(word string, defs []dictprotocol.Definition) error {
	if r.format == formatYAML {
		return r.yaml(struct {
			Word        string                    `yaml:"word"`
			Definitions []dictprotocol.Definition `yaml:"definitions"`
		}{word, defs})
	}

	if len(defs) == 0 {
		_, err := fmt.Fprintf(r.out, "No definitions found for %q.\n", word)
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", r.muted.Render(fmt.Sprintf("%d definition(s) found", len(defs))))
	for _, d := range defs {
		source := d.Database
		if d.DatabaseDescription != "" {
			source = fmt.Sprintf("%s [%s]", d.DatabaseDescription, d.Database)
		}
		fmt.Fprintf(&b, "\n%s\n", r.heading.Render("From "+source+":"))
		b.WriteString(r.body(d.Body))
	}
	_, err := io.WriteString(r.out, b.String())
	return err
}

// Matches prints the matched words, one per line.
func (r *renderer) Matches(word string, matches *dictprotocol.MatchSet) error {
	words := matches.Words()
	if r.format == formatYAML {
		return r.yaml(struct {
			Word    string   `yaml:"word"`
			Matches []string `yaml:"matches"`
		}{word, words})
	}

	if len(words) == 0 {
		_, err := fmt.Fprintf(r.out, "No matches found for %q.\n", word)
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", r.muted.Render(fmt.Sprintf("%d match(es) found", len(words))))
	for _, w := range words {
		fmt.Fprintf(&b, "  %s\n", w)
	}
	_, err := io.WriteString(r.out, b.String())
	return err
}

// Databases prints the databases sorted by name.
func (r *renderer) Databases(databases map[string]dictprotocol.Database) error {
	names := make([]string, 0, len(databases))
	for name := range databases {
		names = append(names, name)
	}
	sort.Strings(names)

	list := make([]dictprotocol.Database, len(names))
	for i, name := range names {
		list[i] = databases[name]
	}

	if r.format == formatYAML {
		return r.yaml(struct {
			Databases []dictprotocol.Database `yaml:"databases"`
		}{list})
	}
	if len(list) == 0 {
		_, err := fmt.Fprintln(r.out, "No databases present.")
		return err
	}

	rows := make([][2]string, len(list))
	for i, db := range list {
		rows[i] = [2]string{db.Name, db.Description}
	}
	return r.table(rows)
}

// Strategies prints the strategies in server order.
func (r *renderer) Strategies(strategies *dictprotocol.StrategySet) error {
	list := strategies.Strategies()
	if r.format == formatYAML {
		return r.yaml(struct {
			Strategies []dictprotocol.Strategy `yaml:"strategies"`
		}{list})
	}
	if len(list) == 0 {
		_, err := fmt.Fprintln(r.out, "No strategies available.")
		return err
	}

	rows := make([][2]string, len(list))
	for i, s := range list {
		rows[i] = [2]string{s.Name, s.Description}
	}
	return r.table(rows)
}

// Text prints an opaque text body such as SHOW INFO output.
func (r *renderer) Text(title, text string) error {
	if r.format == formatYAML {
		return r.yaml(struct {
			Title string `yaml:"title"`
			Text  string `yaml:"text"`
		}{title, text})
	}
	if text == "" {
		_, err := fmt.Fprintf(r.out, "No information for %s.\n", title)
		return err
	}
	_, err := fmt.Fprintf(r.out, "%s\n%s", r.heading.Render(title+":"), r.body(strings.Split(text, "\n")))
	return err
}

// body wraps and indents definition lines. Blank lines are kept.
func (r *renderer) body(lines []string) string {
	wrapWidth := r.width - bodyIndent
	if wrapWidth < 20 {
		wrapWidth = 20
	}

	var b strings.Builder
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			b.WriteString("\n")
			continue
		}
		b.WriteString(indent.String(wordwrap.String(line, wrapWidth), bodyIndent))
		b.WriteString("\n")
	}
	return b.String()
}

func (r *renderer) table(rows [][2]string) error {
	nameWidth := 0
	for _, row := range rows {
		if len(row[0]) > nameWidth {
			nameWidth = len(row[0])
		}
	}

	var b strings.Builder
	for _, row := range rows {
		name := row[0] + strings.Repeat(" ", nameWidth-len(row[0]))
		fmt.Fprintf(&b, "  %s  %s\n", r.label.Render(name), row[1])
	}
	_, err := io.WriteString(r.out, b.String())
	return err
}

func (r *renderer) yaml(doc any) error {
	enc := yaml.NewEncoder(r.out)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}
