// =============================================================================
// lineeditor.go - Line Editor with Dual-Mode Operation
// =============================================================================
//
// The REPL reads input through a LineEditor that picks its input method from
// the environment:
//
//   - Interactive mode (stdin is a TTY): ergochat/readline with Emacs
//     keybindings, persistent history and Ctrl-R search.
//   - Non-interactive mode (piped input, Emacs comint, tests): a bufio.Scanner
//     with the prompt printed manually.
//
// History lives in ~/.dict_history by default, capped at 500 entries.
//
// =============================================================================

package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ergochat/readline"
	"golang.org/x/term"
)

const (
	// historyFileName is the default history file in the home directory.
	historyFileName = ".dict_history"

	// historySize is the maximum number of history entries to retain.
	historySize = 500
)

// LineEditor reads REPL input lines.
type LineEditor struct {
	// interactive is true when input comes from a terminal.
	interactive bool

	// rl is set in interactive mode.
	rl *readline.Instance

	// scanner and out are set in non-interactive mode.
	scanner *bufio.Scanner
	out     io.Writer
}

// GO CONCEPT: Type Assertions on Interfaces
// ------------------------------------------
// NewLineEditor accepts any io.Reader, but only an *os.File can be a
// terminal. The two-value form in.(*os.File) checks the dynamic type without
// panicking, so a strings.Reader in tests simply takes the scanner path.

// NewLineEditor creates a LineEditor reading from in.
//
// Interactive mode is used only when in is a terminal and the process is not
// running inside Emacs, which provides its own line editing. An empty
// historyFile disables persistent history.
func NewLineEditor(in io.Reader, out io.Writer, historyFile string) *LineEditor {
	f, isFile := in.(*os.File)
	interactive := isFile &&
		term.IsTerminal(int(f.Fd())) &&
		os.Getenv("INSIDE_EMACS") == ""

	if !interactive {
		return newScriptedEditor(in, out)
	}

	rl, err := readline.NewFromConfig(&readline.Config{
		HistoryFile:  historyFile,
		HistoryLimit: historySize,

		// Lines are added with SaveToHistory so blank input is skipped.
		DisableAutoSaveHistory: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: readline init failed (%v), using basic input\n", err)
		return newScriptedEditor(in, out)
	}

	return &LineEditor{interactive: true, rl: rl}
}

// newScriptedEditor returns a non-interactive editor over in. The REPL tests
// drive it with a strings.Reader.
func newScriptedEditor(in io.Reader, out io.Writer) *LineEditor {
	return &LineEditor{
		scanner: bufio.NewScanner(in),
		out:     out,
	}
}

// GetLine reads one line of input after showing prompt.
//
// It returns io.EOF when input is exhausted or the user presses Ctrl-D.
// Ctrl-C at the prompt also ends input.
func (le *LineEditor) GetLine(prompt string) (string, error) {
	if le.interactive {
		return le.getInteractiveLine(prompt)
	}
	return le.getNonInteractiveLine(prompt)
}

func (le *LineEditor) getInteractiveLine(prompt string) (string, error) {
	le.rl.SetPrompt(prompt)

	line, err := le.rl.Readline()
	if err != nil {
		if errors.Is(err, readline.ErrInterrupt) {
			return "", io.EOF
		}
		return "", err
	}

	if trimmed := strings.TrimSpace(line); trimmed != "" {
		le.rl.SaveToHistory(trimmed)
	}
	return line, nil
}

func (le *LineEditor) getNonInteractiveLine(prompt string) (string, error) {
	// Comint matches the prompt to find where input begins, so it is
	// printed even without a terminal.
	fmt.Fprint(le.out, prompt)

	if !le.scanner.Scan() {
		if err := le.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return le.scanner.Text(), nil
}

// Close saves history and releases the terminal. It is safe to call more
// than once.
func (le *LineEditor) Close() {
	if le.rl != nil {
		le.rl.Close()
		le.rl = nil
	}
}

// IsInteractive reports whether the editor reads from a terminal.
func (le *LineEditor) IsInteractive() bool {
	return le.interactive
}
