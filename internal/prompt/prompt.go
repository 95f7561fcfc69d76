// Package prompt implements interactive confirmation on the terminal.
package prompt

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/icdrive/icdrive/internal/drive"
)

// ErrNotInteractive means a prompt was needed but stdin is not a terminal.
var ErrNotInteractive = fmt.Errorf("prompt: stdin is not a terminal")

// Terminal implements drive.Asker over an input/output stream pair.
type Terminal struct {
	in          *bufio.Reader
	out         io.Writer
	interactive bool
}

// New creates a prompt on stdin/stderr. Prompts fail with ErrNotInteractive
// when stdin is not a TTY, so scripted runs never hang waiting for input.
func New() *Terminal {
	return &Terminal{
		in:          bufio.NewReader(os.Stdin),
		out:         os.Stderr,
		interactive: isatty.IsTerminal(os.Stdin.Fd()),
	}
}

// NewFrom creates a prompt over explicit streams, always interactive.
// Intended for tests.
func NewFrom(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{
		in:          bufio.NewReader(in),
		out:         out,
		interactive: true,
	}
}

// Ask poses a yes/no question. Anything other than y/yes answers no.
func (t *Terminal) Ask(msg string) (bool, error) {
	answer, err := t.read(msg + " [y/N] ")
	if err != nil {
		return false, err
	}

	return answer == "y" || answer == "yes", nil
}

// AskAll poses a yes/no question with "for all remaining" variants:
// y/n decide this item, a/never decide the rest of the batch too.
func (t *Terminal) AskAll(msg string) (drive.Answer, error) {
	for {
		answer, err := t.read(msg + " [y/n/a(ll)/never] ")
		if err != nil {
			return 0, err
		}

		switch answer {
		case "y", "yes":
			return drive.AnswerYes, nil
		case "n", "no", "":
			return drive.AnswerNo, nil
		case "a", "all":
			return drive.AnswerYesAll, nil
		case "never":
			return drive.AnswerNoAll, nil
		}

		fmt.Fprintln(t.out, "please answer y, n, a, or never")
	}
}

func (t *Terminal) read(msg string) (string, error) {
	if !t.interactive {
		return "", ErrNotInteractive
	}

	fmt.Fprint(t.out, msg)

	line, err := t.in.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("prompt: reading answer: %w", err)
	}

	return strings.ToLower(strings.TrimSpace(line)), nil
}
