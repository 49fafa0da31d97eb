package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"
)

// prompter reads one line of input after showing a prompt.
type prompter interface {
	Prompt(prompt string) (string, error)
}

// lineEditor is a liner session with history for the interactive editor.
type lineEditor struct {
	state *liner.State
}

func (e *lineEditor) Prompt(prompt string) (string, error) {
	line, err := e.state.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(line) != "" {
		e.state.AppendHistory(line)
	}
	return line, nil
}

// readerPrompter serves piped input and tests.
type readerPrompter struct {
	in  *bufio.Reader
	out io.Writer
}

func (p *readerPrompter) Prompt(prompt string) (string, error) {
	if _, err := fmt.Fprint(p.out, prompt); err != nil {
		return "", err
	}
	line, err := p.in.ReadString('\n')
	if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// newPrompter returns a line editor when cmd reads from a terminal and a
// plain reader otherwise. The returned func releases the terminal.
func newPrompter(cmd *cobra.Command) (prompter, func()) {
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && f == os.Stdin && isTerminal(f) {
		state := liner.NewLiner()
		state.SetCtrlCAborts(true)
		return &lineEditor{state: state}, func() { _ = state.Close() }
	}
	return &readerPrompter{in: bufio.NewReader(in), out: cmd.ErrOrStderr()}, func() {}
}

// confirm asks a yes/no question; anything but y or yes is no, as is
// end of input.
func confirm(p prompter, question string) (bool, error) {
	answer, err := p.Prompt(question + " [y/N] ")
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
			return false, nil
		}
		return false, err
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true, nil
	}
	return false, nil
}
