// Package prompt asks the user questions on the terminal. On a TTY it runs
// a small bubbletea chooser; otherwise it reads answers line by line.
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/nibzard/roadmapper/internal/fsaccess"
	"github.com/nibzard/roadmapper/internal/utils"
)

// maxAttempts bounds how often an unrecognized line answer is re-asked.
const maxAttempts = 3

// Prompter asks yes/no and multiple-choice questions.
type Prompter struct {
	in  io.Reader
	out io.Writer
	br  *bufio.Reader

	// AssumeYes answers every question with its first option.
	AssumeYes bool
	// Interactive selects the bubbletea chooser.
	Interactive bool
}

// New returns a Prompter on in and out. It is interactive when both are
// terminals.
func New(in io.Reader, out io.Writer, assumeYes bool) *Prompter {
	return &Prompter{
		in:          in,
		out:         out,
		br:          bufio.NewReader(in),
		AssumeYes:   assumeYes,
		Interactive: utils.IsInteractive(in, out),
	}
}

var _ fsaccess.Prompter = (*Prompter)(nil)

// Confirm asks a yes/no question. A dismissed prompt or closed input
// returns fsaccess.ErrPromptCancelled.
func (p *Prompter) Confirm(ctx context.Context, question string) (bool, error) {
	if p.AssumeYes {
		return true, nil
	}
	if p.Interactive {
		idx, err := runChooser(ctx, p.in, p.out, question, []string{"Yes", "No"})
		if err != nil {
			return false, err
		}
		return idx == 0, nil
	}

	for range maxAttempts {
		fmt.Fprintf(p.out, "%s [y/N]: ", question)
		line, err := p.readLine(ctx)
		if err != nil {
			return false, err
		}
		switch strings.ToLower(line) {
		case "y", "yes":
			return true, nil
		case "", "n", "no":
			return false, nil
		}
		fmt.Fprintln(p.out, "Please answer y or n.")
	}
	return false, fsaccess.ErrPromptCancelled
}

// Choose asks the user to pick one of options and returns its index.
func (p *Prompter) Choose(ctx context.Context, question string, options []string) (int, error) {
	if len(options) == 0 {
		return 0, errors.New("prompt: no options")
	}
	if p.AssumeYes {
		return 0, nil
	}
	if p.Interactive {
		return runChooser(ctx, p.in, p.out, question, options)
	}

	for range maxAttempts {
		fmt.Fprintln(p.out, question)
		for i, opt := range options {
			fmt.Fprintf(p.out, "  %d) %s\n", i+1, opt)
		}
		fmt.Fprint(p.out, "Choice: ")
		line, err := p.readLine(ctx)
		if err != nil {
			return 0, err
		}
		if line == "" {
			return 0, fsaccess.ErrPromptCancelled
		}
		if idx, ok := matchOption(line, options); ok {
			return idx, nil
		}
		fmt.Fprintf(p.out, "Please enter a number between 1 and %d.\n", len(options))
	}
	return 0, fsaccess.ErrPromptCancelled
}

// matchOption accepts a 1-based number, an option name, or its first letter.
func matchOption(answer string, options []string) (int, bool) {
	if n, err := strconv.Atoi(answer); err == nil {
		if n >= 1 && n <= len(options) {
			return n - 1, true
		}
		return 0, false
	}
	answer = utils.NormalizeName(answer)
	for i, opt := range options {
		if utils.NormalizeName(opt) == answer {
			return i, true
		}
	}
	return shortcut(answer, options)
}

// shortcut matches a single letter against the options' first letters
// when exactly one option starts with it.
func shortcut(key string, options []string) (int, bool) {
	if len([]rune(key)) != 1 {
		return 0, false
	}
	found := -1
	for i, opt := range options {
		if strings.HasPrefix(utils.NormalizeName(opt), key) {
			if found >= 0 {
				return 0, false
			}
			found = i
		}
	}
	return found, found >= 0
}

type lineResult struct {
	line string
	err  error
}

// readLine reads one trimmed line. EOF before any input and a cancelled ctx
// both count as a dismissed prompt.
func (p *Prompter) readLine(ctx context.Context) (string, error) {
	ch := make(chan lineResult, 1)
	go func() {
		line, err := p.br.ReadString('\n')
		ch <- lineResult{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(p.out)
		return "", fmt.Errorf("%w: %w", fsaccess.ErrPromptCancelled, ctx.Err())
	case res := <-ch:
		if res.err != nil {
			if errors.Is(res.err, io.EOF) && strings.TrimSpace(res.line) != "" {
				return strings.TrimSpace(res.line), nil
			}
			if errors.Is(res.err, io.EOF) {
				fmt.Fprintln(p.out)
				return "", fsaccess.ErrPromptCancelled
			}
			return "", res.err
		}
		return strings.TrimSpace(res.line), nil
	}
}
