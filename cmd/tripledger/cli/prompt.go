package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/howeyc/gopass"
)

// Prompter asks the user for input.
type Prompter interface {
	// Line reads one echoed line.
	Line(label string) (string, error)
	// Secret reads a value without echoing it.
	Secret(label string) (string, error)
}

// TerminalPrompter reads from the controlling terminal.
type TerminalPrompter struct {
	in      *os.File
	out     io.Writer
	scanner *bufio.Scanner
}

// NewTerminalPrompter prompts on out and reads from in.
func NewTerminalPrompter(in *os.File, out io.Writer) *TerminalPrompter {
	return &TerminalPrompter{in: in, out: out, scanner: bufio.NewScanner(in)}
}

// Line implements Prompter.
func (p *TerminalPrompter) Line(label string) (string, error) {
	fmt.Fprint(p.out, label+": ")
	if !p.scanner.Scan() {
		if err := p.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.ErrUnexpectedEOF
	}
	return strings.TrimSpace(p.scanner.Text()), nil
}

// Secret implements Prompter.
func (p *TerminalPrompter) Secret(label string) (string, error) {
	pass, err := gopass.GetPasswdPrompt(label+": ", false, p.in, p.out)
	if err != nil {
		if errors.Is(err, gopass.ErrInterrupted) {
			return "", errors.New("cli: interrupted")
		}
		return "", err
	}
	return string(pass), nil
}

// ask returns value when set, otherwise prompts for it.
func ask(p Prompter, value, label string) (string, error) {
	if strings.TrimSpace(value) != "" {
		return value, nil
	}
	return p.Line(label)
}

// askNewPassword prompts for a password twice and checks both entries match.
func askNewPassword(p Prompter, label string) (string, error) {
	first, err := p.Secret(label)
	if err != nil {
		return "", err
	}
	second, err := p.Secret("Confirm " + strings.ToLower(label))
	if err != nil {
		return "", err
	}
	if first != second {
		return "", errors.New("passwords do not match")
	}
	return first, nil
}
