package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/manifoldco/promptui"
	"golang.org/x/term"
)

var errNotInteractive = errors.New("not running in a terminal")

// prompter asks the user for values that were not passed as flags
type prompter interface {
	Text(label, defaultValue string) (string, error)
	Secret(label string) (string, error)
}

type terminalPrompter struct{}

func (terminalPrompter) Text(label, defaultValue string) (string, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return "", errNotInteractive
	}

	prompt := promptui.Prompt{
		Label:   label,
		Default: defaultValue,
	}
	value, err := prompt.Run()
	if err != nil {
		return "", fmt.Errorf("%s prompt cancelled: %w", label, err)
	}
	return value, nil
}

func (terminalPrompter) Secret(label string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errNotInteractive
	}

	fmt.Fprintf(os.Stderr, "%s: ", label)
	value, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", label, err)
	}
	return string(value), nil
}
