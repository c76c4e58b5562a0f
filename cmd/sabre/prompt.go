package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/chzyer/readline"
)

var errNoTerminal = errors.New("password not configured and stdin is not a terminal (set MYTHX_PASSWORD)")

// promptPassword asks for the account password without echoing it
func promptPassword(address string) (string, error) {
	if !readline.IsTerminal(int(os.Stdin.Fd())) {
		return "", errNoTerminal
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "",
		InterruptPrompt: "^C",
		Stdout:          os.Stderr,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	pw, err := rl.ReadPassword(fmt.Sprintf("Password for %s: ", address))
	if err != nil {
		if errors.Is(err, readline.ErrInterrupt) {
			return "", errors.New("password prompt interrupted")
		}
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return string(pw), nil
}
