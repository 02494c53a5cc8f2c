package main

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"golang.org/x/term"

	"github.com/TheMichaelB/casevault/internal/creds"
)

const passphraseEnv = "CASEVAULT_PASSPHRASE"

// resolvePassphrase returns the passphrase from the flag, a credential file,
// the environment or a terminal prompt, in that order. confirm asks twice when
// prompting.
func resolvePassphrase(confirm bool) (string, error) {
	if passphrase != "" {
		return passphrase, nil
	}
	if passphraseFile != "" {
		return creds.LoadFromFile(passphraseFile)
	}
	if env := os.Getenv(passphraseEnv); env != "" {
		return env, nil
	}

	if !term.IsTerminal(int(syscall.Stdin)) {
		return "", fmt.Errorf("no passphrase: use --passphrase or %s", passphraseEnv)
	}

	pass, err := promptPassword("Passphrase: ")
	if err != nil {
		return "", fmt.Errorf("read passphrase: %w", err)
	}
	if confirm {
		again, err := promptPassword("Repeat passphrase: ")
		if err != nil {
			return "", fmt.Errorf("read passphrase: %w", err)
		}
		if again != pass {
			return "", errors.New("passphrases do not match")
		}
	}
	return pass, nil
}

func promptPassword(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)

	// Read without echo
	password, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(os.Stderr)

	if err != nil {
		return "", err
	}
	return string(password), nil
}
