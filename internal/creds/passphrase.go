// Package creds reads store passphrases from credential files.
package creds

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
)

// ErrInsecureFile is returned when a credential file is readable by others.
var ErrInsecureFile = errors.New("credential file is accessible by group or others")

// File is the JSON credential model. A file holding a bare passphrase on its
// first line is accepted too.
type File struct {
	Passphrase string `json:"passphrase"`
}

// Parse reads a passphrase from JSON or plain text.
func Parse(data []byte) (string, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return "", errors.New("credential file is empty")
	}

	if trimmed[0] == '{' {
		var f File
		if err := json.Unmarshal(trimmed, &f); err != nil {
			return "", fmt.Errorf("parse credential file: %w", err)
		}
		if f.Passphrase == "" {
			return "", errors.New("credential file has no passphrase")
		}
		return f.Passphrase, nil
	}

	line, _, _ := strings.Cut(string(trimmed), "\n")
	return strings.TrimRight(line, "\r"), nil
}

// LoadFromFile reads the passphrase at path. On Unix the file must not be
// accessible by group or others.
func LoadFromFile(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if runtime.GOOS != "windows" && info.Mode().Perm()&0o077 != 0 {
		return "", fmt.Errorf("%s: %w (mode %o)", path, ErrInsecureFile, info.Mode().Perm())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return Parse(data)
}
