package creds_test

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/casevault/internal/creds"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    string
		wantErr bool
	}{
		{"plain", "alpha123\n", "alpha123", false},
		{"plain crlf", "alpha123\r\nignored\r\n", "alpha123", false},
		{"json", `{"passphrase": "alpha 123"}`, "alpha 123", false},
		{"json without passphrase", `{"other": 1}`, "", true},
		{"broken json", `{"passphrase":`, "", true},
		{"empty", "  \n", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := creds.Parse([]byte(tt.data))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "passphrase")
	require.NoError(t, os.WriteFile(path, []byte("alpha123\n"), 0600))

	got, err := creds.LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "alpha123", got)
}

func TestLoadFromFileRejectsSharedFile(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not enforced on windows")
	}

	path := filepath.Join(t.TempDir(), "passphrase")
	require.NoError(t, os.WriteFile(path, []byte("alpha123\n"), 0600))
	require.NoError(t, os.Chmod(path, 0644))

	_, err := creds.LoadFromFile(path)
	assert.ErrorIs(t, err, creds.ErrInsecureFile)
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := creds.LoadFromFile(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
