package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/casevault/internal/config"
	"github.com/TheMichaelB/casevault/internal/crypto"
	"github.com/TheMichaelB/casevault/internal/engine"
	"github.com/TheMichaelB/casevault/internal/engine/sqlite"
	"github.com/TheMichaelB/casevault/internal/events"
)

// FastIterations keeps PBKDF2 cheap in tests.
const FastIterations = 1000

// FastKDF returns a PBKDF2 KDF with a low work factor.
func FastKDF() crypto.KDF {
	return crypto.NewPBKDF2(FastIterations)
}

// Loader returns the SQLite engine loader, failing the test if the runtime
// is unavailable in this build.
func Loader(t testing.TB) engine.Loader {
	t.Helper()
	load := sqlite.Loader(events.Nop())
	_, err := load(context.Background())
	require.NoError(t, err, "sqlite runtime requires cgo")
	return load
}

// TestContext creates a test context with a reasonable timeout.
func TestContext(t testing.TB) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// TestConfig returns a configuration for a file-backed store under dir.
func TestConfig(dir string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Store.Backend = config.BackendFile
	cfg.Store.Path = dir
	cfg.KDF.Iterations = FastIterations
	cfg.Log.Level = "debug"
	cfg.Log.Format = "json"
	return cfg
}

// LogEntry is one decoded JSON log line.
type LogEntry map[string]interface{}

// Level returns the entry's level.
func (e LogEntry) Level() string {
	s, _ := e["level"].(string)
	return s
}

// Message returns the entry's message.
func (e LogEntry) Message() string {
	s, _ := e["msg"].(string)
	return s
}

// LogOutput captures JSON log output for assertions.
type LogOutput struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

// NewLogger returns a debug JSON logger writing into a new LogOutput.
func NewLogger() (*events.Logger, *LogOutput) {
	out := &LogOutput{}
	return events.NewTestLogger(events.DebugLevel, "json", out), out
}

// Write implements io.Writer.
func (lo *LogOutput) Write(p []byte) (int, error) {
	lo.mu.Lock()
	defer lo.mu.Unlock()
	return lo.buf.Write(p)
}

// String returns everything written so far.
func (lo *LogOutput) String() string {
	lo.mu.Lock()
	defer lo.mu.Unlock()
	return lo.buf.String()
}

// Entries decodes the captured lines.
func (lo *LogOutput) Entries() []LogEntry {
	var entries []LogEntry
	for _, line := range strings.Split(lo.String(), "\n") {
		if line == "" {
			continue
		}
		var entry LogEntry
		if err := json.Unmarshal([]byte(line), &entry); err == nil {
			entries = append(entries, entry)
		}
	}
	return entries
}

// HasMessage reports whether any entry contains message.
func (lo *LogOutput) HasMessage(message string) bool {
	for _, entry := range lo.Entries() {
		if strings.Contains(entry.Message(), message) {
			return true
		}
	}
	return false
}

// HasLevel reports whether any entry was logged at level.
func (lo *LogOutput) HasLevel(level string) bool {
	for _, entry := range lo.Entries() {
		if entry.Level() == level {
			return true
		}
	}
	return false
}
