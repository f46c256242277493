package procmgr

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// toolAvailabilityCache caches the results of tool availability checks
// to avoid repeated exec.LookPath calls during test execution
var (
	toolAvailabilityCache = make(map[string]bool)
	toolAvailabilityMu    sync.RWMutex
)

// checkToolCached returns whether a tool is available, using cache
func checkToolCached(toolName string) bool {
	toolAvailabilityMu.RLock()
	if available, ok := toolAvailabilityCache[toolName]; ok {
		toolAvailabilityMu.RUnlock()
		return available
	}
	toolAvailabilityMu.RUnlock()

	toolAvailabilityMu.Lock()
	defer toolAvailabilityMu.Unlock()

	if available, ok := toolAvailabilityCache[toolName]; ok {
		return available
	}

	_, err := exec.LookPath(toolName)
	available := err == nil
	toolAvailabilityCache[toolName] = available
	return available
}

// RequireTool skips the test if the tool is not available in PATH.
func RequireTool(t *testing.T, toolName string) {
	t.Helper()
	if !checkToolCached(toolName) {
		t.Skipf("%s not found in PATH, skipping test", toolName)
	}
}

// RequireUnix skips the test on platforms without POSIX process trees
func RequireUnix(t *testing.T) {
	t.Helper()
	if runtime.GOOS != "linux" && runtime.GOOS != "darwin" {
		t.Skip("test requires linux or darwin")
	}
	RequireTool(t, "sh")
	RequireTool(t, "sleep")
}

// syncBuffer is a bytes.Buffer safe for concurrent writers
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Lines returns the non-empty lines written so far
func (b *syncBuffer) Lines() []string {
	return splitLines(b.String())
}

// lineCollector records lines handed to the queue consumer
type lineCollector struct {
	mu    sync.Mutex
	lines []string
}

func (c *lineCollector) Handle(line string) {
	c.mu.Lock()
	c.lines = append(c.lines, line)
	c.mu.Unlock()
}

func (c *lineCollector) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...)
}

func splitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

func newBufferLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, nil))
}

// newTestSupervisor returns a supervisor with short timeouts that is closed
// when the test ends
func newTestSupervisor(t *testing.T, opts ...Option) *Supervisor {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if testing.Verbose() {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}

	base := []Option{
		WithLogger(logger),
		WithConsole(io.Discard),
		WithStopTimeout(500 * time.Millisecond),
		WithKillGrace(500 * time.Millisecond),
		WithPollInterval(10 * time.Millisecond),
	}
	s := New(append(base, opts...)...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = s.Close(ctx)
	})
	return s
}

// shell spawns a /bin/sh script
func shell(t *testing.T, s *Supervisor, script string, opts ...SpawnOption) int {
	t.Helper()
	pid, err := s.Spawn([]string{"sh", "-c", script}, opts...)
	require.NoError(t, err)
	require.Positive(t, pid)
	return pid
}

// waitForFile waits until the file at path contains substr
func waitForFile(t *testing.T, path, substr string) string {
	t.Helper()
	var content string
	require.Eventually(t, func() bool {
		data, err := os.ReadFile(path)
		if err != nil {
			return false
		}
		content = string(data)
		return strings.Contains(content, substr)
	}, 5*time.Second, 10*time.Millisecond, "%s never contained %q", path, substr)
	return content
}

func tempPath(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join(t.TempDir(), name)
}
