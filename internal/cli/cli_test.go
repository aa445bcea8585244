package cli

import (
	"bytes"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestNextCommand(t *testing.T) {
	out, err := execute(t, "next", "--from", "2026-02-08T10:00:00Z", "-n", "3", "* * * * * 0/3")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"2026-02-08 10:00:03 UTC",
		"2026-02-08 10:00:06 UTC",
		"2026-02-08 10:00:09 UTC",
	}, strings.Split(strings.TrimSpace(out), "\n"))
}

func TestNextCommandSplitArgs(t *testing.T) {
	out, err := execute(t, "next", "--from", "2026-02-08T10:00:00Z", "-n", "1", "--tz", "Asia/Tokyo", "0", "3", "*", "*", "*")
	require.NoError(t, err)
	assert.Equal(t, "2026-02-09 03:00:00 JST", strings.TrimSpace(out))
}

func TestNextCommandErrors(t *testing.T) {
	_, err := execute(t, "next", "* * *")
	assert.ErrorContains(t, err, "invalid cron expression")

	_, err = execute(t, "next", "--tz", "Nowhere/City", "* * * * *")
	assert.Error(t, err)

	_, err = execute(t, "next", "--from", "yesterday", "* * * * *")
	assert.ErrorContains(t, err, "--from")
}

func TestDemoCommand(t *testing.T) {
	if testing.Short() {
		t.Skip("demo runs for several seconds")
	}
	out, err := execute(t, "demo", "--for", "4500ms", "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "cron started")
	assert.Contains(t, out, "every 3s")
	assert.Contains(t, out, "every 4s")
	assert.Contains(t, out, "cron finished")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(out), "demo finished"))
}

func TestRunCommandMissingConfig(t *testing.T) {
	_, err := execute(t, "run", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestRunCommandExhausted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cronlite.json")
	body := `{"logging":{"level":"error"},"jobs":[{"name":"old","cron":"* * * * *","command":"true","until":"2001-01-01T00:00:00Z"}]}`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	_, err := execute(t, "run", "--config", path, "--shutdown-timeout", "2s")
	assert.NoError(t, err)
}
