package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "kagazi dev\n", out)
}

func TestOrderThenPortfolio(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "ledger.db")
	jr := filepath.Join(dir, "journal.db")
	cfg := filepath.Join(dir, "kagazi.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("execution:\n  max_slippage: 0\n"), 0o644))
	base := []string{"--config", cfg, "--db", db, "--journal", jr, "--log-level", "error"}

	out, err := run(t, append(base, "order", "buy", "X", "10", "--price", "100")...)
	require.NoError(t, err)
	assert.Contains(t, out, "EXECUTED")

	out, err = run(t, append(base, "portfolio")...)
	require.NoError(t, err)
	assert.Contains(t, out, "PAPER-001")
	assert.Contains(t, out, "998,999.46")
	assert.Contains(t, out, "last snapshot")
	assert.Contains(t, out, "X")

	out, err = run(t, append(base, "trades")...)
	require.NoError(t, err)
	assert.Contains(t, out, "BUY")
}

func TestBadLogLevel(t *testing.T) {
	_, err := run(t, "--log-level", "loud", "version")
	assert.Error(t, err)
}

func TestConfigWriteThenLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kagazi.yaml")

	out, err := run(t, "--db", filepath.Join(dir, "custom.db"), "config", "--write", path)
	require.NoError(t, err)
	assert.Contains(t, out, "wrote")

	out, err = run(t, "--config", path, "config")
	require.NoError(t, err)
	assert.Contains(t, out, "custom.db")
	assert.Contains(t, out, "PAPER-001")
}
