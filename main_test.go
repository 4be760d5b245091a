package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// commandEnv points every command at a throwaway sqlite file and log file.
func commandEnv(t *testing.T) (logPath string) {
	dir := t.TempDir()
	t.Chdir(dir)
	logPath = filepath.Join(dir, "logs", "server.log")

	t.Setenv("VITRINE_DATABASE", "sqlite3")
	t.Setenv("VITRINE_SQLITE_PATH", filepath.Join(dir, "db", "test.db"))
	t.Setenv("VITRINE_LOG_PATH", logPath)
	t.Setenv("VITRINE_LOG_FORMAT", "json")
	t.Setenv("VITRINE_LOG_LEVEL", "info")

	configPath = ""
	t.Cleanup(func() {
		log.Logger = zerolog.New(os.Stderr)
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	})
	return logPath
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// assertLogReleased checks the command closed the log file on exit: lines logged
// afterwards must not land in it.
func assertLogReleased(t *testing.T, logPath string) {
	t.Helper()
	log.Info().Msg("after-command")

	b, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.NotEmpty(t, b)
	assert.NotContains(t, string(b), "after-command")
}

func TestMigrateReleasesLogFile(t *testing.T) {
	logPath := commandEnv(t)

	_, err := execute(t, migrateCmd())
	require.NoError(t, err)
	assertLogReleased(t, logPath)
}

func TestSeedReleasesLogFile(t *testing.T) {
	logPath := commandEnv(t)

	catalog := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(catalog, []byte("products:\n  - name: Curso\n    plans: [P1]\n"), 0o600))

	out, err := execute(t, seedCmd(), catalog)
	require.NoError(t, err)
	assert.Contains(t, out, "1 produtos carregados")
	assertLogReleased(t, logPath)
}

func TestRevokeReleasesLogFile(t *testing.T) {
	logPath := commandEnv(t)

	_, err := execute(t, migrateCmd())
	require.NoError(t, err)

	// nenhum grant 42: o comando falha, mas ainda precisa liberar o log
	_, err = execute(t, grantsCmd(), "revoke", "42")
	require.Error(t, err)
	assertLogReleased(t, logPath)
}

func TestRevokeRejectsBadID(t *testing.T) {
	commandEnv(t)

	_, err := execute(t, grantsCmd(), "revoke", "abc")
	assert.ErrorContains(t, err, "id inválido")
}
