package main

import (
	"os"
	"path/filepath"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestSetupLogger(t *testing.T) {
	defer func() {
		log.SetFormatter(&log.TextFormatter{})
		log.SetLevel(log.InfoLevel)
	}()

	require.NoError(t, setupLogger("", ""))
	require.Equal(t, log.InfoLevel, log.GetLevel())
	require.IsType(t, &log.TextFormatter{}, log.StandardLogger().Formatter)

	require.NoError(t, setupLogger("debug", "JSON"))
	require.Equal(t, log.DebugLevel, log.GetLevel())
	require.IsType(t, &log.JSONFormatter{}, log.StandardLogger().Formatter)

	require.Error(t, setupLogger("loud", "text"))
	require.Error(t, setupLogger("info", "xml"))
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, loadDotEnv(filepath.Join(dir, "absent.env")))

	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("MARKETPLACE_TEST_DOTENV=from-file\nMARKETPLACE_TEST_PRESET=from-file\n"), 0o600))
	t.Setenv("MARKETPLACE_TEST_PRESET", "from-env")
	t.Setenv("MARKETPLACE_TEST_DOTENV", "")
	require.NoError(t, os.Unsetenv("MARKETPLACE_TEST_DOTENV"))

	require.NoError(t, loadDotEnv(path))
	require.Equal(t, "from-file", os.Getenv("MARKETPLACE_TEST_DOTENV"))
	require.Equal(t, "from-env", os.Getenv("MARKETPLACE_TEST_PRESET"))
}
