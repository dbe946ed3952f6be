package cli

import (
	"bytes"
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentcrew/config"
)

func TestParse_Defaults(t *testing.T) {
	f, err := Parse("venuefinder", nil, &bytes.Buffer{}, "venue_finder_output.md")
	require.NoError(t, err)

	assert.Equal(t, ".env", f.EnvFile)
	assert.Equal(t, "info", f.LogLevel)
	assert.Equal(t, "text", f.LogFormat)
	assert.Equal(t, "venue_finder_output.md", f.Output)
	assert.True(t, f.Verbose)
	assert.Equal(t, DefaultTimeout, f.Timeout)
}

func TestParse_Flags(t *testing.T) {
	f, err := Parse("crew", []string{"-verbose=false", "-timeout", "30s", "-output", "x.md", "crew.yaml"}, &bytes.Buffer{}, "out.md")
	require.NoError(t, err)

	assert.False(t, f.Verbose)
	assert.Equal(t, 30*time.Second, f.Timeout)
	assert.Equal(t, "x.md", f.Output)
	assert.Equal(t, []string{"crew.yaml"}, f.Args())
}

func TestParse_Help(t *testing.T) {
	_, err := Parse("basic", []string{"-h"}, &bytes.Buffer{}, "")
	require.ErrorIs(t, err, flag.ErrHelp)
}

func TestFlags_IsSet(t *testing.T) {
	f, err := Parse("crew", []string{"-log-level", "debug"}, &bytes.Buffer{}, "")
	require.NoError(t, err)

	assert.True(t, f.IsSet("log-level"))
	assert.False(t, f.IsSet("log-format"))
}

func TestSetup_MissingCredentials(t *testing.T) {
	t.Setenv(config.EnvSerperKey, "")

	f, err := Parse("venuefinder", []string{"-env", filepath.Join(t.TempDir(), "none.env")}, &bytes.Buffer{}, "")
	require.NoError(t, err)

	_, err = f.Setup(&bytes.Buffer{}, config.EnvSerperKey)
	require.ErrorIs(t, err, config.ErrMissingCredential)
}

func TestSetup_LoadsEnvFile(t *testing.T) {
	t.Setenv(config.EnvTavilyKey, "")
	os.Unsetenv(config.EnvTavilyKey)

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(config.EnvTavilyKey+"=tvly-test\n"), 0o600))

	f, err := Parse("basic", []string{"-env", path, "-log-level", "debug"}, &bytes.Buffer{}, "")
	require.NoError(t, err)

	var logs bytes.Buffer
	logger, err := f.Setup(&logs, config.EnvTavilyKey)
	require.NoError(t, err)

	logger.Debug("ready", "program", "basic")
	assert.Contains(t, logs.String(), "ready")
}

func TestSetup_BadLogLevel(t *testing.T) {
	f, err := Parse("basic", []string{"-env", filepath.Join(t.TempDir(), "none.env"), "-log-level", "loud"}, &bytes.Buffer{}, "")
	require.NoError(t, err)

	_, err = f.Setup(&bytes.Buffer{})
	require.Error(t, err)
}
