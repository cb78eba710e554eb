package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_Subcommands(t *testing.T) {
	cmd := NewRootCommand()

	for _, name := range []string{"run", "list", "history"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, sub.Name())
	}
}

func TestRootCommand_GlobalFlags(t *testing.T) {
	cmd := NewRootCommand()
	flags := cmd.PersistentFlags()

	verbose := flags.Lookup("verbose")
	require.NotNil(t, verbose)
	assert.Equal(t, "v", verbose.Shorthand)
	assert.Equal(t, "false", verbose.DefValue)

	format := flags.Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)

	require.NotNil(t, flags.Lookup("config"))
}

func TestIsValidFormat(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))
	assert.False(t, isValidFormat("yaml"))
	assert.False(t, isValidFormat(""))
}

func TestExecute_InvalidFormat(t *testing.T) {
	code, _, stderr := execute(t, "--format", "yaml", "list", "--suite", "x.yaml")

	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, stderr, `invalid format "yaml"`)
}

func TestExecute_JSONErrors(t *testing.T) {
	code, stdout, stderr := execute(t, "--format", "json", "list")

	assert.Equal(t, ExitCommandError, code)
	assert.Empty(t, stdout)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(stderr), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ExitCommandError, resp.Error.Code)
	assert.Equal(t, "--suite is required", resp.Error.Message)
}

func TestExecute_UnknownCommand(t *testing.T) {
	code, _, stderr := execute(t, "bogus")

	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, stderr, `unknown command "bogus"`)
}

func TestLoadConfig_ListFlags(t *testing.T) {
	dir := t.TempDir()
	suite := writeFile(t, dir, "suite.yaml", passingSuite)
	config := writeFile(t, dir, "conform.yaml", "suite: '"+suite+"'\nfilter: '*.Validator'\nformat: json\n")

	code, stdout, stderr := execute(t, "--config", config, "list")
	require.Equal(t, ExitSuccess, code, stderr)

	var resp struct {
		Data []CaseSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "Required.Proto3.JsonInput.EnumFieldUnknownValue.Validator", resp.Data[0].Name)
}

func TestLoadConfig_InvalidFile(t *testing.T) {
	dir := t.TempDir()
	config := writeFile(t, dir, "conform.yaml", "suite: [unterminated\n")

	code, _, stderr := execute(t, "--config", config, "list")
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, stderr, "failed to load config")
}

func TestLoadConfig_NoDefaultFile(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("HOME", t.TempDir())

	code, _, stderr := execute(t, "list", "--suite", filepath.Join(t.TempDir(), "none.yaml"))
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, stderr, "failed to load suite")
	assert.NotContains(t, stderr, "failed to load config")
}
