package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "tastefi", cmd.Use)
	assert.Contains(t, cmd.Long, "restaurant profiles")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"verify", "test", "keygen", "localnet", "fetch", "list", "idl"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "", configFlag.DefValue)
}

func TestVerifyCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	verifyCmd, _, err := cmd.Find([]string{"verify"})
	require.NoError(t, err)

	for _, name := range []string{"name", "ipfs-hash", "menu-file", "local", "require-cid", "wallet", "rpc-url", "idl", "program"} {
		assert.NotNil(t, verifyCmd.Flags().Lookup(name), "flag --%s", name)
	}
	assert.Equal(t, "restaurant_dashboard", verifyCmd.Flags().Lookup("program").DefValue)
}

func TestTestCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	testCmd, _, err := cmd.Find([]string{"test"})
	require.NoError(t, err)

	updateFlag := testCmd.Flags().Lookup("update")
	require.NotNil(t, updateFlag)
	assert.Equal(t, "false", updateFlag.DefValue)

	filterFlag := testCmd.Flags().Lookup("filter")
	require.NotNil(t, filterFlag)
}

func TestKeygenCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	keygenCmd, _, err := cmd.Find([]string{"keygen"})
	require.NoError(t, err)

	outFlag := keygenCmd.Flags().Lookup("out")
	require.NotNil(t, outFlag)
	assert.Equal(t, "o", outFlag.Shorthand)

	formatFlag := keygenCmd.Flags().Lookup("key-format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "jwk", formatFlag.DefValue)
}

func TestLocalnetCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	localnetCmd, _, err := cmd.Find([]string{"localnet"})
	require.NoError(t, err)

	assert.NotNil(t, localnetCmd.Flags().Lookup("listen"))
	assert.NotNil(t, localnetCmd.Flags().Lookup("db"))
	assert.NotNil(t, localnetCmd.Flags().Lookup("memory"))
}

func TestFormatValidation(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))

	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	_, stderr, code := runCLI(t, "--format", "invalid", "idl")
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, stderr, "invalid format")
}

func TestExecute_UnknownFlagIsCommandError(t *testing.T) {
	_, stderr, code := runCLI(t, "idl", "--nope")
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, stderr, "Error [E_COMMAND]")
}

func TestExecute_JSONErrorOnStdout(t *testing.T) {
	stdout, stderr, code := runCLI(t, "--format", "json", "fetch", "not-an-address")
	assert.Equal(t, ExitCommandError, code)
	assert.Empty(t, stderr)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeCommandError, resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "invalid address")
}
