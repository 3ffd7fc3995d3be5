package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabriziosalmi/checkmate/internal/check"
)

// execute runs the CLI against args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "checkmate", cmd.Use)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"serve", "initdb", "send", "confirm", "snooze", "sweep", "score"}

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

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	dbFlag := cmd.PersistentFlags().Lookup("db")
	require.NotNil(t, dbFlag)
	assert.Equal(t, "", dbFlag.DefValue)
}

func TestInvalidFormatRejected(t *testing.T) {
	_, err := execute(t, "--format", "xml", "score")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestInitDBSeedAndScore(t *testing.T) {
	db := filepath.Join(t.TempDir(), "cli.db")

	out, err := execute(t, "--db", db, "initdb", "--seed", "alice", "--seed", "bob")
	require.NoError(t, err)
	assert.Contains(t, out, "2 users seeded")

	// Seeding is idempotent.
	out, err = execute(t, "--db", db, "initdb", "--seed", "alice")
	require.NoError(t, err)
	assert.Contains(t, out, "0 users seeded")

	out, err = execute(t, "--db", db, "--format", "json", "score")
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   []struct {
			ID    string `json:"id"`
			Score int    `json:"score"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "alice", resp.Data[0].ID)
	assert.Equal(t, 0, resp.Data[0].Score)
}

func TestInitDBResetVerifyConflict(t *testing.T) {
	db := filepath.Join(t.TempDir(), "cli.db")
	_, err := execute(t, "--db", db, "initdb", "--reset", "--verify")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, ExitCode(err))
}

func TestInitDBVerify(t *testing.T) {
	db := filepath.Join(t.TempDir(), "cli.db")
	_, err := execute(t, "--db", db, "initdb")
	require.NoError(t, err)

	out, err := execute(t, "--db", db, "initdb", "--verify")
	require.NoError(t, err)
	assert.Contains(t, out, "schema ok")
}

func TestSendConfirmRoundTrip(t *testing.T) {
	db := filepath.Join(t.TempDir(), "cli.db")
	_, err := execute(t, "--db", db, "initdb", "--seed", "alice", "--seed", "bob")
	require.NoError(t, err)

	out, err := execute(t, "--db", db, "--format", "json", "send", "alice", "bob", "water break")
	require.NoError(t, err)

	var sent struct {
		Data struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &sent))
	require.NotEmpty(t, sent.Data.ID)
	assert.Equal(t, "pending", sent.Data.Status)

	out, err = execute(t, "--db", db, "confirm", "bob", sent.Data.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "confirmed")
	assert.Contains(t, out, "+10 receiver")

	// The winner already resolved it; a second confirm is a failure exit.
	out, err = execute(t, "--db", db, "confirm", "bob", sent.Data.ID)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, ExitCode(err))
	assert.Contains(t, out, string(check.CodeAlreadyResolved))
}

func TestSendDomainErrors(t *testing.T) {
	db := filepath.Join(t.TempDir(), "cli.db")
	_, err := execute(t, "--db", db, "initdb", "--seed", "alice", "--seed", "bob")
	require.NoError(t, err)

	// Unknown receiver.
	out, err := execute(t, "--db", db, "send", "alice", "nobody")
	require.Error(t, err)
	assert.Contains(t, out, string(check.CodeNotFound))

	// Second send while the pair is busy.
	_, err = execute(t, "--db", db, "send", "alice", "bob")
	require.NoError(t, err)
	out, err = execute(t, "--db", db, "send", "bob", "alice")
	require.Error(t, err)
	assert.Contains(t, out, string(check.CodeExchangeBusy))
}

func TestSweepEmpty(t *testing.T) {
	db := filepath.Join(t.TempDir(), "cli.db")
	_, err := execute(t, "--db", db, "initdb")
	require.NoError(t, err)

	out, err := execute(t, "--db", db, "sweep")
	require.NoError(t, err)
	assert.Contains(t, out, "expired 0 check(s)")
}
