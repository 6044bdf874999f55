package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lfcamargo/portatrack/internal/testutil"
)

// cliFixture is a working directory with a rule table, a config file, and
// a record store path, ready for command execution.
type cliFixture struct {
	dir      string
	config   string
	rules    string
	database string
}

func newCLIFixture(t *testing.T) *cliFixture {
	t.Helper()
	dir := t.TempDir()

	rulesPath := testutil.WriteRuleTable(t, dir, [][]string{
		testutil.Row("1", "Portado", "", "", "", "", "", "portability completed", "notify customer", "FINAL"),
		testutil.Row("2", "Portabilidade Cancelada", "", "", "", "", "", "donor cancelled", "reopen ticket", "ALERTA"),
	})
	database := filepath.Join(dir, "records.db")

	configPath := filepath.Join(dir, "portatrack.cue")
	writeFileAt(t, configPath, fmt.Sprintf(
		"rule_source: %q\ndatabase: %q\nparallel: false\nreload_rules: false\n",
		rulesPath, database,
	))

	return &cliFixture{dir: dir, config: configPath, rules: rulesPath, database: database}
}

func writeFileAt(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func (f *cliFixture) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", f.config}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func (f *cliFixture) writeFeed(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(f.dir, name)
	writeFileAt(t, path, content)
	return path
}

const feedHeader = "document_id,access_number,order_number,external_code,ticket_status\n"

func TestProcessCommand_SingleFeed(t *testing.T) {
	f := newCLIFixture(t)
	feed := f.writeFeed(t, "feed.csv", feedHeader+
		"52998224725,11987654321,ORD-1,EXT-1,Portado\n"+
		"11144477735,11912345678,ORD-2,EXT-2,Status Inédito\n"+
		",11999998888,ORD-3,EXT-3,Portado\n")

	out, err := f.run(t, "--format", "json", "process", "--source", "gerenciador", feed)
	require.NoError(t, err)

	var payload []struct {
		Source    string `json:"source"`
		Processed int    `json:"processed"`
		Matched   int    `json:"matched"`
		Unmapped  int    `json:"unmapped"`
		Rejected  int    `json:"rejected"`
		Created   int    `json:"created"`
		Errors    int    `json:"errors"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	require.Len(t, payload, 1)
	assert.Equal(t, "gerenciador", payload[0].Source)
	assert.Equal(t, 3, payload[0].Processed)
	assert.Equal(t, 1, payload[0].Matched)
	assert.Equal(t, 1, payload[0].Unmapped)
	assert.Equal(t, 1, payload[0].Rejected)
	assert.Equal(t, 3, payload[0].Created)
	assert.Zero(t, payload[0].Errors)
}

func TestProcessCommand_Manifest(t *testing.T) {
	f := newCLIFixture(t)
	feedA := f.writeFeed(t, "a.csv", feedHeader+"52998224725,11987654321,ORD-1,EXT-1,Portado\n")
	feedB := f.writeFeed(t, "b.csv", feedHeader+"52998224725,11987654321,ORD-1,EXT-1,Portabilidade Cancelada\n")

	manifest := f.writeFeed(t, "feeds.yaml", fmt.Sprintf(
		"feeds:\n  - path: %q\n    source: gerenciador\n  - path: %q\n    source: logistica\n",
		feedA, feedB,
	))

	out, err := f.run(t, "process", "--manifest", manifest)
	require.NoError(t, err)
	assert.Contains(t, out, "gerenciador: 1 processed, 1 matched")
	assert.Contains(t, out, "logistica: 1 processed, 1 matched")

	// The second feed changed the ticket status, so EXT-1 has versions 1
	// and 2; the history command sees both.
	hist, err := f.run(t, "history", "EXT-1", "--changes")
	require.NoError(t, err)
	assert.Contains(t, hist, "v1")
	assert.Contains(t, hist, "v2 (latest)")
	assert.Contains(t, hist, `ticket_status: "Portado" -> "Portabilidade Cancelada"`)
}

func TestProcessCommand_MissingArguments(t *testing.T) {
	f := newCLIFixture(t)

	_, err := f.run(t, "process")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	feed := f.writeFeed(t, "feed.csv", feedHeader+"52998224725,11987654321,ORD-1,EXT-1,Portado\n")
	_, err = f.run(t, "process", feed)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err), "feed file without --source")
}

func TestProcessCommand_BadRuleTablePath(t *testing.T) {
	f := newCLIFixture(t)
	writeFileAt(t, f.config, fmt.Sprintf(
		"rule_source: %q\ndatabase: %q\n",
		filepath.Join(f.dir, "missing.csv"), f.database,
	))
	feed := f.writeFeed(t, "feed.csv", feedHeader+"52998224725,11987654321,ORD-1,EXT-1,Portado\n")

	_, err := f.run(t, "process", "--source", "gerenciador", feed)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestStatusCommand(t *testing.T) {
	f := newCLIFixture(t)
	feed := f.writeFeed(t, "feed.csv", feedHeader+
		"52998224725,11987654321,ORD-1,EXT-1,Portado\n"+
		"11144477735,11912345678,ORD-2,EXT-2,Portabilidade Cancelada\n")

	_, err := f.run(t, "process", "--source", "gerenciador", feed)
	require.NoError(t, err)

	out, err := f.run(t, "status", "--ticket", "Portado")
	require.NoError(t, err)
	assert.Contains(t, out, "EXT-1 v1")
	assert.NotContains(t, out, "EXT-2")
	assert.Contains(t, out, "1 record(s)")
}

func TestHistoryCommand_UnknownID(t *testing.T) {
	f := newCLIFixture(t)
	// Open the store once so the database file exists.
	feed := f.writeFeed(t, "feed.csv", feedHeader+"52998224725,11987654321,ORD-1,EXT-1,Portado\n")
	_, err := f.run(t, "process", "--source", "gerenciador", feed)
	require.NoError(t, err)

	_, err = f.run(t, "history", "EXT-404")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRulesCommand(t *testing.T) {
	f := newCLIFixture(t)

	out, err := f.run(t, "rules")
	require.NoError(t, err)
	assert.Contains(t, out, "2 rule(s), 0 draft(s) pending review")
	assert.Contains(t, out, "Portado")
}

func TestRootCommand_InvalidFormat(t *testing.T) {
	f := newCLIFixture(t)
	_, err := f.run(t, "--format", "xml", "rules")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}
