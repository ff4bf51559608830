package commands_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/piecebook/internal/commands"
	"github.com/cleared-dev/piecebook/internal/config"
	"github.com/cleared-dev/piecebook/internal/journal"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := commands.NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// initProject bootstraps a sqlite-backed project and returns its config path.
func initProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	out, err := run(t, "init", dir, "--name", "Atlas SARL", "--fiscal-year", "2026",
		"--tenant-id", "t1", "--organization-id", "org-1")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Initialized Atlas SARL (tenant t1, fiscal year 2026)")
	return filepath.Join(dir, config.FileName)
}

func TestInit_WritesConfigAndDatabase(t *testing.T) {
	cfgPath := initProject(t)

	cfg, err := config.Load(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "t1", cfg.Tenant.ID)
	assert.Equal(t, "org-1", cfg.Tenant.OrganizationID)
	assert.Equal(t, config.DriverSQLite, cfg.Database.Driver)

	_, err = os.Stat(filepath.Join(filepath.Dir(cfgPath), "piecebook.db"))
	require.NoError(t, err)

	out, err := run(t, "accounts", "journals", "-c", cfgPath)
	require.NoError(t, err, out)
	for _, code := range []string{"ACH", "VTE", "BNQ", "CAI", "OD", "RAN"} {
		assert.Contains(t, out, code)
	}
}

func TestInit_RequiresName(t *testing.T) {
	_, err := run(t, "init", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name")
}

func TestInit_RejectsUnknownDriver(t *testing.T) {
	_, err := run(t, "init", t.TempDir(), "--name", "x", "--driver", "mysql")
	assert.ErrorContains(t, err, "database.driver")
}

func TestPiecePost_Scenario(t *testing.T) {
	cfgPath := initProject(t)

	out, err := run(t, "piece", "post", "-c", cfgPath, "-j", "ACH", "-d", "2026-01-05", "-r", "FA-118",
		"-l", "600000:D:1000", "-l", "401000:C:1000:F001:Fournisseur")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Posted ACH 00001")

	_, err = run(t, "piece", "post", "-c", cfgPath, "-j", "ACH", "-d", "2026-01-06",
		"-l", "600000:D:500", "-l", "401000:C:400:F001")
	var ue journal.UnbalancedEntryError
	require.ErrorAs(t, err, &ue)

	_, err = run(t, "piece", "post", "-c", cfgPath, "-j", "ACH", "-d", "2026-01-01",
		"-l", "600000:D:1000", "-l", "401000:C:1000:F001")
	var ce journal.ChronologyViolationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "00001", ce.ConflictingNumber)

	_, err = run(t, "piece", "post", "-c", cfgPath, "-j", "ACH", "-d", "2026-01-07",
		"-l", "600000:D:1000", "-l", "401000:C:1000")
	var me journal.MissingAuxiliaryError
	require.ErrorAs(t, err, &me)

	out, err = run(t, "piece", "list", "ACH", "-c", cfgPath)
	require.NoError(t, err, out)
	assert.Contains(t, out, "00001")
	assert.Contains(t, out, "FA-118")
	assert.NotContains(t, out, "00002")

	out, err = run(t, "activity", "list", "-c", cfgPath, "--actor", "alice")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Created piece 00001")
	assert.Contains(t, out, "cli")
}

func TestPiece_ExportImport(t *testing.T) {
	cfgPath := initProject(t)
	dir := filepath.Dir(cfgPath)

	for _, d := range []string{"2026-01-05", "2026-01-09"} {
		out, err := run(t, "piece", "post", "-c", cfgPath, "-j", "ACH", "-d", d,
			"-l", "600000:D:250.40", "-l", "445660:D:47.58", "-l", "401000:C:297.98:F001")
		require.NoError(t, err, out)
	}

	export := filepath.Join(dir, "ach.csv")
	out, err := run(t, "piece", "export", "ACH", "-c", cfgPath, "-o", export)
	require.NoError(t, err, out)
	data, err := os.ReadFile(export)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), journal.Header+"\n"))
	assert.Equal(t, 1+6, strings.Count(string(data), "\n"))

	// Re-importing appends fresh numbers; the 01-05 piece now predates 00002.
	out, err = run(t, "piece", "import", export, "-c", cfgPath)
	var ce journal.ChronologyViolationError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, out, "Imported 0 of 2 pieces")
}

func TestPiece_UpdateShowDelete(t *testing.T) {
	cfgPath := initProject(t)
	_, err := run(t, "piece", "post", "-c", cfgPath, "-j", "VTE", "-d", "2026-02-01",
		"-l", "411000:D:1190:CL001", "-l", "700000:C:1000", "-l", "445710:C:190")
	require.NoError(t, err)

	out, err := run(t, "piece", "list", "VTE", "-c", cfgPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	fields := strings.Fields(lines[1])
	pieceID := fields[len(fields)-1]

	out, err = run(t, "piece", "update", pieceID, "-c", cfgPath, "-d", "2026-02-03",
		"-l", "411000:D:595:CL001", "-l", "700000:C:500", "-l", "445710:C:95")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Updated piece 00001 dated 2026-02-03")

	out, err = run(t, "piece", "show", pieceID, "-c", cfgPath)
	require.NoError(t, err, out)
	assert.Contains(t, out, "595.00")
	assert.Contains(t, out, "445710")

	out, err = run(t, "piece", "delete", pieceID, "-c", cfgPath)
	require.NoError(t, err, out)

	_, err = run(t, "piece", "show", pieceID, "-c", cfgPath)
	assert.ErrorIs(t, err, journal.ErrPieceNotFound)
}

func TestAccounts_ImportExport(t *testing.T) {
	cfgPath := initProject(t)
	dir := filepath.Dir(cfgPath)

	chart := filepath.Join(dir, "extra.csv")
	require.NoError(t, os.WriteFile(chart, []byte(
		"code,label,class,type,auxiliary_required\n"+
			"626000,Frais postaux,6,expense,false\n"+
			"401000,Fournisseurs,4,liability,true\n"), 0o644))

	out, err := run(t, "accounts", "import", chart, "-c", cfgPath)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Created 1 of 2 accounts")

	out, err = run(t, "accounts", "list", "-c", cfgPath)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Frais postaux")

	out, err = run(t, "accounts", "list", "--type", "liability", "-c", cfgPath)
	require.NoError(t, err, out)
	assert.Contains(t, out, "401000")
	assert.NotContains(t, out, "Frais postaux")

	_, err = run(t, "accounts", "list", "--type", "cost", "-c", cfgPath)
	assert.ErrorContains(t, err, `unknown account type "cost"`)

	out, err = run(t, "accounts", "export", "-c", cfgPath)
	require.NoError(t, err, out)
	assert.Contains(t, out, "401000,Fournisseurs,4,liability,true")

	out, err = run(t, "accounts", "auxiliaries", "-c", cfgPath)
	require.NoError(t, err, out)
	assert.Contains(t, out, "F001")
	assert.Contains(t, out, "CL001")
}

func TestActivityExport(t *testing.T) {
	cfgPath := initProject(t)
	_, err := run(t, "piece", "post", "-c", cfgPath, "--actor", "alice", "-j", "BNQ", "-d", "2026-03-01",
		"-l", "512000:D:100", "-l", "411000:C:100:CL001")
	require.NoError(t, err)

	out, err := run(t, "activity", "export", "-c", cfgPath)
	require.NoError(t, err, out)
	assert.True(t, strings.HasPrefix(out, "created_at,type,description,actor_id,entity_type,entity_id\n"))
	assert.Contains(t, out, "PIECE_CREATED,Created piece 00001,alice,PIECE,")
}

func TestMissingConfig(t *testing.T) {
	_, err := run(t, "accounts", "list", "-c", filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseLineFlag_Errors(t *testing.T) {
	cfgPath := initProject(t)
	tests := []struct {
		line string
		want string
	}{
		{"600000:D", "want ACCOUNT"},
		{"600000:X:10", "want D or C"},
		{"600000:D:ten", "parsing amount"},
		{"401000:C:10:F999", "unknown auxiliary"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			_, err := run(t, "piece", "post", "-c", cfgPath, "-j", "ACH", "-d", "2026-01-05",
				"-l", tt.line, "-l", "512000:C:10")
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestPieceImportBank(t *testing.T) {
	cfgPath := initProject(t)
	statement := filepath.Join(filepath.Dir(cfgPath), "releve.csv")
	require.NoError(t, os.WriteFile(statement, []byte(
		"date,label,amount\n"+
			"2026-01-10,VIREMENT CLIENT ALPHA,119000.00\n"+
			"2026-01-03,SONELGAZ FACTURE 0112,-4520.00\n"), 0o644))

	out, err := run(t, "piece", "import-bank", statement, "-c", cfgPath,
		"--counterpart", "411000", "--counterpart-auxiliary", "CL001")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Imported 2 of 2 statement lines")

	out, err = run(t, "piece", "list", "BNQ", "-c", cfgPath)
	require.NoError(t, err, out)
	assert.Regexp(t, `00001\s+2026-01-03\s+bnq_20260103_SONELGAZFA`, out)
	assert.Regexp(t, `00002\s+2026-01-10`, out)

	_, err = run(t, "piece", "import-bank", statement, "-c", cfgPath, "--format", "ofx")
	assert.ErrorContains(t, err, "unknown statement format")
}
