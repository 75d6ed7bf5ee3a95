package migrate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeMigration(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

const validBody = `-- +goose Up
-- +goose StatementBegin
CREATE TABLE widgets (id TEXT PRIMARY KEY);
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
DROP TABLE widgets;
-- +goose StatementEnd
`

func TestValidateDirAcceptsWellFormedMigrations(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "20260101000000_init.sql", validBody)

	require.NoError(t, ValidateDir(dir))
}

func TestValidateDirRejectsBadFilename(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "init.sql", validBody)

	err := ValidateDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid migration filename")
}

func TestValidateDirRejectsDuplicateVersions(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "20260101000000_first.sql", validBody)
	writeMigration(t, dir, "20260101000000_second.sql", validBody)

	err := ValidateDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate migration version")
}

func TestValidateDirRejectsSqliteUnsupportedAlter(t *testing.T) {
	dir := t.TempDir()
	body := strings.Replace(validBody,
		"CREATE TABLE widgets (id TEXT PRIMARY KEY);",
		"ALTER TABLE cache_entries ALTER COLUMN value SET NOT NULL;", 1)
	writeMigration(t, dir, "20260101000000_bad_alter.sql", body)

	err := ValidateDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sqlite does not support")
}

func TestValidateDirRequiresGooseMarkers(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "20260101000000_no_down.sql", "-- +goose Up\nSELECT 1;\n")

	err := ValidateDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "+goose Down")
}

func TestCreateSQLMigrationWritesValidFile(t *testing.T) {
	dir := t.TempDir()

	path, err := CreateSQLMigration(dir, "Add Device Table!")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, "_add_device_table.sql"))

	require.NoError(t, ValidateDir(dir))
}

func TestCreateSQLMigrationRejectsEmptyName(t *testing.T) {
	_, err := CreateSQLMigration(t.TempDir(), "!!!")
	require.Error(t, err)
}
