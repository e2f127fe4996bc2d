package security

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateFilePath_RejectsOutsideAllowedBase(t *testing.T) {
	dir := t.TempDir()
	allowed := filepath.Join(dir, "allowed")
	sibling := filepath.Join(dir, "allowedX")
	assert.NoError(t, os.MkdirAll(allowed, 0o755))
	assert.NoError(t, os.MkdirAll(sibling, 0o755))

	result := ValidateFilePath(filepath.Join(sibling, "f.txt"), []string{allowed})
	assert.True(t, result.Rejected)
}

func TestValidateFilePath_AllowsPathWithinBase(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, os.WriteFile(filepath.Join(dir, "report.csv"), []byte("x"), 0o644))

	result := ValidateFilePath(filepath.Join(dir, "report.csv"), []string{dir})
	assert.False(t, result.Rejected)
}

func TestValidateFilePath_RejectsNoAllowedBases(t *testing.T) {
	result := ValidateFilePath("/tmp/anything", nil)
	assert.True(t, result.Rejected)
}

func TestValidateSQL_RejectsDDL(t *testing.T) {
	result := ValidateSQL("DROP TABLE users")
	assert.True(t, result.Rejected)
	assert.Contains(t, result.Reason, "DDL")
}

func TestValidateSQL_RejectsMultiStatement(t *testing.T) {
	result := ValidateSQL("SELECT 1; SELECT 2")
	assert.True(t, result.Rejected)
}

func TestValidateSQL_RejectsComments(t *testing.T) {
	result := ValidateSQL("SELECT * FROM users -- comment")
	assert.True(t, result.Rejected)
}

func TestValidateSQL_RejectsUnqualifiedDelete(t *testing.T) {
	result := ValidateSQL("DELETE FROM users")
	assert.True(t, result.Rejected)
}

func TestValidateSQL_RejectsUpdateWithoutWhere(t *testing.T) {
	result := ValidateSQL("UPDATE users SET active = false")
	assert.True(t, result.Rejected)
}

func TestValidateSQL_AllowsQualifiedStatements(t *testing.T) {
	result := ValidateSQL("SELECT * FROM users WHERE id = 1")
	assert.False(t, result.Rejected)

	result = ValidateSQL("UPDATE users SET active = false WHERE id = 1")
	assert.False(t, result.Rejected)
}

func TestValidateCodeWarnings_FlagsDangerousImport(t *testing.T) {
	warnings := ValidateCodeWarnings("import subprocess\nsubprocess.run(['ls'])")
	assert.NotEmpty(t, warnings)
}

func TestValidateCodeWarnings_CleanCode(t *testing.T) {
	warnings := ValidateCodeWarnings("print('hello')")
	assert.Empty(t, warnings)
}

func TestTruncateSearchQuery_LeavesShortQueryAlone(t *testing.T) {
	assert.Equal(t, "short", TruncateSearchQuery("short"))
}

func TestTruncateSearchQuery_TruncatesLongQuery(t *testing.T) {
	long := strings.Repeat("a", 1000)
	truncated := TruncateSearchQuery(long)
	assert.Len(t, truncated, maxSearchQueryLength)
}

func TestEnsureFileExistsForRead(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "present.txt")
	assert.NoError(t, os.WriteFile(existing, []byte("x"), 0o644))

	assert.NoError(t, EnsureFileExistsForRead(existing))
	assert.Error(t, EnsureFileExistsForRead(filepath.Join(dir, "missing.txt")))
}
