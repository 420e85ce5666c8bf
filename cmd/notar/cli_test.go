package notar_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KIWI0912/notar/cmd/notar"
	"github.com/KIWI0912/notar/internal/testutil"
)

// writeTestFile creates a file with the given content and returns its path.
func writeTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// savedIDs parses the "<id> <path>" lines printed by the save command.
func savedIDs(t *testing.T, out string) []string {
	t.Helper()

	var ids []string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		fields := strings.Fields(line)
		if len(fields) == 2 {
			ids = append(ids, fields[0])
		}
	}
	require.NotEmpty(t, ids, "no saved record ids in output: %q", out)
	return ids
}

func TestSaveListExportDelete(t *testing.T) {
	dataDir := t.TempDir()
	docsDir := t.TempDir()

	contract := writeTestFile(t, docsDir, "nda.txt", "this is the contract body")

	out, err := testutil.Execute(t, notar.RootCmd, "save", contract,
		"--data-dir", dataDir, "--template", "nda-v2", "--field", "party=Acme")
	require.NoError(t, err)
	id := savedIDs(t, out)[0]

	// Duplicate content returns the same id.
	out, err = testutil.Execute(t, notar.RootCmd, "save", contract, "--data-dir", dataDir)
	require.NoError(t, err)
	assert.Equal(t, id, savedIDs(t, out)[0])

	out, err = testutil.Execute(t, notar.RootCmd, "list", "--data-dir", dataDir)
	require.NoError(t, err)
	assert.Contains(t, out, id)
	assert.Contains(t, out, "nda.txt")
	assert.Contains(t, out, "not_submitted")

	exported := filepath.Join(docsDir, "rebuilt.txt")
	_, err = testutil.Execute(t, notar.RootCmd, "export", id,
		"--data-dir", dataDir, "--export-out", exported)
	require.NoError(t, err)
	rebuilt, err := os.ReadFile(exported)
	require.NoError(t, err)
	assert.Equal(t, "this is the contract body", string(rebuilt))

	_, err = testutil.Execute(t, notar.RootCmd, "delete", id, "--data-dir", dataDir)
	require.NoError(t, err)
	// Idempotent.
	_, err = testutil.Execute(t, notar.RootCmd, "delete", id, "--data-dir", dataDir)
	require.NoError(t, err)

	out, err = testutil.Execute(t, notar.RootCmd, "list", "--data-dir", dataDir)
	require.NoError(t, err)
	assert.Contains(t, out, "no records")
}

func TestSealVerifyInfo(t *testing.T) {
	dataDir := t.TempDir()
	docsDir := t.TempDir()

	first := writeTestFile(t, docsDir, "a.txt", "document a")
	second := writeTestFile(t, docsDir, "b.txt", "document b")

	_, err := testutil.Execute(t, notar.RootCmd, "save", first, second,
		"--data-dir", dataDir, "--template", "nda-v2")
	require.NoError(t, err)

	out, err := testutil.Execute(t, notar.RootCmd, "seal",
		"--data-dir", dataDir, "--difficulty", "1", "--max-nonce", "1000000")
	require.NoError(t, err)
	assert.Contains(t, out, "sealed 2 records into block 1")

	out, err = testutil.Execute(t, notar.RootCmd, "list", "--data-dir", dataDir)
	require.NoError(t, err)
	assert.Contains(t, out, "confirmed")
	assert.NotContains(t, out, "not_submitted")

	out, err = testutil.Execute(t, notar.RootCmd, "verify",
		"--data-dir", dataDir, "--difficulty", "1", "--max-nonce", "1000000")
	require.NoError(t, err)
	assert.Contains(t, out, "chain valid (2 blocks)")

	out, err = testutil.Execute(t, notar.RootCmd, "info",
		"--data-dir", dataDir, "--difficulty", "1", "--max-nonce", "1000000")
	require.NoError(t, err)
	assert.Contains(t, out, "blocks: 2")

	// Nothing left to seal.
	out, err = testutil.Execute(t, notar.RootCmd, "seal",
		"--data-dir", dataDir, "--difficulty", "1", "--max-nonce", "1000000")
	require.NoError(t, err)
	assert.Contains(t, out, "no records to seal")
}

func TestSealMiningExhausted(t *testing.T) {
	dataDir := t.TempDir()
	docsDir := t.TempDir()

	doc := writeTestFile(t, docsDir, "doc.txt", "document body")
	_, err := testutil.Execute(t, notar.RootCmd, "save", doc, "--data-dir", dataDir)
	require.NoError(t, err)

	_, err = testutil.Execute(t, notar.RootCmd, "seal",
		"--data-dir", dataDir, "--difficulty", "6", "--max-nonce", "4")
	require.Error(t, err)

	// The chain is unmodified and the records are marked failed.
	out, err := testutil.Execute(t, notar.RootCmd, "info",
		"--data-dir", dataDir, "--difficulty", "1", "--max-nonce", "1000000")
	require.NoError(t, err)
	assert.Contains(t, out, "blocks: 1")

	out, err = testutil.Execute(t, notar.RootCmd, "list", "--data-dir", dataDir)
	require.NoError(t, err)
	assert.Contains(t, out, "failed")
}

func TestSaveRequiresFiles(t *testing.T) {
	_, err := executeCommand(notar.RootCmd, "save")
	assert.Error(t, err)
}
