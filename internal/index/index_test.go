package index_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/tagfeed-harvester/internal/index"
)

func writeFile(t *testing.T, root, rel string) {
	t.Helper()
	full := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o750))
	require.NoError(t, os.WriteFile(full, []byte("# doc"), 0o600))
}

func TestBuildIndexesDocumentsAcrossPartitions(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, root, "go/0/first-post-abc/first-post-abc.md")
	writeFile(t, root, "rust/500-999/Second-Post-123/Second-Post-123.md")
	writeFile(t, root, "rust/500-999/Second-Post-123/images/deadbeef.png")
	writeFile(t, root, "notes.txt")

	idx, err := index.Build(root, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, idx.Len())
	assert.True(t, idx.Contains("first-post-abc"))
	assert.True(t, idx.Contains("second-post-123"))
	assert.True(t, idx.Contains("  SECOND-POST-123 "))
	assert.False(t, idx.Contains("deadbeef"))
	assert.False(t, idx.Contains("notes"))
}

func TestBuildMissingRootIsEmpty(t *testing.T) {
	t.Parallel()

	idx, err := index.Build(filepath.Join(t.TempDir(), "absent"), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, idx.Len())
}

func TestRecordIsVisibleToContains(t *testing.T) {
	t.Parallel()

	idx := index.New()
	assert.False(t, idx.Contains("fresh-post"))
	idx.Record(" Fresh-Post ")
	assert.True(t, idx.Contains("fresh-post"))

	idx.Record("   ")
	assert.Equal(t, 1, idx.Len())
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "my-post-1a2b", index.Normalize("  My-Post-1A2B\n"))
	assert.Equal(t, "", index.Normalize(" "))
}

func TestExists(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	assert.True(t, index.Exists(root))
	assert.False(t, index.Exists(filepath.Join(root, "nope")))
}
