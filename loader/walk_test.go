package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()

	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
}

func TestWalk(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"a.txt":                  "a",
		"b.md":                   "b",
		"image.png":              "skip",
		".gitignore":             "drafts/\n*.tmp.txt\n",
		"drafts/draft.txt":       "ignored",
		"notes/keep.txt":         "keep",
		"notes/scratch.tmp.txt":  "ignored",
		"notes/.docsumignore":    "/private.md\n",
		"notes/private.md":       "ignored",
		"notes/deep/private.md":  "kept, only notes/private.md is ignored",
		".hidden/secret.txt":     "ignored",
		"site/index.html":        "<p>page</p>",
		"site/assets/report.pdf": "pdf",
	})

	files, err := Walk(root)
	require.NoError(t, err)

	rel := make([]string, len(files))
	for i, file := range files {
		r, err := filepath.Rel(root, file)
		require.NoError(t, err)
		rel[i] = filepath.ToSlash(r)
	}

	assert.Equal(t, []string{
		"a.txt",
		"b.md",
		"notes/deep/private.md",
		"notes/keep.txt",
		"site/assets/report.pdf",
		"site/index.html",
	}, rel)
}

func TestWalk_MissingRoot(t *testing.T) {
	_, err := Walk(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
