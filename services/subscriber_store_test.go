package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeListFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "email_update.txt")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadSubscriberFileParsing(t *testing.T) {
	path := writeListFile(t, `# subscriber list
Alice@Example.COM

bob@example.org
not-an-email
charlie@missingdot
dave@sub.example.co.uk
# trailing comment
`)

	emails := LoadSubscriberFile(path)

	assert.Equal(t, []string{
		"alice@example.com",
		"bob@example.org",
		"dave@sub.example.co.uk",
	}, emails)
}

func TestLoadSubscriberFileRequiresDotAfterAt(t *testing.T) {
	path := writeListFile(t, "first.last@nodot\nuser@ok.com\n")

	emails := LoadSubscriberFile(path)
	assert.Equal(t, []string{"user@ok.com"}, emails)
}

func TestLoadSubscriberFileMissingFileCreated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "email_update.txt")

	emails := LoadSubscriberFile(path)
	assert.Empty(t, emails)

	// The file now exists with a comment header and parses to an empty set.
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "#")
	assert.Empty(t, LoadSubscriberFile(path))
}

func TestSubscriberStoreReplaceAndSnapshot(t *testing.T) {
	store := NewSubscriberStore()
	assert.Empty(t, store.Current())
	assert.Zero(t, store.Count())

	store.Replace([]string{"a@example.com", "b@example.com"})
	snapshot := store.Current()
	assert.Equal(t, 2, store.Count())

	// A later wholesale replace must not mutate an earlier snapshot.
	store.Replace([]string{"c@example.com"})
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, snapshot)
	assert.Equal(t, []string{"c@example.com"}, store.Current())
}
