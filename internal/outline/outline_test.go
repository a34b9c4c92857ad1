package outline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract(t *testing.T) {
	doc := "# Report\n" +
		"intro\n" +
		"## Findings\n" +
		"```\n" +
		"# not a heading\n" +
		"```\n" +
		"### Detail ###\n" +
		"#missing-space is not a heading\n" +
		"####### seven hashes is not a heading\n"

	entries := Extract(doc)
	require.Len(t, entries, 3)
	assert.Equal(t, Entry{Level: 1, Title: "Report", Line: 1}, entries[0])
	assert.Equal(t, Entry{Level: 2, Title: "Findings", Line: 3}, entries[1])
	assert.Equal(t, Entry{Level: 3, Title: "Detail", Line: 7}, entries[2])
}

func TestExtractEmpty(t *testing.T) {
	assert.Empty(t, Extract(""))
	assert.Empty(t, Extract("plain prose only\n"))
}

func TestExtractUnclosedFence(t *testing.T) {
	entries := Extract("## Before\n```go\n# shadowed\n")
	require.Len(t, entries, 1)
	assert.Equal(t, "Before", entries[0].Title)
}
