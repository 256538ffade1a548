package tale

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTombstoneQuery_KeepsTitle(t *testing.T) {
	query, args := tombstoneQuery("tale-1", "[deleted]", "Anonymous")

	assert.NotContains(t, query, "title")
	assert.Contains(t, query, "content")
	assert.Contains(t, query, "author_name")
	assert.Contains(t, query, "author_id = NULL")
	assert.Contains(t, query, "is_deleted")
	assert.True(t, strings.HasPrefix(query, "UPDATE tales"))
	assert.Contains(t, args, "[deleted]")
	assert.Contains(t, args, "Anonymous")
	assert.Contains(t, args, "tale-1")
}
