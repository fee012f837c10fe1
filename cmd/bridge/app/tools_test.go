package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zohobridge/mcp-gateway/pkg/tools"
)

func TestManifestWithCacheability_MarksCacheableTools(t *testing.T) {
	handlers := tools.NewHandlers(tools.Deps{})
	registry, err := tools.NewRegistry(handlers.Descriptors()...)
	require.NoError(t, err)

	rows := manifestWithCacheability(registry)
	require.Len(t, rows, 8)

	byName := make(map[string][]string, len(rows))
	for _, row := range rows {
		byName[row[0]] = row
	}

	assert.Equal(t, "yes", byName["listTasks"][2])
	assert.Equal(t, "no", byName["createTask"][2])
}
