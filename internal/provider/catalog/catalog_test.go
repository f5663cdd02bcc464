package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moolen/inquest/internal/provider"
)

func TestDefaultTableRegistersAllProviderTypes(t *testing.T) {
	table, err := DefaultTable()
	require.NoError(t, err)

	expected := []provider.FactoryKey{
		{Category: provider.CategoryAlerting, Type: "grafana"},
		{Category: provider.CategoryBuildTracker, Type: "github_actions"},
		{Category: provider.CategoryDeployTracker, Type: "github_actions"},
		{Category: provider.CategoryLogStore, Type: "loki"},
		{Category: provider.CategoryMetricsStore, Type: "prometheus"},
		{Category: provider.CategoryRuntime, Type: "kubernetes"},
		{Category: provider.CategoryTraceStore, Type: "jaeger"},
		{Category: provider.CategoryVCS, Type: "github"},
	}
	assert.Equal(t, expected, table.Keys())
}
