package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moolen/inquest/internal/kb"
	"github.com/moolen/inquest/internal/models"
)

type fakeLogStore struct {
	id string
}

func (f *fakeLogStore) ID() string         { return f.id }
func (f *fakeLogStore) Category() Category { return CategoryLogStore }
func (f *fakeLogStore) Query(ctx context.Context, req LogQueryRequest) (models.EvidenceItem, error) {
	return models.EvidenceItem{ID: "fake", Kind: models.KindLog, Source: f.id}, nil
}

func newTestTable(t *testing.T, constructed *int) *Table {
	t.Helper()
	table := NewTable()
	err := table.Register(CategoryLogStore, "fake", func(id string, config map[string]any) (Capability, error) {
		if constructed != nil {
			*constructed++
		}
		return &fakeLogStore{id: id}, nil
	})
	require.NoError(t, err)
	return table
}

func testInstances() map[string]kb.ProviderInstance {
	return map[string]kb.ProviderInstance{
		"logs-prod": {
			ID:       "logs-prod",
			Category: "log_store",
			Type:     "fake",
		},
		"metrics-prod": {
			ID:       "metrics-prod",
			Category: "metrics_store",
			Type:     "unregistered",
		},
	}
}

func TestTable_Register(t *testing.T) {
	table := NewTable()
	factory := func(id string, config map[string]any) (Capability, error) {
		return &fakeLogStore{id: id}, nil
	}

	require.NoError(t, table.Register(CategoryLogStore, "fake", factory))

	// Duplicate registration fails.
	assert.Error(t, table.Register(CategoryLogStore, "fake", factory))

	// Same type under a different category is a distinct key.
	assert.NoError(t, table.Register(CategoryMetricsStore, "fake", factory))

	assert.Error(t, table.Register(CategoryLogStore, "", factory))
	assert.Error(t, table.Register(CategoryLogStore, "other", nil))

	keys := table.Keys()
	require.Len(t, keys, 2)
	assert.Equal(t, FactoryKey{Category: CategoryLogStore, Type: "fake"}, keys[0])
}

func TestRegistry_ResolveCachesInstances(t *testing.T) {
	constructed := 0
	registry := NewRegistry(newTestTable(t, &constructed), testInstances())

	first, err := registry.Resolve("logs-prod")
	require.NoError(t, err)
	assert.Equal(t, "logs-prod", first.ID())
	assert.Equal(t, CategoryLogStore, first.Category())

	second, err := registry.Resolve("logs-prod")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, constructed, "factory must run once per binding per run")

	// The resolved capability is usable through its concrete interface.
	store, ok := first.(LogStore)
	require.True(t, ok)
	item, err := store.Query(context.Background(), LogQueryRequest{})
	require.NoError(t, err)
	assert.Equal(t, models.KindLog, item.Kind)
}

func TestRegistry_UnknownBinding(t *testing.T) {
	registry := NewRegistry(newTestTable(t, nil), testInstances())

	_, err := registry.Resolve("does-not-exist")
	require.Error(t, err)

	var ub *UnknownBindingError
	require.ErrorAs(t, err, &ub)
	assert.Equal(t, "does-not-exist", ub.BindingID)
	assert.True(t, IsConfigurationError(err))
}

func TestRegistry_UnregisteredProviderType(t *testing.T) {
	registry := NewRegistry(newTestTable(t, nil), testInstances())

	_, err := registry.Resolve("metrics-prod")
	require.Error(t, err)

	var ut *UnregisteredProviderTypeError
	require.ErrorAs(t, err, &ut)
	assert.Equal(t, CategoryMetricsStore, ut.Category)
	assert.Equal(t, "unregistered", ut.Type)
	assert.True(t, IsConfigurationError(err))
}

func TestCategory_ExpectedKind(t *testing.T) {
	assert.Equal(t, models.KindLog, CategoryLogStore.ExpectedKind())
	assert.Equal(t, models.KindEvent, CategoryRuntime.ExpectedKind())
	assert.Equal(t, models.KindDeployment, CategoryDeployTracker.ExpectedKind())
	assert.Equal(t, models.KindBuild, CategoryBuildTracker.ExpectedKind())
	assert.Equal(t, models.KindChange, CategoryVCS.ExpectedKind())
	assert.Equal(t, models.KindMetric, CategoryMetricsStore.ExpectedKind())
	assert.Equal(t, models.KindTrace, CategoryTraceStore.ExpectedKind())
	assert.Equal(t, models.KindAlert, CategoryAlerting.ExpectedKind())
	assert.Equal(t, models.KindOther, Category("bogus").ExpectedKind())
}
