package provider

import (
	"fmt"
	"sort"
	"sync"

	"github.com/moolen/inquest/internal/kb"
)

// Factory constructs a provider instance from its knowledge-base
// configuration. Factories must not perform I/O; connectivity is exercised on
// first capability invocation.
type Factory func(id string, config map[string]any) (Capability, error)

// FactoryKey identifies a factory by capability category and provider type.
type FactoryKey struct {
	Category Category
	Type     string
}

// Table is the static factory table built at startup. It is read-only after
// construction and safe to share across concurrent investigation runs.
type Table struct {
	mu        sync.RWMutex
	factories map[FactoryKey]Factory
}

// NewTable creates an empty factory table.
func NewTable() *Table {
	return &Table{factories: make(map[FactoryKey]Factory)}
}

// Register adds a factory for the given (category, type) pair.
// Duplicate registration is a startup-time error.
func (t *Table) Register(category Category, providerType string, factory Factory) error {
	if providerType == "" {
		return fmt.Errorf("provider type cannot be empty")
	}
	if factory == nil {
		return fmt.Errorf("factory for %s:%s cannot be nil", category, providerType)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	key := FactoryKey{Category: category, Type: providerType}
	if _, exists := t.factories[key]; exists {
		return fmt.Errorf("factory for %s:%s is already registered", category, providerType)
	}
	t.factories[key] = factory
	return nil
}

// Lookup returns the factory for the given (category, type) pair.
func (t *Table) Lookup(category Category, providerType string) (Factory, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	f, ok := t.factories[FactoryKey{Category: category, Type: providerType}]
	return f, ok
}

// Keys returns the registered (category, type) pairs, sorted for stable
// startup logging.
func (t *Table) Keys() []FactoryKey {
	t.mu.RLock()
	defer t.mu.RUnlock()

	keys := make([]FactoryKey, 0, len(t.factories))
	for k := range t.factories {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Category != keys[j].Category {
			return keys[i].Category < keys[j].Category
		}
		return keys[i].Type < keys[j].Type
	})
	return keys
}

// Registry resolves capability bindings to provider instances for the
// lifetime of one investigation run. Instances are created lazily on first
// resolve and cached; the cache is never shared across runs.
type Registry struct {
	table     *Table
	instances map[string]kb.ProviderInstance

	mu    sync.Mutex
	cache map[string]Capability
}

// NewRegistry creates a registry over the run's knowledge slice providers.
func NewRegistry(table *Table, instances map[string]kb.ProviderInstance) *Registry {
	return &Registry{
		table:     table,
		instances: instances,
		cache:     make(map[string]Capability),
	}
}

// Resolve returns the provider instance for the given binding id,
// instantiating it on first use. Fails with UnknownBindingError when the id
// is absent from the knowledge slice, and UnregisteredProviderTypeError when
// no factory exists for the instance's (category, type).
func (r *Registry) Resolve(bindingID string) (Capability, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if instance, ok := r.cache[bindingID]; ok {
		return instance, nil
	}

	cfg, ok := r.instances[bindingID]
	if !ok {
		return nil, NewUnknownBindingError(bindingID)
	}

	factory, ok := r.table.Lookup(Category(cfg.Category), cfg.Type)
	if !ok {
		return nil, NewUnregisteredProviderTypeError(Category(cfg.Category), cfg.Type)
	}

	instance, err := factory(cfg.ID, cfg.Config)
	if err != nil {
		return nil, fmt.Errorf("failed to construct provider %q (%s:%s): %w",
			bindingID, cfg.Category, cfg.Type, err)
	}

	r.cache[bindingID] = instance
	return instance, nil
}
