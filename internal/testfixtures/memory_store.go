package testfixtures

import (
	"context"
	"sort"
	"sync"

	"github.com/example/alarmd/internal/alarm"
	"github.com/example/alarmd/internal/persistence"
)

// MemoryStore is an in-memory persistence.Store with per-call atomicity,
// mirroring the SQLite implementation closely enough for service tests.
type MemoryStore struct {
	mu          sync.RWMutex
	definitions map[string]alarm.Definition
	instances   map[string]alarm.Instance

	// FailNext, when non-nil, is returned by the next mutating call and then
	// cleared, simulating a transient store outage.
	FailNext error
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		definitions: make(map[string]alarm.Definition),
		instances:   make(map[string]alarm.Instance),
	}
}

func (m *MemoryStore) takeFailure() error {
	err := m.FailNext
	m.FailNext = nil
	return err
}

// CreateDefinition stores a new definition.
func (m *MemoryStore) CreateDefinition(ctx context.Context, def alarm.Definition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	if _, ok := m.definitions[def.ID]; ok {
		return persistence.ErrDuplicate
	}
	m.definitions[def.ID] = def
	return nil
}

// UpdateDefinition rewrites an existing definition.
func (m *MemoryStore) UpdateDefinition(ctx context.Context, def alarm.Definition) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	if _, ok := m.definitions[def.ID]; !ok {
		return persistence.ErrNotFound
	}
	m.definitions[def.ID] = def
	return nil
}

// GetDefinition retrieves a definition by id.
func (m *MemoryStore) GetDefinition(ctx context.Context, id string) (alarm.Definition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	def, ok := m.definitions[id]
	if !ok {
		return alarm.Definition{}, persistence.ErrNotFound
	}
	return def, nil
}

// ListDefinitions returns all definitions in a stable order.
func (m *MemoryStore) ListDefinitions(ctx context.Context) ([]alarm.Definition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	defs := make([]alarm.Definition, 0, len(m.definitions))
	for _, def := range m.definitions {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].ID < defs[j].ID })
	return defs, nil
}

// DeleteDefinition removes a definition and cascades to its instances.
func (m *MemoryStore) DeleteDefinition(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	if _, ok := m.definitions[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(m.definitions, id)
	for instID, inst := range m.instances {
		if inst.DefinitionID == id {
			delete(m.instances, instID)
		}
	}
	return nil
}

// PutInstance upserts an instance record.
func (m *MemoryStore) PutInstance(ctx context.Context, inst alarm.Instance) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	m.instances[inst.ID] = inst
	return nil
}

// GetInstance retrieves an instance by id.
func (m *MemoryStore) GetInstance(ctx context.Context, id string) (alarm.Instance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	inst, ok := m.instances[id]
	if !ok {
		return alarm.Instance{}, persistence.ErrNotFound
	}
	return inst, nil
}

// ActiveInstanceForDefinition returns the definition's non-terminal instance.
func (m *MemoryStore) ActiveInstanceForDefinition(ctx context.Context, definitionID string) (alarm.Instance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var best alarm.Instance
	found := false
	for _, inst := range m.instances {
		if inst.DefinitionID != definitionID || inst.State.Terminal() {
			continue
		}
		if !found || inst.TriggerAt.Before(best.TriggerAt) {
			best = inst
			found = true
		}
	}
	if !found {
		return alarm.Instance{}, persistence.ErrNotFound
	}
	return best, nil
}

// ListInstances returns all instances in a stable order.
func (m *MemoryStore) ListInstances(ctx context.Context) ([]alarm.Instance, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	instances := make([]alarm.Instance, 0, len(m.instances))
	for _, inst := range m.instances {
		instances = append(instances, inst)
	}
	sort.Slice(instances, func(i, j int) bool { return instances[i].ID < instances[j].ID })
	return instances, nil
}

// DeleteInstance removes a single instance record.
func (m *MemoryStore) DeleteInstance(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	if _, ok := m.instances[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(m.instances, id)
	return nil
}

// DeleteInstancesForDefinition removes every instance referencing a definition.
func (m *MemoryStore) DeleteInstancesForDefinition(ctx context.Context, definitionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	for id, inst := range m.instances {
		if inst.DefinitionID == definitionID {
			delete(m.instances, id)
		}
	}
	return nil
}
