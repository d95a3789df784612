package persistence

import (
	"context"

	"github.com/example/alarmd/internal/alarm"
)

// DefinitionRepository exposes CRUD operations for alarm definitions.
type DefinitionRepository interface {
	CreateDefinition(ctx context.Context, def alarm.Definition) error
	UpdateDefinition(ctx context.Context, def alarm.Definition) error
	GetDefinition(ctx context.Context, id string) (alarm.Definition, error)
	ListDefinitions(ctx context.Context) ([]alarm.Definition, error)
	DeleteDefinition(ctx context.Context, id string) error
}

// InstanceRepository stores the live occurrence records derived from
// definitions. PutInstance upserts, so state transitions and creation share a
// single atomic write path.
type InstanceRepository interface {
	PutInstance(ctx context.Context, inst alarm.Instance) error
	GetInstance(ctx context.Context, id string) (alarm.Instance, error)
	ActiveInstanceForDefinition(ctx context.Context, definitionID string) (alarm.Instance, error)
	ListInstances(ctx context.Context) ([]alarm.Instance, error)
	DeleteInstance(ctx context.Context, id string) error
	DeleteInstancesForDefinition(ctx context.Context, definitionID string) error
}

// Store bundles the repositories the scheduling core operates on.
type Store interface {
	DefinitionRepository
	InstanceRepository
}
