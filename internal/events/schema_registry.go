package events

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// MigrationStrategy describes how an older event version is brought
// forward to the schema's current version.
type MigrationStrategy int

const (
	// MigrationAuto applies registered MigrationPath transforms in order.
	MigrationAuto MigrationStrategy = iota
	// MigrationCustom defers entirely to the MigrationPath's Transform func.
	MigrationCustom
	// MigrationBreaking refuses to migrate; callers must handle the old
	// version explicitly.
	MigrationBreaking
)

// MigrationPath describes how to transform a payload from one schema
// version to the next.
type MigrationPath struct {
	FromVersion int
	ToVersion   int
	Strategy    MigrationStrategy
	Transform   func(payload json.RawMessage) (json.RawMessage, error)
}

// EventSchema is a registered JSON-schema contract for one EventType
// version, plus the migration paths available from it.
type EventSchema struct {
	Type       EventType
	JSONSchema string
	Migrations []MigrationPath

	compiled *jsonschema.Schema
}

// SchemaRegistry holds every registered EventSchema, keyed by namespace+name
// across all versions.
type SchemaRegistry struct {
	mu      sync.RWMutex
	schemas map[string]map[int]*EventSchema // "ns.name" -> version -> schema
}

func NewSchemaRegistry() *SchemaRegistry {
	return &SchemaRegistry{schemas: map[string]map[int]*EventSchema{}}
}

func key(namespace, name string) string { return namespace + "." + name }

// Register compiles and stores s. Returns an error if the JSON schema
// document itself fails to compile.
func (r *SchemaRegistry) Register(s EventSchema) error {
	url := "mem://" + s.Type.String()
	compiler := jsonschema.NewCompiler()
	var doc interface{}
	if err := json.Unmarshal([]byte(s.JSONSchema), &doc); err != nil {
		return fmt.Errorf("events: invalid schema document for %s: %w", s.Type, err)
	}
	if err := compiler.AddResource(url, doc); err != nil {
		return fmt.Errorf("events: invalid schema for %s: %w", s.Type, err)
	}
	compiled, err := compiler.Compile(url)
	if err != nil {
		return fmt.Errorf("events: invalid schema for %s: %w", s.Type, err)
	}
	s.compiled = compiled

	r.mu.Lock()
	defer r.mu.Unlock()
	k := key(s.Type.Namespace, s.Type.Name)
	if r.schemas[k] == nil {
		r.schemas[k] = map[int]*EventSchema{}
	}
	stored := s
	r.schemas[k][s.Type.Version] = &stored
	return nil
}

// GetSchema returns the schema registered for t's exact version.
func (r *SchemaRegistry) GetSchema(t EventType) (EventSchema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	versions := r.schemas[key(t.Namespace, t.Name)]
	if versions == nil {
		return EventSchema{}, false
	}
	s, ok := versions[t.Version]
	if !ok {
		return EventSchema{}, false
	}
	return *s, true
}

// GetLatestSchema returns the highest registered version for namespace.name.
func (r *SchemaRegistry) GetLatestSchema(namespace, name string) (EventSchema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	versions := r.schemas[key(namespace, name)]
	if len(versions) == 0 {
		return EventSchema{}, false
	}
	var nums []int
	for v := range versions {
		nums = append(nums, v)
	}
	sort.Ints(nums)
	return *versions[nums[len(nums)-1]], true
}

// ValidateEvent validates e.Payload against its registered schema, if any.
// Events whose type has no registered schema pass validation unchecked.
func (r *SchemaRegistry) ValidateEvent(e Event) error {
	s, ok := r.GetSchema(e.Type)
	if !ok {
		return nil
	}
	var doc interface{}
	if err := json.Unmarshal(e.Payload, &doc); err != nil {
		return fmt.Errorf("events: payload is not valid JSON: %w", err)
	}
	if err := s.compiled.Validate(doc); err != nil {
		return fmt.Errorf("events: payload invalid: %w", err)
	}
	return nil
}

// Migrate transforms e's payload up to the target schema's version,
// applying registered MigrationPaths in sequence. MigrationBreaking paths
// return an error instead of transforming.
func (r *SchemaRegistry) Migrate(e Event, targetVersion int) (Event, error) {
	for e.Type.Version < targetVersion {
		s, ok := r.GetSchema(e.Type)
		if !ok {
			return e, fmt.Errorf("events: no schema registered for %s", e.Type)
		}
		var path *MigrationPath
		for i := range s.Migrations {
			if s.Migrations[i].FromVersion == e.Type.Version {
				path = &s.Migrations[i]
				break
			}
		}
		if path == nil {
			return e, fmt.Errorf("events: no migration path from %s to v%d", e.Type, targetVersion)
		}
		if path.Strategy == MigrationBreaking {
			return e, fmt.Errorf("events: %s to v%d is a breaking change, automatic migration refused", e.Type, path.ToVersion)
		}
		if path.Transform == nil {
			return e, fmt.Errorf("events: migration path %s -> v%d has no transform", e.Type, path.ToVersion)
		}
		migrated, err := path.Transform(e.Payload)
		if err != nil {
			return e, fmt.Errorf("events: migration %s -> v%d failed: %w", e.Type, path.ToVersion, err)
		}
		e.Payload = migrated
		e.Type.Version = path.ToVersion
	}
	return e, nil
}
