// Package registry indexes property types by entity type, field and key.
//
// The registry is not synchronized. It is built and read by one goroutine:
// construct, AddTypes, use, optionally RemoveTypes, discard.
package registry

import (
	"fmt"
	"log/slog"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/mesh-intelligence/chadostore/pkg/types"
)

type keyMap = orderedmap.OrderedMap[string, types.PropertyType]
type fieldMap = orderedmap.OrderedMap[string, *keyMap]

// Registry is an insertion-ordered index entityType -> field -> key -> type.
type Registry struct {
	logger   *slog.Logger
	entities *orderedmap.OrderedMap[string, *fieldMap]
	n        int
}

// New creates an empty registry. A nil logger discards messages.
func New(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Registry{
		logger:   logger,
		entities: orderedmap.New[string, *fieldMap](),
	}
}

// AddTypes registers each type in order. It stops at the first type that is
// nil, fails Validate or duplicates an existing (entityType, field, key)
// triple, logs the problem and returns false. Types added before the failing
// one stay registered.
func (r *Registry) AddTypes(pts ...types.PropertyType) bool {
	for i, pt := range pts {
		if err := r.add(pt); err != nil {
			r.logger.Error("cannot add property type", "index", i, "error", err)
			return false
		}
	}
	return true
}

func (r *Registry) add(pt types.PropertyType) error {
	if pt == nil {
		return fmt.Errorf("%w: nil", types.ErrInvalidType)
	}
	if err := pt.Validate(); err != nil {
		return err
	}
	fields, ok := r.entities.Get(pt.EntityType())
	if !ok {
		fields = orderedmap.New[string, *keyMap]()
		r.entities.Set(pt.EntityType(), fields)
	}
	keys, ok := fields.Get(pt.FieldType())
	if !ok {
		keys = orderedmap.New[string, types.PropertyType]()
		fields.Set(pt.FieldType(), keys)
	}
	if _, exists := keys.Get(pt.Key()); exists {
		return fmt.Errorf("%w: %s.%s.%s", types.ErrDuplicateType, pt.EntityType(), pt.FieldType(), pt.Key())
	}
	keys.Set(pt.Key(), pt)
	r.n++
	return nil
}

// Types returns every registered type in insertion order, grouped by entity
// type and then field.
func (r *Registry) Types() []types.PropertyType {
	out := make([]types.PropertyType, 0, r.n)
	for e := r.entities.Oldest(); e != nil; e = e.Next() {
		for f := e.Value.Oldest(); f != nil; f = f.Next() {
			for k := f.Value.Oldest(); k != nil; k = k.Next() {
				out = append(out, k.Value)
			}
		}
	}
	return out
}

// Type looks up a single type.
func (r *Registry) Type(entityType, field, key string) (types.PropertyType, bool) {
	fields, ok := r.entities.Get(entityType)
	if !ok {
		return nil, false
	}
	keys, ok := fields.Get(field)
	if !ok {
		return nil, false
	}
	return keys.Get(key)
}

// RemoveTypes removes every type whose triple is registered. Unknown types
// and nil entries are ignored.
func (r *Registry) RemoveTypes(pts ...types.PropertyType) {
	for _, pt := range pts {
		if pt == nil {
			continue
		}
		fields, ok := r.entities.Get(pt.EntityType())
		if !ok {
			continue
		}
		keys, ok := fields.Get(pt.FieldType())
		if !ok {
			continue
		}
		if _, present := keys.Delete(pt.Key()); !present {
			continue
		}
		r.n--
		if keys.Len() == 0 {
			fields.Delete(pt.FieldType())
		}
		if fields.Len() == 0 {
			r.entities.Delete(pt.EntityType())
		}
	}
}

// Len returns the number of registered types.
func (r *Registry) Len() int { return r.n }
