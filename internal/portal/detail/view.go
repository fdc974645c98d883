// Package detail implements the single-entity screen: load by id, show a
// field grid, offer the actions the entity's status allows.
package detail

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hospital/staffportal/internal/portal/action"
)

// ErrNotLoaded is returned when asking about an entity before Load.
var ErrNotLoaded = errors.New("entity not loaded")

// Field is one label/value cell of the grid.
type Field struct {
	Label string
	Value string
}

// Entity is what a detail screen can show.
type Entity interface {
	Fields() []Field
	AllowedActions() []action.Name
}

// Getter loads one entity.
type Getter[T Entity] func(ctx context.Context, id int64) (T, error)

// NotAllowedError is returned when an action is not offered for the
// entity's last known status.
type NotAllowedError struct {
	Action  action.Name
	Allowed []action.Name
}

func (e *NotAllowedError) Error() string {
	return fmt.Sprintf("action %q is not available (allowed: %s)", e.Action, action.Join(e.Allowed))
}

// View holds one detail screen's state.
type View[T Entity] struct {
	get Getter[T]

	mu     sync.Mutex
	id     int64
	entity T
	loaded bool
	err    error
}

func New[T Entity](get Getter[T]) *View[T] {
	return &View[T]{get: get}
}

// Load fetches the entity with id and stores it.
func (v *View[T]) Load(ctx context.Context, id int64) (T, error) {
	e, err := v.get(ctx, id)

	v.mu.Lock()
	defer v.mu.Unlock()
	if err != nil {
		v.err = err
		return e, err
	}
	v.id = id
	v.entity = e
	v.loaded = true
	v.err = nil
	return e, nil
}

// Reload re-fetches the current entity.
func (v *View[T]) Reload(ctx context.Context) error {
	v.mu.Lock()
	id, loaded := v.id, v.loaded
	v.mu.Unlock()
	if !loaded {
		return ErrNotLoaded
	}
	_, err := v.Load(ctx, id)
	return err
}

// Entity returns the loaded entity.
func (v *View[T]) Entity() (T, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.loaded {
		var zero T
		return zero, ErrNotLoaded
	}
	return v.entity, nil
}

// Err returns the last load error.
func (v *View[T]) Err() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.err
}

// Actions lists the actions offered for the loaded entity.
func (v *View[T]) Actions() []action.Name {
	e, err := v.Entity()
	if err != nil {
		return nil
	}
	return e.AllowedActions()
}

// Can returns nil when name is offered for the loaded entity.
func (v *View[T]) Can(name action.Name) error {
	e, err := v.Entity()
	if err != nil {
		return err
	}
	return Allowed(e, name)
}

// Allowed returns nil when name is offered for e.
func Allowed(e Entity, name action.Name) error {
	allowed := e.AllowedActions()
	if action.Contains(allowed, name) {
		return nil
	}
	return &NotAllowedError{Action: name, Allowed: allowed}
}
