package storage

import (
	"fmt"
	"reflect"
	"strconv"

	"github.com/cuemby/virtplane/pkg/types"
)

// Object is implemented by every entity pointer type through the embedded types.ObjectMeta
type Object interface {
	GetObjectMeta() *types.ObjectMeta
}

// Key is a uniqueness key: a value unique within a scope. An empty Scope is the global scope.
type Key struct {
	Scope string
	Value string
}

// GlobalKey returns a key in the global scope
func GlobalKey(value string) Key {
	return Key{Value: value}
}

// ScopedKey returns a key unique within scope
func ScopedKey(scope, value string) Key {
	return Key{Scope: scope, Value: value}
}

func (k Key) String() string {
	if k.Scope == "" {
		return fmt.Sprintf("%q", k.Value)
	}
	return fmt.Sprintf("%q in %q", k.Value, k.Scope)
}

// encode flattens the key for string-keyed maps. The scope is length
// prefixed so no pair of distinct keys encodes the same.
func (k Key) encode() string {
	return strconv.Itoa(len(k.Scope)) + ":" + k.Scope + k.Value
}

// Index declares a unique key derived from an entity
type Index[T Object] struct {
	Name string
	Key  func(T) Key
}

// Kind describes an entity kind to a store
type Kind[T Object] struct {
	// Name is used in errors, logs, events and metric labels
	Name string

	// Indexes are all unique. The first is the kind's uniqueness key.
	Indexes []Index[T]

	// Defaults fills unset fields on create and on full-replace update
	Defaults func(T)
}

func (k Kind[T]) keysOf(obj T) []Key {
	keys := make([]Key, len(k.Indexes))
	for i, idx := range k.Indexes {
		keys[i] = idx.Key(obj)
	}
	return keys
}

func (k Kind[T]) indexPosition(name string) (int, error) {
	for i, idx := range k.Indexes {
		if idx.Name == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%s: unknown index %q", k.Name, name)
}

func isNil(obj any) bool {
	if obj == nil {
		return true
	}
	v := reflect.ValueOf(obj)
	return v.Kind() == reflect.Pointer && v.IsNil()
}
