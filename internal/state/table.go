package state

import (
	"context"
	"encoding/json"
)

// Map is a journaled table owned by exactly one component. Reads must happen
// inside Store.View or Store.RunInTx; writes only inside RunInTx.
type Map[K comparable, V any] struct {
	store *Store
	name  string
	data  map[K]V
}

// NewMap registers a table under a unique name.
func NewMap[K comparable, V any](s *Store, name string) *Map[K, V] {
	m := &Map[K, V]{store: s, name: name, data: make(map[K]V)}
	s.register(m)
	return m
}

func (m *Map[K, V]) tableName() string { return m.name }

func (m *Map[K, V]) Get(key K) (V, bool) {
	v, ok := m.data[key]
	return v, ok
}

func (m *Map[K, V]) Has(key K) bool {
	_, ok := m.data[key]
	return ok
}

func (m *Map[K, V]) Len() int {
	return len(m.data)
}

// Range visits rows in unspecified order until fn returns false.
func (m *Map[K, V]) Range(fn func(key K, value V) bool) {
	for k, v := range m.data {
		if !fn(k, v) {
			return
		}
	}
}

// Put upserts a row in the unit of work carried by ctx.
func (m *Map[K, V]) Put(ctx context.Context, key K, value V) {
	t := m.store.mustTx(ctx, m.name)
	prev, existed := m.data[key]
	m.data[key] = value
	t.record(m, key, value, false, func() {
		if existed {
			m.data[key] = prev
		} else {
			delete(m.data, key)
		}
	})
}

// Delete removes a row in the unit of work carried by ctx.
func (m *Map[K, V]) Delete(ctx context.Context, key K) {
	t := m.store.mustTx(ctx, m.name)
	prev, existed := m.data[key]
	if !existed {
		return
	}
	delete(m.data, key)
	t.record(m, key, nil, true, func() {
		m.data[key] = prev
	})
}

func (m *Map[K, V]) encode(key, value any, deleted bool) (Change, error) {
	k, err := json.Marshal(key)
	if err != nil {
		return Change{}, err
	}
	c := Change{Table: m.name, Key: k}
	if deleted {
		return c, nil
	}
	c.Value, err = json.Marshal(value)
	if err != nil {
		return Change{}, err
	}
	return c, nil
}

func (m *Map[K, V]) load(key, value []byte) error {
	var k K
	if err := json.Unmarshal(key, &k); err != nil {
		return err
	}
	if value == nil {
		delete(m.data, k)
		return nil
	}
	var v V
	if err := json.Unmarshal(value, &v); err != nil {
		return err
	}
	m.data[k] = v
	return nil
}

// Cell is a single journaled value such as a counter or a config record.
type Cell[T any] struct {
	m *Map[string, T]
}

const cellKey = "value"

func NewCell[T any](s *Store, name string, initial T) *Cell[T] {
	c := &Cell[T]{m: NewMap[string, T](s, name)}
	c.m.data[cellKey] = initial
	return c
}

func (c *Cell[T]) Get() T {
	return c.m.data[cellKey]
}

func (c *Cell[T]) Set(ctx context.Context, v T) {
	c.m.Put(ctx, cellKey, v)
}

// Counter is a Cell of uint64 with increment helpers.
type Counter struct {
	*Cell[uint64]
}

func NewCounter(s *Store, name string) Counter {
	return Counter{NewCell[uint64](s, name, 0)}
}

// Next increments the counter and returns the new value; used for monotonic ids.
func (c Counter) Next(ctx context.Context) uint64 {
	v := c.Get() + 1
	c.Set(ctx, v)
	return v
}

func (c Counter) Add(ctx context.Context, delta uint64) {
	c.Set(ctx, c.Get()+delta)
}

// Sub decrements the counter, clamping at zero.
func (c Counter) Sub(ctx context.Context, delta uint64) {
	v := c.Get()
	if delta > v {
		delta = v
	}
	c.Set(ctx, v-delta)
}
