// Package state is the single transactional state store behind every
// settlement component. Components own their tables (Map, Cell) and mutate
// them only inside Store.RunInTx; the store serializes writers, journals every
// write for rollback, and optionally persists the committed change set.
package state

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"brick/pkg/platform/sentinel"
	"brick/pkg/platform/tx"
)

// Change is one persisted row mutation. Value is nil for deletions.
type Change struct {
	Table string
	Key   []byte
	Value []byte
}

// Persister durably applies the changes of a commit as one atomic batch and
// reloads them on start. Load returns the latest value of every live row.
type Persister interface {
	Apply(ctx context.Context, changes []Change) error
	Load(ctx context.Context) ([]Change, error)
}

// TxObserver receives the outcome of every top level unit of work.
type TxObserver interface {
	ObserveTx(elapsed time.Duration, committed bool)
}

type table interface {
	tableName() string
	encode(key, value any, deleted bool) (Change, error)
	load(key, value []byte) error
}

// Store owns the lock, the table registry and the commit pipeline.
type Store struct {
	mu        sync.RWMutex
	tables    map[string]table
	persister Persister
	observer  TxObserver
	logger    *slog.Logger
}

type Option func(*Store)

// WithPersister makes every commit durable through p before it is visible.
func WithPersister(p Persister) Option {
	return func(s *Store) {
		s.persister = p
	}
}

func WithObserver(o TxObserver) Option {
	return func(s *Store) {
		s.observer = o
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New constructs an empty store.
func New(opts ...Option) *Store {
	s := &Store{tables: make(map[string]table)}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

func (s *Store) register(t table) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.tables[t.tableName()]; dup {
		panic(fmt.Sprintf("state: table %q registered twice", t.tableName()))
	}
	s.tables[t.tableName()] = t
}

// Tx is one unit of work. It is only reachable through the context handed to
// the RunInTx callback.
type Tx struct {
	store    *Store
	undo     []func()
	pending  []pendingWrite
	onCommit []func()
	onAbort  []func()
	done     bool
}

type pendingWrite struct {
	table   table
	key     any
	value   any
	deleted bool
}

// OnCommit registers fn to run after the unit commits. Hooks never run for a
// rolled back unit, so side channels (audit, metrics) only see committed work.
func (t *Tx) OnCommit(fn func()) {
	t.onCommit = append(t.onCommit, fn)
}

// OnAbort registers fn to run after the unit rolls back, including a rollback
// caused by a failed persist. It is how effects made outside the store, such
// as transfers on a remote ledger, get compensated.
func (t *Tx) OnAbort(fn func()) {
	t.onAbort = append(t.onAbort, fn)
}

func (t *Tx) record(tb table, key, value any, deleted bool, undo func()) {
	t.undo = append(t.undo, undo)
	t.pending = append(t.pending, pendingWrite{table: tb, key: key, value: value, deleted: deleted})
}

func (t *Tx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
	t.pending = nil
	t.onCommit = nil
}

type viewKey struct{}

// Current returns the unit of work carried by ctx for this store.
func (s *Store) Current(ctx context.Context) (*Tx, bool) {
	t, ok := tx.From[*Tx](ctx)
	if !ok || t.store != s || t.done {
		return nil, false
	}
	return t, true
}

// RunInTx executes fn as one atomic unit. Writers are serialized; a returned
// error or a panic rolls back every write made through ctx. Calls made with a
// ctx that already carries a unit join it.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := s.Current(ctx); ok {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("transaction not started: %w", err)
	}

	start := time.Now()
	s.mu.Lock()
	t := &Tx{store: s}
	committed := false
	defer func() {
		if !committed {
			t.rollback()
		}
		t.done = true
		s.mu.Unlock()
		if s.observer != nil {
			s.observer.ObserveTx(time.Since(start), committed)
		}
		hooks := t.onCommit
		if !committed {
			hooks = t.onAbort
		}
		for _, hook := range hooks {
			hook()
		}
	}()

	if err := fn(tx.With(ctx, t)); err != nil {
		return err
	}
	if err := s.persist(context.WithoutCancel(ctx), t); err != nil {
		s.logger.ErrorContext(ctx, "state commit failed to persist", "error", err)
		return err
	}
	committed = true
	return nil
}

func (s *Store) persist(ctx context.Context, t *Tx) error {
	if s.persister == nil || len(t.pending) == 0 {
		return nil
	}
	changes := make([]Change, 0, len(t.pending))
	for _, w := range t.pending {
		c, err := w.table.encode(w.key, w.value, w.deleted)
		if err != nil {
			return fmt.Errorf("encode %s row: %w", w.table.tableName(), err)
		}
		changes = append(changes, c)
	}
	if err := s.persister.Apply(ctx, changes); err != nil {
		return fmt.Errorf("persist commit: %w", err)
	}
	return nil
}

// View runs fn against the last committed state. Inside a unit of work it
// reads the unit's own writes.
func (s *Store) View(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := s.Current(ctx); ok {
		return fn(ctx)
	}
	if v, ok := ctx.Value(viewKey{}).(*Store); ok && v == s {
		return fn(ctx)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(context.WithValue(ctx, viewKey{}, s))
}

// Restore loads every persisted row into the registered tables. It must run
// after all components registered their tables and before serving calls.
func (s *Store) Restore(ctx context.Context) (int, error) {
	if s.persister == nil {
		return 0, nil
	}
	rows, err := s.persister.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("load state: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range rows {
		t, ok := s.tables[row.Table]
		if !ok {
			return 0, fmt.Errorf("restore row for unknown table %q", row.Table)
		}
		if err := t.load(row.Key, row.Value); err != nil {
			return 0, fmt.Errorf("restore %s: %w", row.Table, err)
		}
	}
	return len(rows), nil
}

func (s *Store) mustTx(ctx context.Context, table string) *Tx {
	t, ok := s.Current(ctx)
	if !ok {
		panic(fmt.Sprintf("state: write to %q: %v", table, sentinel.ErrNoTransaction))
	}
	return t
}

// AfterCommit runs fn once the unit carried by ctx commits, or immediately
// when ctx carries no unit for this store.
func (s *Store) AfterCommit(ctx context.Context, fn func()) {
	if t, ok := s.Current(ctx); ok {
		t.OnCommit(fn)
		return
	}
	fn()
}

// AfterRollback runs fn if the unit carried by ctx rolls back. Without a unit
// there is nothing to roll back and fn is dropped.
func (s *Store) AfterRollback(ctx context.Context, fn func()) {
	if t, ok := s.Current(ctx); ok {
		t.OnAbort(fn)
	}
}
