package state

import (
	"context"
	"sync"
)

// MemoryPersister keeps the latest value of every row in memory. It backs
// restore tests and single-process deployments that only need crash-free
// restarts of the store object.
type MemoryPersister struct {
	mu   sync.Mutex
	rows map[string]map[string][]byte
	fail error
}

func NewMemoryPersister() *MemoryPersister {
	return &MemoryPersister{rows: make(map[string]map[string][]byte)}
}

// FailWith makes every subsequent Apply return err until cleared with nil.
func (p *MemoryPersister) FailWith(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fail = err
}

func (p *MemoryPersister) Apply(_ context.Context, changes []Change) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fail != nil {
		return p.fail
	}
	for _, c := range changes {
		tbl, ok := p.rows[c.Table]
		if !ok {
			tbl = make(map[string][]byte)
			p.rows[c.Table] = tbl
		}
		if c.Value == nil {
			delete(tbl, string(c.Key))
			continue
		}
		tbl[string(c.Key)] = append([]byte(nil), c.Value...)
	}
	return nil
}

func (p *MemoryPersister) Load(_ context.Context) ([]Change, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Change
	for name, tbl := range p.rows {
		for k, v := range tbl {
			out = append(out, Change{Table: name, Key: []byte(k), Value: append([]byte(nil), v...)})
		}
	}
	return out, nil
}
