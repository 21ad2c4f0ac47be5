// Package redisstore persists state store commits in Redis hashes, one hash
// per table, written with MULTI/EXEC so a commit lands atomically.
package redisstore

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"brick/internal/state"
)

const defaultPrefix = "brick:state"

type Store struct {
	client redis.UniversalClient
	prefix string
}

type Option func(*Store)

// WithPrefix namespaces every key the store writes.
func WithPrefix(prefix string) Option {
	return func(s *Store) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

func New(client redis.UniversalClient, opts ...Option) *Store {
	s := &Store{client: client, prefix: defaultPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) tablesKey() string {
	return s.prefix + ":tables"
}

func (s *Store) tableKey(table string) string {
	return s.prefix + ":t:" + table
}

func (s *Store) Apply(ctx context.Context, changes []state.Change) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		seen := make(map[string]bool)
		for _, c := range changes {
			if !seen[c.Table] {
				pipe.SAdd(ctx, s.tablesKey(), c.Table)
				seen[c.Table] = true
			}
			if c.Value == nil {
				pipe.HDel(ctx, s.tableKey(c.Table), string(c.Key))
				continue
			}
			pipe.HSet(ctx, s.tableKey(c.Table), string(c.Key), c.Value)
		}
		pipe.Incr(ctx, s.prefix+":commits")
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis commit: %w", err)
	}
	return nil
}

func (s *Store) Load(ctx context.Context) ([]state.Change, error) {
	tables, err := s.client.SMembers(ctx, s.tablesKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list state tables: %w", err)
	}
	var out []state.Change
	for _, table := range tables {
		rows, err := s.client.HGetAll(ctx, s.tableKey(table)).Result()
		if err != nil {
			return nil, fmt.Errorf("load state table %s: %w", table, err)
		}
		for k, v := range rows {
			out = append(out, state.Change{Table: table, Key: []byte(k), Value: []byte(v)})
		}
	}
	return out, nil
}

// CommitCount returns how many units have been persisted under the prefix.
func (s *Store) CommitCount(ctx context.Context) (int64, error) {
	n, err := s.client.Get(ctx, s.prefix+":commits").Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return n, err
}
