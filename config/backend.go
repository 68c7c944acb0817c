package config

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/go-redis/redis/v8"
	"github.com/holmberd/go-voxelfile/datastore"
	"github.com/holmberd/go-voxelfile/voxelstore"
	"github.com/holmberd/go-voxelfile/voxelstore/mcfunction"
	"github.com/holmberd/go-voxelfile/voxelstore/memstore"
	"github.com/holmberd/go-voxelfile/voxelstore/redisstore"
	"github.com/holmberd/go-voxelfile/voxelstore/sqlitestore"
)

// Store is an opened backend.
type Store struct {
	voxelstore.Driver
	close func() error
}

// Provisioner returns the backend's provisioner, if it has one.
func (s *Store) Provisioner() (voxelstore.Provisioner, bool) {
	p, ok := s.Driver.(voxelstore.Provisioner)
	return p, ok
}

// Close releases the resources of the backend.
func (s *Store) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// OpenStore opens the configured backend.
func (c *Config) OpenStore(ctx context.Context) (*Store, error) {
	switch c.Backend {
	case BackendMemory:
		var opts []memstore.Option
		if c.AutoProvision {
			opts = append(opts, memstore.WithAutoProvision())
		}
		return &Store{Driver: memstore.New(opts...)}, nil

	case BackendRedis:
		rsClient := redis.NewClient(&redis.Options{Addr: c.RedisAddr})
		if err := rsClient.Ping(ctx).Err(); err != nil {
			return nil, errors.Join(
				fmt.Errorf("config: failed to connect to redis at %s: %w", c.RedisAddr, err),
				rsClient.Close(),
			)
		}
		ds, err := datastore.NewClient(rsClient)
		if err != nil {
			return nil, errors.Join(err, rsClient.Close())
		}
		opts := []redisstore.Option{redisstore.WithBatchSize(c.BatchSize)}
		if c.AutoProvision {
			opts = append(opts, redisstore.WithAutoProvision())
		}
		return &Store{Driver: redisstore.New(ds, opts...), close: rsClient.Close}, nil

	case BackendSQLite:
		var opts []sqlitestore.Option
		if c.AutoProvision {
			opts = append(opts, sqlitestore.WithAutoProvision())
		}
		s, err := sqlitestore.Open(c.SQLitePath, opts...)
		if err != nil {
			return nil, err
		}
		return &Store{Driver: s, close: s.Close}, nil

	case BackendMCFunction:
		f, err := os.Create(c.MCFunctionPath)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		return &Store{Driver: mcfunction.New(f), close: f.Close}, nil

	default:
		return nil, fmt.Errorf("config: unknown backend %q", c.Backend)
	}
}
