package cooldown

import (
	"context"
	"fmt"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// EtcdStore backs cooldown keys with etcd leases: Set grants a lease for
// ttl and attaches it to a Put, so expiry is handled server-side without
// a background sweeper.
type EtcdStore struct {
	client *clientv3.Client
}

// NewEtcdStore dials the given endpoints.
func NewEtcdStore(endpoints []string, dialTimeout time.Duration) (*EtcdStore, error) {
	client, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: dialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("cooldown: connecting to etcd: %w", err)
	}
	return &EtcdStore{client: client}, nil
}

// Set writes key with a lease that expires after ttl.
func (e *EtcdStore) Set(ctx context.Context, key string, ttl time.Duration) error {
	lease, err := e.client.Grant(ctx, int64(ttl.Seconds()))
	if err != nil {
		return fmt.Errorf("cooldown: granting lease: %w", err)
	}
	if _, err := e.client.Put(ctx, key, "1", clientv3.WithLease(lease.ID)); err != nil {
		return fmt.Errorf("cooldown: putting cooldown key: %w", err)
	}
	return nil
}

// Exists reports whether key is currently set (i.e. still within its TTL).
func (e *EtcdStore) Exists(ctx context.Context, key string) (bool, error) {
	resp, err := e.client.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("cooldown: getting cooldown key: %w", err)
	}
	return len(resp.Kvs) > 0, nil
}

// Close releases the etcd client connection.
func (e *EtcdStore) Close() error {
	return e.client.Close()
}
