package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/szaher/meemo/internal/tutor"
)

// EtcdClient is the interface for the etcd operations the store needs.
// clientv3.KV satisfies it; tests supply a fake.
type EtcdClient interface {
	Get(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.GetResponse, error)
	Put(ctx context.Context, key, val string, opts ...clientv3.OpOption) (*clientv3.PutResponse, error)
	Delete(ctx context.Context, key string, opts ...clientv3.OpOption) (*clientv3.DeleteResponse, error)
}

// EtcdStore is a session store backed by etcd, for deployments that
// already run one and want session failover without a database.
type EtcdStore struct {
	client EtcdClient
	prefix string
}

// EtcdStoreOption configures an EtcdStore.
type EtcdStoreOption func(*EtcdStore)

// WithPrefix sets the key prefix for session keys.
func WithPrefix(prefix string) EtcdStoreOption {
	return func(s *EtcdStore) { s.prefix = prefix }
}

// NewEtcdStore creates an etcd-backed session store.
func NewEtcdStore(client EtcdClient, opts ...EtcdStoreOption) *EtcdStore {
	s := &EtcdStore{
		client: client,
		prefix: "meemo/sessions/",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *EtcdStore) key(id string) string {
	return s.prefix + id
}

// Get retrieves the state for a session id.
func (s *EtcdStore) Get(ctx context.Context, id string) (*tutor.State, error) {
	resp, err := s.client.Get(ctx, s.key(id))
	if err != nil {
		return nil, fmt.Errorf("etcd get: %w", err)
	}
	if len(resp.Kvs) == 0 {
		return nil, ErrNotFound
	}

	var st tutor.State
	if err := json.Unmarshal(resp.Kvs[0].Value, &st); err != nil {
		return nil, fmt.Errorf("unmarshal session state: %w", err)
	}
	return &st, nil
}

// Put stores the state snapshot for a session id.
func (s *EtcdStore) Put(ctx context.Context, id string, st *tutor.State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal session state: %w", err)
	}
	if _, err := s.client.Put(ctx, s.key(id), string(data)); err != nil {
		return fmt.Errorf("etcd put: %w", err)
	}
	return nil
}

// Delete removes a session.
func (s *EtcdStore) Delete(ctx context.Context, id string) error {
	if _, err := s.client.Delete(ctx, s.key(id)); err != nil {
		return fmt.Errorf("etcd delete: %w", err)
	}
	return nil
}

// Sweep removes sessions whose state has not been updated within
// olderThan. Idle time comes from the stored snapshot itself, so no
// separate index is needed.
func (s *EtcdStore) Sweep(ctx context.Context, olderThan time.Duration) (int, error) {
	resp, err := s.client.Get(ctx, s.prefix, clientv3.WithPrefix())
	if err != nil {
		return 0, fmt.Errorf("etcd scan: %w", err)
	}

	cutoff := time.Now().Add(-olderThan)
	removed := 0
	for _, kv := range resp.Kvs {
		var st tutor.State
		if err := json.Unmarshal(kv.Value, &st); err != nil {
			continue
		}
		if st.UpdatedAt.After(cutoff) {
			continue
		}
		id := strings.TrimPrefix(string(kv.Key), s.prefix)
		if _, err := s.client.Delete(ctx, s.key(id)); err != nil {
			return removed, fmt.Errorf("etcd delete: %w", err)
		}
		removed++
	}
	return removed, nil
}
