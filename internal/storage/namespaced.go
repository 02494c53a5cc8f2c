package storage

import (
	"context"
	"strings"
)

type namespaced struct {
	BlobStore
	prefix string
}

// Namespaced prefixes every id with "ns/" so independent deployments can
// share one backend. An empty namespace returns store unchanged.
func Namespaced(store BlobStore, ns string) BlobStore {
	ns = strings.Trim(ns, "/")
	if ns == "" {
		return store
	}
	return &namespaced{BlobStore: store, prefix: ns + "/"}
}

func (n *namespaced) Get(ctx context.Context, id string) ([]byte, error) {
	return n.BlobStore.Get(ctx, n.prefix+id)
}

func (n *namespaced) Set(ctx context.Context, id string, value []byte) error {
	return n.BlobStore.Set(ctx, n.prefix+id, value)
}

func (n *namespaced) SetIfAbsent(ctx context.Context, id string, value []byte) ([]byte, bool, error) {
	return n.BlobStore.SetIfAbsent(ctx, n.prefix+id, value)
}

func (n *namespaced) Delete(ctx context.Context, id string) error {
	return n.BlobStore.Delete(ctx, n.prefix+id)
}
