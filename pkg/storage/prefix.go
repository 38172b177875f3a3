package storage

import (
	"context"
	"strings"
)

// Separator joins a namespace prefix and a key
const Separator = ":"

type prefixed struct {
	inner  Store
	prefix string
}

// WithPrefix scopes every key of s under prefix. Closing the returned store
// does not close s.
func WithPrefix(s Store, prefix string) Store {
	return &prefixed{inner: s, prefix: prefix + Separator}
}

func (p *prefixed) Get(ctx context.Context, key string) ([]byte, error) {
	return p.inner.Get(ctx, p.prefix+key)
}

func (p *prefixed) Update(ctx context.Context, fn func(tx Tx) error) error {
	return p.inner.Update(ctx, func(tx Tx) error {
		return fn(&prefixedTx{inner: tx, prefix: p.prefix})
	})
}

func (p *prefixed) Subscribe(fn func(Event)) func() {
	return p.inner.Subscribe(func(ev Event) {
		if !strings.HasPrefix(ev.Key, p.prefix) {
			return
		}
		ev.Key = strings.TrimPrefix(ev.Key, p.prefix)
		fn(ev)
	})
}

func (p *prefixed) Close() error {
	return nil
}

type prefixedTx struct {
	inner  Tx
	prefix string
}

func (t *prefixedTx) Get(key string) ([]byte, error) {
	return t.inner.Get(t.prefix + key)
}

func (t *prefixedTx) Put(key string, value []byte) error {
	return t.inner.Put(t.prefix+key, value)
}

func (t *prefixedTx) Delete(key string) error {
	return t.inner.Delete(t.prefix + key)
}
