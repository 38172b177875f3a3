package storage_test

import (
	"context"
	"testing"

	"github.com/fadedpez/ebucks/pkg/storage"
	"github.com/fadedpez/ebucks/pkg/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithPrefixIsolatesUsers(t *testing.T) {
	ctx := context.Background()
	base := memory.New()
	alice := storage.WithPrefix(base, "user:alice")
	bob := storage.WithPrefix(base, "user:bob")

	var bobEvents []storage.Event
	bob.Subscribe(func(ev storage.Event) { bobEvents = append(bobEvents, ev) })
	var aliceEvents []storage.Event
	alice.Subscribe(func(ev storage.Event) { aliceEvents = append(aliceEvents, ev) })

	require.NoError(t, alice.Update(ctx, func(tx storage.Tx) error {
		return tx.Put("wallet", []byte(`{"balance":5}`))
	}))

	got, err := alice.Get(ctx, "wallet")
	require.NoError(t, err)
	assert.JSONEq(t, `{"balance":5}`, string(got))

	_, err = bob.Get(ctx, "wallet")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	raw, err := base.Get(ctx, "user:alice:wallet")
	require.NoError(t, err)
	assert.Equal(t, got, raw)

	assert.Empty(t, bobEvents)
	require.Len(t, aliceEvents, 1)
	assert.Equal(t, "wallet", aliceEvents[0].Key)
}

func TestWithPrefixCloseKeepsInnerOpen(t *testing.T) {
	base := memory.New()
	scoped := storage.WithPrefix(base, "user:x")
	require.NoError(t, scoped.Close())

	err := base.Update(context.Background(), func(tx storage.Tx) error {
		return tx.Put("k", []byte(`1`))
	})
	assert.NoError(t, err)
}

func TestBufferChangesKeepFirstWriteOrder(t *testing.T) {
	buf := storage.NewBuffer(func(string) ([]byte, error) { return nil, storage.ErrNotFound })
	require.NoError(t, buf.Put("b", []byte(`1`)))
	require.NoError(t, buf.Put("a", []byte(`2`)))
	require.NoError(t, buf.Delete("b"))

	changes := buf.Changes()
	require.Len(t, changes, 2)
	assert.Equal(t, "b", changes[0].Key)
	assert.True(t, changes[0].Deleted)
	assert.Equal(t, "a", changes[1].Key)
	assert.Error(t, buf.Put("", nil))
}
