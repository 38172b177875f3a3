package state

import (
	"context"
	"errors"
	"testing"

	"github.com/fadedpez/ebucks/internal/types"
	"github.com/fadedpez/ebucks/pkg/entities"
	"github.com/fadedpez/ebucks/pkg/storage"
	"github.com/fadedpez/ebucks/pkg/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMissingKeysYieldZeroValues(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	w, err := ReadWallet(ctx, s)
	require.NoError(t, err)
	assert.Zero(t, w.Balance)
	assert.NotNil(t, w.Transactions)

	c, err := ReadCompletions(ctx, s)
	require.NoError(t, err)
	assert.Empty(t, c.Records)

	ls, err := ReadStreak(ctx, s)
	require.NoError(t, err)
	assert.Zero(t, ls.ConsecutiveDays)

	g, err := ReadGate(ctx, s)
	require.NoError(t, err)
	assert.True(t, g.LastSpinDay.IsZero())
	assert.Zero(t, s.Keys(), "reads never create keys")
}

func TestRoundTripInsideTransaction(t *testing.T) {
	ctx := context.Background()
	s := memory.New()

	err := s.Update(ctx, func(tx storage.Tx) error {
		if err := SaveStreak(tx, &entities.LoginStreak{LastLoginDay: "2024-05-01", ConsecutiveDays: 3, LongestStreak: 3}); err != nil {
			return err
		}
		if err := SaveGate(tx, &entities.SpinGate{LastSpinDay: "2024-05-01"}); err != nil {
			return err
		}
		ls, err := LoadStreak(tx)
		require.NoError(t, err)
		assert.Equal(t, 3, ls.ConsecutiveDays)
		return nil
	})
	require.NoError(t, err)

	g, err := ReadGate(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, entities.Day("2024-05-01"), g.LastSpinDay)
	assert.Nil(t, g.Pending)
}

func TestCorruptValue(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	require.NoError(t, s.Update(ctx, func(tx storage.Tx) error {
		return tx.Put(KeyWallet, []byte("{"))
	}))

	_, err := ReadWallet(ctx, s)
	assert.True(t, types.IsEngineError(err, types.ErrStorageError))
}

func TestStorageError(t *testing.T) {
	assert.NoError(t, StorageError(nil))

	wrapped := StorageError(errors.New("disk full"))
	assert.True(t, types.IsEngineError(wrapped, types.ErrStorageError))

	original := types.NewEngineError(types.ErrInvalidAmount, "bad")
	assert.Same(t, original, StorageError(original))
}
