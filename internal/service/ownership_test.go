package service

import (
	"context"
	"testing"

	"GameSync/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOwnershipUpsert(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	g := storedGame("Celeste", strPtr("504230"), nil, nil)
	require.NoError(t, h.games.CreateBatch(ctx, []*model.CanonicalGame{g}))
	u := NewOwnershipUpserter(h.db)

	inserted, err := u.Upsert(ctx, g.ID, "u1", model.PlatformSteam, 5, 100)
	require.NoError(t, err)
	assert.True(t, inserted)

	// 统计以最后一次写入为准，允许变小
	inserted, err = u.Upsert(ctx, g.ID, "u1", model.PlatformSteam, 2, 50)
	require.NoError(t, err)
	assert.False(t, inserted)

	owns := h.allOwnerships(t)
	require.Len(t, owns, 1)
	assert.Equal(t, int64(2), owns[0].ProgressCount)
	assert.Equal(t, int64(50), owns[0].PlayDuration)

	_, err = u.Upsert(ctx, 0, "u1", model.PlatformSteam, 1, 1)
	require.ErrorIs(t, err, ErrNilGameID)
}
