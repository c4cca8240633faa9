package registry

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/openresearch/orchestrator/internal/state"
)

func newRedisForTest(t *testing.T) *Redis {
	t.Helper()
	mr := miniredis.RunT(t)
	reg, err := NewRedis(mr.Addr(), 0, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { reg.Close() })
	return reg
}

func TestRedisCreateGetRoundtrip(t *testing.T) {
	reg := newRedisForTest(t)
	ctx := context.Background()

	st, err := reg.Create(ctx, "s1", "What is AI?", state.ResearchConfig{
		ResearchSpeed:   state.SpeedFast,
		OutputFormat:    state.FormatBulletList,
		DepthAndBreadth: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, state.StatusInitialized, st.Status)

	got, err := reg.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "What is AI?", got.OriginalQuery)
	assert.Equal(t, state.SpeedFast, got.Config.ResearchSpeed)
	assert.Equal(t, state.FormatBulletList, got.Config.OutputFormat)
}

func TestRedisCreateDuplicate(t *testing.T) {
	reg := newRedisForTest(t)
	ctx := context.Background()

	_, err := reg.Create(ctx, "s1", "q", state.DefaultConfig())
	require.NoError(t, err)

	_, err = reg.Create(ctx, "s1", "other", state.DefaultConfig())
	assert.ErrorIs(t, err, ErrDuplicateSession)
}

func TestRedisUpdatePersistsMutations(t *testing.T) {
	reg := newRedisForTest(t)
	ctx := context.Background()

	st, err := reg.Create(ctx, "s1", "q", state.DefaultConfig())
	require.NoError(t, err)

	st.Status = state.StatusQueryDecomposed
	st.SubQuestions = []string{"a?", "b?", "c?"}
	st.Progress = 0.3
	require.NoError(t, reg.Update(ctx, st))

	got, err := reg.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, state.StatusQueryDecomposed, got.Status)
	assert.Equal(t, []string{"a?", "b?", "c?"}, got.SubQuestions)
	assert.Equal(t, 0.3, got.Progress)
}

func TestRedisUpdateAfterCancelIsDiscarded(t *testing.T) {
	reg := newRedisForTest(t)
	ctx := context.Background()

	st, err := reg.Create(ctx, "s1", "q", state.DefaultConfig())
	require.NoError(t, err)

	found, err := reg.Cancel(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, found)

	st.Status = state.StatusCompleted
	err = reg.Update(ctx, st)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = reg.Get(ctx, "s1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRedisCancelMissing(t *testing.T) {
	reg := newRedisForTest(t)

	found, err := reg.Cancel(context.Background(), "nope")
	require.NoError(t, err)
	assert.False(t, found)
}
