package vdf

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallParams(t *testing.T, difficulty uint64) *Params {
	t.Helper()
	p, err := setupWithBits(difficulty, 256)
	require.NoError(t, err)
	return p
}

func TestSolveAndVerify(t *testing.T) {
	params := smallParams(t, 50)
	instance, err := params.PickChallenge()
	require.NoError(t, err)

	solution, err := instance.Solve(context.Background(), params)
	require.NoError(t, err)

	assert.NoError(t, solution.Verify(params, instance))
}

func TestVerifyRejectsTamperedOutput(t *testing.T) {
	params := smallParams(t, 50)
	instance, err := params.PickChallenge()
	require.NoError(t, err)

	solution, err := instance.Solve(context.Background(), params)
	require.NoError(t, err)

	solution.Y[0] ^= 0xff
	assert.ErrorIs(t, solution.Verify(params, instance), ErrIncorrectSolution)
}

func TestVerifyRejectsWrongInstance(t *testing.T) {
	params := smallParams(t, 50)
	instance, err := params.PickChallenge()
	require.NoError(t, err)
	solution, err := instance.Solve(context.Background(), params)
	require.NoError(t, err)

	other, err := params.PickChallenge()
	require.NoError(t, err)

	assert.Error(t, solution.Verify(params, other))
}

func TestSolveCancellation(t *testing.T) {
	params := smallParams(t, 10_000_000)
	instance, err := params.PickChallenge()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = instance.Solve(ctx, params)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParamsCacheRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vdf-params")
	params := smallParams(t, 50)
	require.NoError(t, SaveParams(path, params))

	loaded, err := LoadParams(path)
	require.NoError(t, err)
	assert.Equal(t, params.T, loaded.T)
	assert.Equal(t, 0, params.N.Cmp(loaded.N))
}

func TestParamsCacheDetectsCorruption(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vdf-params")
	params := smallParams(t, 50)
	require.NoError(t, SaveParams(path, params))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xff
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	_, err = LoadParams(path)
	assert.ErrorIs(t, err, ErrCorrupt)
}
