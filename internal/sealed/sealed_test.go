package sealed

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zengo-x/custodian/internal/group"
	"github.com/zengo-x/custodian/internal/store"
	"github.com/zengo-x/custodian/internal/vdf"
)

func testDeposit(t *testing.T) (group.Suite, Share, group.Element) {
	t.Helper()
	su := group.NewP256()
	sBen := su.RandomScalar()
	sSrv := su.RandomScalar()

	clientShare := su.Generator().Mul(sBen)
	joint := clientShare.Mul(sSrv)

	return su, Share{PublicKey: joint, ServerShare: sSrv}, clientShare
}

func testParams(t *testing.T, difficulty uint64) *vdf.Params {
	t.Helper()
	p, err := vdf.Setup(difficulty)
	require.NoError(t, err)
	return p
}

func TestVerifySucceedsForMatchingClientShare(t *testing.T) {
	_, share, clientShare := testDeposit(t)

	proof, ok := share.Verify(clientShare)
	require.True(t, ok)
	assert.True(t, proof.Equal(share.PublicKey))
}

func TestVerifyFailsForWrongClientShare(t *testing.T) {
	su, share, _ := testDeposit(t)
	wrong := su.Generator().Mul(su.RandomScalar())

	_, ok := share.Verify(wrong)
	assert.False(t, ok)
}

func TestOpenRejectsOldChallenge(t *testing.T) {
	_, share, clientShare := testDeposit(t)
	params := testParams(t, 1)

	current := store.Challenge{ID: big.NewInt(2), Payload: []byte("epoch-2-instance")}
	solved := store.Challenge{ID: big.NewInt(1), Payload: []byte("epoch-1-instance")}

	_, err := share.Open(params, current, solved, vdf.Solution{}, clientShare)
	assert.ErrorIs(t, err, ErrOldChallenge)
}

func TestOpenRejectsMismatchedChallenge(t *testing.T) {
	_, share, clientShare := testDeposit(t)
	params := testParams(t, 1)
	instanceA, err := params.PickChallenge()
	require.NoError(t, err)
	instanceB, err := params.PickChallenge()
	require.NoError(t, err)

	current := store.Challenge{ID: big.NewInt(1), Payload: instanceA.X}
	solved := store.Challenge{ID: big.NewInt(1), Payload: instanceB.X}

	_, err = share.Open(params, current, solved, vdf.Solution{}, clientShare)
	assert.ErrorIs(t, err, ErrInvalidChallenge)
}

func TestOpenRejectsIncorrectSolution(t *testing.T) {
	_, share, clientShare := testDeposit(t)
	params := testParams(t, 1)
	instance, err := params.PickChallenge()
	require.NoError(t, err)

	ch := store.Challenge{ID: big.NewInt(1), Payload: instance.X}
	garbage := vdf.Solution{Y: []byte{1, 2, 3}, Pi: []byte{4, 5, 6}}

	_, err = share.Open(params, ch, ch, garbage, clientShare)
	assert.ErrorIs(t, err, ErrIncorrectSolution)
}

func TestOpenRejectsClientShareMismatch(t *testing.T) {
	su, share, _ := testDeposit(t)
	params := testParams(t, 1)
	instance, err := params.PickChallenge()
	require.NoError(t, err)
	solution, err := instance.Solve(context.Background(), params)
	require.NoError(t, err)

	ch := store.Challenge{ID: big.NewInt(0), Payload: instance.X}
	wrongShare := su.Generator().Mul(su.RandomScalar())

	_, err = share.Open(params, ch, ch, solution, wrongShare)
	assert.ErrorIs(t, err, ErrClientShareMismatch)
}

func TestOpenSucceedsAndReturnsServerShare(t *testing.T) {
	su, share, clientShare := testDeposit(t)
	params := testParams(t, 5)
	instance, err := params.PickChallenge()
	require.NoError(t, err)
	solution, err := instance.Solve(context.Background(), params)
	require.NoError(t, err)

	ch := store.Challenge{ID: big.NewInt(0), Payload: instance.X}

	released, err := share.Open(params, ch, ch, solution, clientShare)
	require.NoError(t, err)
	assert.Equal(t, 0, su.ScalarToBigInt(share.ServerShare).Cmp(su.ScalarToBigInt(released)))
}
