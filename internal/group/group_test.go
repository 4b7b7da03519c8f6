package group

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestElementRoundTrip(t *testing.T) {
	su := NewP256()
	g := su.Generator()
	s := su.RandomScalar()
	p := g.Mul(s)

	encoded := p.Bytes()
	assert.Len(t, encoded, 64)

	decoded, err := su.ElementFromBytes(encoded)
	require.NoError(t, err)
	assert.True(t, p.Equal(decoded))
}

func TestElementFromBytesRejectsGarbage(t *testing.T) {
	su := NewP256()
	_, err := su.ElementFromBytes([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrMalformedElement)
}

func TestScalarFromBigIntRejectsOutOfRange(t *testing.T) {
	su := NewP256()

	_, err := su.ScalarFromBigInt(big.NewInt(-1))
	assert.ErrorIs(t, err, ErrScalarOutOfRange)

	_, err = su.ScalarFromBigInt(su.Order())
	assert.ErrorIs(t, err, ErrScalarOutOfRange)
}

func TestScalarBigIntRoundTrip(t *testing.T) {
	su := NewP256()
	v := big.NewInt(123456789)

	s, err := su.ScalarFromBigInt(v)
	require.NoError(t, err)
	assert.Equal(t, 0, v.Cmp(su.ScalarToBigInt(s)))
}

func TestJointShareMatch(t *testing.T) {
	su := NewP256()
	sBen := su.RandomScalar()
	sSrv := su.RandomScalar()

	joint := su.Generator().Mul(sBen).Mul(sSrv)
	clientShare := su.Generator().Mul(sBen)

	proof := clientShare.Mul(sSrv)
	assert.True(t, proof.Equal(joint))
}
