// Package sealed wraps one testator's deposited share and exposes the
// two policies under which it may ever be read back: an unconditional
// freshness check (Verify) and a liveness-gated release (Open).
package sealed

import (
	"errors"

	"github.com/zengo-x/custodian/internal/group"
	"github.com/zengo-x/custodian/internal/store"
	"github.com/zengo-x/custodian/internal/vdf"
)

// Open's ordered failure modes, named exactly as the gate distinguishes
// them — callers map these to wire status codes, not the other way
// round.
var (
	// ErrOldChallenge means the solver's claimed challenge is behind the
	// store's current one: the testator pinged while the beneficiary was
	// solving.
	ErrOldChallenge = errors.New("sealed: solved challenge is stale")
	// ErrInvalidChallenge means the solver's claimed challenge doesn't
	// byte-match the current one (and isn't merely behind it).
	ErrInvalidChallenge = errors.New("sealed: solved challenge does not match current challenge")
	// ErrIncorrectSolution means the VDF proof failed to verify against
	// the current challenge's payload.
	ErrIncorrectSolution = errors.New("sealed: incorrect VDF solution")
	// ErrClientShareMismatch means the share match in step 4 failed.
	ErrClientShareMismatch = errors.New("sealed: client share does not match server share")
)

// Share is one testator's deposited (public_key, server_scalar) pair.
type Share struct {
	PublicKey   group.Element
	ServerShare group.Scalar
}

// Verify computes clientShare * ServerShare and compares it to
// PublicKey, returning the product as a proof element if they match.
// This is not a zero-knowledge proof — the caller already knows the
// product should equal PublicKey — it is a freshness-checked echo that
// the client share is in fact the other half of this deposit.
func (s Share) Verify(clientShare group.Element) (group.Element, bool) {
	product := clientShare.Mul(s.ServerShare)
	if !product.Equal(s.PublicKey) {
		return nil, false
	}
	return product, true
}

// Open runs the ordered release gate described for obtain_server_secret_share:
// stale-epoch check, then challenge equality, then VDF verification, then
// share match, in that order. The ordering is load-bearing: a caller
// without a valid solution must not learn whether the share match would
// have succeeded, and a caller targeting a stale epoch is rejected before
// any cryptographic work runs.
func (s Share) Open(
	params *vdf.Params,
	current store.Challenge,
	solved store.Challenge,
	solution vdf.Solution,
	clientShare group.Element,
) (group.Scalar, error) {
	if solved.ID.Cmp(current.ID) < 0 {
		return nil, ErrOldChallenge
	}
	if !solved.Equal(current) {
		return nil, ErrInvalidChallenge
	}

	instance := vdf.Instance{X: current.Payload}
	if err := solution.Verify(params, instance); err != nil {
		return nil, ErrIncorrectSolution
	}

	product := clientShare.Mul(s.ServerShare)
	if !product.Equal(s.PublicKey) {
		return nil, ErrClientShareMismatch
	}

	return s.ServerShare, nil
}
