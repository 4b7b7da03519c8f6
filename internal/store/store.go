// Package store defines the durable custody state: secret shares keyed
// by public key, the monotonic ping counter, and the current challenge.
// The counter and challenge form one logical cell — increasing the
// counter atomically erases the challenge, and setting a challenge is
// guarded against a concurrently-moved counter.
package store

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
)

// ErrAlreadyExists is returned by AddServerSecretShare when a share is
// already on file for the given public key.
var ErrAlreadyExists = errors.New("store: server secret share already exists")

// ErrOutdated is returned by SetChallenge when the proposed challenge's
// id is behind the current ping counter (the testator pinged since the
// id was read).
var ErrOutdated = errors.New("store: testator is live")

// ErrMismatchedID is returned by SetChallenge when the proposed
// challenge's id is ahead of the current ping counter. The engine reads
// the counter immediately before calling SetChallenge, so this
// indicates a logic bug rather than a race.
var ErrMismatchedID = errors.New("store: challenge id ahead of ping counter")

// ErrInvalidEncoding is returned when a stored counter or challenge row
// can't be decoded — on-disk corruption.
var ErrInvalidEncoding = errors.New("store: invalid on-disk encoding")

// ErrAlreadySet is returned by SetChallenge when a challenge with the
// same id is already stored but its payload differs from the proposed
// one. Existing holds the one already on file, which the engine returns
// to the caller as if it had won the race.
type ErrAlreadySet struct {
	Existing Challenge
}

func (e *ErrAlreadySet) Error() string {
	return "store: challenge already set for this epoch"
}

// Challenge is the (id, payload) pair described in spec: at most one
// exists at any time, and it is only ever compared for byte-equality —
// Payload is opaque to the store.
type Challenge struct {
	ID      *big.Int
	Payload []byte
}

// Equal compares id and payload byte-for-byte, per the spec's challenge
// identity rule.
func (c Challenge) Equal(o Challenge) bool {
	if c.ID == nil || o.ID == nil {
		return c.ID == o.ID && bytes.Equal(c.Payload, o.Payload)
	}
	return c.ID.Cmp(o.ID) == 0 && bytes.Equal(c.Payload, o.Payload)
}

// Store is the durable backing for custody state. Implementations must
// make IncreasePingCounter and SetChallenge linearisable with respect to
// each other (they share the counter/challenge cell); AddServerSecretShare
// may use an independent compare-and-swap per key.
type Store interface {
	// AddServerSecretShare inserts a share, failing with ErrAlreadyExists
	// if one is already on file for publicKey. Durable on return.
	AddServerSecretShare(publicKey, serverSecretShare []byte) error
	// GetServerSecretShare returns the share for publicKey, or ok=false
	// if none exists.
	GetServerSecretShare(publicKey []byte) (share []byte, ok bool, err error)

	// IncreasePingCounter atomically bumps the counter and erases any
	// stored challenge, returning the new counter value. Durable on
	// return.
	IncreasePingCounter() (*big.Int, error)
	// GetPingCounter returns the counter, 0 if never written.
	GetPingCounter() (*big.Int, error)

	// SetChallenge installs ch as the current challenge. Fails with
	// ErrOutdated if ch.ID < counter, ErrMismatchedID if ch.ID > counter,
	// or *ErrAlreadySet if a different challenge with the same id is
	// already stored. Durable on return.
	SetChallenge(ch Challenge) error
	// GetChallenge returns the current challenge, or nil if none is set.
	// The returned challenge's ID always equals GetPingCounter().
	GetChallenge() (*Challenge, error)

	Close() error
}

// counterSize is the byte width of the little-endian ping counter and
// challenge id encoding: 16 bytes for a u128, per spec.
const counterSize = 16

// encodeCounter renders v as a 16-byte little-endian integer.
func encodeCounter(v *big.Int) []byte {
	be := v.Bytes()
	if len(be) > counterSize {
		panic(fmt.Sprintf("store: counter %s overflows u128", v))
	}
	out := make([]byte, counterSize)
	for i, b := range be {
		out[len(be)-1-i] = b
	}
	return out
}

// decodeCounter is the inverse of encodeCounter.
func decodeCounter(raw []byte) (*big.Int, error) {
	if len(raw) != counterSize {
		return nil, ErrInvalidEncoding
	}
	be := make([]byte, counterSize)
	for i, b := range raw {
		be[counterSize-1-i] = b
	}
	return new(big.Int).SetBytes(be), nil
}

// encodeChallenge renders ch as id(16 bytes LE) || len(payload)(4 bytes BE) || payload.
func encodeChallenge(ch Challenge) []byte {
	out := make([]byte, counterSize+4+len(ch.Payload))
	copy(out[:counterSize], encodeCounter(ch.ID))
	binary.BigEndian.PutUint32(out[counterSize:counterSize+4], uint32(len(ch.Payload)))
	copy(out[counterSize+4:], ch.Payload)
	return out
}

// decodeChallenge is the inverse of encodeChallenge.
func decodeChallenge(raw []byte) (*Challenge, error) {
	if len(raw) < counterSize+4 {
		return nil, ErrInvalidEncoding
	}
	id, err := decodeCounter(raw[:counterSize])
	if err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(raw[counterSize : counterSize+4])
	rest := raw[counterSize+4:]
	if uint32(len(rest)) != n {
		return nil, ErrInvalidEncoding
	}
	payload := make([]byte, n)
	copy(payload, rest)
	return &Challenge{ID: id, Payload: payload}, nil
}
