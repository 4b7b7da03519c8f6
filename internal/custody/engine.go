// Package custody implements the RPC-independent business logic: the
// five operations a testator or beneficiary can invoke, translated into
// group/VDF primitives and store transactions. Nothing here knows about
// TLS, framing, or wire encoding — see internal/wire and internal/facade
// for that.
package custody

import (
	"math/big"

	"github.com/dedis/onet/log"

	"github.com/zengo-x/custodian/internal/group"
	"github.com/zengo-x/custodian/internal/sealed"
	"github.com/zengo-x/custodian/internal/store"
	"github.com/zengo-x/custodian/internal/vdf"
)

// Status is the externally visible outcome of an engine call — the six
// kinds the wire facade maps onto response status codes. It deliberately
// carries less information than a Go error chain: once an engine method
// returns, the facade only needs to know which of these six buckets to
// report.
type Status int

const (
	// OK indicates success.
	OK Status = iota
	// InvalidArgument: malformed cryptographic input, unparseable challenge.
	InvalidArgument
	// NotFound: share absent, or (deliberately conflated) client share mismatched.
	NotFound
	// AlreadyExists: duplicate deposit for a public key already on file.
	AlreadyExists
	// FailedPrecondition: testator is live — no challenge issuable, claim rejected.
	FailedPrecondition
	// Internal: storage I/O failure, serialisation bug, logic invariant violation.
	Internal
	// Unauthenticated: mTLS rejected the peer. The engine never produces
	// this itself — the TLS handshake rejects the connection before any
	// frame reaches a handler — it exists here so the taxonomy the facade
	// reports is complete.
	Unauthenticated
)

func (s Status) String() string {
	switch s {
	case OK:
		return "OK"
	case InvalidArgument:
		return "InvalidArgument"
	case NotFound:
		return "NotFound"
	case AlreadyExists:
		return "AlreadyExists"
	case FailedPrecondition:
		return "FailedPrecondition"
	case Internal:
		return "Internal"
	case Unauthenticated:
		return "Unauthenticated"
	default:
		return "Unknown"
	}
}

// Error pairs a Status with a human-readable message; engine methods
// return *Error (nil on success) rather than a bare Go error so the
// facade never has to re-classify an error string.
type Error struct {
	Status  Status
	Message string
}

func (e *Error) Error() string { return e.Status.String() + ": " + e.Message }

func newError(s Status, msg string) *Error { return &Error{Status: s, Message: msg} }

// Engine is the custody state machine: glues a Store and a group.Suite
// together with one deployment's immutable VDF parameters. Safe for
// concurrent use — it holds no mutable state of its own, delegating all
// synchronisation to Store.
type Engine struct {
	suite  group.Suite
	store  store.Store
	params *vdf.Params
}

// New builds an engine over the given suite, store, and VDF parameters.
// params is treated as immutable and shared by reference across all
// requests.
func New(suite group.Suite, st store.Store, params *vdf.Params) *Engine {
	return &Engine{suite: suite, store: st, params: params}
}

// SaveShare implements the testator deposit path: save_share.
func (e *Engine) SaveShare(publicKeyBytes, serverShareBytes []byte) *Error {
	if _, err := e.suite.ElementFromBytes(publicKeyBytes); err != nil {
		return newError(InvalidArgument, "malformed public key")
	}

	shareInt := new(big.Int).SetBytes(serverShareBytes)
	serverShare, err := e.suite.ScalarFromBigInt(shareInt)
	if err != nil {
		return newError(InvalidArgument, "malformed server secret share")
	}

	if err := e.store.AddServerSecretShare(publicKeyBytes, serverShare.Bytes()); err != nil {
		if err == store.ErrAlreadyExists {
			return newError(AlreadyExists, "a share is already deposited for this public key")
		}
		log.Error("save_share: store failure:", err)
		return newError(Internal, "storage failure")
	}
	return nil
}

// Ping implements the testator keepalive path: bumps the counter and
// erases the current epoch's challenge.
func (e *Engine) Ping() *Error {
	if _, err := e.store.IncreasePingCounter(); err != nil {
		log.Error("ping: store failure:", err)
		return newError(Internal, "storage failure")
	}
	return nil
}

// VerifyShare implements verify_share: an unconditional freshness check
// the beneficiary can run at any time, with NotFound used for both "no
// such public key" and "share mismatch" so a prober can't distinguish
// the two.
func (e *Engine) VerifyShare(publicKeyBytes, clientShareBytes []byte) ([]byte, *Error) {
	publicKey, err := e.suite.ElementFromBytes(publicKeyBytes)
	if err != nil {
		return nil, newError(InvalidArgument, "malformed public key")
	}
	clientShare, err := e.suite.ElementFromBytes(clientShareBytes)
	if err != nil {
		return nil, newError(InvalidArgument, "malformed client public share")
	}

	share, found, storeErr := e.loadShare(publicKeyBytes, publicKey)
	if storeErr != nil {
		return nil, storeErr
	}
	if !found {
		return nil, newError(NotFound, "no deposit on file for this public key")
	}

	proof, ok := share.Verify(clientShare)
	if !ok {
		return nil, newError(NotFound, "no deposit on file for this public key")
	}
	return proof.Bytes(), nil
}

// GetChallenge implements get_challenge: idempotently observe or create
// the current epoch's challenge.
func (e *Engine) GetChallenge() (store.Challenge, *Error) {
	if ch, err := e.store.GetChallenge(); err != nil {
		log.Error("get_challenge: store read failure:", err)
		return store.Challenge{}, newError(Internal, "storage failure")
	} else if ch != nil {
		return *ch, nil
	}

	counter, err := e.store.GetPingCounter()
	if err != nil {
		log.Error("get_challenge: counter read failure:", err)
		return store.Challenge{}, newError(Internal, "storage failure")
	}

	instance, err := e.params.PickChallenge()
	if err != nil {
		log.Error("get_challenge: VDF instance sampling failure:", err)
		return store.Challenge{}, newError(Internal, "failed to sample a VDF challenge")
	}

	proposed := store.Challenge{ID: counter, Payload: instance.X}
	switch err := e.store.SetChallenge(proposed).(type) {
	case nil:
		return proposed, nil
	case *store.ErrAlreadySet:
		return err.Existing, nil
	default:
		if err == store.ErrOutdated {
			return store.Challenge{}, newError(FailedPrecondition, "testator is live")
		}
		if err == store.ErrMismatchedID {
			log.Error("get_challenge: challenge id ahead of counter, should not happen:", err)
			return store.Challenge{}, newError(Internal, "challenge epoch invariant violated")
		}
		log.Error("get_challenge: store failure:", err)
		return store.Challenge{}, newError(Internal, "storage failure")
	}
}

// ObtainServerSecretShare implements obtain_server_secret_share: the
// liveness-gated release of the deposited server scalar.
func (e *Engine) ObtainServerSecretShare(
	publicKeyBytes, clientShareBytes []byte,
	solvedChallenge store.Challenge,
	solution vdf.Solution,
) ([]byte, *Error) {
	publicKey, err := e.suite.ElementFromBytes(publicKeyBytes)
	if err != nil {
		return nil, newError(InvalidArgument, "malformed public key")
	}
	clientShare, err := e.suite.ElementFromBytes(clientShareBytes)
	if err != nil {
		return nil, newError(InvalidArgument, "malformed client public share")
	}

	current, storeErr := e.store.GetChallenge()
	if storeErr != nil {
		log.Error("obtain_server_secret_share: store read failure:", storeErr)
		return nil, newError(Internal, "storage failure")
	}
	if current == nil {
		return nil, newError(FailedPrecondition, "testator is live")
	}

	share, found, engErr := e.loadShare(publicKeyBytes, publicKey)
	if engErr != nil {
		return nil, engErr
	}
	if !found {
		return nil, newError(NotFound, "no deposit on file for this public key")
	}

	released, openErr := share.Open(e.params, *current, solvedChallenge, solution, clientShare)
	if openErr != nil {
		switch openErr {
		case sealed.ErrOldChallenge:
			return nil, newError(FailedPrecondition, "solved challenge is stale")
		case sealed.ErrInvalidChallenge:
			return nil, newError(InvalidArgument, "solved challenge does not match current challenge")
		case sealed.ErrIncorrectSolution:
			return nil, newError(InvalidArgument, "incorrect VDF solution")
		case sealed.ErrClientShareMismatch:
			return nil, newError(NotFound, "no deposit on file for this public key")
		default:
			log.Error("obtain_server_secret_share: unexpected open error:", openErr)
			return nil, newError(Internal, "release gate failure")
		}
	}

	return e.suite.ScalarToBigInt(released).Bytes(), nil
}

// loadShare fetches and decodes the sealed share for a public key.
func (e *Engine) loadShare(publicKeyBytes []byte, publicKey group.Element) (sealed.Share, bool, *Error) {
	raw, found, err := e.store.GetServerSecretShare(publicKeyBytes)
	if err != nil {
		log.Error("engine: share lookup failure:", err)
		return sealed.Share{}, false, newError(Internal, "storage failure")
	}
	if !found {
		return sealed.Share{}, false, nil
	}

	serverShare, err := e.suite.ScalarFromBigInt(new(big.Int).SetBytes(raw))
	if err != nil {
		log.Error("engine: stored share failed to decode, corrupt storage:", err)
		return sealed.Share{}, false, newError(Internal, "corrupt stored share")
	}

	return sealed.Share{PublicKey: publicKey, ServerShare: serverShare}, true, nil
}
