// Package wire defines the request/response messages carried over the
// framed RPC protocol, their method-path identifiers, and the frame
// codec itself. Message fields are encoded with dedis/protobuf, the
// same wire codec the rest of the dependency stack uses for its network
// messages.
package wire

// Method path identifiers, one per RPC the dual facade exposes. These
// are the first thing written in every frame (see Frame) so a
// dispatcher can route without decoding the payload.
const (
	MethodPing                    = "Testator.Ping"
	MethodSaveServerShare         = "Testator.SaveServerShare"
	MethodVerifyServerShare       = "Beneficiary.VerifyServerShare"
	MethodGetChallenge            = "Beneficiary.GetChallenge"
	MethodObtainServerSecretShare = "Beneficiary.ObtainServerSecretShare"
)

// Status mirrors custody.Status on the wire: a small fixed enumeration
// instead of a string, so clients can switch on it without string
// comparison. Kept independent of the custody package so wire has no
// dependency on engine internals.
type Status uint8

const (
	StatusOK Status = iota
	StatusInvalidArgument
	StatusNotFound
	StatusAlreadyExists
	StatusFailedPrecondition
	StatusInternal
	StatusUnauthenticated
)

// PingRequest carries no fields; Testator.Ping is a pure keepalive.
type PingRequest struct{}

// PingResponse carries no fields on success.
type PingResponse struct{}

// SaveServerShareRequest deposits one testator's half of a joint secret.
type SaveServerShareRequest struct {
	PublicKey         []byte
	ServerSecretShare []byte
}

// SaveServerShareResponse carries no fields on success.
type SaveServerShareResponse struct{}

// VerifyServerShareRequest asks whether a claimed client share matches
// the deposit on file for PublicKey.
type VerifyServerShareRequest struct {
	PublicKey         []byte
	ClientPublicShare []byte
}

// VerifyServerShareResponse carries the freshness-checked proof element.
type VerifyServerShareResponse struct {
	ServerPublicShare []byte
}

// GetChallengeRequest carries no fields; the current epoch is implicit
// in the store.
type GetChallengeRequest struct{}

// Challenge is the wire form of one epoch's VDF challenge: a
// little-endian 16-byte id and an opaque instance payload.
type Challenge struct {
	ID        []byte
	Challenge []byte
}

// GetChallengeResponse carries the current (or newly minted) challenge.
type GetChallengeResponse struct {
	Challenge Challenge
}

// ObtainServerSecretShareRequest submits a solved VDF challenge and asks
// for the deposited server share to be released.
type ObtainServerSecretShareRequest struct {
	PublicKey         []byte
	ClientPublicShare []byte
	SolvedChallenge   Challenge
	Solution          []byte
}

// ObtainServerSecretShareResponse carries the released scalar on success.
type ObtainServerSecretShareResponse struct {
	ServerSecretShare []byte
}

// SolutionPayload is the wire form of a VDF solution: wire has no
// dependency on the vdf package, so the facade converts to and from
// vdf.Solution{Y, Pi} on either side of the Solution []byte field above.
type SolutionPayload struct {
	Y  []byte
	Pi []byte
}
