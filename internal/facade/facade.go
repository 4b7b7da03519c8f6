// Package facade is the dual RPC front end: two TCP/TLS listeners, one
// per trust domain, each routing framed requests to a subset of the
// custody engine's operations. Nothing below this package knows that
// TLS or framing exist.
package facade

import (
	"context"
	"errors"
	"math/big"
	"net"
	"sync"

	uuid "github.com/satori/go.uuid"

	"github.com/dedis/onet/log"

	"github.com/zengo-x/custodian/internal/custody"
	"github.com/zengo-x/custodian/internal/store"
	"github.com/zengo-x/custodian/internal/vdf"
	"github.com/zengo-x/custodian/internal/wire"
)

// errInvalidChallengeID is returned when a peer submits a challenge id
// that isn't exactly 16 bytes.
var errInvalidChallengeID = errors.New("facade: challenge id must be 16 bytes")

// Facade owns the engine and the two listeners layered on top of it. It
// is the component cmd/custodian constructs and runs.
type Facade struct {
	engine *custody.Engine

	wg        sync.WaitGroup
	testator  net.Listener
	benef     net.Listener
	insecure  bool
	closeOnce sync.Once
}

// New builds a facade around an already-constructed engine. The
// listeners are supplied by the caller (cmd/custodian decides TLS vs
// plain TCP), which keeps this package free of certificate-loading
// concerns.
func New(engine *custody.Engine, testatorListener, beneficiaryListener net.Listener, insecure bool) *Facade {
	return &Facade{engine: engine, testator: testatorListener, benef: beneficiaryListener, insecure: insecure}
}

// Serve runs both listeners until ctx is cancelled, then stops accepting
// new connections and waits for in-flight RPCs to drain. It always
// returns nil once shutdown completes; transport errors on an
// individual listener are logged and that listener alone stops, per the
// "if either endpoint terminates independently, log and continue
// draining the other" rule.
func (f *Facade) Serve(ctx context.Context) error {
	if f.insecure {
		log.Warn("facade: running in insecure mode, TLS is disabled on both endpoints")
	}

	f.wg.Add(2)
	go f.acceptLoop(ctx, f.testator, testatorMethods, "testator")
	go f.acceptLoop(ctx, f.benef, beneficiaryMethods, "beneficiary")

	<-ctx.Done()
	f.closeOnce.Do(func() {
		f.testator.Close()
		f.benef.Close()
	})
	f.wg.Wait()
	return nil
}

func (f *Facade) acceptLoop(ctx context.Context, l net.Listener, methods map[string]handlerFunc, name string) {
	defer f.wg.Done()

	var conns sync.WaitGroup
	for {
		conn, err := l.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				conns.Wait()
				return
			default:
				log.Error(name, "endpoint accept failure:", err)
				conns.Wait()
				return
			}
		}
		conns.Add(1)
		go func() {
			defer conns.Done()
			f.serveConn(conn, methods, name)
		}()
	}
}

type handlerFunc func(e *custody.Engine, payload []byte) (interface{}, *custody.Error)

var testatorMethods = map[string]handlerFunc{
	wire.MethodPing:            handlePing,
	wire.MethodSaveServerShare: handleSaveServerShare,
}

var beneficiaryMethods = map[string]handlerFunc{
	wire.MethodVerifyServerShare:       handleVerifyServerShare,
	wire.MethodGetChallenge:            handleGetChallenge,
	wire.MethodObtainServerSecretShare: handleObtainServerSecretShare,
}

// serveConn handles one connection to completion: peer connections carry
// one request per round trip (no pipelining), so this loops reading
// frames until the peer disconnects or sends something unrecoverable.
func (f *Facade) serveConn(conn net.Conn, methods map[string]handlerFunc, endpointName string) {
	defer conn.Close()
	if f.insecure {
		log.Warn("facade: accepted connection on", endpointName, "endpoint without TLS")
	}

	for {
		req, err := wire.ReadFrame(conn)
		if err != nil {
			return
		}

		correlationID := "unknown"
		if id, err := uuid.NewV4(); err == nil {
			correlationID = id.String()
		}
		handler, ok := methods[req.Method]
		if !ok {
			log.Lvlf2("%s[%s]: unknown method %q", endpointName, correlationID, req.Method)
			writeStatus(conn, wire.StatusInvalidArgument)
			continue
		}

		log.Lvlf3("%s[%s]: dispatching %s", endpointName, correlationID, req.Method)
		resp, engErr := handler(f.engine, req.Payload)
		if engErr != nil {
			log.Lvlf2("%s[%s]: %s failed: %s", endpointName, correlationID, req.Method, engErr)
			writeStatus(conn, toWireStatus(engErr.Status))
			continue
		}

		payload, encodeErr := wire.Encode(resp)
		if encodeErr != nil {
			log.Error(endpointName, correlationID, "response encode failure:", encodeErr)
			writeStatus(conn, wire.StatusInternal)
			continue
		}
		wire.WriteFrame(conn, wire.Frame{Method: req.Method, Status: wire.StatusOK, Payload: payload})
	}
}

func writeStatus(conn net.Conn, status wire.Status) {
	wire.WriteFrame(conn, wire.Frame{Status: status})
}

func toWireStatus(s custody.Status) wire.Status {
	switch s {
	case custody.InvalidArgument:
		return wire.StatusInvalidArgument
	case custody.NotFound:
		return wire.StatusNotFound
	case custody.AlreadyExists:
		return wire.StatusAlreadyExists
	case custody.FailedPrecondition:
		return wire.StatusFailedPrecondition
	case custody.Unauthenticated:
		return wire.StatusUnauthenticated
	default:
		return wire.StatusInternal
	}
}

func handlePing(e *custody.Engine, payload []byte) (interface{}, *custody.Error) {
	if err := e.Ping(); err != nil {
		return nil, err
	}
	return &wire.PingResponse{}, nil
}

func handleSaveServerShare(e *custody.Engine, payload []byte) (interface{}, *custody.Error) {
	var req wire.SaveServerShareRequest
	if err := wire.Decode(payload, &req); err != nil {
		return nil, &custody.Error{Status: custody.InvalidArgument, Message: "malformed request"}
	}
	if err := e.SaveShare(req.PublicKey, req.ServerSecretShare); err != nil {
		return nil, err
	}
	return &wire.SaveServerShareResponse{}, nil
}

func handleVerifyServerShare(e *custody.Engine, payload []byte) (interface{}, *custody.Error) {
	var req wire.VerifyServerShareRequest
	if err := wire.Decode(payload, &req); err != nil {
		return nil, &custody.Error{Status: custody.InvalidArgument, Message: "malformed request"}
	}
	proof, err := e.VerifyShare(req.PublicKey, req.ClientPublicShare)
	if err != nil {
		return nil, err
	}
	return &wire.VerifyServerShareResponse{ServerPublicShare: proof}, nil
}

func handleGetChallenge(e *custody.Engine, payload []byte) (interface{}, *custody.Error) {
	ch, err := e.GetChallenge()
	if err != nil {
		return nil, err
	}
	return &wire.GetChallengeResponse{Challenge: toWireChallenge(ch)}, nil
}

func handleObtainServerSecretShare(e *custody.Engine, payload []byte) (interface{}, *custody.Error) {
	var req wire.ObtainServerSecretShareRequest
	if err := wire.Decode(payload, &req); err != nil {
		return nil, &custody.Error{Status: custody.InvalidArgument, Message: "malformed request"}
	}

	solved, err := fromWireChallenge(req.SolvedChallenge)
	if err != nil {
		return nil, &custody.Error{Status: custody.InvalidArgument, Message: "malformed solved challenge id"}
	}

	var solutionPayload wire.SolutionPayload
	if err := wire.Decode(req.Solution, &solutionPayload); err != nil {
		return nil, &custody.Error{Status: custody.InvalidArgument, Message: "malformed VDF solution"}
	}
	solution := vdf.Solution{Y: solutionPayload.Y, Pi: solutionPayload.Pi}

	released, engErr := e.ObtainServerSecretShare(req.PublicKey, req.ClientPublicShare, solved, solution)
	if engErr != nil {
		return nil, engErr
	}
	return &wire.ObtainServerSecretShareResponse{ServerSecretShare: released}, nil
}

func toWireChallenge(ch store.Challenge) wire.Challenge {
	return wire.Challenge{ID: encodeLE16(ch.ID), Challenge: ch.Payload}
}

func fromWireChallenge(w wire.Challenge) (store.Challenge, error) {
	id, err := decodeLE16(w.ID)
	if err != nil {
		return store.Challenge{}, err
	}
	return store.Challenge{ID: id, Payload: w.Challenge}, nil
}

func encodeLE16(v *big.Int) []byte {
	be := v.Bytes()
	out := make([]byte, 16)
	for i, b := range be {
		out[len(be)-1-i] = b
	}
	return out
}

func decodeLE16(raw []byte) (*big.Int, error) {
	if len(raw) != 16 {
		return nil, errInvalidChallengeID
	}
	be := make([]byte, len(raw))
	for i, b := range raw {
		be[len(raw)-1-i] = b
	}
	return new(big.Int).SetBytes(be), nil
}
