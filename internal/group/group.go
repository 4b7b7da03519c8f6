// Package group abstracts over the prime-order group G the custody
// protocol runs in: a generator g, a scalar field F, and elements that
// support scalar multiplication, equality, and a fixed-size byte
// encoding. The rest of the service depends only on this interface, never
// on a concrete curve, per the "polymorphism over the curve" design note:
// a capability interface passed to constructors, not a class hierarchy.
package group

import (
	"crypto/elliptic"
	"errors"
	"math/big"

	"github.com/dedis/kyber"
	"github.com/dedis/kyber/group/nist"
	"github.com/dedis/kyber/util/random"
)

// ErrMalformedElement is returned when a byte string doesn't decode to a
// valid group element.
var ErrMalformedElement = errors.New("group: malformed element encoding")

// ErrScalarOutOfRange is returned when a big-integer value isn't a valid
// member of the scalar field (negative, or >= the group order).
var ErrScalarOutOfRange = errors.New("group: scalar out of range")

// Element is a member of G, e.g. a public key or a public share.
type Element interface {
	// Bytes encodes the element in uncompressed form minus the leading
	// tag byte: 64 bytes for a 256-bit curve.
	Bytes() []byte
	Equal(Element) bool
	// Mul returns s*e, a new element.
	Mul(s Scalar) Element
}

// Scalar is a member of F, e.g. one party's half of the joint secret.
type Scalar interface {
	Bytes() []byte
}

// Suite is the capability bundle the rest of the service is built
// against: decode elements and scalars, and produce the generator.
type Suite interface {
	Generator() Element
	ElementFromBytes(b []byte) (Element, error)
	// ScalarFromBigInt rejects values outside [0, Order).
	ScalarFromBigInt(v *big.Int) (Scalar, error)
	ScalarToBigInt(s Scalar) *big.Int
	RandomScalar() Scalar
	Order() *big.Int
}

// NewP256 returns the suite used throughout this service: kyber's
// Blake2/SHA256-keyed NIST P-256 group. kyber marshals a point in the
// uncompressed X9.62 form (a 0x04 tag followed by X||Y); Element.Bytes
// drops that tag and ElementFromBytes restores it, so the encoding used
// here is the raw 64-byte X||Y affine coordinates.
func NewP256() Suite {
	return &kyberSuite{
		group: nist.NewBlakeSHA256P256(),
		order: elliptic.P256().Params().N,
	}
}

type kyberSuite struct {
	group kyber.Group
	order *big.Int
}

func (su *kyberSuite) Generator() Element {
	return &kyberElement{p: su.group.Point().Base()}
}

func (su *kyberSuite) ElementFromBytes(b []byte) (Element, error) {
	if len(b) != su.group.PointLen()-1 {
		return nil, ErrMalformedElement
	}
	p := su.group.Point()
	if err := p.UnmarshalBinary(append([]byte{0x04}, b...)); err != nil {
		return nil, ErrMalformedElement
	}
	return &kyberElement{p: p}, nil
}

func (su *kyberSuite) Order() *big.Int {
	return new(big.Int).Set(su.order)
}

func (su *kyberSuite) ScalarFromBigInt(v *big.Int) (Scalar, error) {
	if v.Sign() < 0 || v.Cmp(su.order) >= 0 {
		return nil, ErrScalarOutOfRange
	}
	buf := make([]byte, su.group.ScalarLen())
	v.FillBytes(buf)
	s := su.group.Scalar()
	if err := s.UnmarshalBinary(buf); err != nil {
		return nil, ErrScalarOutOfRange
	}
	return &kyberScalar{s: s}, nil
}

func (su *kyberSuite) ScalarToBigInt(s Scalar) *big.Int {
	ks := s.(*kyberScalar)
	b, _ := ks.s.MarshalBinary()
	return new(big.Int).SetBytes(b)
}

func (su *kyberSuite) RandomScalar() Scalar {
	return &kyberScalar{s: su.group.Scalar().Pick(random.New())}
}

type kyberElement struct {
	p kyber.Point
}

func (e *kyberElement) Bytes() []byte {
	b, _ := e.p.MarshalBinary()
	return b[1:]
}

func (e *kyberElement) Equal(o Element) bool {
	oe, ok := o.(*kyberElement)
	if !ok {
		return false
	}
	return e.p.Equal(oe.p)
}

func (e *kyberElement) Mul(s Scalar) Element {
	ks, ok := s.(*kyberScalar)
	if !ok {
		panic("group: scalar from a different suite")
	}
	result := e.p.Clone().Mul(ks.s, e.p)
	return &kyberElement{p: result}
}

type kyberScalar struct {
	s kyber.Scalar
}

func (s *kyberScalar) Bytes() []byte {
	b, _ := s.s.MarshalBinary()
	return b
}
