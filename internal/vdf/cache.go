package vdf

import (
	"bytes"
	"encoding/gob"
	"errors"
	"math/big"
	"os"

	"golang.org/x/crypto/blake2b"
)

// ErrCorrupt is returned by LoadParams when the cache file's checksum
// doesn't match its contents. Fatal at startup per the service's error
// design ("corrupt VDF-params file").
var ErrCorrupt = errors.New("vdf: corrupt params cache")

type cachedParams struct {
	N        []byte
	T        uint64
	Checksum [32]byte
}

func checksum(n []byte, t uint64) [32]byte {
	var tb [8]byte
	for i := range tb {
		tb[i] = byte(t >> (8 * i))
	}
	return blake2b.Sum256(append(append([]byte{}, n...), tb[:]...))
}

// SaveParams persists params to path so a later run can skip the
// (CPU-bound, uncancellable) prime generation in Setup.
func SaveParams(path string, p *Params) error {
	n := p.N.Bytes()
	cached := cachedParams{N: n, T: p.T, Checksum: checksum(n, p.T)}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(cached); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o600)
}

// LoadParams reads params back from path, verifying the checksum stamped
// by SaveParams. Returns ErrCorrupt (not a generic decode error) so
// callers can report the specific "corrupt VDF-params file" startup
// failure spec requires.
func LoadParams(path string) (*Params, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cached cachedParams
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&cached); err != nil {
		return nil, ErrCorrupt
	}
	if checksum(cached.N, cached.T) != cached.Checksum {
		return nil, ErrCorrupt
	}
	return &Params{N: new(big.Int).SetBytes(cached.N), T: cached.T}, nil
}

// SetupOrLoad loads cached params from path if present, otherwise runs
// Setup and writes the result back to path for next time. An empty path
// disables caching.
func SetupOrLoad(t uint64, path string) (*Params, error) {
	if path == "" {
		return Setup(t)
	}
	params, err := LoadParams(path)
	switch {
	case err == nil:
		if params.T != t {
			return nil, errors.New("vdf: cached params were generated for a different t")
		}
		return params, nil
	case errors.Is(err, os.ErrNotExist):
		params, err = Setup(t)
		if err != nil {
			return nil, err
		}
		return params, SaveParams(path, params)
	default:
		return nil, err
	}
}
