package store

import (
	"math/big"
	"os"
	"path/filepath"

	"github.com/coreos/bbolt"
)

var (
	secretsBucket = []byte("secrets")
	metaBucket    = []byte("meta")
	counterKey    = []byte("counter")
	challengeKey  = []byte("challenge")
)

// BoltStore is the production Store, backed by a single bbolt file. Bolt
// serializes all writers against each other, which is what gives
// IncreasePingCounter and SetChallenge the linearisability spec requires
// for free — no extra locking is needed on top of db.Update.
type BoltStore struct {
	db *bbolt.DB
}

// Open opens (creating if necessary) a bbolt database at path and
// ensures both buckets exist.
func Open(path string) (*BoltStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, err
		}
	}
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(secretsBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucketIfNotExists(metaBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltStore{db: db}, nil
}

// Close releases the underlying bbolt file lock.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// AddServerSecretShare implements Store.
func (s *BoltStore) AddServerSecretShare(publicKey, serverSecretShare []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(secretsBucket)
		if b.Get(publicKey) != nil {
			return ErrAlreadyExists
		}
		return b.Put(publicKey, serverSecretShare)
	})
}

// GetServerSecretShare implements Store.
func (s *BoltStore) GetServerSecretShare(publicKey []byte) ([]byte, bool, error) {
	var out []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(secretsBucket).Get(publicKey)
		if v != nil {
			out = make([]byte, len(v))
			copy(out, v)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return out, out != nil, nil
}

// IncreasePingCounter implements Store.
func (s *BoltStore) IncreasePingCounter() (*big.Int, error) {
	var next *big.Int
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(metaBucket)
		cur, err := readCounter(b)
		if err != nil {
			return err
		}
		next = new(big.Int).Add(cur, big.NewInt(1))
		if err := b.Put(counterKey, encodeCounter(next)); err != nil {
			return err
		}
		return b.Delete(challengeKey)
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}

// GetPingCounter implements Store.
func (s *BoltStore) GetPingCounter() (*big.Int, error) {
	var cur *big.Int
	err := s.db.View(func(tx *bbolt.Tx) error {
		var err error
		cur, err = readCounter(tx.Bucket(metaBucket))
		return err
	})
	return cur, err
}

func readCounter(b *bbolt.Bucket) (*big.Int, error) {
	v := b.Get(counterKey)
	if v == nil {
		return big.NewInt(0), nil
	}
	return decodeCounter(v)
}

// SetChallenge implements Store.
func (s *BoltStore) SetChallenge(ch Challenge) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(metaBucket)
		counter, err := readCounter(b)
		if err != nil {
			return err
		}
		switch ch.ID.Cmp(counter) {
		case -1:
			return ErrOutdated
		case 1:
			return ErrMismatchedID
		}

		if raw := b.Get(challengeKey); raw != nil {
			existing, err := decodeChallenge(raw)
			if err != nil {
				return err
			}
			if !existing.Equal(ch) {
				return &ErrAlreadySet{Existing: *existing}
			}
			return nil
		}
		return b.Put(challengeKey, encodeChallenge(ch))
	})
}

// GetChallenge implements Store.
func (s *BoltStore) GetChallenge() (*Challenge, error) {
	var out *Challenge
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(metaBucket).Get(challengeKey)
		if raw == nil {
			return nil
		}
		ch, err := decodeChallenge(raw)
		if err != nil {
			return err
		}
		out = ch
		return nil
	})
	return out, err
}
