package storage

import (
	"bytes"
	"errors"

	"github.com/vocdoni/zkpoll/db"
	"github.com/vocdoni/zkpoll/db/prefixeddb"
)

// VerificationKey returns the stored proof verification key, or ErrNotFound
// if none has been set.
func (s *Storage) VerificationKey() ([]byte, error) {
	data, err := prefixeddb.NewPrefixedReader(s.db, verificationKeyPrefix).Get(verificationKeyKey)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return bytes.Clone(data), nil
}

// HasVerificationKey reports whether a verification key is stored.
func (s *Storage) HasVerificationKey() bool {
	_, err := s.VerificationKey()
	return err == nil
}

// SetVerificationKey stores the proof verification key, replacing any
// previous one.
func (s *Storage) SetVerificationKey(key []byte) error {
	s.globalLock.Lock()
	defer s.globalLock.Unlock()

	wTx := s.db.WriteTx()
	defer wTx.Discard()
	if err := prefixeddb.NewPrefixedWriteTx(wTx, verificationKeyPrefix).Set(verificationKeyKey, key); err != nil {
		return err
	}
	return wTx.Commit()
}
