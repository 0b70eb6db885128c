/*************************************************************************
 * Copyright 2026 TrustEdge Labs. All rights reserved.
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

// Package software implements the in-core software cryptographic
// backend: Ed25519 and ECDSA P-256 signing, XChaCha20-Poly1305 and
// AES-256-GCM AEAD, HKDF/PBKDF2 derivation, all keyed out of a
// bbolt-backed encrypted file store. It deliberately does not
// advertise K-256 — that algorithm identifier exists for capability
// negotiation only, reserved for hardware-token backends.
package software

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/flock"
	bolt "go.etcd.io/bbolt"

	"github.com/trustedge-labs/trustedge/primitives"
)

var (
	bucketKeys = []byte("keys")
	bucketMeta = []byte("meta")

	metaSaltKey = []byte("kek_salt")
)

// ErrKeyNotFound is returned when a key id has no record in the
// store.
var ErrKeyNotFound = errors.New("software: key not found")

// keyRecord is the on-disk, at-rest form of one key: the private key
// bytes sealed under the store's key-encryption-key, alongside the
// raw public key and the algorithm needed to interpret both.
type keyRecord struct {
	Alg        string `json:"alg"`
	PublicKey  []byte `json:"public_key"`
	SealedPriv []byte `json:"sealed_priv"`
	Nonce      []byte `json:"nonce"`
}

// Store is the software backend's encrypted key file: a bbolt
// database for the records, guarded by an advisory file lock so two
// processes never open it concurrently. All private key material at
// rest is sealed under a key-encryption-key derived from the caller's
// passphrase via PBKDF2; the KEK itself is held only as a
// primitives.Secret and released as soon as the Store closes.
type Store struct {
	db    *bolt.DB
	lock  *flock.Flock
	kek   *primitives.Secret
	path  string
}

// OpenStore opens (creating if absent) the encrypted key store at
// path, deriving its key-encryption-key from passphrase. The
// exclusive file lock is held for the lifetime of the Store; Close
// releases both the lock and the KEK.
func OpenStore(path string, passphrase []byte) (*Store, error) {
	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("software: acquiring store lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("software: store %s is locked by another process", path)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		lock.Unlock()
		return nil, err
	}

	var salt []byte
	err = db.Update(func(tx *bolt.Tx) error {
		mb, err := tx.CreateBucketIfNotExists(bucketMeta)
		if err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(bucketKeys); err != nil {
			return err
		}
		salt = mb.Get(metaSaltKey)
		if salt == nil {
			s, err := primitives.RandomBytes(primitives.PBKDF2SaltSize)
			if err != nil {
				return err
			}
			if err := mb.Put(metaSaltKey, s); err != nil {
				return err
			}
			salt = s
		}
		return nil
	})
	if err != nil {
		db.Close()
		lock.Unlock()
		return nil, err
	}

	kekBytes, err := primitives.PBKDF2DeriveSHA256(passphrase, salt, primitives.MinPBKDF2Iterations, 32)
	if err != nil {
		db.Close()
		lock.Unlock()
		return nil, err
	}

	return &Store{db: db, lock: lock, kek: primitives.NewSecret(kekBytes), path: path}, nil
}

// Close releases the key-encryption-key, the database handle, and the
// advisory file lock, in that order.
func (s *Store) Close() error {
	s.kek.Release()
	dbErr := s.db.Close()
	lockErr := s.lock.Unlock()
	if dbErr != nil {
		return dbErr
	}
	return lockErr
}

func (s *Store) seal(plain []byte) (ciphertext, nonce []byte, err error) {
	kek, err := s.kek.Bytes()
	if err != nil {
		return nil, nil, err
	}
	nonce, err = primitives.RandomBytes(primitives.AES256GCMNonceSize)
	if err != nil {
		return nil, nil, err
	}
	ct, err := primitives.Seal(primitives.AEADAES256GCM, kek, nonce, nil, plain)
	if err != nil {
		return nil, nil, err
	}
	return ct, nonce, nil
}

func (s *Store) open(ciphertext, nonce []byte) ([]byte, error) {
	kek, err := s.kek.Bytes()
	if err != nil {
		return nil, err
	}
	return primitives.Open(primitives.AEADAES256GCM, kek, nonce, nil, ciphertext)
}

func (s *Store) put(keyID string, rec keyRecord) error {
	buf, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketKeys).Put([]byte(keyID), buf)
	})
}

func (s *Store) get(keyID string) (keyRecord, error) {
	var rec keyRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		buf := tx.Bucket(bucketKeys).Get([]byte(keyID))
		if buf == nil {
			return ErrKeyNotFound
		}
		return json.Unmarshal(buf, &rec)
	})
	return rec, err
}
