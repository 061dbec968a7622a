/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package legacykms provides the key management capability backing the
// test suite agent: ed25519 key sets held in an in-memory wallet, detached
// signatures, and the crypto box primitives used by the legacy envelope
// packer.
package legacykms

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"

	"github.com/btcsuite/btcutil/base58"

	"github.com/hyperledger-archives/aries-protocol-test-suite/pkg/internal/cryptoutil"
)

// KeyManager defines the key management operations needed by the packer
// and the agent.
type KeyManager interface {
	// CreateKeySet creates a new ed25519 key set and returns the base58
	// encoded verification key.
	CreateKeySet() (string, error)
	// CreateKeySetFromSeed derives a key set deterministically from a
	// 32-byte seed.
	CreateKeySetFromSeed(seed []byte) (string, error)
	// FindVerKey returns the index of the first candidate key held by
	// this wallet. Candidates are base58 encoded verification keys.
	FindVerKey(candidateKeys []string) (int, error)
	// SignMessage signs message with the private key behind fromVerKey.
	SignMessage(message []byte, fromVerKey string) ([]byte, error)
	// ConvertToEncryptionKey converts an ed25519 verification key to its
	// curve25519 counterpart.
	ConvertToEncryptionKey(verKey []byte) ([]byte, error)
}

// BaseKMS is an in-memory KeyManager. A named wallet persists for the
// process lifetime; an ephemeral wallet is discarded when the test run
// ends.
type BaseKMS struct {
	keysMtx sync.RWMutex
	keys    map[string]ed25519.PrivateKey
}

type walletEntry struct {
	kms        *BaseKMS
	passphrase string
}

//nolint:gochecknoglobals
var (
	walletsMtx sync.Mutex
	wallets    = map[string]*walletEntry{}
)

// New returns a new empty wallet.
func New() *BaseKMS {
	return &BaseKMS{keys: map[string]ed25519.PrivateKey{}}
}

// Open returns the wallet registered under name, creating it on first
// use. The passphrase set at creation must be presented on every later
// open. Ephemeral wallets are always created fresh and never registered.
func Open(name, passphrase string, ephemeral bool) (*BaseKMS, error) {
	if ephemeral || name == "" {
		return New(), nil
	}

	walletsMtx.Lock()
	defer walletsMtx.Unlock()

	if e, ok := wallets[name]; ok {
		if e.passphrase != passphrase {
			return nil, fmt.Errorf("wallet %q: invalid passphrase", name)
		}

		return e.kms, nil
	}

	w := New()
	wallets[name] = &walletEntry{kms: w, passphrase: passphrase}

	return w, nil
}

// CreateKeySet creates a new random ed25519 key set.
func (w *BaseKMS) CreateKeySet() (string, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return "", fmt.Errorf("create key set: %w", err)
	}

	return w.storeKey(pub, priv), nil
}

// CreateKeySetFromSeed derives an ed25519 key set from a 32-byte seed.
// The same seed always yields the same key set, which is how the suite
// and the subject agree on static backchannel keys.
func (w *BaseKMS) CreateKeySetFromSeed(seed []byte) (string, error) {
	if len(seed) != ed25519.SeedSize {
		return "", fmt.Errorf("%d-byte seed size is invalid", len(seed))
	}

	priv := ed25519.NewKeyFromSeed(seed)
	pub := priv.Public().(ed25519.PublicKey)

	return w.storeKey(pub, priv), nil
}

func (w *BaseKMS) storeKey(pub ed25519.PublicKey, priv ed25519.PrivateKey) string {
	verKey := base58.Encode(pub)

	w.keysMtx.Lock()
	defer w.keysMtx.Unlock()

	w.keys[verKey] = priv

	return verKey
}

// FindVerKey returns the index of the first candidate key held by this
// wallet, or cryptoutil.ErrKeyNotFound when none match.
func (w *BaseKMS) FindVerKey(candidateKeys []string) (int, error) {
	w.keysMtx.RLock()
	defer w.keysMtx.RUnlock()

	for i, key := range candidateKeys {
		if _, ok := w.keys[key]; ok {
			return i, nil
		}
	}

	return -1, cryptoutil.ErrKeyNotFound
}

// SignMessage signs message with the private key behind fromVerKey.
func (w *BaseKMS) SignMessage(message []byte, fromVerKey string) ([]byte, error) {
	priv, err := w.privateKey(fromVerKey)
	if err != nil {
		return nil, err
	}

	return ed25519.Sign(priv, message), nil
}

// ConvertToEncryptionKey converts an ed25519 verification key to its
// curve25519 counterpart.
func (w *BaseKMS) ConvertToEncryptionKey(verKey []byte) ([]byte, error) {
	return cryptoutil.PublicEd25519toCurve25519(verKey)
}

// VerifySignature checks a detached ed25519 signature.
func VerifySignature(verKey, message, signature []byte) error {
	if len(verKey) != ed25519.PublicKeySize {
		return cryptoutil.ErrInvalidKey
	}

	if !ed25519.Verify(verKey, message, signature) {
		return errors.New("ed25519: invalid signature")
	}

	return nil
}

func (w *BaseKMS) privateKey(verKey string) (ed25519.PrivateKey, error) {
	w.keysMtx.RLock()
	defer w.keysMtx.RUnlock()

	priv, ok := w.keys[verKey]
	if !ok {
		return nil, fmt.Errorf("%w: %s", cryptoutil.ErrKeyNotFound, verKey)
	}

	return priv, nil
}

// encPrivKeyBytes returns the curve25519 private key behind the given
// base58 verification key. Only the crypto box reads private material.
func (w *BaseKMS) encPrivKeyBytes(verKey string) ([]byte, error) {
	priv, err := w.privateKey(verKey)
	if err != nil {
		return nil, err
	}

	return cryptoutil.SecretEd25519toCurve25519(priv)
}
