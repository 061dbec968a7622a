/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package legacykms

import (
	"errors"
	"fmt"
	"io"

	"github.com/btcsuite/btcutil/base58"
	"golang.org/x/crypto/nacl/box"

	"github.com/hyperledger-archives/aries-protocol-test-suite/pkg/internal/cryptoutil"
)

// CryptoBox provides an elliptic-curve-based authenticated encryption
// scheme: payloads are sealed with a key derived via Curve25519 ECDH.
// CryptoBox is created by a wallet and reads secret keys from it, so
// callers never see private material.
type CryptoBox struct {
	km *BaseKMS
}

// NewCryptoBox creates a CryptoBox reading keys from the given wallet.
func NewCryptoBox(w KeyManager) (*CryptoBox, error) {
	lw, ok := w.(*BaseKMS)
	if !ok {
		return nil, errors.New("cannot use parameter argument as KMS")
	}

	return &CryptoBox{km: lw}, nil
}

// Easy seals a payload with a provided nonce.
// theirPub is the recipient curve25519 public key, myKey identifies the
// sender private key by its base58 ed25519 verification key.
func (b *CryptoBox) Easy(payload, nonce, theirPub []byte, myKey string) ([]byte, error) {
	senderPriv, err := b.km.encPrivKeyBytes(myKey)
	if err != nil {
		return nil, fmt.Errorf("easy: failed to export sender key: %w", err)
	}

	var (
		recPubBytes [cryptoutil.Curve25519KeySize]byte
		priv        [cryptoutil.Curve25519KeySize]byte
		nonceBytes  [cryptoutil.NonceSize]byte
	)

	copy(recPubBytes[:], theirPub)
	copy(priv[:], senderPriv)
	copy(nonceBytes[:], nonce)

	return box.Seal(nil, payload, &nonceBytes, &recPubBytes, &priv), nil
}

// EasyOpen unseals a payload sealed with Easy, where the nonce is
// provided. theirPub is the sender curve25519 public key, myPub is the
// recipient ed25519 verification key identifying the private key to use.
func (b *CryptoBox) EasyOpen(cipherText, nonce, theirPub, myPub []byte) ([]byte, error) {
	recipientPriv, err := b.km.encPrivKeyBytes(base58.Encode(myPub))
	if err != nil {
		return nil, err
	}

	var (
		sendPubBytes [cryptoutil.Curve25519KeySize]byte
		priv         [cryptoutil.Curve25519KeySize]byte
		nonceBytes   [cryptoutil.NonceSize]byte
	)

	copy(sendPubBytes[:], theirPub)
	copy(priv[:], recipientPriv)
	copy(nonceBytes[:], nonce)

	out, success := box.Open(nil, cipherText, &nonceBytes, &sendPubBytes, &priv)
	if !success {
		return nil, errors.New("failed to unpack")
	}

	return out, nil
}

// Seal seals a payload using the equivalent of libsodium box_seal.
// An ephemeral sender key pair is generated and its public key prepended
// to the sealed message.
func (b *CryptoBox) Seal(payload, theirEncPub []byte, randSource io.Reader) ([]byte, error) {
	epk, esk, err := box.GenerateKey(randSource)
	if err != nil {
		return nil, err
	}

	var recPubBytes [cryptoutil.Curve25519KeySize]byte

	copy(recPubBytes[:], theirEncPub)

	nonce, err := cryptoutil.Nonce(epk[:], theirEncPub)
	if err != nil {
		return nil, err
	}

	return box.Seal(epk[:], payload, nonce, &recPubBytes, esk), nil
}

// SealOpen decrypts a payload encrypted with Seal. The ephemeral sender
// public key is read from the front of the message; myPub identifies the
// recipient private key by its ed25519 verification key.
func (b *CryptoBox) SealOpen(cipherText, myPub []byte) ([]byte, error) {
	if len(cipherText) < cryptoutil.Curve25519KeySize {
		return nil, errors.New("message too short")
	}

	recipientPriv, err := b.km.encPrivKeyBytes(base58.Encode(myPub))
	if err != nil {
		return nil, fmt.Errorf("sealOpen: failed to export recipient key: %w", err)
	}

	recEncPub, err := cryptoutil.PublicEd25519toCurve25519(myPub)
	if err != nil {
		return nil, fmt.Errorf("sealOpen: failed to convert pub Ed25519 to X25519 key: %w", err)
	}

	var (
		epk  [cryptoutil.Curve25519KeySize]byte
		priv [cryptoutil.Curve25519KeySize]byte
	)

	copy(epk[:], cipherText[:cryptoutil.Curve25519KeySize])
	copy(priv[:], recipientPriv)

	nonce, err := cryptoutil.Nonce(epk[:], recEncPub)
	if err != nil {
		return nil, err
	}

	out, success := box.Open(nil, cipherText[cryptoutil.Curve25519KeySize:], nonce, &epk, &priv)
	if !success {
		return nil, errors.New("failed to unpack")
	}

	return out, nil
}
