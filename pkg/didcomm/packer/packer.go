/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

// Package packer implements the legacy Aries envelope format used on the
// wire between the suite and the agent under test: a JSON envelope with
// protected/iv/ciphertext/tag fields, Authcrypt or Anoncrypt.
package packer

import (
	"crypto/rand"
	"errors"
	"io"

	"github.com/hyperledger-archives/aries-protocol-test-suite/pkg/kms/legacykms"
)

// encodingType is the `typ` string identifier in a message that
// identifies the format as being legacy.
const encodingType = "JWM/1.0"

// Envelope algorithm identifiers.
const (
	authCrypt = "Authcrypt"
	anonCrypt = "Anoncrypt"
)

// ErrNoMatchingKey is returned on unpack when none of the envelope
// recipient keys is held by the wallet.
var ErrNoMatchingKey = errors.New("no matching recipient key")

// ErrMalformedEnvelope is returned on unpack when the envelope structure
// cannot be decoded.
var ErrMalformedEnvelope = errors.New("malformed envelope")

// Envelope holds an unpacked message with the keys it travelled under.
// FromVerKey is nil for anon-crypted envelopes.
type Envelope struct {
	Message    []byte
	FromVerKey []byte
	ToVerKey   []byte
}

// Packer packs and unpacks legacy Aries envelopes.
// Note: the legacy format uses Chacha20Poly1305 (C20P), not XC20P.
type Packer struct {
	randSource io.Reader
	kms        legacykms.KeyManager
	box        *legacykms.CryptoBox
}

// New creates a Packer reading keys from the given wallet.
func New(km legacykms.KeyManager) (*Packer, error) {
	b, err := legacykms.NewCryptoBox(km)
	if err != nil {
		return nil, err
	}

	return &Packer{
		randSource: rand.Reader,
		kms:        km,
		box:        b,
	}, nil
}

// EncodingType returns the type of the encoding, as in the `typ` field of
// the envelope header.
func (p *Packer) EncodingType() string {
	return encodingType
}

// legacyEnvelope is the full payload envelope for the JSON message.
type legacyEnvelope struct {
	Protected  string `json:"protected,omitempty"`
	IV         string `json:"iv,omitempty"`
	CipherText string `json:"ciphertext,omitempty"`
	Tag        string `json:"tag,omitempty"`
}

// protected is the protected header of the JSON envelope.
type protected struct {
	Enc        string      `json:"enc,omitempty"`
	Typ        string      `json:"typ,omitempty"`
	Alg        string      `json:"alg,omitempty"`
	Recipients []recipient `json:"recipients,omitempty"`
}

// recipient holds the data for a recipient in the envelope header.
type recipient struct {
	EncryptedKey string          `json:"encrypted_key,omitempty"`
	Header       recipientHeader `json:"header,omitempty"`
}

// recipientHeader holds the header data for a recipient.
type recipientHeader struct {
	KID    string `json:"kid,omitempty"`
	Sender string `json:"sender,omitempty"`
	IV     string `json:"iv,omitempty"`
}
