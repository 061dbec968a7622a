/*
Copyright SecureKey Technologies Inc. All Rights Reserved.

SPDX-License-Identifier: Apache-2.0
*/

package packer

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/btcsuite/btcutil/base58"
	chacha "golang.org/x/crypto/chacha20poly1305"
)

// Unpack decodes the envelope using the legacy format and decrypts it
// with the first recipient key held by the wallet. FromVerKey is set only
// for Authcrypt envelopes.
func (p *Packer) Unpack(envelope []byte) (*Envelope, error) {
	var envelopeData legacyEnvelope

	err := json.Unmarshal(envelope, &envelopeData)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}

	protectedBytes, err := base64.URLEncoding.DecodeString(envelopeData.Protected)
	if err != nil {
		return nil, fmt.Errorf("%w: protected header: %v", ErrMalformedEnvelope, err)
	}

	var protectedData protected

	err = json.Unmarshal(protectedBytes, &protectedData)
	if err != nil {
		return nil, fmt.Errorf("%w: protected header: %v", ErrMalformedEnvelope, err)
	}

	if protectedData.Typ != encodingType {
		return nil, fmt.Errorf("%w: message type %s not supported", ErrMalformedEnvelope, protectedData.Typ)
	}

	var (
		cek       []byte
		senderKey []byte
		recKey    []byte
	)

	switch protectedData.Alg {
	case authCrypt:
		cek, senderKey, recKey, err = p.authDecryptCEK(protectedData.Recipients)
	case anonCrypt:
		cek, recKey, err = p.anonDecryptCEK(protectedData.Recipients)
	default:
		return nil, fmt.Errorf("%w: message format %s not supported", ErrMalformedEnvelope, protectedData.Alg)
	}

	if err != nil {
		return nil, err
	}

	data, err := p.decodeCipherText(cek, &envelopeData)
	if err != nil {
		return nil, err
	}

	return &Envelope{
		Message:    data,
		FromVerKey: senderKey,
		ToVerKey:   recKey,
	}, nil
}

// authDecryptCEK recovers the content encryption key from an Authcrypt
// recipient block, along with the sealed sender verification key.
func (p *Packer) authDecryptCEK(recipients []recipient) (cek, senderKey, recKey []byte, err error) {
	recip, recKey, err := p.findRecipient(recipients)
	if err != nil {
		return nil, nil, nil, err
	}

	encSender, err := base64.URLEncoding.DecodeString(recip.Header.Sender)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: sender: %v", ErrMalformedEnvelope, err)
	}

	senderPubB58, err := p.box.SealOpen(encSender, recKey)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to decrypt sender key: %w", err)
	}

	senderKey = base58.Decode(string(senderPubB58))

	senderCurvePub, err := p.kms.ConvertToEncryptionKey(senderKey)
	if err != nil {
		return nil, nil, nil, err
	}

	nonce, err := base64.URLEncoding.DecodeString(recip.Header.IV)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: recipient iv: %v", ErrMalformedEnvelope, err)
	}

	encCEK, err := base64.URLEncoding.DecodeString(recip.EncryptedKey)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: encrypted key: %v", ErrMalformedEnvelope, err)
	}

	cek, err = p.box.EasyOpen(encCEK, nonce, senderCurvePub, recKey)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to decrypt CEK: %w", err)
	}

	return cek, senderKey, recKey, nil
}

// anonDecryptCEK recovers the content encryption key from an Anoncrypt
// recipient block.
func (p *Packer) anonDecryptCEK(recipients []recipient) (cek, recKey []byte, err error) {
	recip, recKey, err := p.findRecipient(recipients)
	if err != nil {
		return nil, nil, err
	}

	encCEK, err := base64.URLEncoding.DecodeString(recip.EncryptedKey)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: encrypted key: %v", ErrMalformedEnvelope, err)
	}

	cek, err = p.box.SealOpen(encCEK, recKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decrypt CEK: %w", err)
	}

	return cek, recKey, nil
}

// findRecipient scans the envelope recipient blocks for a key held by the
// wallet.
func (p *Packer) findRecipient(recipients []recipient) (*recipient, []byte, error) {
	candidateKeys := make([]string, 0, len(recipients))
	for _, candidate := range recipients {
		candidateKeys = append(candidateKeys, candidate.Header.KID)
	}

	recKeyIdx, err := p.kms.FindVerKey(candidateKeys)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrNoMatchingKey, err)
	}

	recip := recipients[recKeyIdx]

	return &recip, base58.Decode(recip.Header.KID), nil
}

// decodeCipherText decodes (from base64) and decrypts the ciphertext
// using chacha20poly1305.
func (p *Packer) decodeCipherText(cek []byte, envelope *legacyEnvelope) ([]byte, error) {
	aad := []byte(envelope.Protected)

	cipherText, err := base64.URLEncoding.DecodeString(envelope.CipherText)
	if err != nil {
		return nil, fmt.Errorf("%w: ciphertext: %v", ErrMalformedEnvelope, err)
	}

	nonce, err := base64.URLEncoding.DecodeString(envelope.IV)
	if err != nil {
		return nil, fmt.Errorf("%w: iv: %v", ErrMalformedEnvelope, err)
	}

	tag, err := base64.URLEncoding.DecodeString(envelope.Tag)
	if err != nil {
		return nil, fmt.Errorf("%w: tag: %v", ErrMalformedEnvelope, err)
	}

	chachaCipher, err := chacha.New(cek)
	if err != nil {
		return nil, err
	}

	payload := append(cipherText, tag...)

	msg, err := chachaCipher.Open(nil, nonce, payload, aad)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt message: %w", err)
	}

	return msg, nil
}
